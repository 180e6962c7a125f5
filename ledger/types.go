// Package ledger implements the token side of the settlement protocol: the
// instrument registry, compliance whitelist, holder balances, the
// bond-to-equity conversion engine, and the relay-facing operation
// dispatcher. All state lives in a single bbolt file; every mutating
// operation runs inside one bbolt write transaction, which gives each
// operation its all-or-nothing semantics and serializes writers.
package ledger

import (
	"time"

	"cosmossdk.io/math"
)

// BondID identifies a BondSeries. Bond ids are allocated from a reserved
// low range, disjoint from equity ids.
type BondID uint64

// EquityID identifies an EquityClass. Equity ids are allocated from a high
// range, disjoint from bond ids.
type EquityID uint64

const (
	// bondIDBase is the first id handed out for bond series.
	bondIDBase uint64 = 1

	// equityIDBase is the first id handed out for equity classes. Every id
	// below it is a bond id, so the two whitelist namespaces can never
	// collide.
	equityIDBase uint64 = 1_000_000
)

// IsBondID reports whether a raw token id falls in the bond range.
func IsBondID(tokenID uint64) bool { return tokenID < equityIDBase }

// RatioScale is the fixed-point base for conversion ratios: ratios carry 18
// fractional decimal digits, so a ratio of 2.0 is stored as 2 * 10^18.
var RatioScale = math.NewIntWithDecimal(1, 18)

// BondSeries is a convertible bond instrument. Economic terms are immutable
// after creation; only the admin toggles and the aggregates change.
type BondSeries struct {
	ID                BondID   `json:"id"`
	EquityID          EquityID `json:"equity_id"`
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	ISIN              string   `json:"isin"`
	FaceValue         math.Int `json:"face_value"`
	CouponRateBps     uint32   `json:"coupon_rate_bps"`
	ConversionRatio   math.Int `json:"conversion_ratio"` // scaled by RatioScale
	Maturity          int64    `json:"maturity"`         // unix seconds
	TotalIssued       math.Int `json:"total_issued"`
	TotalConverted    math.Int `json:"total_converted"`
	Active            bool     `json:"active"`
	ConversionEnabled bool     `json:"conversion_enabled"`
}

// EquityClass is the equity instrument a bond series converts into.
type EquityClass struct {
	ID          EquityID `json:"id"`
	Name        string   `json:"name"`
	TotalSupply math.Int `json:"total_supply"`
	Active      bool     `json:"active"`
}

// InstrumentSpec carries the creation parameters for a bond series and its
// backing equity class.
type InstrumentSpec struct {
	ClassName       string   `json:"class_name"` // equity class display name
	Symbol          string   `json:"symbol"`
	Name            string   `json:"name"`
	ISIN            string   `json:"isin"`
	FaceValue       math.Int `json:"face_value"`
	CouponRateBps   uint32   `json:"coupon_rate_bps"`
	ConversionRatio math.Int `json:"conversion_ratio"` // scaled by RatioScale
	Maturity        int64    `json:"maturity"`         // unix seconds
}

// AuditRecord is written for every successful relay dispatch and keeps the
// raw payload so an operator can replay what the relay actually sent.
type AuditRecord struct {
	Seq       uint64    `json:"seq"`
	Caller    string    `json:"caller"`
	OpType    OpType    `json:"op_type"`
	Payload   []byte    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}
