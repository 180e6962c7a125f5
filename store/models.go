// Package store contains the GORM-backed models of the trade-orchestration
// database. This store is the off-ledger system of record: the token ledger
// never reads it, and nothing here is visible to the relay network except
// through the trade API.
package store

import (
	"time"

	"gorm.io/gorm"
)

// TradeStatus is the lifecycle state of a TradeIntent.
type TradeStatus string

const (
	// TradeStatusCreated is transient: intents advance to InProgress within
	// the same request that created them.
	TradeStatusCreated TradeStatus = "Created"

	// TradeStatusInProgress means the intent is persisted and the relay may
	// or may not have been triggered yet.
	TradeStatusInProgress TradeStatus = "InProgress"

	// TradeStatusCompleted is terminal: the relay callback reported a
	// successful on-ledger settlement.
	TradeStatusCompleted TradeStatus = "Completed"

	// TradeStatusFailed is terminal: the trigger call failed or the relay
	// callback reported a failure.
	TradeStatusFailed TradeStatus = "Failed"
)

// Valid reports whether s is one of the known trade statuses.
func (s TradeStatus) Valid() bool {
	switch s {
	case TradeStatusCreated, TradeStatusInProgress, TradeStatusCompleted, TradeStatusFailed:
		return true
	}
	return false
}

// Organization is an issuer of convertible bond instruments.
type Organization struct {
	gorm.Model
	Name          string `gorm:"uniqueIndex;not null"`
	Country       string
	IssuerAddress string // ledger identity the organization issues under
}

// Investor is a registered counterparty able to request trades.
type Investor struct {
	gorm.Model
	Name          string
	Email         string `gorm:"uniqueIndex;not null"`
	WalletAddress string `gorm:"index"` // holder address on the token ledger
}

// BondInstance is the off-ledger record of a bond offering. Economic terms
// mirror the on-ledger BondSeries; ConversionRatio is kept in its decimal
// string form and parsed when a relay trigger payload is built.
type BondInstance struct {
	gorm.Model
	OrganizationID  uint   `gorm:"index;not null"`
	ISIN            string `gorm:"uniqueIndex;not null"`
	Currency        string
	TotalSize       int64 // total issuance size in currency minor units
	FaceValue       int64 // face value per unit in currency minor units
	Maturity        time.Time
	CouponRateBps   uint32
	ConversionRatio string // decimal string, e.g. "2.0"
	LedgerBondID    uint64 `gorm:"index"` // on-ledger BondSeries id, zero until issued
}

// TradeIntent records a requested settlement and its reconciliation state.
// The synchronous relay trigger only proves the relay accepted the request;
// TxHash, BlockNumber and the ledger ids arrive with the asynchronous
// callback, which is the only place actual settlement is learned.
type TradeIntent struct {
	gorm.Model
	TradeID        string      `gorm:"uniqueIndex;not null"` // external identifier (UUID)
	InvestorID     uint        `gorm:"index;not null"`
	BondInstanceID uint        `gorm:"index;not null"`
	AmountPaid     int64       // currency minor units
	UnitsRequested int64       // bond units
	Status         TradeStatus `gorm:"index;not null"`
	FailureReason  string      `gorm:"type:text"`
	RelayResponse  []byte      // raw trigger response body, if any
	TxHash         string      // on-ledger transaction reference from the callback
	BlockNumber    uint64      // on-ledger block reference from the callback
	LedgerBondID   uint64      // bond id reported by the callback
	LedgerEquityID uint64      // equity id reported by the callback
}

// StatusOverride audits a manual trade-status override: prior and new state,
// and who asked for it. Overrides are unconditional, including over terminal
// states, so the audit trail is the only way to reconstruct what happened.
type StatusOverride struct {
	gorm.Model
	TradeID     string `gorm:"index;not null"`
	PriorStatus TradeStatus
	NewStatus   TradeStatus
	Actor       string
}
