package ledger

import (
	"encoding/json"

	"cosmossdk.io/math"

	cerrors "github.com/monsele/Converge/errors"
)

// OpType tags the operation envelope on the wire. The numeric values are
// part of the relay protocol and must not be reordered.
type OpType uint8

const (
	OpIssueBonds OpType = iota
	OpConvertBonds
	OpWhitelistBondholder
	OpWhitelistEquityholder
	OpUpdateConversionStatus
)

// String returns the wire name of an operation type.
func (t OpType) String() string {
	switch t {
	case OpIssueBonds:
		return "IssueBonds"
	case OpConvertBonds:
		return "ConvertBonds"
	case OpWhitelistBondholder:
		return "WhitelistBondholder"
	case OpWhitelistEquityholder:
		return "WhitelistEquityholder"
	case OpUpdateConversionStatus:
		return "UpdateConversionStatus"
	}
	return "Unknown"
}

// Operation is the closed set of relay operations. Decoding resolves the
// numeric wire tag into exactly one of the concrete types below, so every
// consumer switches exhaustively over known operations and the unsupported
// tag can only surface at the decode boundary.
type Operation interface {
	Type() OpType
}

// IssueBonds mints bond units to a whitelisted recipient.
type IssueBonds struct {
	BondID    BondID   `json:"bond_id"`
	Recipient string   `json:"recipient"`
	Amount    math.Int `json:"amount"`
}

// ConvertBonds converts a holder's bond units into equity.
type ConvertBonds struct {
	Holder     string   `json:"holder"`
	BondID     BondID   `json:"bond_id"`
	BondAmount math.Int `json:"bond_amount"`
}

// WhitelistBondholder makes a holder eligible for a bond series.
type WhitelistBondholder struct {
	BondID BondID `json:"bond_id"`
	Holder string `json:"holder"`
}

// WhitelistEquityholder makes a holder eligible for an equity class.
type WhitelistEquityholder struct {
	EquityID EquityID `json:"equity_id"`
	Holder   string   `json:"holder"`
}

// UpdateConversionStatus toggles a bond series' conversion gate.
type UpdateConversionStatus struct {
	BondID  BondID `json:"bond_id"`
	Enabled bool   `json:"enabled"`
}

func (IssueBonds) Type() OpType             { return OpIssueBonds }
func (ConvertBonds) Type() OpType           { return OpConvertBonds }
func (WhitelistBondholder) Type() OpType    { return OpWhitelistBondholder }
func (WhitelistEquityholder) Type() OpType  { return OpWhitelistEquityholder }
func (UpdateConversionStatus) Type() OpType { return OpUpdateConversionStatus }

// Envelope is the wire form of a relay operation: a numeric tag plus the
// payload for that tag.
type Envelope struct {
	OperationType    uint8           `json:"operation_type"`
	OperationPayload json.RawMessage `json:"operation_payload"`
}

// DecodeEnvelope parses a raw envelope into its typed operation.
// Unknown tags fail with UNSUPPORTED_OPERATION; malformed payloads fail
// with VALIDATION.
func DecodeEnvelope(raw []byte) (Operation, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeValidation, "malformed operation envelope").WithCause(err)
	}

	var (
		op  Operation
		err error
	)
	switch OpType(env.OperationType) {
	case OpIssueBonds:
		var p IssueBonds
		err = json.Unmarshal(env.OperationPayload, &p)
		op = p
	case OpConvertBonds:
		var p ConvertBonds
		err = json.Unmarshal(env.OperationPayload, &p)
		op = p
	case OpWhitelistBondholder:
		var p WhitelistBondholder
		err = json.Unmarshal(env.OperationPayload, &p)
		op = p
	case OpWhitelistEquityholder:
		var p WhitelistEquityholder
		err = json.Unmarshal(env.OperationPayload, &p)
		op = p
	case OpUpdateConversionStatus:
		var p UpdateConversionStatus
		err = json.Unmarshal(env.OperationPayload, &p)
		op = p
	default:
		return nil, cerrors.Newf(cerrors.ErrCodeUnsupportedOperation, "unknown operation type %d", env.OperationType)
	}
	if err != nil {
		return nil, cerrors.Newf(cerrors.ErrCodeValidation, "malformed %s payload", OpType(env.OperationType)).WithCause(err)
	}
	return op, nil
}

// EncodeEnvelope builds the wire form for an operation. Used by tests and
// by tooling that simulates the relay.
func EncodeEnvelope(op Operation) ([]byte, error) {
	payload, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		OperationType:    uint8(op.Type()),
		OperationPayload: payload,
	})
}
