package ledger

import (
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"

	cerrors "github.com/monsele/Converge/errors"
	"github.com/monsele/Converge/metrics"
)

// Dispatcher is the single envelope entry point the relay network calls.
// Only the configured relay identities pass the gate; everything after the
// gate reuses the Ledger's own methods, so dispatched operations and direct
// calls enforce identical invariants.
//
// There is no idempotency or replay protection: a redelivered envelope
// executes again. Recovery from duplicates is operator-driven.
type Dispatcher struct {
	ledger *Ledger
	auth   Authorizer
	log    zerolog.Logger
}

// NewDispatcher builds the relay entry point over a ledger.
func NewDispatcher(l *Ledger, auth Authorizer, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		ledger: l,
		auth:   auth,
		log:    log.With().Str("component", "dispatcher").Logger(),
	}
}

// Execute authorizes the caller, decodes the raw envelope and applies the
// operation. On success an audit record holding the operation type and the
// raw payload is appended.
func (d *Dispatcher) Execute(caller string, raw []byte) (Operation, error) {
	if !d.auth.Authorize(caller, ActionDispatchOperation) {
		return nil, cerrors.Newf(cerrors.ErrCodeAuthorization, "caller %q is not the configured relay", caller)
	}

	op, err := DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	switch o := op.(type) {
	case IssueBonds:
		err = d.ledger.Mint(caller, uint64(o.BondID), o.Recipient, o.Amount)
	case ConvertBonds:
		_, err = d.ledger.Convert(o.Holder, o.BondID, o.BondAmount)
	case WhitelistBondholder:
		err = d.ledger.SetWhitelisted(caller, uint64(o.BondID), o.Holder, true)
	case WhitelistEquityholder:
		err = d.ledger.SetWhitelisted(caller, uint64(o.EquityID), o.Holder, true)
	case UpdateConversionStatus:
		err = d.ledger.SetConversionEnabled(caller, o.BondID, o.Enabled)
	}
	if err != nil {
		d.log.Warn().
			Str("caller", caller).
			Str("op_type", op.Type().String()).
			Err(err).
			Msg("dispatch rejected")
		return nil, err
	}

	if err := d.recordAudit(caller, op.Type(), raw); err != nil {
		return nil, err
	}

	metrics.DispatchedOperations.WithLabelValues(op.Type().String()).Inc()
	d.log.Info().
		Str("caller", caller).
		Str("op_type", op.Type().String()).
		Msg("operation dispatched")
	return op, nil
}

func (d *Dispatcher) recordAudit(caller string, opType OpType, raw []byte) error {
	return d.ledger.state.update(func(tx *bbolt.Tx) error {
		return appendAudit(tx, &AuditRecord{
			Caller:    caller,
			OpType:    opType,
			Payload:   raw,
			Timestamp: d.ledger.now(),
		})
	})
}
