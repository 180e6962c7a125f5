// Package trade implements the off-ledger settlement workflow: it records
// trade intents, hands issuance requests to the relay network, and
// reconciles the relay's asynchronous callbacks against the stored intents.
// The token ledger never sees this state.
package trade

import (
	"context"

	"cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/monsele/Converge/db"
	cerrors "github.com/monsele/Converge/errors"
	"github.com/monsele/Converge/metrics"
	"github.com/monsele/Converge/relay"
	"github.com/monsele/Converge/store"
)

// Service orchestrates the trade lifecycle over the orchestration store and
// the relay trigger client.
type Service struct {
	db      *db.DB
	trigger relay.Trigger
	log     zerolog.Logger
}

// NewService builds the trade orchestrator.
func NewService(database *db.DB, trigger relay.Trigger, log zerolog.Logger) *Service {
	return &Service{
		db:      database,
		trigger: trigger,
		log:     log.With().Str("component", "trade").Logger(),
	}
}

// Request carries the parameters of a trade creation or initiation.
type Request struct {
	InvestorID          uint   `json:"investor_id"`
	BondInstanceID      uint   `json:"bond_instance_id"`
	AmountPaid          int64  `json:"amount_paid"`
	UnitsRequested      int64  `json:"units_requested"`
	ConversionPriceHint string `json:"conversion_price_hint"`
}

// Callback is what the relay posts after attempting on-ledger settlement.
// Status is applied unconditionally; by the time the callback arrives the
// trigger response is history and the relay's verdict is authoritative.
type Callback struct {
	TradeID     string            `json:"trade_id"`
	Status      store.TradeStatus `json:"status"`
	TxHash      string            `json:"transaction_hash,omitempty"`
	BlockNumber uint64            `json:"block_number,omitempty"`
	BondID      uint64            `json:"bond_id,omitempty"`
	EquityID    uint64            `json:"equity_id,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// CreateTrade persists a trade intent without touching the relay. Used when
// the settlement request reaches the relay through another channel.
func (s *Service) CreateTrade(ctx context.Context, req Request) (*store.TradeIntent, error) {
	if _, _, err := s.validateRequest(req); err != nil {
		return nil, err
	}

	intent := s.newIntent(req)
	if err := s.db.Client().WithContext(ctx).Create(intent).Error; err != nil {
		return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to persist trade intent").WithCause(err)
	}
	return intent, nil
}

// InitiateTrade persists a trade intent and synchronously hands the
// issuance request to the relay. A trigger failure is recovered locally:
// the intent flips to Failed and the returned error carries the intent id,
// so the failure is auditable rather than lost. Trigger success leaves the
// intent InProgress until the relay's callback arrives.
//
// When the trigger call fails the intent is returned alongside the
// UPSTREAM_FAILURE error so callers can surface the persisted record.
func (s *Service) InitiateTrade(ctx context.Context, req Request) (*store.TradeIntent, error) {
	investor, bond, err := s.validateRequest(req)
	if err != nil {
		metrics.TradesInitiated.WithLabelValues("rejected").Inc()
		return nil, err
	}

	var org store.Organization
	if err := s.db.Client().WithContext(ctx).First(&org, bond.OrganizationID).Error; err != nil {
		return nil, cerrors.Newf(cerrors.ErrCodeValidation, "bond instance %d has no organization", bond.ID).WithCause(err)
	}

	intent := s.newIntent(req)
	if err := s.db.Client().WithContext(ctx).Create(intent).Error; err != nil {
		return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to persist trade intent").WithCause(err)
	}

	issuance := relay.IssuanceRequest{
		IssuerID:        org.IssuerAddress,
		ISIN:            bond.ISIN,
		Currency:        bond.Currency,
		TotalSize:       bond.TotalSize,
		FaceValue:       bond.FaceValue,
		Maturity:        bond.Maturity.Unix(),
		ConversionRatio: bond.ConversionRatio,
		ConversionPrice: req.ConversionPriceHint,
	}

	result, err := s.trigger.SubmitIssuance(ctx, issuance)
	if err != nil {
		// Cancellation: the intent stays InProgress with no response
		// recorded; the caller can re-query it by id.
		s.log.Warn().Str("trade_id", intent.TradeID).Err(err).Msg("relay trigger abandoned")
		return intent, err
	}

	if !result.Success {
		intent.Status = store.TradeStatusFailed
		intent.FailureReason = result.Error
		intent.RelayResponse = result.Body
		if err := s.db.Client().WithContext(ctx).Save(intent).Error; err != nil {
			return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to record trigger failure").WithCause(err)
		}
		metrics.TradesInitiated.WithLabelValues("upstream_failure").Inc()
		s.log.Warn().
			Str("trade_id", intent.TradeID).
			Str("reason", result.Error).
			Msg("relay trigger failed")
		return intent, cerrors.New(cerrors.ErrCodeUpstream, result.Error).
			WithContext("trade_id", intent.TradeID)
	}

	intent.RelayResponse = result.Body
	if err := s.db.Client().WithContext(ctx).Save(intent).Error; err != nil {
		return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to record trigger response").WithCause(err)
	}

	metrics.TradesInitiated.WithLabelValues("triggered").Inc()
	s.log.Info().
		Str("trade_id", intent.TradeID).
		Uint("investor_id", investor.ID).
		Str("isin", bond.ISIN).
		Msg("trade initiated, awaiting relay callback")
	return intent, nil
}

// HandleCallback applies the relay's settlement verdict to a trade intent.
// The status overwrite is unconditional: a second callback for the same
// trade id replaces whatever the first one wrote.
func (s *Service) HandleCallback(ctx context.Context, cb Callback) (*store.TradeIntent, error) {
	if !cb.Status.Valid() {
		return nil, cerrors.Newf(cerrors.ErrCodeValidation, "unknown trade status %q", cb.Status)
	}

	intent, err := s.findByTradeID(ctx, cb.TradeID)
	if err != nil {
		return nil, err
	}

	intent.Status = cb.Status
	intent.FailureReason = cb.Error
	if cb.TxHash != "" {
		intent.TxHash = cb.TxHash
	}
	if cb.BlockNumber != 0 {
		intent.BlockNumber = cb.BlockNumber
	}
	if cb.BondID != 0 {
		intent.LedgerBondID = cb.BondID
	}
	if cb.EquityID != 0 {
		intent.LedgerEquityID = cb.EquityID
	}

	if err := s.db.Client().WithContext(ctx).Save(intent).Error; err != nil {
		return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to apply callback").WithCause(err)
	}

	metrics.CallbacksReceived.WithLabelValues(string(cb.Status)).Inc()
	s.log.Info().
		Str("trade_id", cb.TradeID).
		Str("status", string(cb.Status)).
		Str("tx_hash", cb.TxHash).
		Msg("relay callback applied")
	return intent, nil
}

// PatchStatus is the manual override: it replaces the intent's status
// unconditionally, terminal states included, and writes an audit row with
// the prior and new state.
func (s *Service) PatchStatus(ctx context.Context, tradeID string, newStatus store.TradeStatus, actor string) (*store.TradeIntent, error) {
	if !newStatus.Valid() {
		return nil, cerrors.Newf(cerrors.ErrCodeValidation, "unknown trade status %q", newStatus)
	}

	intent, err := s.findByTradeID(ctx, tradeID)
	if err != nil {
		return nil, err
	}

	prior := intent.Status
	intent.Status = newStatus

	err = s.db.Client().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(intent).Error; err != nil {
			return err
		}
		return tx.Create(&store.StatusOverride{
			TradeID:     tradeID,
			PriorStatus: prior,
			NewStatus:   newStatus,
			Actor:       actor,
		}).Error
	})
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to override trade status").WithCause(err)
	}

	metrics.StatusOverrides.Inc()
	s.log.Info().
		Str("trade_id", tradeID).
		Str("prior", string(prior)).
		Str("new", string(newStatus)).
		Str("actor", actor).
		Msg("trade status overridden")
	return intent, nil
}

// GetTrade returns a trade intent by its external id.
func (s *Service) GetTrade(ctx context.Context, tradeID string) (*store.TradeIntent, error) {
	return s.findByTradeID(ctx, tradeID)
}

// ListFilter narrows ListTrades results. Zero values mean "no filter".
type ListFilter struct {
	Status     store.TradeStatus
	InvestorID uint
	Limit      int
}

// ListTrades returns trade intents, newest first.
func (s *Service) ListTrades(ctx context.Context, filter ListFilter) ([]store.TradeIntent, error) {
	q := s.db.Client().WithContext(ctx).Order("created_at DESC")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.InvestorID != 0 {
		q = q.Where("investor_id = ?", filter.InvestorID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var intents []store.TradeIntent
	if err := q.Limit(limit).Find(&intents).Error; err != nil {
		return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to list trades").WithCause(err)
	}
	return intents, nil
}

// --- helpers ---

func (s *Service) newIntent(req Request) *store.TradeIntent {
	return &store.TradeIntent{
		TradeID:        uuid.NewString(),
		InvestorID:     req.InvestorID,
		BondInstanceID: req.BondInstanceID,
		AmountPaid:     req.AmountPaid,
		UnitsRequested: req.UnitsRequested,
		Status:         store.TradeStatusInProgress,
	}
}

func (s *Service) findByTradeID(ctx context.Context, tradeID string) (*store.TradeIntent, error) {
	var intent store.TradeIntent
	err := s.db.Client().WithContext(ctx).Where("trade_id = ?", tradeID).First(&intent).Error
	if err != nil {
		if cerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, cerrors.Newf(cerrors.ErrCodeNotFound, "trade %s not found", tradeID)
		}
		return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to load trade intent").WithCause(err)
	}
	return &intent, nil
}

// validateRequest checks the request shape and resolves its references.
// A missing investor or bond instance is a validation error: no intent is
// persisted for a request that could never settle.
func (s *Service) validateRequest(req Request) (*store.Investor, *store.BondInstance, error) {
	if req.UnitsRequested <= 0 {
		return nil, nil, cerrors.New(cerrors.ErrCodeValidation, "units requested must be positive")
	}
	if req.AmountPaid < 0 {
		return nil, nil, cerrors.New(cerrors.ErrCodeValidation, "amount paid must not be negative")
	}

	var investor store.Investor
	if err := s.db.Client().First(&investor, req.InvestorID).Error; err != nil {
		if cerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, cerrors.Newf(cerrors.ErrCodeValidation, "investor %d does not exist", req.InvestorID)
		}
		return nil, nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to load investor").WithCause(err)
	}

	var bond store.BondInstance
	if err := s.db.Client().First(&bond, req.BondInstanceID).Error; err != nil {
		if cerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, cerrors.Newf(cerrors.ErrCodeValidation, "bond instance %d does not exist", req.BondInstanceID)
		}
		return nil, nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to load bond instance").WithCause(err)
	}

	// The stored ratio feeds the relay payload; reject instruments whose
	// ratio would not parse before an intent exists for them.
	if _, err := math.LegacyNewDecFromStr(bond.ConversionRatio); err != nil {
		return nil, nil, cerrors.Newf(cerrors.ErrCodeValidation, "bond instance %d has malformed conversion ratio %q", bond.ID, bond.ConversionRatio)
	}

	return &investor, &bond, nil
}
