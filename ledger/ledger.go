package ledger

import (
	"time"

	"cosmossdk.io/math"
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"

	cerrors "github.com/monsele/Converge/errors"
)

// Ledger is the authoritative registry of instruments, whitelists and
// balances. Both the direct-call entry points here and the relay-facing
// Dispatcher run the exact same methods, so the two paths cannot diverge on
// invariant checks.
type Ledger struct {
	state *State
	auth  Authorizer
	log   zerolog.Logger
	now   func() time.Time
}

// New constructs a Ledger over the given state store.
func New(state *State, auth Authorizer, log zerolog.Logger) *Ledger {
	return &Ledger{
		state: state,
		auth:  auth,
		log:   log.With().Str("component", "ledger").Logger(),
		now:   time.Now,
	}
}

// CreateInstrument allocates a bond series and its backing equity class in
// one step. Economic terms are immutable afterwards: correcting a mistake
// means deactivating and re-creating.
func (l *Ledger) CreateInstrument(caller string, spec InstrumentSpec) (BondID, EquityID, error) {
	if !l.auth.Authorize(caller, ActionCreateInstrument) {
		return 0, 0, cerrors.Newf(cerrors.ErrCodeAuthorization, "caller %q may not create instruments", caller)
	}
	if spec.ConversionRatio.IsNil() || !spec.ConversionRatio.IsPositive() {
		return 0, 0, cerrors.New(cerrors.ErrCodeValidation, "conversion ratio must be positive")
	}
	if spec.FaceValue.IsNil() || !spec.FaceValue.IsPositive() {
		return 0, 0, cerrors.New(cerrors.ErrCodeValidation, "face value must be positive")
	}
	if spec.Maturity <= l.now().Unix() {
		return 0, 0, cerrors.New(cerrors.ErrCodeValidation, "maturity must be in the future")
	}
	if spec.ClassName == "" || spec.Name == "" {
		return 0, 0, cerrors.New(cerrors.ErrCodeValidation, "class name and bond name are required")
	}

	var (
		bondID   BondID
		equityID EquityID
	)
	err := l.state.update(func(tx *bbolt.Tx) error {
		var err error
		if equityID, err = allocateEquityID(tx); err != nil {
			return err
		}
		if bondID, err = allocateBondID(tx); err != nil {
			return err
		}

		if err := putEquityClass(tx, &EquityClass{
			ID:          equityID,
			Name:        spec.ClassName,
			TotalSupply: math.ZeroInt(),
			Active:      true,
		}); err != nil {
			return err
		}

		return putBondSeries(tx, &BondSeries{
			ID:                bondID,
			EquityID:          equityID,
			Symbol:            spec.Symbol,
			Name:              spec.Name,
			ISIN:              spec.ISIN,
			FaceValue:         spec.FaceValue,
			CouponRateBps:     spec.CouponRateBps,
			ConversionRatio:   spec.ConversionRatio,
			Maturity:          spec.Maturity,
			TotalIssued:       math.ZeroInt(),
			TotalConverted:    math.ZeroInt(),
			Active:            true,
			ConversionEnabled: true,
		})
	})
	if err != nil {
		return 0, 0, err
	}

	l.log.Info().
		Uint64("bond_id", uint64(bondID)).
		Uint64("equity_id", uint64(equityID)).
		Str("isin", spec.ISIN).
		Msg("instrument created")
	return bondID, equityID, nil
}

// SetWhitelisted flips a holder's eligibility for a token id. Restricted to
// the compliance authority. Absence of an entry means not whitelisted.
func (l *Ledger) SetWhitelisted(caller string, tokenID uint64, holder string, allowed bool) error {
	if !l.auth.Authorize(caller, ActionManageWhitelist) {
		return cerrors.Newf(cerrors.ErrCodeAuthorization, "caller %q may not manage whitelists", caller)
	}
	if holder == "" {
		return cerrors.New(cerrors.ErrCodeValidation, "holder address is required")
	}

	err := l.state.update(func(tx *bbolt.Tx) error {
		if err := instrumentExists(tx, tokenID); err != nil {
			return err
		}
		return setWhitelisted(tx, tokenID, holder, allowed)
	})
	if err != nil {
		return err
	}

	l.log.Info().
		Uint64("token_id", tokenID).
		Str("holder", holder).
		Bool("allowed", allowed).
		Msg("whitelist updated")
	return nil
}

// Mint creates amount units of tokenID for holder. The recipient must be
// whitelisted for this specific token id and the instrument must be active;
// there is no implicit whitelist-on-mint.
func (l *Ledger) Mint(caller string, tokenID uint64, holder string, amount math.Int) error {
	if !l.auth.Authorize(caller, ActionIssue) {
		return cerrors.Newf(cerrors.ErrCodeAuthorization, "caller %q may not issue", caller)
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	err := l.state.update(func(tx *bbolt.Tx) error {
		if err := requireActive(tx, tokenID); err != nil {
			return err
		}
		if !isWhitelisted(tx, tokenID, holder) {
			return cerrors.Newf(cerrors.ErrCodeNotWhitelisted, "holder %q is not whitelisted for token %d", holder, tokenID)
		}

		bal, err := getBalance(tx, tokenID, holder)
		if err != nil {
			return err
		}
		if err := setBalance(tx, tokenID, holder, bal.Add(amount)); err != nil {
			return err
		}
		return adjustSupply(tx, tokenID, amount)
	})
	if err != nil {
		return err
	}

	l.log.Info().
		Uint64("token_id", tokenID).
		Str("holder", holder).
		Stringer("amount", amount).
		Msg("minted")
	return nil
}

// Burn destroys amount units of tokenID held by holder.
func (l *Ledger) Burn(caller string, tokenID uint64, holder string, amount math.Int) error {
	if !l.auth.Authorize(caller, ActionRedeem) {
		return cerrors.Newf(cerrors.ErrCodeAuthorization, "caller %q may not redeem", caller)
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	err := l.state.update(func(tx *bbolt.Tx) error {
		if err := instrumentExists(tx, tokenID); err != nil {
			return err
		}

		bal, err := getBalance(tx, tokenID, holder)
		if err != nil {
			return err
		}
		if bal.LT(amount) {
			return cerrors.Newf(cerrors.ErrCodeInsufficientBalance, "holder %q has %s of token %d, needs %s", holder, bal, tokenID, amount)
		}
		if err := setBalance(tx, tokenID, holder, bal.Sub(amount)); err != nil {
			return err
		}
		return adjustSupply(tx, tokenID, amount.Neg())
	})
	if err != nil {
		return err
	}

	l.log.Info().
		Uint64("token_id", tokenID).
		Str("holder", holder).
		Stringer("amount", amount).
		Msg("burned")
	return nil
}

// Transfer moves amount units of tokenID from the caller to another holder.
// Only the receiving address is whitelist-checked: a balance decrease cannot
// create new exposure.
func (l *Ledger) Transfer(from string, tokenID uint64, to string, amount math.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if to == "" {
		return cerrors.New(cerrors.ErrCodeValidation, "recipient address is required")
	}

	return l.state.update(func(tx *bbolt.Tx) error {
		if err := requireActive(tx, tokenID); err != nil {
			return err
		}
		if !isWhitelisted(tx, tokenID, to) {
			return cerrors.Newf(cerrors.ErrCodeNotWhitelisted, "recipient %q is not whitelisted for token %d", to, tokenID)
		}

		fromBal, err := getBalance(tx, tokenID, from)
		if err != nil {
			return err
		}
		if fromBal.LT(amount) {
			return cerrors.Newf(cerrors.ErrCodeInsufficientBalance, "holder %q has %s of token %d, needs %s", from, fromBal, tokenID, amount)
		}

		toBal, err := getBalance(tx, tokenID, to)
		if err != nil {
			return err
		}

		if err := setBalance(tx, tokenID, from, fromBal.Sub(amount)); err != nil {
			return err
		}
		return setBalance(tx, tokenID, to, toBal.Add(amount))
	})
}

// Convert burns bondAmount of the holder's bonds and mints the equity due:
// floor(bondAmount * ratio / RatioScale). The burn, the mint and both
// aggregate updates commit in one write transaction.
func (l *Ledger) Convert(holder string, bondID BondID, bondAmount math.Int) (math.Int, error) {
	if err := validateAmount(bondAmount); err != nil {
		return math.Int{}, err
	}
	if holder == "" {
		return math.Int{}, cerrors.New(cerrors.ErrCodeValidation, "holder address is required")
	}

	var equityAmount math.Int
	err := l.state.update(func(tx *bbolt.Tx) error {
		series, err := getBondSeries(tx, bondID)
		if err != nil {
			return err
		}
		if !series.Active {
			return cerrors.Newf(cerrors.ErrCodeInactiveInstrument, "bond series %d is not active", bondID)
		}
		if !series.ConversionEnabled {
			return cerrors.Newf(cerrors.ErrCodeInactiveInstrument, "conversion is disabled for bond series %d", bondID)
		}

		bondBal, err := getBalance(tx, uint64(bondID), holder)
		if err != nil {
			return err
		}
		if bondBal.LT(bondAmount) {
			return cerrors.Newf(cerrors.ErrCodeInsufficientBalance, "holder %q has %s of bond %d, needs %s", holder, bondBal, bondID, bondAmount)
		}
		if !isWhitelisted(tx, uint64(series.EquityID), holder) {
			return cerrors.Newf(cerrors.ErrCodeNotWhitelisted, "holder %q is not whitelisted for equity %d", holder, series.EquityID)
		}

		// Truncating division: fractional equity is never minted.
		equityAmount = bondAmount.Mul(series.ConversionRatio).Quo(RatioScale)
		if equityAmount.IsZero() {
			return cerrors.Newf(cerrors.ErrCodeZeroConversion, "converting %s of bond %d yields zero equity", bondAmount, bondID)
		}

		equity, err := getEquityClass(tx, series.EquityID)
		if err != nil {
			return err
		}

		if err := setBalance(tx, uint64(bondID), holder, bondBal.Sub(bondAmount)); err != nil {
			return err
		}
		equityBal, err := getBalance(tx, uint64(series.EquityID), holder)
		if err != nil {
			return err
		}
		if err := setBalance(tx, uint64(series.EquityID), holder, equityBal.Add(equityAmount)); err != nil {
			return err
		}

		series.TotalConverted = series.TotalConverted.Add(bondAmount)
		if err := putBondSeries(tx, series); err != nil {
			return err
		}
		equity.TotalSupply = equity.TotalSupply.Add(equityAmount)
		return putEquityClass(tx, equity)
	})
	if err != nil {
		return math.Int{}, err
	}

	l.log.Info().
		Uint64("bond_id", uint64(bondID)).
		Str("holder", holder).
		Stringer("bond_amount", bondAmount).
		Stringer("equity_amount", equityAmount).
		Msg("converted")
	return equityAmount, nil
}

// SetConversionEnabled toggles the conversion gate of a bond series,
// independently of its active flag.
func (l *Ledger) SetConversionEnabled(caller string, bondID BondID, enabled bool) error {
	if !l.auth.Authorize(caller, ActionSetConversionStatus) {
		return cerrors.Newf(cerrors.ErrCodeAuthorization, "caller %q may not update conversion status", caller)
	}

	return l.state.update(func(tx *bbolt.Tx) error {
		series, err := getBondSeries(tx, bondID)
		if err != nil {
			return err
		}
		series.ConversionEnabled = enabled
		return putBondSeries(tx, series)
	})
}

// SetActive toggles an instrument's active flag. Works for both id ranges.
func (l *Ledger) SetActive(caller string, tokenID uint64, active bool) error {
	if !l.auth.Authorize(caller, ActionSetInstrumentActive) {
		return cerrors.Newf(cerrors.ErrCodeAuthorization, "caller %q may not toggle instruments", caller)
	}

	return l.state.update(func(tx *bbolt.Tx) error {
		if IsBondID(tokenID) {
			series, err := getBondSeries(tx, BondID(tokenID))
			if err != nil {
				return err
			}
			series.Active = active
			return putBondSeries(tx, series)
		}
		equity, err := getEquityClass(tx, EquityID(tokenID))
		if err != nil {
			return err
		}
		equity.Active = active
		return putEquityClass(tx, equity)
	})
}

// --- read-only projections ---

// BondSeries returns a bond series by id.
func (l *Ledger) BondSeries(id BondID) (*BondSeries, error) {
	var out *BondSeries
	err := l.state.view(func(tx *bbolt.Tx) error {
		var err error
		out, err = getBondSeries(tx, id)
		return err
	})
	return out, err
}

// EquityClass returns an equity class by id.
func (l *Ledger) EquityClass(id EquityID) (*EquityClass, error) {
	var out *EquityClass
	err := l.state.view(func(tx *bbolt.Tx) error {
		var err error
		out, err = getEquityClass(tx, id)
		return err
	})
	return out, err
}

// BalanceOf returns holder's balance of a token id.
func (l *Ledger) BalanceOf(tokenID uint64, holder string) (math.Int, error) {
	var out math.Int
	err := l.state.view(func(tx *bbolt.Tx) error {
		var err error
		out, err = getBalance(tx, tokenID, holder)
		return err
	})
	return out, err
}

// IsWhitelisted reports holder eligibility for a token id.
func (l *Ledger) IsWhitelisted(tokenID uint64, holder string) (bool, error) {
	var out bool
	err := l.state.view(func(tx *bbolt.Tx) error {
		out = isWhitelisted(tx, tokenID, holder)
		return nil
	})
	return out, err
}

// CirculatingSupply sums every holder balance of a token id. For bonds this
// equals totalIssued - totalConverted, for equity it equals totalSupply.
func (l *Ledger) CirculatingSupply(tokenID uint64) (math.Int, error) {
	var out math.Int
	err := l.state.view(func(tx *bbolt.Tx) error {
		var err error
		out, err = sumBalances(tx, tokenID)
		return err
	})
	return out, err
}

// AuditLog returns up to limit dispatcher audit records, newest first.
func (l *Ledger) AuditLog(limit int) ([]AuditRecord, error) {
	var out []AuditRecord
	err := l.state.view(func(tx *bbolt.Tx) error {
		var err error
		out, err = auditRecords(tx, limit)
		return err
	})
	return out, err
}

// --- shared checks ---

func validateAmount(amount math.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return cerrors.New(cerrors.ErrCodeValidation, "amount must be positive")
	}
	return nil
}

// instrumentExists resolves tokenID in whichever range it belongs to.
func instrumentExists(tx *bbolt.Tx, tokenID uint64) error {
	if IsBondID(tokenID) {
		_, err := getBondSeries(tx, BondID(tokenID))
		return err
	}
	_, err := getEquityClass(tx, EquityID(tokenID))
	return err
}

// requireActive resolves tokenID and rejects deactivated instruments.
func requireActive(tx *bbolt.Tx, tokenID uint64) error {
	if IsBondID(tokenID) {
		series, err := getBondSeries(tx, BondID(tokenID))
		if err != nil {
			return err
		}
		if !series.Active {
			return cerrors.Newf(cerrors.ErrCodeInactiveInstrument, "bond series %d is not active", tokenID)
		}
		return nil
	}
	equity, err := getEquityClass(tx, EquityID(tokenID))
	if err != nil {
		return err
	}
	if !equity.Active {
		return cerrors.Newf(cerrors.ErrCodeInactiveInstrument, "equity class %d is not active", tokenID)
	}
	return nil
}

// adjustSupply applies a mint (positive) or burn (negative) delta to the
// aggregate the token id's range maintains: totalIssued for bonds,
// totalSupply for equity. Keeps the conservation invariant in step with the
// balance change in the same transaction.
func adjustSupply(tx *bbolt.Tx, tokenID uint64, delta math.Int) error {
	if IsBondID(tokenID) {
		series, err := getBondSeries(tx, BondID(tokenID))
		if err != nil {
			return err
		}
		series.TotalIssued = series.TotalIssued.Add(delta)
		return putBondSeries(tx, series)
	}
	equity, err := getEquityClass(tx, EquityID(tokenID))
	if err != nil {
		return err
	}
	equity.TotalSupply = equity.TotalSupply.Add(delta)
	return putEquityClass(tx, equity)
}
