package api

import (
	"encoding/json"
	"net/http"

	"cosmossdk.io/math"

	cerrors "github.com/monsele/Converge/errors"
	"github.com/monsele/Converge/ledger"
	"github.com/monsele/Converge/store"
)

// callerHeader carries the caller identity on ledger-facing endpoints.
// The relay presents its configured identity here.
const callerHeader = "X-Caller-Address"

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TradeID string `json:"trade_id,omitempty"`
}

// PatchStatusRequest is the manual override body.
type PatchStatusRequest struct {
	Status store.TradeStatus `json:"status"`
	Actor  string            `json:"actor"`
}

// CreateInstrumentRequest mirrors ledger.InstrumentSpec on the wire.
type CreateInstrumentRequest struct {
	ClassName       string   `json:"class_name"`
	Symbol          string   `json:"symbol"`
	Name            string   `json:"name"`
	ISIN            string   `json:"isin"`
	FaceValue       math.Int `json:"face_value"`
	CouponRateBps   uint32   `json:"coupon_rate_bps"`
	ConversionRatio math.Int `json:"conversion_ratio"`
	Maturity        int64    `json:"maturity"`
}

// CreateInstrumentResponse returns the ids allocated for the pair.
type CreateInstrumentResponse struct {
	BondID   ledger.BondID   `json:"bond_id"`
	EquityID ledger.EquityID `json:"equity_id"`
}

// WhitelistRequest flips a holder's eligibility for a token id.
type WhitelistRequest struct {
	TokenID uint64 `json:"token_id"`
	Holder  string `json:"holder"`
	Allowed bool   `json:"allowed"`
}

// SupplyRequest mints or burns units for a holder.
type SupplyRequest struct {
	TokenID uint64   `json:"token_id"`
	Holder  string   `json:"holder"`
	Amount  math.Int `json:"amount"`
}

// TransferRequest moves units between holders.
type TransferRequest struct {
	TokenID uint64   `json:"token_id"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Amount  math.Int `json:"amount"`
}

// ConvertRequest converts a holder's bonds into equity.
type ConvertRequest struct {
	BondID     ledger.BondID `json:"bond_id"`
	Holder     string        `json:"holder"`
	BondAmount math.Int      `json:"bond_amount"`
}

// ConvertResponse reports the equity minted by a conversion.
type ConvertResponse struct {
	EquityAmount math.Int `json:"equity_amount"`
}

// ConversionStatusRequest toggles a series' conversion gate.
type ConversionStatusRequest struct {
	BondID  ledger.BondID `json:"bond_id"`
	Enabled bool          `json:"enabled"`
}

// ActiveStatusRequest toggles an instrument's active flag.
type ActiveStatusRequest struct {
	TokenID uint64 `json:"token_id"`
	Active  bool   `json:"active"`
}

// BalanceResponse reports a holder's balance of a token id.
type BalanceResponse struct {
	TokenID uint64   `json:"token_id"`
	Holder  string   `json:"holder"`
	Balance math.Int `json:"balance"`
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps a categorized error to an HTTP status and writes the
// uniform error body.
func writeError(w http.ResponseWriter, err error) {
	code := cerrors.CodeOf(err)
	writeJSON(w, statusFor(code), ErrorResponse{
		Code:    string(code),
		Message: err.Error(),
	})
}

// statusFor translates the error taxonomy into HTTP statuses: client
// mistakes are 4xx, ledger domain-rule violations are 422, relay trouble
// is 502, everything unexpected is 500.
func statusFor(code cerrors.ErrorCode) int {
	switch code {
	case cerrors.ErrCodeValidation, cerrors.ErrCodeUnsupportedOperation:
		return http.StatusBadRequest
	case cerrors.ErrCodeAuthorization:
		return http.StatusForbidden
	case cerrors.ErrCodeNotFound:
		return http.StatusNotFound
	case cerrors.ErrCodeInsufficientBalance,
		cerrors.ErrCodeNotWhitelisted,
		cerrors.ErrCodeInactiveInstrument,
		cerrors.ErrCodeZeroConversion:
		return http.StatusUnprocessableEntity
	case cerrors.ErrCodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
