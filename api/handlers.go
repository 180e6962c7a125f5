package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	cerrors "github.com/monsele/Converge/errors"
	"github.com/monsele/Converge/ledger"
	"github.com/monsele/Converge/onboarding"
	"github.com/monsele/Converge/store"
	"github.com/monsele/Converge/trade"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// --- onboarding ---

func (s *Server) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req onboarding.OrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}
	org, err := s.onboarding.CreateOrganization(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	org, err := s.onboarding.GetOrganization(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (s *Server) handleCreateInvestor(w http.ResponseWriter, r *http.Request) {
	var req onboarding.InvestorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}
	inv, err := s.onboarding.CreateInvestor(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (s *Server) handleGetInvestor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := s.onboarding.GetInvestor(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleCreateBondInstance(w http.ResponseWriter, r *http.Request) {
	var req onboarding.BondInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}
	bond, err := s.onboarding.CreateBondInstance(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bond)
}

func (s *Server) handleGetBondInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	bond, err := s.onboarding.GetBondInstance(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bond)
}

func (s *Server) handleListBondInstances(w http.ResponseWriter, r *http.Request) {
	bonds, err := s.onboarding.ListBondInstances(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bonds)
}

// --- trades ---

func (s *Server) handleCreateTrade(w http.ResponseWriter, r *http.Request) {
	var req trade.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}
	intent, err := s.trades.CreateTrade(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

// handleInitiateTrade records the intent and triggers the relay. An
// upstream failure still carries the persisted intent id in the response
// body so the caller can audit or retry against it.
func (s *Server) handleInitiateTrade(w http.ResponseWriter, r *http.Request) {
	var req trade.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}

	intent, err := s.trades.InitiateTrade(r.Context(), req)
	if err != nil {
		if cerrors.HasCode(err, cerrors.ErrCodeUpstream) && intent != nil {
			writeJSON(w, http.StatusBadGateway, ErrorResponse{
				Code:    string(cerrors.ErrCodeUpstream),
				Message: intent.FailureReason,
				TradeID: intent.TradeID,
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	filter := trade.ListFilter{
		Status: store.TradeStatus(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("investor_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			writeError(w, cerrors.New(cerrors.ErrCodeValidation, "investor_id must be numeric"))
			return
		}
		filter.InvestorID = uint(id)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, cerrors.New(cerrors.ErrCodeValidation, "limit must be numeric"))
			return
		}
		filter.Limit = limit
	}

	intents, err := s.trades.ListTrades(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intents)
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	intent, err := s.trades.GetTrade(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (s *Server) handlePatchStatus(w http.ResponseWriter, r *http.Request) {
	var req PatchStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}
	intent, err := s.trades.PatchStatus(r.Context(), mux.Vars(r)["id"], req.Status, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

// handleTradeCallback handles the relay's asynchronous settlement report.
func (s *Server) handleTradeCallback(w http.ResponseWriter, r *http.Request) {
	var cb trade.Callback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}
	intent, err := s.trades.HandleCallback(r.Context(), cb)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

// --- ledger: direct-call entry points ---

func (s *Server) handleCreateInstrument(w http.ResponseWriter, r *http.Request) {
	var req CreateInstrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}
	bondID, equityID, err := s.ledger.CreateInstrument(caller(r), ledger.InstrumentSpec{
		ClassName:       req.ClassName,
		Symbol:          req.Symbol,
		Name:            req.Name,
		ISIN:            req.ISIN,
		FaceValue:       req.FaceValue,
		CouponRateBps:   req.CouponRateBps,
		ConversionRatio: req.ConversionRatio,
		Maturity:        req.Maturity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateInstrumentResponse{BondID: bondID, EquityID: equityID})
}

func (s *Server) handleSetWhitelisted(w http.ResponseWriter, r *http.Request) {
	var req WhitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}
	if err := s.ledger.SetWhitelisted(caller(r), req.TokenID, req.Holder, req.Allowed); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req SupplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}
	if err := s.ledger.Mint(caller(r), req.TokenID, req.Holder, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req SupplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}
	if err := s.ledger.Burn(caller(r), req.TokenID, req.Holder, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}
	if err := s.ledger.Transfer(req.From, req.TokenID, req.To, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}
	equityAmount, err := s.ledger.Convert(req.Holder, req.BondID, req.BondAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConvertResponse{EquityAmount: equityAmount})
}

func (s *Server) handleSetConversionStatus(w http.ResponseWriter, r *http.Request) {
	var req ConversionStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}
	if err := s.ledger.SetConversionEnabled(caller(r), req.BondID, req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleSetActiveStatus(w http.ResponseWriter, r *http.Request) {
	var req ActiveStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "malformed request body"))
		return
	}
	if err := s.ledger.SetActive(caller(r), req.TokenID, req.Active); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// --- ledger: read-only projections ---

func (s *Server) handleGetBondSeries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID64(w, r)
	if !ok {
		return
	}
	series, err := s.ledger.BondSeries(ledger.BondID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleGetEquityClass(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID64(w, r)
	if !ok {
		return
	}
	equity, err := s.ledger.EquityClass(ledger.EquityID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, equity)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token_id")
	holder := r.URL.Query().Get("holder")
	if tokenStr == "" || holder == "" {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "token_id and holder parameters are required"))
		return
	}
	tokenID, err := strconv.ParseUint(tokenStr, 10, 64)
	if err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "token_id must be numeric"))
		return
	}

	bal, err := s.ledger.BalanceOf(tokenID, holder)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{TokenID: tokenID, Holder: holder, Balance: bal})
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, cerrors.New(cerrors.ErrCodeValidation, "limit must be numeric"))
			return
		}
		limit = n
	}
	records, err := s.ledger.AuditLog(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// --- relay dispatcher ---

// handleDispatch is the relay's operation-envelope entry point. The raw
// body travels untouched into the dispatcher so the audit trail keeps
// exactly what the relay sent.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "unreadable request body"))
		return
	}

	op, err := s.dispatcher.Execute(caller(r), raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"dispatched": op.Type().String()})
}

// --- helpers ---

func caller(r *http.Request) string {
	return r.Header.Get(callerHeader)
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "id must be numeric"))
		return 0, false
	}
	return uint(id), true
}

func pathID64(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, cerrors.New(cerrors.ErrCodeValidation, "id must be numeric"))
		return 0, false
	}
	return id, true
}
