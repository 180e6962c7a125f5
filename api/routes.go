package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/monsele/Converge/metrics"
)

// setupRoutes configures all HTTP routes for the API server.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()

	// Onboarding registry
	v1.HandleFunc("/organizations", s.handleCreateOrganization).Methods(http.MethodPost)
	v1.HandleFunc("/organizations/{id}", s.handleGetOrganization).Methods(http.MethodGet)
	v1.HandleFunc("/investors", s.handleCreateInvestor).Methods(http.MethodPost)
	v1.HandleFunc("/investors/{id}", s.handleGetInvestor).Methods(http.MethodGet)
	v1.HandleFunc("/bonds", s.handleCreateBondInstance).Methods(http.MethodPost)
	v1.HandleFunc("/bonds", s.handleListBondInstances).Methods(http.MethodGet)
	v1.HandleFunc("/bonds/{id}", s.handleGetBondInstance).Methods(http.MethodGet)

	// Trade orchestration
	v1.HandleFunc("/trades", s.handleCreateTrade).Methods(http.MethodPost)
	v1.HandleFunc("/trades/initiate", s.handleInitiateTrade).Methods(http.MethodPost)
	v1.HandleFunc("/trades", s.handleListTrades).Methods(http.MethodGet)
	v1.HandleFunc("/trades/{id}", s.handleGetTrade).Methods(http.MethodGet)
	v1.HandleFunc("/trades/{id}/status", s.handlePatchStatus).Methods(http.MethodPatch)
	v1.HandleFunc("/trades/callback", s.handleTradeCallback).Methods(http.MethodPost)

	// Token ledger: direct-call entry points
	v1.HandleFunc("/ledger/instruments", s.handleCreateInstrument).Methods(http.MethodPost)
	v1.HandleFunc("/ledger/whitelist", s.handleSetWhitelisted).Methods(http.MethodPost)
	v1.HandleFunc("/ledger/mint", s.handleMint).Methods(http.MethodPost)
	v1.HandleFunc("/ledger/burn", s.handleBurn).Methods(http.MethodPost)
	v1.HandleFunc("/ledger/transfer", s.handleTransfer).Methods(http.MethodPost)
	v1.HandleFunc("/ledger/convert", s.handleConvert).Methods(http.MethodPost)
	v1.HandleFunc("/ledger/conversion-status", s.handleSetConversionStatus).Methods(http.MethodPost)
	v1.HandleFunc("/ledger/active-status", s.handleSetActiveStatus).Methods(http.MethodPost)

	// Token ledger: read-only projections
	v1.HandleFunc("/ledger/bonds/{id}", s.handleGetBondSeries).Methods(http.MethodGet)
	v1.HandleFunc("/ledger/equities/{id}", s.handleGetEquityClass).Methods(http.MethodGet)
	v1.HandleFunc("/ledger/balance", s.handleGetBalance).Methods(http.MethodGet)
	v1.HandleFunc("/ledger/audit", s.handleGetAudit).Methods(http.MethodGet)

	// Relay-facing dispatcher entry point
	v1.HandleFunc("/ledger/operations", s.handleDispatch).Methods(http.MethodPost)

	return r
}
