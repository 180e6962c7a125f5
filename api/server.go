// Package api exposes the HTTP surface of converged: the trade API, the
// relay callback endpoint, the ledger's direct-call and dispatcher entry
// points, and the onboarding registry.
package api

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Server provides the HTTP endpoints.
type Server struct {
	log        zerolog.Logger
	server     *http.Server
	trades     TradeService
	onboarding OnboardingService
	ledger     LedgerService
	dispatcher DispatcherService
}

// NewServer creates a new Server instance.
func NewServer(log zerolog.Logger, port int, trades TradeService, ob OnboardingService, led LedgerService, disp DispatcherService) *Server {
	s := &Server{
		log:        log.With().Str("component", "api").Logger(),
		trades:     trades,
		onboarding: ob,
		ledger:     led,
		dispatcher: disp,
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.setupRoutes(),
	}

	return s
}

// Start starts the HTTP server. It verifies the port is bindable before
// returning so startup failures surface synchronously.
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("api server is nil")
	}

	startupChan := make(chan error, 1)

	go func() {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			startupChan <- fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
			return
		}
		ln.Close()

		startupChan <- nil

		err = s.server.ListenAndServe()
		switch err {
		case nil:
			s.log.Info().Msg("API server stopped normally")
		case http.ErrServerClosed:
			s.log.Info().Msg("API server closed gracefully")
		default:
			s.log.Error().Err(err).Msg("API server error")
		}
	}()

	select {
	case err := <-startupChan:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("server startup timeout")
	}
}

// Stop shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
