// Package core wires the node together: stores, ledger, relay client,
// orchestrator, and the HTTP API.
package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/monsele/Converge/api"
	"github.com/monsele/Converge/config"
	"github.com/monsele/Converge/db"
	"github.com/monsele/Converge/ledger"
	"github.com/monsele/Converge/onboarding"
	"github.com/monsele/Converge/relay"
	"github.com/monsele/Converge/trade"
)

// Service is the assembled converged node.
type Service struct {
	ctx    context.Context
	log    zerolog.Logger
	cfg    config.Config
	db     *db.DB
	state  *ledger.State
	server *api.Server
}

// NewService opens the stores and builds every component from the config.
func NewService(ctx context.Context, log zerolog.Logger, cfg config.Config) (*Service, error) {
	database, err := openTradeDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open orchestration store: %w", err)
	}

	state, err := ledger.OpenState(ledgerPath(cfg))
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open token ledger: %w", err)
	}

	relayIdentities := []string{cfg.Relay.Identity}
	if cfg.Relay.PreviousIdentity != "" {
		relayIdentities = append(relayIdentities, cfg.Relay.PreviousIdentity)
	}
	auth := ledger.NewStaticAuthorizer(cfg.IssuerAddress, cfg.ComplianceAddresses, relayIdentities)

	led := ledger.New(state, auth, log)
	dispatcher := ledger.NewDispatcher(led, auth, log)

	trigger := relay.NewHTTPTrigger(cfg.Relay, log)
	trades := trade.NewService(database, trigger, log)
	registry := onboarding.NewService(database, log)

	server := api.NewServer(log, cfg.APIPort, trades, registry, led, dispatcher)

	return &Service{
		ctx:    ctx,
		log:    log.With().Str("component", "core").Logger(),
		cfg:    cfg,
		db:     database,
		state:  state,
		server: server,
	}, nil
}

// Start brings up the API server and blocks until the context is
// cancelled, then shuts everything down in reverse order.
func (s *Service) Start() error {
	if err := s.server.Start(); err != nil {
		s.closeStores()
		return fmt.Errorf("failed to start api server: %w", err)
	}
	s.log.Info().Int("port", s.cfg.APIPort).Msg("converged is running")

	<-s.ctx.Done()

	s.log.Info().Msg("shutting down converged")
	if err := s.server.Stop(); err != nil {
		s.log.Error().Err(err).Msg("api server shutdown error")
	}
	return s.closeStores()
}

func (s *Service) closeStores() error {
	var firstErr error
	if err := s.state.Close(); err != nil {
		firstErr = err
		s.log.Error().Err(err).Msg("ledger close error")
	}
	if err := s.db.Close(); err != nil {
		if firstErr == nil {
			firstErr = err
		}
		s.log.Error().Err(err).Msg("orchestration store close error")
	}
	return firstErr
}

func openTradeDB(cfg config.Config) (*db.DB, error) {
	if cfg.InMemoryStores {
		return db.OpenInMemoryDB(true)
	}
	return db.OpenFileDB(cfg.DataDir, cfg.TradeDBFile, true)
}

// ledgerPath resolves the bbolt file location. In-memory mode still needs
// a file because bbolt is file backed, so it gets a per-process temp path.
func ledgerPath(cfg config.Config) string {
	if cfg.InMemoryStores {
		return filepath.Join(os.TempDir(), fmt.Sprintf("converge-ledger-%d.db", os.Getpid()))
	}
	return filepath.Join(cfg.DataDir, cfg.LedgerFile)
}
