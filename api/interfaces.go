package api

import (
	"context"

	"cosmossdk.io/math"

	"github.com/monsele/Converge/ledger"
	"github.com/monsele/Converge/onboarding"
	"github.com/monsele/Converge/store"
	"github.com/monsele/Converge/trade"
)

// TradeService defines the orchestrator methods the API server needs.
type TradeService interface {
	CreateTrade(ctx context.Context, req trade.Request) (*store.TradeIntent, error)
	InitiateTrade(ctx context.Context, req trade.Request) (*store.TradeIntent, error)
	HandleCallback(ctx context.Context, cb trade.Callback) (*store.TradeIntent, error)
	PatchStatus(ctx context.Context, tradeID string, newStatus store.TradeStatus, actor string) (*store.TradeIntent, error)
	GetTrade(ctx context.Context, tradeID string) (*store.TradeIntent, error)
	ListTrades(ctx context.Context, filter trade.ListFilter) ([]store.TradeIntent, error)
}

// OnboardingService defines the registration/lookup surface.
type OnboardingService interface {
	CreateOrganization(ctx context.Context, req onboarding.OrganizationRequest) (*store.Organization, error)
	GetOrganization(ctx context.Context, id uint) (*store.Organization, error)
	CreateInvestor(ctx context.Context, req onboarding.InvestorRequest) (*store.Investor, error)
	GetInvestor(ctx context.Context, id uint) (*store.Investor, error)
	CreateBondInstance(ctx context.Context, req onboarding.BondInstanceRequest) (*store.BondInstance, error)
	GetBondInstance(ctx context.Context, id uint) (*store.BondInstance, error)
	ListBondInstances(ctx context.Context) ([]store.BondInstance, error)
}

// LedgerService defines the direct-call ledger entry points.
type LedgerService interface {
	CreateInstrument(caller string, spec ledger.InstrumentSpec) (ledger.BondID, ledger.EquityID, error)
	SetWhitelisted(caller string, tokenID uint64, holder string, allowed bool) error
	Mint(caller string, tokenID uint64, holder string, amount math.Int) error
	Burn(caller string, tokenID uint64, holder string, amount math.Int) error
	Transfer(from string, tokenID uint64, to string, amount math.Int) error
	Convert(holder string, bondID ledger.BondID, bondAmount math.Int) (math.Int, error)
	SetConversionEnabled(caller string, bondID ledger.BondID, enabled bool) error
	SetActive(caller string, tokenID uint64, active bool) error
	BondSeries(id ledger.BondID) (*ledger.BondSeries, error)
	EquityClass(id ledger.EquityID) (*ledger.EquityClass, error)
	BalanceOf(tokenID uint64, holder string) (math.Int, error)
	IsWhitelisted(tokenID uint64, holder string) (bool, error)
	AuditLog(limit int) ([]ledger.AuditRecord, error)
}

// DispatcherService is the relay's envelope entry point.
type DispatcherService interface {
	Execute(caller string, raw []byte) (ledger.Operation, error)
}
