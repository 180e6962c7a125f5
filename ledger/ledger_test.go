package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	cerrors "github.com/monsele/Converge/errors"
)

const (
	testIssuer     = "issuer-admin"
	testCompliance = "compliance-admin"
	testRelay      = "relay-forwarder"
	testRelayPrev  = "relay-forwarder-old"
	testHolder     = "wallet-alice"
	testHolder2    = "wallet-bob"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	state, err := OpenState(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = state.Close() })

	auth := NewStaticAuthorizer(testIssuer, []string{testCompliance}, []string{testRelay, testRelayPrev})
	return New(state, auth, zerolog.Nop())
}

// ratio builds a conversion ratio from whole and fractional-tenths parts,
// e.g. ratio(2, 0) is 2.0 and ratio(0, 4) is 0.4.
func ratio(whole, tenths int64) math.Int {
	return math.NewInt(whole).Mul(RatioScale).Add(math.NewInt(tenths).Mul(RatioScale.QuoRaw(10)))
}

func testSpec(conversionRatio math.Int) InstrumentSpec {
	return InstrumentSpec{
		ClassName:       "Acme Common A",
		Symbol:          "ACME27",
		Name:            "Acme 2027 Convertible",
		ISIN:            "US0000000001",
		FaceValue:       math.NewInt(1000),
		CouponRateBps:   450,
		ConversionRatio: conversionRatio,
		Maturity:        time.Now().Add(365 * 24 * time.Hour).Unix(),
	}
}

func mustCreate(t *testing.T, l *Ledger, spec InstrumentSpec) (BondID, EquityID) {
	t.Helper()
	bondID, equityID, err := l.CreateInstrument(testIssuer, spec)
	require.NoError(t, err)
	return bondID, equityID
}

func TestCreateInstrumentAllocatesDisjointIDs(t *testing.T) {
	l := newTestLedger(t)

	bondID, equityID := mustCreate(t, l, testSpec(ratio(2, 0)))
	require.Equal(t, BondID(1), bondID)
	require.Equal(t, EquityID(1_000_000), equityID)

	bondID2, equityID2 := mustCreate(t, l, testSpec(ratio(1, 0)))
	require.Equal(t, BondID(2), bondID2)
	require.Equal(t, EquityID(1_000_001), equityID2)

	require.True(t, IsBondID(uint64(bondID)))
	require.False(t, IsBondID(uint64(equityID)))
}

func TestCreateInstrumentValidation(t *testing.T) {
	l := newTestLedger(t)

	tests := []struct {
		name     string
		caller   string
		mutate   func(*InstrumentSpec)
		wantCode cerrors.ErrorCode
	}{
		{
			name:     "unauthorized caller",
			caller:   testHolder,
			mutate:   func(s *InstrumentSpec) {},
			wantCode: cerrors.ErrCodeAuthorization,
		},
		{
			name:     "compliance cannot create",
			caller:   testCompliance,
			mutate:   func(s *InstrumentSpec) {},
			wantCode: cerrors.ErrCodeAuthorization,
		},
		{
			name:     "zero conversion ratio",
			caller:   testIssuer,
			mutate:   func(s *InstrumentSpec) { s.ConversionRatio = math.ZeroInt() },
			wantCode: cerrors.ErrCodeValidation,
		},
		{
			name:     "negative face value",
			caller:   testIssuer,
			mutate:   func(s *InstrumentSpec) { s.FaceValue = math.NewInt(-1) },
			wantCode: cerrors.ErrCodeValidation,
		},
		{
			name:     "maturity in the past",
			caller:   testIssuer,
			mutate:   func(s *InstrumentSpec) { s.Maturity = time.Now().Add(-time.Hour).Unix() },
			wantCode: cerrors.ErrCodeValidation,
		},
		{
			name:     "missing class name",
			caller:   testIssuer,
			mutate:   func(s *InstrumentSpec) { s.ClassName = "" },
			wantCode: cerrors.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec(ratio(2, 0))
			tt.mutate(&spec)
			_, _, err := l.CreateInstrument(tt.caller, spec)
			require.Error(t, err)
			require.True(t, cerrors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestMintRequiresWhitelist(t *testing.T) {
	l := newTestLedger(t)
	bondID, _ := mustCreate(t, l, testSpec(ratio(2, 0)))

	err := l.Mint(testIssuer, uint64(bondID), testHolder, math.NewInt(10))
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeNotWhitelisted))

	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder, true))
	require.NoError(t, l.Mint(testIssuer, uint64(bondID), testHolder, math.NewInt(10)))

	bal, err := l.BalanceOf(uint64(bondID), testHolder)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(10), bal)
}

func TestMintAuthorization(t *testing.T) {
	l := newTestLedger(t)
	bondID, _ := mustCreate(t, l, testSpec(ratio(2, 0)))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder, true))

	err := l.Mint(testHolder, uint64(bondID), testHolder, math.NewInt(10))
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeAuthorization))

	err = l.Mint(testIssuer, uint64(bondID), testHolder, math.NewInt(0))
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeValidation))
}

func TestMintInactiveInstrument(t *testing.T) {
	l := newTestLedger(t)
	bondID, _ := mustCreate(t, l, testSpec(ratio(2, 0)))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder, true))
	require.NoError(t, l.SetActive(testIssuer, uint64(bondID), false))

	err := l.Mint(testIssuer, uint64(bondID), testHolder, math.NewInt(10))
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeInactiveInstrument))

	require.NoError(t, l.SetActive(testIssuer, uint64(bondID), true))
	require.NoError(t, l.Mint(testIssuer, uint64(bondID), testHolder, math.NewInt(10)))
}

func TestBurnInsufficientBalance(t *testing.T) {
	l := newTestLedger(t)
	bondID, _ := mustCreate(t, l, testSpec(ratio(2, 0)))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder, true))
	require.NoError(t, l.Mint(testIssuer, uint64(bondID), testHolder, math.NewInt(5)))

	err := l.Burn(testIssuer, uint64(bondID), testHolder, math.NewInt(6))
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeInsufficientBalance))

	// Failed burn must not touch the balance.
	bal, err := l.BalanceOf(uint64(bondID), testHolder)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(5), bal)

	require.NoError(t, l.Burn(testIssuer, uint64(bondID), testHolder, math.NewInt(5)))
	series, err := l.BondSeries(bondID)
	require.NoError(t, err)
	require.True(t, series.TotalIssued.IsZero())
}

func TestTransferChecksRecipientWhitelist(t *testing.T) {
	l := newTestLedger(t)
	bondID, _ := mustCreate(t, l, testSpec(ratio(2, 0)))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder, true))
	require.NoError(t, l.Mint(testIssuer, uint64(bondID), testHolder, math.NewInt(10)))

	err := l.Transfer(testHolder, uint64(bondID), testHolder2, math.NewInt(4))
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeNotWhitelisted))

	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder2, true))
	require.NoError(t, l.Transfer(testHolder, uint64(bondID), testHolder2, math.NewInt(4)))

	fromBal, err := l.BalanceOf(uint64(bondID), testHolder)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(6), fromBal)
	toBal, err := l.BalanceOf(uint64(bondID), testHolder2)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(4), toBal)

	// The sender does not need to be whitelisted to send; removal does not
	// strand a balance.
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder, false))
	err = l.Transfer(testHolder2, uint64(bondID), testHolder, math.NewInt(1))
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeNotWhitelisted))
	require.NoError(t, l.Transfer(testHolder, uint64(bondID), testHolder2, math.NewInt(1)))
}

func TestTransferInsufficientBalance(t *testing.T) {
	l := newTestLedger(t)
	bondID, _ := mustCreate(t, l, testSpec(ratio(2, 0)))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder2, true))

	err := l.Transfer(testHolder, uint64(bondID), testHolder2, math.NewInt(1))
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeInsufficientBalance))
}

func TestConvertLifecycle(t *testing.T) {
	l := newTestLedger(t)
	bondID, equityID := mustCreate(t, l, testSpec(ratio(2, 0)))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder, true))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(equityID), testHolder, true))
	require.NoError(t, l.Mint(testIssuer, uint64(bondID), testHolder, math.NewInt(10)))

	equityAmount, err := l.Convert(testHolder, bondID, math.NewInt(4))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(8), equityAmount)

	bondBal, err := l.BalanceOf(uint64(bondID), testHolder)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(6), bondBal)

	equityBal, err := l.BalanceOf(uint64(equityID), testHolder)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(8), equityBal)

	series, err := l.BondSeries(bondID)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(10), series.TotalIssued)
	require.Equal(t, math.NewInt(4), series.TotalConverted)

	equity, err := l.EquityClass(equityID)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(8), equity.TotalSupply)

	// Conservation: circulating bonds equal issued minus converted, and
	// circulating equity equals the class supply.
	bondSupply, err := l.CirculatingSupply(uint64(bondID))
	require.NoError(t, err)
	require.True(t, bondSupply.Equal(series.TotalIssued.Sub(series.TotalConverted)))
	equitySupply, err := l.CirculatingSupply(uint64(equityID))
	require.NoError(t, err)
	require.True(t, equitySupply.Equal(equity.TotalSupply))

	// Only 6 bonds remain; converting 10 must fail and change nothing.
	_, err = l.Convert(testHolder, bondID, math.NewInt(10))
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeInsufficientBalance))

	after, err := l.BondSeries(bondID)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(4), after.TotalConverted)
}

func TestConvertTruncatesFractionalEquity(t *testing.T) {
	l := newTestLedger(t)
	// 1.5 equity per bond: 3 bonds yield 4 equity, the half share is dropped.
	bondID, equityID := mustCreate(t, l, testSpec(ratio(1, 5)))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder, true))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(equityID), testHolder, true))
	require.NoError(t, l.Mint(testIssuer, uint64(bondID), testHolder, math.NewInt(3)))

	equityAmount, err := l.Convert(testHolder, bondID, math.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(4), equityAmount)
}

func TestConvertZeroResultRejected(t *testing.T) {
	l := newTestLedger(t)
	// 0.4 equity per bond: converting 2 bonds floors to zero equity.
	bondID, equityID := mustCreate(t, l, testSpec(ratio(0, 4)))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder, true))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(equityID), testHolder, true))
	require.NoError(t, l.Mint(testIssuer, uint64(bondID), testHolder, math.NewInt(10)))

	_, err := l.Convert(testHolder, bondID, math.NewInt(2))
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeZeroConversion))

	// The bonds stay put.
	bal, err := l.BalanceOf(uint64(bondID), testHolder)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(10), bal)

	// A large enough amount converts fine: floor(10 * 0.4) = 4.
	equityAmount, err := l.Convert(testHolder, bondID, math.NewInt(10))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(4), equityAmount)
}

func TestConvertRequiresEquityWhitelist(t *testing.T) {
	l := newTestLedger(t)
	bondID, _ := mustCreate(t, l, testSpec(ratio(2, 0)))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder, true))
	require.NoError(t, l.Mint(testIssuer, uint64(bondID), testHolder, math.NewInt(10)))

	// Bond whitelist alone is not enough to receive equity.
	_, err := l.Convert(testHolder, bondID, math.NewInt(4))
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeNotWhitelisted))
}

func TestConvertGates(t *testing.T) {
	l := newTestLedger(t)
	bondID, equityID := mustCreate(t, l, testSpec(ratio(2, 0)))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder, true))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(equityID), testHolder, true))
	require.NoError(t, l.Mint(testIssuer, uint64(bondID), testHolder, math.NewInt(10)))

	require.NoError(t, l.SetConversionEnabled(testIssuer, bondID, false))
	_, err := l.Convert(testHolder, bondID, math.NewInt(4))
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeInactiveInstrument))

	require.NoError(t, l.SetConversionEnabled(testIssuer, bondID, true))
	require.NoError(t, l.SetActive(testIssuer, uint64(bondID), false))
	_, err = l.Convert(testHolder, bondID, math.NewInt(4))
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeInactiveInstrument))

	require.NoError(t, l.SetActive(testIssuer, uint64(bondID), true))
	_, err = l.Convert(testHolder, bondID, math.NewInt(4))
	require.NoError(t, err)
}

func TestWhitelistUnknownInstrument(t *testing.T) {
	l := newTestLedger(t)

	err := l.SetWhitelisted(testCompliance, 42, testHolder, true)
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeNotFound))

	err = l.SetWhitelisted(testIssuer, 42, testHolder, true)
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeAuthorization))
}

func TestWhitelistRemoval(t *testing.T) {
	l := newTestLedger(t)
	bondID, _ := mustCreate(t, l, testSpec(ratio(2, 0)))

	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder, true))
	ok, err := l.IsWhitelisted(uint64(bondID), testHolder)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder, false))
	ok, err = l.IsWhitelisted(uint64(bondID), testHolder)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetActiveEquityRange(t *testing.T) {
	l := newTestLedger(t)
	bondID, equityID := mustCreate(t, l, testSpec(ratio(2, 0)))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(equityID), testHolder, true))

	require.NoError(t, l.SetActive(testIssuer, uint64(equityID), false))
	err := l.Mint(testIssuer, uint64(equityID), testHolder, math.NewInt(1))
	require.True(t, cerrors.HasCode(err, cerrors.ErrCodeInactiveInstrument))

	equity, err := l.EquityClass(equityID)
	require.NoError(t, err)
	require.False(t, equity.Active)

	series, err := l.BondSeries(bondID)
	require.NoError(t, err)
	require.True(t, series.Active)
}

func TestStateSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.db")

	state, err := OpenState(path)
	require.NoError(t, err)
	auth := NewStaticAuthorizer(testIssuer, []string{testCompliance}, []string{testRelay})
	l := New(state, auth, zerolog.Nop())

	bondID, _ := mustCreate(t, l, testSpec(ratio(2, 0)))
	require.NoError(t, l.SetWhitelisted(testCompliance, uint64(bondID), testHolder, true))
	require.NoError(t, l.Mint(testIssuer, uint64(bondID), testHolder, math.NewInt(7)))
	require.NoError(t, state.Close())

	state, err = OpenState(path)
	require.NoError(t, err)
	defer state.Close()
	l = New(state, auth, zerolog.Nop())

	bal, err := l.BalanceOf(uint64(bondID), testHolder)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(7), bal)

	// Counters persist too: the next instrument continues the sequence.
	bondID2, equityID2 := mustCreate(t, l, testSpec(ratio(1, 0)))
	require.Equal(t, BondID(2), bondID2)
	require.Equal(t, EquityID(1_000_001), equityID2)
}
