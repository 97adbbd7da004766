package engine

import (
	"context"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rovshanmuradov/launchpad/internal/bonding"
	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/factory"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/storage/memory"
	"github.com/rovshanmuradov/launchpad/internal/storage/pebble"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"github.com/rovshanmuradov/launchpad/internal/utils/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Launch.InitialSupply = 1_000_000
	cfg.Launch.GradThreshold = 0
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config) (*Engine, *memory.Store, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	store := memory.New()
	e, err := New(context.Background(), cfg, clk, store, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e, store, clk
}

func TestLaunchPersistsCommittedEvents(t *testing.T) {
	e, store, _ := newEngine(t, testConfig(t))
	ctx := context.Background()
	alice := solana.NewWallet().PublicKey()
	require.NoError(t, e.Faucet(alice, 1_000))

	rec, err := e.Launch(ctx, alice, "Cat", "CAT", 110)
	require.NoError(t, err)
	assert.Equal(t, bonding.StateTrading, rec.State)
	assert.Equal(t, uint64(90_909), e.BalanceOf(rec.Token, alice))
	assert.Equal(t, uint64(890), e.BalanceOf(solana.PublicKey{}, alice))

	hist, err := store.History(ctx, rec.Token)
	require.NoError(t, err)
	var kinds []events.EventType
	for _, r := range hist {
		kinds = append(kinds, r.Type)
	}
	assert.Equal(t, []events.EventType{events.PairCreated, events.LiquiditySeeded, events.TokenLaunched, events.TradeExecuted}, kinds)

	tokens, err := store.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{rec.Token}, tokens)
}

func TestRejectedCallLeavesNoTrace(t *testing.T) {
	e, store, _ := newEngine(t, testConfig(t))
	ctx := context.Background()
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	require.NoError(t, e.Faucet(alice, 100))
	rec, err := e.Launch(ctx, alice, "Cat", "CAT", 100)
	require.NoError(t, err)

	before, err := store.History(ctx, rec.Token)
	require.NoError(t, err)

	_, err = e.Buy(ctx, bob, rec.Token, 10, 0)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	_, err = e.Launch(ctx, bob, "Dog", "DOG", 100)
	require.Error(t, err)
	assert.Len(t, e.Launches(), 1)

	after, err := store.History(ctx, rec.Token)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Zero(t, e.BalanceOf(rec.Token, bob))
}

func TestBuySellWithSlippageAndTax(t *testing.T) {
	cfg := testConfig(t)
	e, _, clk := newEngine(t, cfg)
	ctx := context.Background()
	alice := solana.NewWallet().PublicKey()
	vault := solana.NewWallet().PublicKey()
	require.NoError(t, e.Faucet(alice, 1_000))
	require.NoError(t, e.SetTaxParameters(factory.TaxParams{Vault: vault, BuyBp: 100, SellBp: 300}))

	rec, err := e.Launch(ctx, alice, "Cat", "CAT", 100)
	require.NoError(t, err)

	clk.Add(2 * time.Hour)
	bought, err := e.Buy(ctx, alice, rec.Token, 1_000-100, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), bought.Tax.Normal)
	assert.Equal(t, uint64(9), e.BalanceOf(solana.PublicKey{}, vault))

	sold, err := e.Sell(ctx, alice, rec.Token, bought.AmountOut/2, 50)
	require.NoError(t, err)
	assert.Equal(t, sold.GrossOut-sold.AmountOut, sold.Tax)
	assert.Equal(t, 9+sold.Tax, e.BalanceOf(solana.PublicKey{}, vault))

	maxIn, err := e.GetMaxBuyInput(rec.Token)
	require.NoError(t, err)
	assert.Positive(t, maxIn)

	require.NoError(t, e.ForceGraduate(ctx, rec.Token))
	grad, ok := e.Get(rec.Token)
	require.True(t, ok)
	assert.True(t, grad.Graduated)
	_, ok = e.Exchange().GetPool(rec.Token, e.Asset())
	assert.True(t, ok)
}

func TestBuyHonorsCallerMinimumAfterPriceMoves(t *testing.T) {
	e, store, _ := newEngine(t, testConfig(t))
	ctx := context.Background()
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	require.NoError(t, e.Faucet(alice, 1_000))
	require.NoError(t, e.Faucet(bob, 1_000))
	rec, err := e.Launch(ctx, alice, "Cat", "CAT", 100)
	require.NoError(t, err)

	quote, err := e.QuoteBuy(rec.Token, 10)
	require.NoError(t, err)
	minOut := types.MinAmountOut(quote.AmountOut, 50)

	// bob trades between alice's quote and her submission
	_, err = e.Buy(ctx, bob, rec.Token, 10, 0)
	require.NoError(t, err)
	before, err := store.History(ctx, rec.Token)
	require.NoError(t, err)

	_, err = e.Buy(ctx, alice, rec.Token, 10, minOut)
	require.ErrorIs(t, err, ledger.ErrSlippage)
	assert.Equal(t, uint64(900), e.BalanceOf(solana.PublicKey{}, alice))
	assert.Zero(t, e.BalanceOf(rec.Token, alice))
	after, err := store.History(ctx, rec.Token)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	fresh, err := e.QuoteBuy(rec.Token, 10)
	require.NoError(t, err)
	assert.Less(t, fresh.AmountOut, quote.AmountOut)
	bought, err := e.Buy(ctx, alice, rec.Token, 10, types.MinAmountOut(fresh.AmountOut, 50))
	require.NoError(t, err)
	assert.Equal(t, fresh.AmountOut, bought.AmountOut)

	sq, err := e.QuoteSell(rec.Token, bought.AmountOut)
	require.NoError(t, err)
	_, err = e.Sell(ctx, alice, rec.Token, bought.AmountOut, sq.AmountOut+1)
	require.ErrorIs(t, err, ledger.ErrSlippage)
	assert.Equal(t, bought.AmountOut, e.BalanceOf(rec.Token, alice))
}

func TestReopenedStoreKeepsEveryRun(t *testing.T) {
	ctx := context.Background()
	storeCfg := pebble.Config{Path: t.TempDir(), OpenTimeout: time.Second}

	run := func() (solana.PublicKey, uint64) {
		store, err := pebble.Open(ctx, storeCfg, zap.NewNop())
		require.NoError(t, err)
		defer store.Close()

		clk := clock.NewMock()
		clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
		e, err := New(ctx, testConfig(t), clk, store, zap.NewNop())
		require.NoError(t, err)
		defer e.Close(ctx)

		alice := solana.NewWallet().PublicKey()
		require.NoError(t, e.Faucet(alice, 1_000))
		rec, err := e.Launch(ctx, alice, "Cat", "CAT", 110)
		require.NoError(t, err)
		last, err := store.LastSeq(ctx)
		require.NoError(t, err)
		return rec.Token, last
	}

	first, firstLast := run()
	second, secondLast := run()
	require.NotEqual(t, first, second)
	assert.Greater(t, secondLast, firstLast)

	store, err := pebble.Open(ctx, storeCfg, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	tokens, err := store.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{first, second}, tokens)

	for _, tok := range []solana.PublicKey{first, second} {
		hist, err := store.History(ctx, tok)
		require.NoError(t, err)
		require.Len(t, hist, 4)
		for i := 1; i < len(hist); i++ {
			assert.Greater(t, hist[i].Seq, hist[i-1].Seq)
		}
	}
	secondHist, err := store.History(ctx, second)
	require.NoError(t, err)
	assert.Greater(t, secondHist[0].Seq, firstLast)
}

func TestTwoPhaseThroughEngine(t *testing.T) {
	e, _, clk := newEngine(t, testConfig(t))
	ctx := context.Background()
	alice := solana.NewWallet().PublicKey()
	require.NoError(t, e.Faucet(alice, 500))

	rec, err := e.ReserveLaunch(ctx, alice, "Cat", "CAT", 150, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, bonding.StateReserved, rec.State)
	assert.Equal(t, e.Now().Add(config.DefaultStartDelay), rec.Pending.StartTime)

	_, err = e.ExecuteLaunch(ctx, alice, rec.Token)
	require.ErrorIs(t, err, ledger.ErrTooEarly)

	clk.Add(config.DefaultStartDelay)
	out, err := e.ExecuteLaunch(ctx, alice, rec.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(333_333), out)
	assert.Len(t, e.Agents().Calls(), 2)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ProgramID = "not-base58!"
	_, err := New(context.Background(), cfg, clock.NewMock(), nil, zap.NewNop())
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Tax.BuyBp = 100
	_, err = New(context.Background(), cfg, clock.NewMock(), nil, zap.NewNop())
	assert.ErrorIs(t, err, ledger.ErrZeroAddress)
}

func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			if len(m.GetLabel()) != len(labels) {
				continue
			}
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestInstrumentCountsCallsAndEvents(t *testing.T) {
	e, _, _ := newEngine(t, testConfig(t))
	ctx := context.Background()
	c := metrics.NewCollector()
	e.Instrument(c)
	reg := c.Registry()

	alice := solana.NewWallet().PublicKey()
	require.NoError(t, e.Faucet(alice, 1_000))
	rec, err := e.Launch(ctx, alice, "Cat", "CAT", 110)
	require.NoError(t, err)
	_, err = e.Launch(ctx, solana.NewWallet().PublicKey(), "Dog", "DOG", 110)
	require.Error(t, err)

	assert.Equal(t, 1.0, metricValue(t, reg, "launchpad_launches_total", map[string]string{"kind": "simple"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "launchpad_calls_total", map[string]string{"op": "launch", "status": "success"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "launchpad_calls_total", map[string]string{"op": "launch", "status": "validation"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "launchpad_trades_total", map[string]string{"side": "buy"}))
	assert.Equal(t, 110.0, metricValue(t, reg, "launchpad_pair_asset_balance", map[string]string{"token": rec.Token.String()}))
}
