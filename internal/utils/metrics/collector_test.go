package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleTracksTradesAndLiquidity(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()
	tok := solana.NewWallet().PublicKey()
	base := events.BaseEvent{Token: tok}

	require.NoError(t, c.Handle(ctx, &events.LiquiditySeededEvent{BaseEvent: base, AssetAmount: 100}))
	require.NoError(t, c.Handle(ctx, &events.TradeExecutedEvent{BaseEvent: base, AssetIn: 30, TokenOut: 5}))
	require.NoError(t, c.Handle(ctx, &events.TradeExecutedEvent{BaseEvent: base, TokenIn: 5, AssetOut: 20}))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.trades.WithLabelValues("buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.trades.WithLabelValues("sell")))
	assert.Equal(t, 30.0, testutil.ToFloat64(c.volume.WithLabelValues("buy")))
	assert.Equal(t, 20.0, testutil.ToFloat64(c.volume.WithLabelValues("sell")))
	assert.Equal(t, 110.0, testutil.ToFloat64(c.liquidity.WithLabelValues(tok.String())))

	require.NoError(t, c.Handle(ctx, &events.TokenGraduatedEvent{BaseEvent: base}))
	assert.Zero(t, testutil.ToFloat64(c.liquidity.WithLabelValues(tok.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lifecycle.WithLabelValues("graduated")))
}

func TestLifecycleAndCalls(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	require.NoError(t, c.Handle(ctx, &events.LaunchReservedEvent{}))
	require.NoError(t, c.Handle(ctx, &events.LaunchCancelledEvent{}))
	require.NoError(t, c.Handle(ctx, &events.TokenLaunchedEvent{}))
	c.ObserveCall("buy", time.Millisecond, nil)
	c.ObserveCall("buy", time.Millisecond, ledger.Fail("bonding.buy", ledger.ErrSlippage))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.launches.WithLabelValues("two_phase")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.launches.WithLabelValues("simple")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lifecycle.WithLabelValues("cancelled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.calls.WithLabelValues("buy", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.calls.WithLabelValues("buy", "economic")))

	c.Reset()
	assert.Zero(t, testutil.ToFloat64(c.launches.WithLabelValues("simple")))
}

func TestWriteFile(t *testing.T) {
	c := NewCollector()
	c.ObserveCall("launch", time.Millisecond, nil)

	path := filepath.Join(t.TempDir(), "launchpad.prom")
	require.NoError(t, c.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `launchpad_calls_total{op="launch",status="success"} 1`)
}
