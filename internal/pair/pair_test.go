package pair

import (
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	j      *ledger.Journal
	clk    *clock.Mock
	owner  solana.PublicKey
	router solana.PublicKey
	tok    *token.Token
	asset  *token.Token
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	j := ledger.NewJournal(clk, nil, zap.NewNop())
	owner := solana.NewWallet().PublicKey()

	tok, err := token.New(j, solana.NewWallet().PublicKey(), token.Config{Symbol: "CAT", Owner: owner}, zap.NewNop())
	require.NoError(t, err)
	asset, err := token.New(j, solana.NewWallet().PublicKey(), token.Config{Symbol: "VRT", Owner: owner}, zap.NewNop())
	require.NoError(t, err)

	return fixture{j: j, clk: clk, owner: owner, router: solana.NewWallet().PublicKey(), tok: tok, asset: asset}
}

func (f fixture) newPair(t *testing.T, opts Options) *Pair {
	t.Helper()
	p, err := New(f.j, solana.NewWallet().PublicKey(), f.tok, f.asset, f.router, opts, zap.NewNop())
	require.NoError(t, err)
	return p
}

func (f fixture) fund(t *testing.T, p *Pair, tokens, assets uint64) {
	t.Helper()
	require.NoError(t, f.tok.Mint(f.owner, p.Address(), tokens))
	if assets > 0 {
		require.NoError(t, f.asset.Mint(f.owner, p.Address(), assets))
	}
}

func TestSeedIsRouterOnlyAndOnce(t *testing.T) {
	f := newFixture(t)
	p := f.newPair(t, Options{Model: curve.Balance})
	f.fund(t, p, 1_000_000, 100)

	err := p.Seed(f.owner)
	require.ErrorIs(t, err, ledger.ErrUnauthorized)
	assert.False(t, p.Seeded())

	require.NoError(t, p.Seed(f.router))
	assert.True(t, p.Seeded())
	assert.Nil(t, p.K())

	err = p.Seed(f.router)
	assert.ErrorIs(t, err, ledger.ErrAlreadySeeded)
}

func TestBalancePairNeedsBothLegs(t *testing.T) {
	f := newFixture(t)
	p := f.newPair(t, Options{Model: curve.Balance})
	f.fund(t, p, 1_000_000, 0)

	err := p.Seed(f.router)
	assert.ErrorIs(t, err, ledger.ErrInsufficientLiquidity)
}

func TestVirtualPairFreezesK(t *testing.T) {
	f := newFixture(t)
	p := f.newPair(t, Options{Model: curve.Virtual, VirtualAssetReserve: 50})
	f.fund(t, p, 1_000_000, 100)

	require.NoError(t, p.Seed(f.router))
	assert.Equal(t, "150000000", p.K().String())

	tokens, assets := p.Reserves()
	assert.Equal(t, uint64(1_000_000), tokens)
	assert.Equal(t, uint64(150), assets)

	// the returned k is a copy
	p.K().SetInt64(1)
	assert.Equal(t, "150000000", p.K().String())

	held, synthetic := p.Drift()
	assert.Equal(t, uint64(100), held)
	assert.Equal(t, uint64(150), synthetic)
}

func TestVirtualReserveRequiresVirtualModel(t *testing.T) {
	f := newFixture(t)
	_, err := New(f.j, solana.NewWallet().PublicKey(), f.tok, f.asset, f.router,
		Options{Model: curve.Balance, VirtualAssetReserve: 1}, zap.NewNop())
	assert.ErrorIs(t, err, ledger.ErrInvalidParameter)
}

func TestStartTimeHonoursDelay(t *testing.T) {
	f := newFixture(t)
	now := f.clk.Now()

	_, err := New(f.j, solana.NewWallet().PublicKey(), f.tok, f.asset, f.router,
		Options{StartTime: now.Add(time.Minute), StartDelay: time.Hour}, zap.NewNop())
	require.ErrorIs(t, err, ledger.ErrInvalidParameter)

	p := f.newPair(t, Options{StartTime: now.Add(2 * time.Hour), StartDelay: time.Hour})
	assert.Equal(t, now.Add(2*time.Hour), p.StartTime())

	require.ErrorIs(t, p.ResetTime(f.router, now.Add(-time.Second)), ledger.ErrInvalidParameter)
	require.NoError(t, p.ResetTime(f.router, now))
	assert.Equal(t, now, p.StartTime())
}

func TestTransferReserveOnlyMovesHeldTokens(t *testing.T) {
	f := newFixture(t)
	p := f.newPair(t, Options{})
	f.fund(t, p, 1_000, 10)
	to := solana.NewWallet().PublicKey()

	require.NoError(t, p.TransferReserve(f.router, f.tok.Address(), to, 400))
	require.NoError(t, p.TransferReserve(f.router, f.asset.Address(), to, 3))
	assert.Equal(t, uint64(600), p.Balance())
	assert.Equal(t, uint64(7), p.AssetBalance())

	err := p.TransferReserve(f.router, solana.NewWallet().PublicKey(), to, 1)
	assert.ErrorIs(t, err, ledger.ErrUnknownToken)

	err = p.TransferReserve(to, f.tok.Address(), to, 1)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
}

func TestBurnReserve(t *testing.T) {
	f := newFixture(t)
	p := f.newPair(t, Options{})
	f.fund(t, p, 1_000, 10)

	require.NoError(t, p.BurnReserve(f.router, 250))
	assert.Equal(t, uint64(750), p.Balance())
	assert.Equal(t, uint64(750), f.tok.TotalSupply())
}

func TestRecordTradeRequiresSeed(t *testing.T) {
	f := newFixture(t)
	p := f.newPair(t, Options{})
	f.fund(t, p, 1_000, 10)

	require.ErrorIs(t, p.RecordTrade(f.router, 0, 1, 1, 0), ledger.ErrNotSeeded)
	require.NoError(t, p.Seed(f.router))

	f.clk.Add(time.Minute)
	require.NoError(t, p.RecordTrade(f.router, 0, 1, 1, 0))
	assert.Equal(t, f.clk.Now(), p.LastActivity())
}
