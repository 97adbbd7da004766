package router

import (
	"errors"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/access"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/factory"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/pair"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	j      *ledger.Journal
	clk    *clock.Mock
	acl    *access.Table
	book   *token.Book
	reg    *factory.Registry
	router *Router

	admin solana.PublicKey
	exec  solana.PublicKey
	tok   *token.Token
	asset *token.Token
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	j := ledger.NewJournal(clk, nil, zap.NewNop())
	admin := solana.NewWallet().PublicKey()
	exec := solana.NewWallet().PublicKey()

	acl, err := access.NewTable(j, admin, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, acl.Grant(admin, access.Executor, exec))
	require.NoError(t, acl.Grant(admin, access.Creator, exec))

	book := token.NewBook(j, zap.NewNop())
	reg, err := factory.New(j, acl, book, factory.Config{}, zap.NewNop())
	require.NoError(t, err)

	addr, err := ledger.ComponentAddress(ledger.DefaultProgramID, "router")
	require.NoError(t, err)
	r := New(j, acl, reg, book, addr, zap.NewNop())
	require.NoError(t, reg.SetRouter(admin, r.Address()))

	asset, err := token.New(j, solana.NewWallet().PublicKey(), token.Config{Symbol: "VRT", Owner: admin}, zap.NewNop())
	require.NoError(t, err)
	tok, err := token.New(j, solana.NewWallet().PublicKey(), token.Config{Symbol: "CAT", Owner: exec}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, book.Register(asset))
	require.NoError(t, book.Register(tok))

	return &fixture{j: j, clk: clk, acl: acl, book: book, reg: reg, router: r, admin: admin, exec: exec, tok: tok, asset: asset}
}

// seed creates and funds the pair from the executor's own balances.
func (f *fixture) seed(t *testing.T, opts pair.Options, tokens, assets uint64) *pair.Pair {
	t.Helper()
	p, err := f.reg.CreatePair(f.exec, f.tok.Address(), f.asset.Address(), opts)
	require.NoError(t, err)
	require.NoError(t, f.tok.Mint(f.exec, f.exec, tokens))
	require.NoError(t, f.asset.Mint(f.admin, f.exec, assets))
	require.NoError(t, f.router.AddInitialLiquidity(f.exec, f.tok.Address(), f.asset.Address(), tokens, assets, f.exec))
	return p
}

func (f *fixture) fund(t *testing.T, to solana.PublicKey, assets uint64) {
	t.Helper()
	require.NoError(t, f.asset.Mint(f.admin, to, assets))
}

func TestAddInitialLiquiditySeedsOnce(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, pair.Options{Model: curve.Virtual}, 1_000_000, 100)

	assert.True(t, p.Seeded())
	assert.Equal(t, uint64(1_000_000), p.Balance())
	assert.Equal(t, "100000000", p.K().String())

	err := f.router.AddInitialLiquidity(f.exec, f.tok.Address(), f.asset.Address(), 1, 1, f.exec)
	assert.ErrorIs(t, err, ledger.ErrAlreadySeeded)
}

func TestBuyWithoutTax(t *testing.T) {
	for _, tc := range []struct {
		model curve.Kind
		out   uint64
	}{
		{curve.Balance, 90_909},
		{curve.Virtual, 90_909},
	} {
		t.Run(string(tc.model), func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, pair.Options{Model: tc.model}, 1_000_000, 100)
			buyer := solana.NewWallet().PublicKey()
			f.fund(t, buyer, 10)

			res, err := f.router.Buy(f.exec, 10, f.tok.Address(), buyer, false)
			require.NoError(t, err)
			assert.Equal(t, tc.out, res.AmountOut)
			assert.Equal(t, tc.out, f.tok.BalanceOf(buyer))
			assert.Zero(t, f.asset.BalanceOf(buyer))
		})
	}
}

func TestBuyDuringAntiSniperWindow(t *testing.T) {
	f := newFixture(t)
	vault := solana.NewWallet().PublicKey()
	sniperVault := solana.NewWallet().PublicKey()
	require.NoError(t, f.reg.SetTaxParameters(f.admin, factory.TaxParams{
		Vault:             vault,
		BuyBp:             100,
		AntiSniperStartBp: 9_900,
		AntiSniperVault:   sniperVault,
	}))
	f.seed(t, pair.Options{}, 1_000_000, 100)
	buyer := solana.NewWallet().PublicKey()
	f.fund(t, buyer, 2_000)

	normal, surcharge, err := f.router.BuyTaxBp(f.tok.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), normal)
	assert.Equal(t, uint64(9_800), surcharge)

	res, err := f.router.Buy(f.exec, 1_000, f.tok.Address(), buyer, false)
	require.NoError(t, err)
	assert.Equal(t, curve.BuyTax{Normal: 10, Surcharge: 980, Net: 10}, res.Tax)
	// far below the 909090 a tax-free buy would get
	assert.Equal(t, uint64(90_909), res.AmountOut)
	assert.Equal(t, uint64(10), f.asset.BalanceOf(vault))
	assert.Equal(t, uint64(980), f.asset.BalanceOf(sniperVault))

	f.clk.Add(curve.AntiSniperWindow)
	_, surcharge, err = f.router.BuyTaxBp(f.tok.Address())
	require.NoError(t, err)
	assert.Zero(t, surcharge)
}

func TestBuyBeforeStartPaysFullSurcharge(t *testing.T) {
	f := newFixture(t)
	vault := solana.NewWallet().PublicKey()
	sniperVault := solana.NewWallet().PublicKey()
	require.NoError(t, f.reg.SetTaxParameters(f.admin, factory.TaxParams{
		Vault:             vault,
		BuyBp:             100,
		AntiSniperStartBp: 9_900,
		AntiSniperVault:   sniperVault,
	}))
	start := f.clk.Now().Add(time.Hour)
	p := f.seed(t, pair.Options{StartTime: start}, 1_000_000, 100)
	require.Equal(t, start, p.StartTime())
	buyer := solana.NewWallet().PublicKey()
	f.fund(t, buyer, 2_000)

	res, err := f.router.Buy(f.exec, 1_000, f.tok.Address(), buyer, false)
	require.NoError(t, err)
	assert.Equal(t, curve.BuyTax{Normal: 10, Surcharge: 980, Net: 10}, res.Tax)
	assert.Equal(t, uint64(980), f.asset.BalanceOf(sniperVault))

	// the surcharge does not start decaying until the start time
	for _, at := range []time.Duration{30 * time.Minute, 59 * time.Minute, time.Hour} {
		f.clk.Set(start.Add(at - time.Hour))
		_, surcharge, err := f.router.BuyTaxBp(f.tok.Address())
		require.NoError(t, err)
		assert.Equal(t, uint64(9_800), surcharge, "at %s", at)
	}

	f.clk.Set(start.Add(49 * time.Minute))
	_, surcharge, err := f.router.BuyTaxBp(f.tok.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(4_900), surcharge)
}

func TestInitialBuySkipsSurcharge(t *testing.T) {
	f := newFixture(t)
	vault := solana.NewWallet().PublicKey()
	require.NoError(t, f.reg.SetTaxParameters(f.admin, factory.TaxParams{
		Vault:             vault,
		BuyBp:             100,
		AntiSniperStartBp: 9_900,
		AntiSniperVault:   solana.NewWallet().PublicKey(),
	}))
	f.seed(t, pair.Options{}, 1_000_000, 100)
	f.fund(t, f.exec, 1_000)

	quote, err := f.router.QuoteBuy(f.tok.Address(), 1_000, true)
	require.NoError(t, err)

	res, err := f.router.Buy(f.exec, 1_000, f.tok.Address(), f.exec, true)
	require.NoError(t, err)
	assert.Equal(t, curve.BuyTax{Normal: 10, Net: 990}, res.Tax)
	assert.Equal(t, uint64(908_256), res.AmountOut)
	assert.Equal(t, quote, res)
}

func TestSellRoutesTaxToVault(t *testing.T) {
	f := newFixture(t)
	vault := solana.NewWallet().PublicKey()
	require.NoError(t, f.reg.SetTaxParameters(f.admin, factory.TaxParams{Vault: vault, SellBp: 300}))
	p := f.seed(t, pair.Options{}, 1_000_000, 1_000_000)
	trader := solana.NewWallet().PublicKey()
	f.fund(t, trader, 100_000)

	bought, err := f.router.Buy(f.exec, 100_000, f.tok.Address(), trader, false)
	require.NoError(t, err)
	require.Equal(t, uint64(90_909), bought.AmountOut)

	quote, err := f.router.QuoteSell(f.tok.Address(), bought.AmountOut)
	require.NoError(t, err)

	sold, err := f.router.Sell(f.exec, bought.AmountOut, f.tok.Address(), trader)
	require.NoError(t, err)
	assert.Equal(t, SellResult{AmountIn: 90_909, GrossOut: 99_999, Tax: 2_999, AmountOut: 97_000}, sold)
	assert.Equal(t, quote, sold)
	assert.Equal(t, uint64(97_000), f.asset.BalanceOf(trader))
	assert.Equal(t, uint64(2_999), f.asset.BalanceOf(vault))
	assert.Equal(t, uint64(1_000_000), p.Balance())
	assert.Equal(t, uint64(1_000_001), p.AssetBalance())
}

func TestBuyRespectsMaxTxAtomically(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, pair.Options{}, 1_000_000, 100)
	require.NoError(t, f.tok.UpdateMaxTransactionBasisPoints(f.exec, 100))
	buyer := solana.NewWallet().PublicKey()
	f.fund(t, buyer, 10)

	err := f.j.Atomic(func() error {
		_, err := f.router.Buy(f.exec, 10, f.tok.Address(), buyer, false)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrExceedsMaxTx)
	assert.Equal(t, uint64(10), f.asset.BalanceOf(buyer))
	assert.Equal(t, uint64(100), p.AssetBalance())
	assert.Equal(t, uint64(1_000_000), p.Balance())
}

func TestGraduatePoolEmptiesPair(t *testing.T) {
	for _, tc := range []struct {
		name    string
		opts    pair.Options
		tokens  uint64
		burned  uint64
		tokOut  uint64
		assetIn uint64
	}{
		{"virtual", pair.Options{Model: curve.Virtual}, 909_091, 0, 909_091, 10},
		{"virtual depth", pair.Options{Model: curve.Virtual, VirtualAssetReserve: 100}, 952_381, 451_128, 501_253, 10},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.seed(t, tc.opts, 1_000_000, 100)
			buyer := solana.NewWallet().PublicKey()
			f.fund(t, buyer, tc.assetIn)
			_, err := f.router.Buy(f.exec, tc.assetIn, f.tok.Address(), buyer, false)
			require.NoError(t, err)
			require.Equal(t, tc.tokens, p.Balance())

			supply := f.tok.TotalSupply()
			res, err := f.router.GraduatePool(f.exec, f.tok.Address())
			require.NoError(t, err)
			assert.Equal(t, GraduateResult{AssetAmount: 110, TokenAmount: tc.tokOut, Burned: tc.burned}, res)

			assert.Zero(t, p.Balance())
			assert.Zero(t, p.AssetBalance())
			assert.Equal(t, supply-tc.burned, f.tok.TotalSupply())
			assert.Equal(t, uint64(110), f.asset.BalanceOf(f.exec))
		})
	}
}

func TestGraduatePoolRejectsEmptySyntheticReserve(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.CreatePair(f.exec, f.tok.Address(), f.asset.Address(), pair.Options{Model: curve.Virtual})
	require.NoError(t, err)

	_, err = f.router.GraduatePool(f.exec, f.tok.Address())
	assert.ErrorIs(t, err, ledger.ErrZeroSyntheticReserve)
}

func TestTaxHookReentryIsRejected(t *testing.T) {
	f := newFixture(t)
	vault := solana.NewWallet().PublicKey()
	require.NoError(t, f.reg.SetTaxParameters(f.admin, factory.TaxParams{Vault: vault, BuyBp: 500}))
	f.seed(t, pair.Options{}, 1_000_000, 1_000)
	buyer := solana.NewWallet().PublicKey()
	f.fund(t, buyer, 200)

	var calls int
	require.NoError(t, f.router.RegisterTaxHook(f.admin, vault, TaxHookFunc(func(_ solana.PublicKey, amount uint64) error {
		calls++
		_, err := f.router.Buy(f.exec, 100, f.tok.Address(), buyer, false)
		return err
	})))

	err := f.j.Atomic(func() error {
		_, err := f.router.Buy(f.exec, 100, f.tok.Address(), buyer, false)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrReentrant)
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(200), f.asset.BalanceOf(buyer))
	assert.Zero(t, f.asset.BalanceOf(vault))
}

func TestTaxHookReceivesAmounts(t *testing.T) {
	f := newFixture(t)
	vault := solana.NewWallet().PublicKey()
	require.NoError(t, f.reg.SetTaxParameters(f.admin, factory.TaxParams{Vault: vault, BuyBp: 500, SellBp: 500}))
	f.seed(t, pair.Options{}, 1_000_000, 1_000)
	buyer := solana.NewWallet().PublicKey()
	f.fund(t, buyer, 200)

	var received []uint64
	hook := TaxHookFunc(func(asset solana.PublicKey, amount uint64) error {
		assert.Equal(t, f.asset.Address(), asset)
		received = append(received, amount)
		return nil
	})
	require.ErrorIs(t, f.router.RegisterTaxHook(f.exec, vault, hook), ledger.ErrUnauthorized)
	require.NoError(t, f.router.RegisterTaxHook(f.admin, vault, hook))

	_, err := f.router.Buy(f.exec, 200, f.tok.Address(), buyer, false)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10}, received)
}

func TestTaxHookFailureAbortsBuy(t *testing.T) {
	f := newFixture(t)
	vault := solana.NewWallet().PublicKey()
	require.NoError(t, f.reg.SetTaxParameters(f.admin, factory.TaxParams{Vault: vault, BuyBp: 500}))
	f.seed(t, pair.Options{}, 1_000_000, 1_000)
	buyer := solana.NewWallet().PublicKey()
	f.fund(t, buyer, 200)

	boom := errors.New("vault offline")
	require.NoError(t, f.router.RegisterTaxHook(f.admin, vault, TaxHookFunc(func(solana.PublicKey, uint64) error {
		return boom
	})))

	err := f.j.Atomic(func() error {
		_, err := f.router.Buy(f.exec, 200, f.tok.Address(), buyer, false)
		return err
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, f.tok.BalanceOf(buyer))
}

func TestRouterRequiresExecutor(t *testing.T) {
	f := newFixture(t)
	f.seed(t, pair.Options{}, 1_000_000, 100)
	stranger := solana.NewWallet().PublicKey()
	f.fund(t, stranger, 10)

	_, err := f.router.Buy(stranger, 10, f.tok.Address(), stranger, false)
	require.ErrorIs(t, err, ledger.ErrUnauthorized)
	_, err = f.router.Sell(stranger, 10, f.tok.Address(), stranger)
	require.ErrorIs(t, err, ledger.ErrUnauthorized)
	_, err = f.router.GraduatePool(stranger, f.tok.Address())
	require.ErrorIs(t, err, ledger.ErrUnauthorized)
	err = f.router.ResetTime(stranger, f.tok.Address(), f.clk.Now())
	require.ErrorIs(t, err, ledger.ErrUnauthorized)
	assert.Equal(t, ledger.KindCapability, ledger.KindOf(err))
}

func TestBuyValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.router.Buy(f.exec, 10, f.tok.Address(), f.exec, false)
	require.ErrorIs(t, err, ledger.ErrPairNotFound)

	f.seed(t, pair.Options{}, 1_000_000, 100)
	_, err = f.router.Buy(f.exec, 0, f.tok.Address(), f.exec, false)
	require.ErrorIs(t, err, ledger.ErrZeroAmount)
	_, err = f.router.Buy(f.exec, 10, f.tok.Address(), solana.PublicKey{}, false)
	require.ErrorIs(t, err, ledger.ErrZeroAddress)
	_, err = f.router.Buy(f.exec, 10, f.tok.Address(), solana.NewWallet().PublicKey(), false)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}
