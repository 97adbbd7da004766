// Package router implements swap arithmetic, tax extraction and the
// graduation withdrawal in front of the registry's pairs.
package router

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/access"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/factory"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/pair"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"go.uber.org/zap"
)

// TaxHook is invoked on a vault after it received tax.
type TaxHook interface {
	OnTaxReceived(asset solana.PublicKey, amount uint64) error
}

// TaxHookFunc adapts a function to TaxHook.
type TaxHookFunc func(asset solana.PublicKey, amount uint64) error

// OnTaxReceived calls f.
func (f TaxHookFunc) OnTaxReceived(asset solana.PublicKey, amount uint64) error {
	return f(asset, amount)
}

// BuyResult describes an executed buy.
type BuyResult struct {
	AmountIn  uint64
	Tax       curve.BuyTax
	AmountOut uint64
}

// SellResult describes an executed sell.
type SellResult struct {
	AmountIn  uint64
	GrossOut  uint64
	Tax       uint64
	AmountOut uint64
}

// GraduateResult describes the liquidity withdrawn from a pair.
type GraduateResult struct {
	AssetAmount uint64
	TokenAmount uint64
	Burned      uint64
}

// Router executes trades against registry pairs.
type Router struct {
	j        *ledger.Journal
	acl      *access.Table
	registry *factory.Registry
	book     *token.Book
	logger   *zap.Logger

	addr  solana.PublicKey
	guard ledger.Guard
	hooks map[solana.PublicKey]TaxHook
}

// New creates a router at addr.
func New(j *ledger.Journal, acl *access.Table, registry *factory.Registry, book *token.Book, addr solana.PublicKey, logger *zap.Logger) *Router {
	return &Router{
		j:        j,
		acl:      acl,
		registry: registry,
		book:     book,
		logger:   logger.Named("router"),
		addr:     addr,
		hooks:    make(map[solana.PublicKey]TaxHook),
	}
}

// Address returns the router address pairs trust.
func (r *Router) Address() solana.PublicKey {
	return r.addr
}

func (r *Router) enter(op string, caller solana.PublicKey) (func(), error) {
	if err := r.acl.Require(op, access.Executor, caller); err != nil {
		return nil, err
	}
	return r.guard.Enter(op)
}

// AddInitialLiquidity moves both legs from provider into the pair and seeds
// it. Executor-only.
func (r *Router) AddInitialLiquidity(caller, tok, asset solana.PublicKey, tokenAmount, assetAmount uint64, provider solana.PublicKey) error {
	const op = "router.add_initial_liquidity"
	release, err := r.enter(op, caller)
	if err != nil {
		return err
	}
	defer release()

	if tokenAmount == 0 {
		return ledger.Fail(op, ledger.ErrZeroAmount)
	}
	p, ok := r.registry.PairFor(tok, asset)
	if !ok {
		return ledger.Failf(op, ledger.ErrPairNotFound, "%s/%s", tok, asset)
	}
	if p.Seeded() {
		return ledger.Fail(op, ledger.ErrAlreadySeeded)
	}

	if err := r.book.Transfer(tok, provider, p.Address(), tokenAmount); err != nil {
		return err
	}
	if err := r.book.Transfer(asset, provider, p.Address(), assetAmount); err != nil {
		return err
	}
	if err := p.Seed(r.addr); err != nil {
		return err
	}

	seeded := &events.LiquiditySeededEvent{
		BaseEvent:   r.j.Base(events.LiquiditySeeded, tok, p.Address()),
		TokenAmount: tokenAmount,
		AssetAmount: assetAmount,
	}
	if k := p.K(); k != nil {
		seeded.K = k.String()
	}
	r.j.Emit(seeded)
	return nil
}

// Buy swaps amountIn of the asset from buyer into the token's pair. The
// normal tax goes to the tax vault; outside the creator's initial purchase
// the anti-sniper surcharge goes to its own vault. Output is quoted from the
// reserves before the input lands.
func (r *Router) Buy(caller solana.PublicKey, amountIn uint64, tok, buyer solana.PublicKey, isInitial bool) (BuyResult, error) {
	const op = "router.buy"
	release, err := r.enter(op, caller)
	if err != nil {
		return BuyResult{}, err
	}
	defer release()

	if amountIn == 0 {
		return BuyResult{}, ledger.Fail(op, ledger.ErrZeroAmount)
	}
	if buyer.IsZero() {
		return BuyResult{}, ledger.Fail(op, ledger.ErrZeroAddress)
	}
	p, err := r.registry.PairOf(tok)
	if err != nil {
		return BuyResult{}, err
	}
	if !p.Seeded() {
		return BuyResult{}, ledger.Fail(op, ledger.ErrNotSeeded)
	}

	params := r.registry.TaxParameters()
	split, err := curve.SplitBuy(amountIn, params.BuyBp, r.surchargeBp(p, params, isInitial))
	if err != nil {
		return BuyResult{}, err
	}
	if split.Net == 0 {
		return BuyResult{}, ledger.Failf(op, ledger.ErrZeroAmount, "nothing left after tax")
	}

	out, err := p.Model().AmountOut(p.State(), split.Net, true)
	if err != nil {
		return BuyResult{}, err
	}
	if out == 0 {
		return BuyResult{}, ledger.Failf(op, ledger.ErrInsufficientLiquidity, "zero output for %d", split.Net)
	}

	asset := p.Asset()
	if err := r.payTax(asset, buyer, params.Vault, split.Normal); err != nil {
		return BuyResult{}, err
	}
	if err := r.payTax(asset, buyer, params.AntiSniperVault, split.Surcharge); err != nil {
		return BuyResult{}, err
	}
	if err := r.book.Transfer(asset, buyer, p.Address(), split.Net); err != nil {
		return BuyResult{}, err
	}
	if err := p.TransferReserve(r.addr, tok, buyer, out); err != nil {
		return BuyResult{}, err
	}
	if err := p.RecordTrade(r.addr, 0, out, split.Net, 0); err != nil {
		return BuyResult{}, err
	}

	r.logger.Debug("Buy executed",
		zap.String("token", tok.String()),
		zap.String("buyer", buyer.String()),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("tax", split.Normal),
		zap.Uint64("anti_sniper_tax", split.Surcharge),
		zap.Uint64("amount_out", out),
		zap.Bool("initial", isInitial))

	return BuyResult{AmountIn: amountIn, Tax: split, AmountOut: out}, nil
}

// Sell swaps amountIn of the token from seller for the asset. The sell tax
// is deducted from the gross output.
func (r *Router) Sell(caller solana.PublicKey, amountIn uint64, tok, seller solana.PublicKey) (SellResult, error) {
	const op = "router.sell"
	release, err := r.enter(op, caller)
	if err != nil {
		return SellResult{}, err
	}
	defer release()

	if amountIn == 0 {
		return SellResult{}, ledger.Fail(op, ledger.ErrZeroAmount)
	}
	if seller.IsZero() {
		return SellResult{}, ledger.Fail(op, ledger.ErrZeroAddress)
	}
	p, err := r.registry.PairOf(tok)
	if err != nil {
		return SellResult{}, err
	}
	if !p.Seeded() {
		return SellResult{}, ledger.Fail(op, ledger.ErrNotSeeded)
	}

	gross, err := p.Model().AmountOut(p.State(), amountIn, false)
	if err != nil {
		return SellResult{}, err
	}
	if gross == 0 {
		return SellResult{}, ledger.Failf(op, ledger.ErrInsufficientLiquidity, "zero output for %d", amountIn)
	}
	params := r.registry.TaxParameters()
	tax := curve.ApplyBp(gross, params.SellBp)
	asset := p.Asset()

	if err := r.book.Transfer(tok, seller, p.Address(), amountIn); err != nil {
		return SellResult{}, err
	}
	if err := p.TransferReserve(r.addr, asset, seller, gross-tax); err != nil {
		return SellResult{}, err
	}
	if tax > 0 {
		if err := p.TransferReserve(r.addr, asset, params.Vault, tax); err != nil {
			return SellResult{}, err
		}
		if err := r.notifyHook(params.Vault, asset, tax); err != nil {
			return SellResult{}, err
		}
	}
	if err := p.RecordTrade(r.addr, amountIn, 0, 0, gross); err != nil {
		return SellResult{}, err
	}

	r.logger.Debug("Sell executed",
		zap.String("token", tok.String()),
		zap.String("seller", seller.String()),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("gross_out", gross),
		zap.Uint64("tax", tax))

	return SellResult{AmountIn: amountIn, GrossOut: gross, Tax: tax, AmountOut: gross - tax}, nil
}

// GraduatePool withdraws the pair's liquidity to caller at the curve's
// current price: the full asset balance and
// tokenBalance*assetBalance/syntheticAsset tokens. The token remainder is
// burned.
func (r *Router) GraduatePool(caller, tok solana.PublicKey) (GraduateResult, error) {
	const op = "router.graduate_pool"
	release, err := r.enter(op, caller)
	if err != nil {
		return GraduateResult{}, err
	}
	defer release()

	p, err := r.registry.PairOf(tok)
	if err != nil {
		return GraduateResult{}, err
	}
	st := p.State()
	synthetic := p.Model().SyntheticAsset(st)
	if synthetic == 0 {
		return GraduateResult{}, ledger.Fail(op, ledger.ErrZeroSyntheticReserve)
	}
	target, err := curve.MulDiv(st.TokenBalance, st.AssetBalance, synthetic)
	if err != nil {
		return GraduateResult{}, err
	}
	if target > st.TokenBalance {
		target = st.TokenBalance
	}
	burned := st.TokenBalance - target

	if err := p.TransferReserve(r.addr, p.Asset(), caller, st.AssetBalance); err != nil {
		return GraduateResult{}, err
	}
	if err := p.TransferReserve(r.addr, tok, caller, target); err != nil {
		return GraduateResult{}, err
	}
	if err := p.BurnReserve(r.addr, burned); err != nil {
		return GraduateResult{}, err
	}

	r.logger.Info("Pool graduated",
		zap.String("token", tok.String()),
		zap.String("pair", p.Address().String()),
		zap.Uint64("asset_amount", st.AssetBalance),
		zap.Uint64("token_amount", target),
		zap.Uint64("burned", burned))

	return GraduateResult{AssetAmount: st.AssetBalance, TokenAmount: target, Burned: burned}, nil
}

// ResetTime re-anchors the token pair's anti-sniper window. Executor-only.
func (r *Router) ResetTime(caller, tok solana.PublicKey, start time.Time) error {
	const op = "router.reset_time"
	if err := r.acl.Require(op, access.Executor, caller); err != nil {
		return err
	}
	p, err := r.registry.PairOf(tok)
	if err != nil {
		return err
	}
	return p.ResetTime(r.addr, start)
}

// RegisterTaxHook installs hook on vault. Admin-only.
func (r *Router) RegisterTaxHook(caller, vault solana.PublicKey, hook TaxHook) error {
	const op = "router.register_tax_hook"
	if err := r.acl.Require(op, access.Admin, caller); err != nil {
		return err
	}
	if vault.IsZero() {
		return ledger.Fail(op, ledger.ErrZeroAddress)
	}
	ledger.SetKey(r.j, r.hooks, vault, hook)
	return nil
}

// GetAmountsOut quotes an exact input without tax.
func (r *Router) GetAmountsOut(tok solana.PublicKey, assetIn bool, amountIn uint64) (uint64, error) {
	p, err := r.registry.PairOf(tok)
	if err != nil {
		return 0, err
	}
	return p.Model().AmountOut(p.State(), amountIn, assetIn)
}

// QuoteBuy quotes a buy including the taxes that would apply now.
func (r *Router) QuoteBuy(tok solana.PublicKey, amountIn uint64, isInitial bool) (BuyResult, error) {
	p, err := r.registry.PairOf(tok)
	if err != nil {
		return BuyResult{}, err
	}
	params := r.registry.TaxParameters()
	split, err := curve.SplitBuy(amountIn, params.BuyBp, r.surchargeBp(p, params, isInitial))
	if err != nil {
		return BuyResult{}, err
	}
	if split.Net == 0 {
		return BuyResult{AmountIn: amountIn, Tax: split}, nil
	}
	out, err := p.Model().AmountOut(p.State(), split.Net, true)
	if err != nil {
		return BuyResult{}, err
	}
	return BuyResult{AmountIn: amountIn, Tax: split, AmountOut: out}, nil
}

// QuoteSell quotes a sell net of the sell tax.
func (r *Router) QuoteSell(tok solana.PublicKey, amountIn uint64) (SellResult, error) {
	gross, err := r.GetAmountsOut(tok, false, amountIn)
	if err != nil {
		return SellResult{}, err
	}
	tax := curve.ApplyBp(gross, r.registry.TaxParameters().SellBp)
	return SellResult{AmountIn: amountIn, GrossOut: gross, Tax: tax, AmountOut: gross - tax}, nil
}

// Reserves returns the token pair's reserves as its model sees them.
func (r *Router) Reserves(tok solana.PublicKey) (tokenReserve, assetReserve uint64, err error) {
	p, err := r.registry.PairOf(tok)
	if err != nil {
		return 0, 0, err
	}
	tokenReserve, assetReserve = p.Reserves()
	return tokenReserve, assetReserve, nil
}

// BuyTaxBp returns the normal buy rate and the anti-sniper surcharge in
// effect now for the token's pair.
func (r *Router) BuyTaxBp(tok solana.PublicKey) (normal, surcharge uint64, err error) {
	p, err := r.registry.PairOf(tok)
	if err != nil {
		return 0, 0, err
	}
	params := r.registry.TaxParameters()
	return params.BuyBp, r.surchargeBp(p, params, false), nil
}

func (r *Router) surchargeBp(p *pair.Pair, params factory.TaxParams, isInitial bool) uint64 {
	if isInitial {
		return 0
	}
	return curve.AntiSniperSurchargeBp(p.StartTime(), r.j.Now(), params.AntiSniperStartBp, params.BuyBp)
}

func (r *Router) payTax(asset, from, vault solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := r.book.Transfer(asset, from, vault, amount); err != nil {
		return err
	}
	return r.notifyHook(vault, asset, amount)
}

func (r *Router) notifyHook(vault, asset solana.PublicKey, amount uint64) error {
	hook := r.hooks[vault]
	if hook == nil {
		return nil
	}
	if err := hook.OnTaxReceived(asset, amount); err != nil {
		r.logger.Warn("Tax hook failed",
			zap.String("vault", vault.String()),
			zap.Uint64("amount", amount),
			zap.Error(err))
		return err
	}
	return nil
}
