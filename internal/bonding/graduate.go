package bonding

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/access"
	"github.com/rovshanmuradov/launchpad/internal/agentfactory"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/dex"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"go.uber.org/zap"
)

// ForceGraduate graduates a trading token regardless of the threshold.
// Admin-only.
func (o *Orchestrator) ForceGraduate(ctx context.Context, caller, tok solana.PublicKey) error {
	const op = "bonding.force_graduate"
	if err := o.acl.Require(op, access.Admin, caller); err != nil {
		return err
	}
	release, err := o.guard.Enter(op)
	if err != nil {
		return err
	}
	defer release()

	rec, err := o.lookup(op, tok)
	if err != nil {
		return err
	}
	if !rec.Graduated && !rec.TradingEnabled {
		return ledger.Failf(op, ledger.ErrTradingDisabled, "%s is %s", rec.Symbol, rec.State)
	}
	return o.graduate(ctx, rec)
}

// graduate withdraws the curve liquidity at the current price and deposits
// it into the external exchange, which becomes the token's venue. Either
// every step succeeds or the enclosing transaction unwinds them all.
func (o *Orchestrator) graduate(ctx context.Context, rec *Launch) error {
	const op = "bonding.graduate"
	if rec.Graduated {
		return ledger.Fail(op, ledger.ErrAlreadyGraduated)
	}
	o.touch(rec)
	rec.Graduated = true
	rec.TradingEnabled = false
	rec.State = StateGraduated

	tok, err := o.book.Get(rec.Token)
	if err != nil {
		return err
	}
	if err := tok.SetMaxTxExempt(o.addr, rec.Pair, true); err != nil {
		return err
	}
	withdrawn, err := o.router.GraduatePool(o.addr, rec.Token)
	if err != nil {
		return err
	}

	pool, err := o.exchange.CreatePool(ctx, rec.Token, rec.Asset)
	if err != nil {
		return err
	}
	if rec.TwoPhase {
		if err := o.agents.UpdateApplicationThreshold(ctx, rec.Pending.ApplicationID, withdrawn.AssetAmount); err != nil {
			return err
		}
		if err := o.agents.RemoveBlacklist(ctx, rec.Token, pool); err != nil {
			return err
		}
	}

	if err := tok.Approve(o.addr, o.exchange.Address(), withdrawn.TokenAmount); err != nil {
		return err
	}
	asset, err := o.book.Get(rec.Asset)
	if err != nil {
		return err
	}
	if err := asset.Approve(o.addr, o.exchange.Address(), withdrawn.AssetAmount); err != nil {
		return err
	}

	minToken, err := o.slippageFloor(withdrawn.TokenAmount)
	if err != nil {
		return err
	}
	minAsset, err := o.slippageFloor(withdrawn.AssetAmount)
	if err != nil {
		return err
	}
	liq, err := o.exchange.AddLiquidity(ctx, dex.AddLiquidityParams{
		Provider: o.addr,
		TokenA:   rec.Token,
		TokenB:   rec.Asset,
		AmountA:  withdrawn.TokenAmount,
		AmountB:  withdrawn.AssetAmount,
		MinA:     minToken,
		MinB:     minAsset,
		To:       o.addr,
		Deadline: o.j.Now().Add(o.cfg.Deadline),
	})
	if err != nil {
		return err
	}

	if rec.TwoPhase {
		if err := o.agents.ExecuteApplication(ctx, rec.Pending.ApplicationID, agentfactory.SupplySplit{
			TotalSupply: tok.TotalSupply(),
			LPSupply:    liq.AmountA,
			Vault:       pool,
		}); err != nil {
			return err
		}
	}
	if err := tok.FlagAsTaxIncluded(o.addr, pool); err != nil {
		return err
	}

	rec.BondingPair = rec.Pair
	rec.Pair = pool
	rec.GraduatedAt = o.j.Now()

	o.j.Emit(&events.TokenGraduatedEvent{
		BaseEvent:   o.j.Base(events.TokenGraduated, rec.Token, pool),
		BondingPair: rec.BondingPair,
		AssetAmount: liq.AmountB,
		TokenAmount: liq.AmountA,
		Burned:      withdrawn.Burned,
		LPMinted:    liq.LPMinted,
	})
	o.logger.Info("Token graduated",
		zap.String("token", rec.Token.String()),
		zap.String("pool", pool.String()),
		zap.String("exchange", o.exchange.GetName()),
		zap.Uint64("asset_amount", liq.AmountB),
		zap.Uint64("token_amount", liq.AmountA),
		zap.Uint64("burned", withdrawn.Burned),
		zap.Uint64("lp_minted", liq.LPMinted))
	return nil
}

// slippageFloor returns amount*(100-slippage)/100.
func (o *Orchestrator) slippageFloor(amount uint64) (uint64, error) {
	return curve.MulDiv(amount, 100-o.cfg.GradSlippagePercent, 100)
}
