package bonding

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/router"
	"go.uber.org/zap"
)

// Buy spends amountIn of the launch asset from caller on the curve. The
// call fails with ErrSlippage when fewer than minOut tokens would arrive.
// A buy that lifts the pair's asset balance to the graduation threshold
// graduates the token in the same call.
func (o *Orchestrator) Buy(ctx context.Context, caller, tok solana.PublicKey, amountIn, minOut uint64) (router.BuyResult, error) {
	const op = "bonding.buy"
	release, err := o.guard.Enter(op)
	if err != nil {
		return router.BuyResult{}, err
	}
	defer release()

	rec, err := o.tradable(op, tok)
	if err != nil {
		return router.BuyResult{}, err
	}
	res, err := o.router.Buy(o.addr, amountIn, tok, caller, false)
	if err != nil {
		return router.BuyResult{}, err
	}
	if res.AmountOut < minOut {
		return router.BuyResult{}, ledger.Failf(op, ledger.ErrSlippage, "out %d < min %d", res.AmountOut, minOut)
	}

	o.touch(rec)
	if err := o.refresh(rec, amountIn); err != nil {
		return router.BuyResult{}, err
	}

	if o.cfg.GradThreshold > 0 && !rec.Graduated {
		p, err := o.registry.PairOf(tok)
		if err != nil {
			return router.BuyResult{}, err
		}
		if p.AssetBalance() >= o.cfg.GradThreshold {
			o.logger.Info("Graduation threshold reached",
				zap.String("token", tok.String()),
				zap.Uint64("asset_balance", p.AssetBalance()),
				zap.Uint64("threshold", o.cfg.GradThreshold))
			if err := o.graduate(ctx, rec); err != nil {
				return router.BuyResult{}, err
			}
		}
	}
	return res, nil
}

// Sell sells amountIn tokens from caller on the curve, failing with
// ErrSlippage when the net asset output is below minOut.
func (o *Orchestrator) Sell(ctx context.Context, caller, tok solana.PublicKey, amountIn, minOut uint64) (router.SellResult, error) {
	const op = "bonding.sell"
	release, err := o.guard.Enter(op)
	if err != nil {
		return router.SellResult{}, err
	}
	defer release()

	rec, err := o.tradable(op, tok)
	if err != nil {
		return router.SellResult{}, err
	}
	res, err := o.router.Sell(o.addr, amountIn, tok, caller)
	if err != nil {
		return router.SellResult{}, err
	}
	if res.AmountOut < minOut {
		return router.SellResult{}, ledger.Failf(op, ledger.ErrSlippage, "out %d < min %d", res.AmountOut, minOut)
	}

	o.touch(rec)
	if err := o.refresh(rec, res.GrossOut); err != nil {
		return router.SellResult{}, err
	}
	return res, nil
}

// GetMaxBuyInput returns the largest pre-tax asset input whose output stays
// within the token's max-transaction cap at the current reserves and buy
// tax, anti-sniper surcharge included.
func (o *Orchestrator) GetMaxBuyInput(tok solana.PublicKey) (uint64, error) {
	const op = "bonding.max_buy"
	rec, err := o.lookup(op, tok)
	if err != nil {
		return 0, err
	}
	t, err := o.book.Get(rec.Token)
	if err != nil {
		return 0, err
	}
	tokenReserve, assetReserve, err := o.router.Reserves(tok)
	if err != nil {
		return 0, err
	}
	normal, surcharge, err := o.router.BuyTaxBp(tok)
	if err != nil {
		return 0, err
	}
	return curve.MaxBuyInput(t.TotalSupply(), t.MaxTxBp(), tokenReserve, assetReserve, normal, surcharge)
}

func (o *Orchestrator) tradable(op string, tok solana.PublicKey) (*Launch, error) {
	rec, err := o.lookup(op, tok)
	if err != nil {
		return nil, err
	}
	if !rec.TradingEnabled {
		return nil, ledger.Failf(op, ledger.ErrTradingDisabled, "%s is %s", rec.Symbol, rec.State)
	}
	return rec, nil
}
