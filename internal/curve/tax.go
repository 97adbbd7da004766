package curve

import (
	"time"

	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

// AntiSniperWindow is how long the buy surcharge takes to decay to zero.
const AntiSniperWindow = 98 * time.Minute

// AntiSniperSurchargeBp returns the extra buy tax on top of normalBp at now.
//
// The surcharge is startBp-normalBp before start, decays linearly over
// AntiSniperWindow and is zero from start+AntiSniperWindow on, so the total
// buy rate goes from startBp down to exactly normalBp.
func AntiSniperSurchargeBp(start, now time.Time, startBp, normalBp uint64) uint64 {
	if startBp <= normalBp {
		return 0
	}
	span := startBp - normalBp
	if now.Before(start) {
		return span
	}
	elapsed := now.Sub(start)
	if elapsed >= AntiSniperWindow {
		return 0
	}
	remaining := uint64(AntiSniperWindow - elapsed)
	out, _ := MulDiv(span, remaining, uint64(AntiSniperWindow))
	return out
}

// BuyTax is the split of a buy input.
type BuyTax struct {
	Normal    uint64 // to the tax vault
	Surcharge uint64 // to the anti-sniper vault
	Net       uint64 // into the pair
}

// SplitBuy divides amountIn into tax portions and the net input.
func SplitBuy(amountIn, normalBp, surchargeBp uint64) (BuyTax, error) {
	if normalBp+surchargeBp >= BasisPoints {
		return BuyTax{}, ledger.Failf("curve.split_buy", ledger.ErrTaxTooHigh, "%d bp", normalBp+surchargeBp)
	}
	normal := ApplyBp(amountIn, normalBp)
	surcharge := ApplyBp(amountIn, surchargeBp)
	return BuyTax{
		Normal:    normal,
		Surcharge: surcharge,
		Net:       amountIn - normal - surcharge,
	}, nil
}

// MaxBuyInput returns the largest pre-tax asset input whose output stays
// within the max-transaction cap of totalSupply*maxTxBp/10000.
//
// buyAmount = maxTokenBuy*assetReserve/(tokenReserve-maxTokenBuy) when the
// reserve exceeds the cap, else tokenReserve. The result is grossed up for
// normalBp+surchargeBp and then lowered until SplitBuy leaves a net of at
// most buyAmount, since the two tax portions are floored separately.
func MaxBuyInput(totalSupply, maxTxBp, tokenReserve, assetReserve, normalBp, surchargeBp uint64) (uint64, error) {
	if maxTxBp == 0 || maxTxBp > BasisPoints {
		return 0, ledger.Failf("curve.max_buy", ledger.ErrInvalidParameter, "max tx %d bp", maxTxBp)
	}
	maxTokenBuy := ApplyBp(totalSupply, maxTxBp)

	var buyAmount uint64
	if tokenReserve > maxTokenBuy {
		v, err := MulDiv(maxTokenBuy, assetReserve, tokenReserve-maxTokenBuy)
		if err != nil {
			return 0, err
		}
		buyAmount = v
	} else {
		buyAmount = tokenReserve
	}

	gross, err := GrossUpForTax(buyAmount, normalBp+surchargeBp)
	if err != nil {
		return 0, err
	}
	for gross > 0 {
		split, err := SplitBuy(gross, normalBp, surchargeBp)
		if err != nil {
			return 0, err
		}
		if split.Net <= buyAmount {
			break
		}
		gross--
	}
	return gross, nil
}
