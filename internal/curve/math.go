// Package curve implements swap arithmetic for bonding-curve pairs: the two
// pricing models, buy/sell tax math and the max-buy inversion.
//
// All amounts are raw base units. Products are computed on math/big and
// floored on division, so no intermediate can overflow.
package curve

import (
	"math/big"

	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

// BasisPoints is the denominator of every rate.
const BasisPoints = 10_000

// MulDiv returns floor(a*b/d).
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ledger.Failf("curve.muldiv", ledger.ErrInvalidParameter, "division by zero")
	}
	r := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	r.Quo(r, new(big.Int).SetUint64(d))
	return toUint64(r)
}

// ApplyBp returns floor(amount*bp/10000). bp above 10000 is clamped.
func ApplyBp(amount, bp uint64) uint64 {
	if bp > BasisPoints {
		bp = BasisPoints
	}
	// amount*bp/10000 <= amount, never overflows the result
	out, _ := MulDiv(amount, bp, BasisPoints)
	return out
}

// GrossUpForTax returns the pre-tax amount whose net after bp tax is about
// amount: amount*10000/(10000-bp).
func GrossUpForTax(amount, bp uint64) (uint64, error) {
	if bp >= BasisPoints {
		return 0, ledger.Failf("curve.grossup", ledger.ErrTaxTooHigh, "tax %d bp leaves nothing", bp)
	}
	return MulDiv(amount, BasisPoints, BasisPoints-bp)
}

func toUint64(x *big.Int) (uint64, error) {
	if !x.IsUint64() {
		return 0, ledger.Failf("curve.math", ledger.ErrOverflow, "%s does not fit uint64", x)
	}
	return x.Uint64(), nil
}

// ceilDiv returns ceil(n/d) for positive d.
func ceilDiv(n, d *big.Int) *big.Int {
	q, m := new(big.Int).QuoRem(n, d, new(big.Int))
	if m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func bigU(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
