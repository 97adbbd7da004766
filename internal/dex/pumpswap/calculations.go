// =============================
// File: internal/dex/pumpswap/calculations.go
// =============================
package pumpswap

import (
	"math/big"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

// calculateOutput вычисляет выходное количество токенов для операции свапа по формуле пула ликвидности.
//
// Constant product with the LP fee taken from the input:
// out = y * a * (10000 - fee) / (x * 10000 + a * (10000 - fee)), где:
// - x - резервы входного токена
// - y - резервы выходного токена
// - a - входное количество
func calculateOutput(reserves, otherReserves, amount, feeBasisPoints uint64) (uint64, error) {
	if reserves == 0 || otherReserves == 0 {
		return 0, ledger.Failf("pumpswap.quote", ledger.ErrInsufficientLiquidity, "empty pool")
	}
	if feeBasisPoints >= curve.BasisPoints {
		return 0, ledger.Failf("pumpswap.quote", ledger.ErrInvalidParameter, "fee %d bp", feeBasisPoints)
	}
	x := new(big.Int).SetUint64(reserves)
	y := new(big.Int).SetUint64(otherReserves)
	a := new(big.Int).SetUint64(amount)

	a.Mul(a, big.NewInt(int64(curve.BasisPoints-feeBasisPoints)))
	numerator := new(big.Int).Mul(y, a)
	denominator := new(big.Int).Mul(x, big.NewInt(curve.BasisPoints))
	denominator.Add(denominator, a)
	return new(big.Int).Quo(numerator, denominator).Uint64(), nil
}

// quote returns the amount of the other token matching amount at the
// current pool ratio.
func quote(amount, reserves, otherReserves uint64) (uint64, error) {
	if reserves == 0 || otherReserves == 0 {
		return 0, ledger.Failf("pumpswap.quote", ledger.ErrInsufficientLiquidity, "empty pool")
	}
	return curve.MulDiv(amount, otherReserves, reserves)
}

// initialLiquidity returns sqrt(a*b), the LP supply created by the first
// deposit before MinimumLiquidity is locked.
func initialLiquidity(a, b uint64) uint64 {
	p := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	return p.Sqrt(p).Uint64()
}

// mintedLiquidity returns the LP share for a deposit into a live pool.
func mintedLiquidity(a, b, reserveA, reserveB, supply uint64) (uint64, error) {
	la, err := curve.MulDiv(a, supply, reserveA)
	if err != nil {
		return 0, err
	}
	lb, err := curve.MulDiv(b, supply, reserveB)
	if err != nil {
		return 0, err
	}
	return min(la, lb), nil
}
