package curve

import (
	"fmt"
	"math/big"

	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

// Kind selects a pricing model at pair creation.
type Kind string

const (
	// Balance prices off the live balances re-read on every call.
	Balance Kind = "balance"
	// Virtual holds k fixed at seed time and derives the asset side from it.
	Virtual Kind = "virtual"
)

// ParseKind validates a configured model name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Balance, Virtual:
		return Kind(s), nil
	case "":
		return Balance, nil
	}
	return "", fmt.Errorf("unknown pricing model %q", s)
}

// State is the pair data a model prices against.
type State struct {
	TokenBalance uint64
	AssetBalance uint64
	// K is the invariant frozen at seeding; nil for balance-model pairs.
	K *big.Int
}

// Model computes quotes for one pair.
type Model interface {
	Kind() Kind
	// Reserves returns the (token, asset) reserves the model prices against.
	Reserves(st State) (token, asset uint64)
	// SyntheticAsset is the asset-side reserve implied by the model.
	SyntheticAsset(st State) uint64
	// AmountOut quotes the output of an exact input. assetIn selects a buy.
	AmountOut(st State, amountIn uint64, assetIn bool) (uint64, error)
}

// NewModel returns the model for kind.
func NewModel(kind Kind) (Model, error) {
	switch kind {
	case Balance, "":
		return BalanceModel{}, nil
	case Virtual:
		return VirtualModel{}, nil
	}
	return nil, fmt.Errorf("unknown pricing model %q", kind)
}

// BalanceModel is the constant-product spot formula on live balances:
// out = in * reserveOut / (reserveIn + in).
type BalanceModel struct{}

func (BalanceModel) Kind() Kind { return Balance }

func (BalanceModel) Reserves(st State) (uint64, uint64) {
	return st.TokenBalance, st.AssetBalance
}

func (BalanceModel) SyntheticAsset(st State) uint64 {
	return st.AssetBalance
}

func (BalanceModel) AmountOut(st State, amountIn uint64, assetIn bool) (uint64, error) {
	if amountIn == 0 {
		return 0, ledger.Fail("curve.quote", ledger.ErrZeroAmount)
	}
	rIn, rOut := st.TokenBalance, st.AssetBalance
	if assetIn {
		rIn, rOut = st.AssetBalance, st.TokenBalance
	}
	if rOut == 0 {
		return 0, ledger.Failf("curve.quote", ledger.ErrInsufficientLiquidity, "empty output reserve")
	}
	num := new(big.Int).Mul(bigU(amountIn), bigU(rOut))
	den := new(big.Int).Add(bigU(rIn), bigU(amountIn))
	return toUint64(num.Quo(num, den))
}

// VirtualModel keeps k frozen at seeding and solves for the side that was
// not the input: newOut = ceil(k / (reserveIn + in)), out = reserveOut - newOut.
// Rounding newOut up keeps every output floored in the pair's favour.
// The asset reserve is synthetic, k / tokenBalance, and drifts away from the
// pair's real asset holdings as trades accumulate.
type VirtualModel struct{}

func (VirtualModel) Kind() Kind { return Virtual }

func (m VirtualModel) Reserves(st State) (uint64, uint64) {
	return st.TokenBalance, m.SyntheticAsset(st)
}

func (VirtualModel) SyntheticAsset(st State) uint64 {
	if st.K == nil || st.TokenBalance == 0 {
		return 0
	}
	a := new(big.Int).Quo(st.K, bigU(st.TokenBalance))
	if !a.IsUint64() {
		return 0
	}
	return a.Uint64()
}

func (m VirtualModel) AmountOut(st State, amountIn uint64, assetIn bool) (uint64, error) {
	if amountIn == 0 {
		return 0, ledger.Fail("curve.quote", ledger.ErrZeroAmount)
	}
	if st.K == nil || st.K.Sign() == 0 {
		return 0, ledger.Fail("curve.quote", ledger.ErrNotSeeded)
	}
	token, asset := m.Reserves(st)
	rIn, rOut := token, asset
	if assetIn {
		rIn, rOut = asset, token
	}
	if rOut == 0 {
		return 0, ledger.Failf("curve.quote", ledger.ErrInsufficientLiquidity, "empty output reserve")
	}

	newOut := ceilDiv(st.K, new(big.Int).Add(bigU(rIn), bigU(amountIn)))
	if newOut.Cmp(bigU(rOut)) >= 0 {
		return 0, nil
	}
	return rOut - newOut.Uint64(), nil
}
