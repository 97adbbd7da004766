// =============================
// File: internal/dex/dex.go
// =============================
package dex

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Exchange is the external general-purpose venue graduated liquidity moves
// to. Calls are atomic: a failed call leaves no pool or balance change
// behind.
type Exchange interface {
	// GetName returns the venue name.
	GetName() string
	// Address is the account that pulls approved funds during AddLiquidity.
	Address() solana.PublicKey
	// CreatePool creates the pool for (a, b) or returns the existing one.
	CreatePool(ctx context.Context, a, b solana.PublicKey) (solana.PublicKey, error)
	// GetPool returns the pool for (a, b) in either order.
	GetPool(a, b solana.PublicKey) (solana.PublicKey, bool)
	// AddLiquidity deposits both legs, pulling them from Provider through
	// allowances granted to Address().
	AddLiquidity(ctx context.Context, params AddLiquidityParams) (LiquidityResult, error)
}

// AddLiquidityParams describes a deposit with slippage minimums.
type AddLiquidityParams struct {
	Provider solana.PublicKey
	TokenA   solana.PublicKey
	TokenB   solana.PublicKey
	AmountA  uint64
	AmountB  uint64
	MinA     uint64
	MinB     uint64
	To       solana.PublicKey
	Deadline time.Time
}

// LiquidityResult reports what a deposit actually used.
type LiquidityResult struct {
	Pool     solana.PublicKey
	AmountA  uint64
	AmountB  uint64
	LPMinted uint64
}
