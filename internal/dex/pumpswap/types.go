package pumpswap

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Pool represents a liquidity pool. BaseMint sorts before QuoteMint.
type Pool struct {
	Index     uint16           // Pool index
	Address   solana.PublicKey // Pool account, holds both reserves
	Creator   solana.PublicKey // Caller of CreatePool
	BaseMint  solana.PublicKey
	QuoteMint solana.PublicKey
	LPMint    solana.PublicKey // LP token mint
	CreatedAt time.Time
}

// PoolInfo contains information about the state of a liquidity pool
type PoolInfo struct {
	Address         solana.PublicKey // Pool address
	BaseMint        solana.PublicKey // Base token mint
	QuoteMint       solana.PublicKey // Quote token mint
	BaseReserves    uint64           // Amount of base tokens in the pool
	QuoteReserves   uint64           // Amount of quote tokens in the pool
	LPSupply        uint64           // LP token supply
	FeesBasisPoints uint64           // LP fee in basis points
	LPMint          solana.PublicKey // LP token mint
}

// ReservesFor returns the reserves ordered as (mint, other).
func (p *PoolInfo) ReservesFor(mint solana.PublicKey) (uint64, uint64) {
	if mint == p.BaseMint {
		return p.BaseReserves, p.QuoteReserves
	}
	return p.QuoteReserves, p.BaseReserves
}

// SwapParams describes an exact-input swap.
type SwapParams struct {
	Trader       solana.PublicKey
	InputMint    solana.PublicKey
	OutputMint   solana.PublicKey
	Amount       uint64
	MinAmountOut uint64
}

// SwapResult reports a completed swap. AmountIn is what the pool actually
// received, which is less than requested for fee-on-transfer tokens.
type SwapResult struct {
	Pool      solana.PublicKey
	AmountIn  uint64
	AmountOut uint64
}
