// =============================
// File: internal/dex/pumpswap/pool.go
// =============================
package pumpswap

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"go.uber.org/zap"
)

type poolKey struct {
	base, quote solana.PublicKey
}

func keyFor(a, b solana.PublicKey) poolKey {
	lo, hi := ledger.SortAddresses(a, b)
	return poolKey{lo, hi}
}

// CreatePool creates the pool for (a, b) or returns the existing one.
func (d *DEX) CreatePool(ctx context.Context, a, b solana.PublicKey) (solana.PublicKey, error) {
	const op = "pumpswap.create_pool"
	if err := ctx.Err(); err != nil {
		return solana.PublicKey{}, err
	}
	if a.IsZero() || b.IsZero() {
		return solana.PublicKey{}, ledger.Fail(op, ledger.ErrZeroAddress)
	}
	if a == b {
		return solana.PublicKey{}, ledger.Fail(op, ledger.ErrIdenticalAddresses)
	}
	key := keyFor(a, b)
	if pool, ok := d.pools[key]; ok {
		return pool.Address, nil
	}
	for _, mint := range []solana.PublicKey{a, b} {
		if _, err := d.book.Get(mint); err != nil {
			return solana.PublicKey{}, err
		}
	}

	addr, err := ledger.ProgramAddress(d.config.ProgramID, []byte("pool"), key.base[:], key.quote[:])
	if err != nil {
		return solana.PublicKey{}, err
	}
	lpAddr, err := ledger.ProgramAddress(d.config.ProgramID, []byte("pool_lp_mint"), addr[:])
	if err != nil {
		return solana.PublicKey{}, err
	}
	lp, err := token.New(d.j, lpAddr, token.Config{Name: "PumpSwap LP", Symbol: "PSLP", Decimals: 9, Owner: d.addr}, d.logger)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := d.book.Register(lp); err != nil {
		return solana.PublicKey{}, err
	}

	pool := &Pool{
		Index:     uint16(len(d.order)),
		Address:   addr,
		BaseMint:  key.base,
		QuoteMint: key.quote,
		LPMint:    lpAddr,
		CreatedAt: d.j.Now(),
	}
	ledger.SetKey(d.j, d.pools, key, pool)
	ledger.SetKey(d.j, d.lpMints, addr, lp)
	ledger.Append(d.j, &d.order, pool)

	d.logger.Info("Pool created",
		zap.String("pool", addr.String()),
		zap.String("base_mint", key.base.String()),
		zap.String("quote_mint", key.quote.String()))
	return addr, nil
}

// GetPool returns the pool address for (a, b) in either order.
func (d *DEX) GetPool(a, b solana.PublicKey) (solana.PublicKey, bool) {
	pool, ok := d.pools[keyFor(a, b)]
	if !ok {
		return solana.PublicKey{}, false
	}
	return pool.Address, true
}

// FindPool returns the current state of the (a, b) pool.
func (d *DEX) FindPool(a, b solana.PublicKey) (*PoolInfo, error) {
	pool, ok := d.pools[keyFor(a, b)]
	if !ok {
		return nil, ledger.Failf("pumpswap.find_pool", ledger.ErrPairNotFound, "%s/%s", a, b)
	}
	return d.poolInfo(pool), nil
}

// Pools returns every pool in creation order.
func (d *DEX) Pools() []*PoolInfo {
	out := make([]*PoolInfo, 0, len(d.order))
	for _, pool := range d.order {
		out = append(out, d.poolInfo(pool))
	}
	return out
}

// LPBalance returns holder's LP tokens in pool.
func (d *DEX) LPBalance(pool, holder solana.PublicKey) uint64 {
	lp, ok := d.lpMints[pool]
	if !ok {
		return 0
	}
	return lp.BalanceOf(holder)
}

func (d *DEX) poolInfo(pool *Pool) *PoolInfo {
	return &PoolInfo{
		Address:         pool.Address,
		BaseMint:        pool.BaseMint,
		QuoteMint:       pool.QuoteMint,
		BaseReserves:    d.book.BalanceOf(pool.BaseMint, pool.Address),
		QuoteReserves:   d.book.BalanceOf(pool.QuoteMint, pool.Address),
		LPSupply:        d.lpMints[pool.Address].TotalSupply(),
		FeesBasisPoints: d.config.LPFeeBasisPoints,
		LPMint:          pool.LPMint,
	}
}
