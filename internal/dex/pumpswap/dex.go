// =============================
// File: internal/dex/pumpswap/dex.go
// =============================
package pumpswap

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/dex"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ dex.Exchange = (*DEX)(nil)

// DEX is an in-process constant-product exchange. Reserves live in the
// token book under each pool's address; every state change is journaled.
type DEX struct {
	j      *ledger.Journal
	book   *token.Book
	logger *zap.Logger
	config *Config
	addr   solana.PublicKey

	pools   map[poolKey]*Pool
	lpMints map[solana.PublicKey]*token.Token
	order   []*Pool
}

// NewDEX создаёт новый экземпляр DEX для PumpSwap.
func NewDEX(j *ledger.Journal, book *token.Book, logger *zap.Logger, config *Config) (*DEX, error) {
	if j == nil || book == nil || logger == nil {
		return nil, fmt.Errorf("journal, book and logger must not be nil")
	}
	if config == nil {
		config = GetDefaultConfig()
	}
	addr, err := ledger.ComponentAddress(config.ProgramID, "exchange")
	if err != nil {
		return nil, err
	}
	return &DEX{
		j:       j,
		book:    book,
		logger:  logger.Named("pumpswap"),
		config:  config,
		addr:    addr,
		pools:   make(map[poolKey]*Pool),
		lpMints: make(map[solana.PublicKey]*token.Token),
	}, nil
}

// GetName returns the venue name.
func (d *DEX) GetName() string {
	return "PumpSwap"
}

// Address is the account providers approve before depositing or swapping.
func (d *DEX) Address() solana.PublicKey {
	return d.addr
}

// AddLiquidity deposits into an existing pool. Live pools take the largest
// amounts matching the current ratio; the first deposit sets the ratio and
// locks MinimumLiquidity in the pool.
func (d *DEX) AddLiquidity(ctx context.Context, params dex.AddLiquidityParams) (dex.LiquidityResult, error) {
	const op = "pumpswap.add_liquidity"
	if err := ctx.Err(); err != nil {
		return dex.LiquidityResult{}, err
	}
	if !params.Deadline.IsZero() && d.j.Now().After(params.Deadline) {
		return dex.LiquidityResult{}, ledger.Fail(op, ledger.ErrDeadlineExpired)
	}
	if params.Provider.IsZero() || params.To.IsZero() {
		return dex.LiquidityResult{}, ledger.Fail(op, ledger.ErrZeroAddress)
	}
	if params.AmountA == 0 || params.AmountB == 0 {
		return dex.LiquidityResult{}, ledger.Fail(op, ledger.ErrZeroAmount)
	}
	pool, ok := d.pools[keyFor(params.TokenA, params.TokenB)]
	if !ok {
		return dex.LiquidityResult{}, ledger.Failf(op, ledger.ErrPairNotFound, "%s/%s", params.TokenA, params.TokenB)
	}
	lp := d.lpMints[pool.Address]
	supply := lp.TotalSupply()
	reserveA := d.book.BalanceOf(params.TokenA, pool.Address)
	reserveB := d.book.BalanceOf(params.TokenB, pool.Address)

	amountA, amountB := params.AmountA, params.AmountB
	if supply > 0 {
		optimalB, err := quote(params.AmountA, reserveA, reserveB)
		if err != nil {
			return dex.LiquidityResult{}, err
		}
		if optimalB <= params.AmountB {
			amountB = optimalB
		} else {
			optimalA, err := quote(params.AmountB, reserveB, reserveA)
			if err != nil {
				return dex.LiquidityResult{}, err
			}
			amountA = optimalA
		}
	}
	if amountA < params.MinA {
		return dex.LiquidityResult{}, slippage(op, params.MinA, amountA)
	}
	if amountB < params.MinB {
		return dex.LiquidityResult{}, slippage(op, params.MinB, amountB)
	}

	receivedA, err := d.pull(params.TokenA, params.Provider, pool.Address, amountA)
	if err != nil {
		return dex.LiquidityResult{}, err
	}
	receivedB, err := d.pull(params.TokenB, params.Provider, pool.Address, amountB)
	if err != nil {
		return dex.LiquidityResult{}, err
	}

	var minted uint64
	if supply == 0 {
		minted = initialLiquidity(receivedA, receivedB)
		if minted <= MinimumLiquidity {
			return dex.LiquidityResult{}, ledger.Failf(op, ledger.ErrInsufficientLiquidity, "initial liquidity %d", minted)
		}
		minted -= MinimumLiquidity
		if err := lp.Mint(d.addr, pool.Address, MinimumLiquidity); err != nil {
			return dex.LiquidityResult{}, err
		}
	} else {
		minted, err = mintedLiquidity(receivedA, receivedB, reserveA, reserveB, supply)
		if err != nil {
			return dex.LiquidityResult{}, err
		}
	}
	if minted == 0 {
		return dex.LiquidityResult{}, ledger.Failf(op, ledger.ErrInsufficientLiquidity, "deposit mints no liquidity")
	}
	if err := lp.Mint(d.addr, params.To, minted); err != nil {
		return dex.LiquidityResult{}, err
	}
	if supply == 0 {
		ledger.Set(d.j, &pool.Creator, params.Provider)
	}

	d.logger.Info("Liquidity added",
		zap.String("pool", pool.Address.String()),
		zap.String("provider", params.Provider.String()),
		zap.Uint64("amount_a", receivedA),
		zap.Uint64("amount_b", receivedB),
		zap.Uint64("lp_minted", minted))

	return dex.LiquidityResult{
		Pool:     pool.Address,
		AmountA:  receivedA,
		AmountB:  receivedB,
		LPMinted: minted,
	}, nil
}

// Swap exchanges an exact input pulled from the trader through its
// allowance to Address(). Output is priced on what the pool actually
// received.
func (d *DEX) Swap(ctx context.Context, params SwapParams) (SwapResult, error) {
	const op = "pumpswap.swap"
	if err := ctx.Err(); err != nil {
		return SwapResult{}, err
	}
	if params.Trader.IsZero() {
		return SwapResult{}, ledger.Fail(op, ledger.ErrZeroAddress)
	}
	if params.Amount == 0 {
		return SwapResult{}, ledger.Fail(op, ledger.ErrZeroAmount)
	}
	pool, ok := d.pools[keyFor(params.InputMint, params.OutputMint)]
	if !ok || params.InputMint == params.OutputMint {
		return SwapResult{}, ledger.Failf(op, ledger.ErrPairNotFound, "%s/%s", params.InputMint, params.OutputMint)
	}
	reserveIn := d.book.BalanceOf(params.InputMint, pool.Address)
	reserveOut := d.book.BalanceOf(params.OutputMint, pool.Address)

	received, err := d.pull(params.InputMint, params.Trader, pool.Address, params.Amount)
	if err != nil {
		return SwapResult{}, err
	}
	out, err := calculateOutput(reserveIn, reserveOut, received, d.config.LPFeeBasisPoints)
	if err != nil {
		return SwapResult{}, err
	}
	if out == 0 || out < params.MinAmountOut {
		return SwapResult{}, slippage(op, params.MinAmountOut, out)
	}
	if err := d.book.Transfer(params.OutputMint, pool.Address, params.Trader, out); err != nil {
		return SwapResult{}, err
	}

	d.logger.Debug("Swap executed",
		zap.String("pool", pool.Address.String()),
		zap.String("trader", params.Trader.String()),
		zap.Uint64("amount_in", received),
		zap.Uint64("amount_out", out))

	return SwapResult{Pool: pool.Address, AmountIn: received, AmountOut: out}, nil
}

// GetTokenPrice returns the price of mint in units of the other pool token.
func (d *DEX) GetTokenPrice(mint, other solana.PublicKey) (decimal.Decimal, error) {
	info, err := d.FindPool(mint, other)
	if err != nil {
		return decimal.Zero, err
	}
	reserve, otherReserve := info.ReservesFor(mint)
	if reserve == 0 {
		return decimal.Zero, nil
	}
	return decimal.NewFromUint64(otherReserve).Div(decimal.NewFromUint64(reserve)), nil
}

// pull moves amount from owner into the pool through the exchange's
// allowance and returns what the pool actually received.
func (d *DEX) pull(mint, owner, pool solana.PublicKey, amount uint64) (uint64, error) {
	before := d.book.BalanceOf(mint, pool)
	if err := d.book.TransferFrom(mint, d.addr, owner, pool, amount); err != nil {
		return 0, err
	}
	return d.book.BalanceOf(mint, pool) - before, nil
}

func slippage(op string, minimum, received uint64) error {
	return &ledger.Error{
		Kind: ledger.KindEconomic,
		Op:   op,
		Err:  &SlippageExceededError{Op: op, Minimum: minimum, Received: received},
	}
}
