package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/engine"
	"github.com/rovshanmuradov/launchpad/internal/factory"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"go.uber.org/zap"
)

// StepResult records the outcome of one step.
type StepResult struct {
	Index  int
	Op     OperationType
	Time   time.Time
	Amount uint64 // tokens or asset out, refund, or max input depending on Op
	Error  string
}

// Report summarizes a run.
type Report struct {
	Name     string
	Started  time.Time
	Finished time.Time
	Steps    []StepResult
	// Tokens maps scenario labels to token addresses.
	Tokens map[string]solana.PublicKey
	// Balances holds final asset balances per account.
	Balances map[string]uint64
}

// Runner replays scenarios on an engine whose clock it controls.
type Runner struct {
	engine *engine.Engine
	clock  *clock.Mock
	logger *zap.Logger
}

// NewRunner creates a runner. mock must be the clock eng was built with.
func NewRunner(eng *engine.Engine, mock *clock.Mock, logger *zap.Logger) *Runner {
	return &Runner{engine: eng, clock: mock, logger: logger.Named("runner")}
}

type runState struct {
	accounts map[string]solana.PublicKey
	tokens   map[string]solana.PublicKey
}

// Run executes every step in order. A step failing with an error its
// expect_error does not match stops the run; the partial report is returned.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	if !sc.Start.IsZero() {
		r.clock.Set(sc.Start)
	}
	logger := r.logger.With(zap.String("scenario", sc.Name))

	st := &runState{
		accounts: make(map[string]solana.PublicKey, len(sc.Accounts)),
		tokens:   make(map[string]solana.PublicKey),
	}
	report := &Report{Name: sc.Name, Started: r.engine.Now(), Tokens: st.tokens}

	for _, acc := range sc.Accounts {
		st.accounts[acc.Name] = acc.Address
		if acc.Balance == 0 {
			continue
		}
		if err := r.engine.Faucet(acc.Address, acc.Balance); err != nil {
			return report, fmt.Errorf("fund %s: %w", acc.Name, err)
		}
	}

	for i, step := range sc.Steps {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		res := StepResult{Index: i + 1, Op: step.Op, Time: r.engine.Now()}
		amount, err := r.step(ctx, st, step)
		res.Amount = amount
		if err != nil {
			res.Error = err.Error()
		}
		report.Steps = append(report.Steps, res)

		switch {
		case step.ExpectError != "" && err == nil:
			return report, fmt.Errorf("step %d (%s): expected error %q, got none", i+1, step.Op, step.ExpectError)
		case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
			return report, fmt.Errorf("step %d (%s): expected error %q, got %w", i+1, step.Op, step.ExpectError, err)
		case step.ExpectError == "" && err != nil:
			return report, fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}

		logger.Debug("Step done",
			zap.Int("step", i+1),
			zap.String("op", string(step.Op)),
			zap.Uint64("amount", amount),
			zap.String("error", res.Error))
	}

	report.Finished = r.engine.Now()
	report.Balances = make(map[string]uint64, len(st.accounts))
	for name, addr := range st.accounts {
		report.Balances[name] = r.engine.BalanceOf(solana.PublicKey{}, addr)
	}
	logger.Info("Scenario completed",
		zap.String("name", sc.Name),
		zap.Int("steps", len(report.Steps)),
		zap.Int("tokens", len(st.tokens)))
	return report, nil
}

func (r *Runner) step(ctx context.Context, st *runState, step Step) (uint64, error) {
	account := st.accounts[step.Account]
	tok := st.tokens[step.Token]

	switch step.Op {
	case OperationLaunch:
		rec, err := r.engine.Launch(ctx, account, step.Name, step.Symbol, step.Amount)
		if err != nil {
			return 0, err
		}
		st.tokens[step.As] = rec.Token
		return r.engine.BalanceOf(rec.Token, account), nil

	case OperationReserve:
		var start time.Time
		if step.StartIn > 0 {
			start = r.engine.Now().Add(step.StartIn)
		}
		rec, err := r.engine.ReserveLaunch(ctx, account, step.Name, step.Symbol, step.Amount, start)
		if err != nil {
			return 0, err
		}
		st.tokens[step.As] = rec.Token
		return rec.Pending.Escrow, nil

	case OperationExecute:
		return r.engine.ExecuteLaunch(ctx, account, tok)

	case OperationCancel:
		return r.engine.CancelLaunch(ctx, account, tok)

	case OperationBuy:
		minOut, err := r.minOut(step, func() (uint64, error) {
			quote, err := r.engine.QuoteBuy(tok, step.Amount)
			return quote.AmountOut, err
		})
		if err != nil {
			return 0, err
		}
		res, err := r.engine.Buy(ctx, account, tok, step.Amount, minOut)
		return res.AmountOut, err

	case OperationSell:
		amount := step.Amount
		if step.PercentToSell > 0 {
			amount = r.engine.BalanceOf(tok, account) * step.PercentToSell / 100
		}
		minOut, err := r.minOut(step, func() (uint64, error) {
			quote, err := r.engine.QuoteSell(tok, amount)
			return quote.AmountOut, err
		})
		if err != nil {
			return 0, err
		}
		res, err := r.engine.Sell(ctx, account, tok, amount, minOut)
		return res.AmountOut, err

	case OperationAdvance:
		r.clock.Add(step.Duration)
		return 0, nil

	case OperationSetTax:
		return 0, r.engine.SetTaxParameters(factory.TaxParams{
			Vault:             st.accounts[step.Tax.Vault],
			BuyBp:             step.Tax.BuyBp,
			SellBp:            step.Tax.SellBp,
			AntiSniperStartBp: step.Tax.AntiSniperStartBp,
			AntiSniperVault:   st.accounts[step.Tax.AntiSniperVault],
		})

	case OperationMaxBuy:
		return r.engine.GetMaxBuyInput(tok)

	case OperationGraduate:
		return 0, r.engine.ForceGraduate(ctx, tok)
	}
	return 0, fmt.Errorf("unsupported operation: %q", step.Op)
}

// minOut returns the step's pinned minimum, or the quoted output less the
// step's slippage tolerance.
func (r *Runner) minOut(step Step, quote func() (uint64, error)) (uint64, error) {
	if step.MinOut != nil {
		return *step.MinOut, nil
	}
	out, err := quote()
	if err != nil {
		return 0, err
	}
	return types.MinAmountOut(out, step.Slippage()), nil
}
