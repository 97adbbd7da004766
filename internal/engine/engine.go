// Package engine assembles the launchpad from configuration and serializes
// every mutating call inside one ledger transaction.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/access"
	"github.com/rovshanmuradov/launchpad/internal/agentfactory"
	"github.com/rovshanmuradov/launchpad/internal/bonding"
	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/dex/pumpswap"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/factory"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/router"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"github.com/rovshanmuradov/launchpad/internal/utils/metrics"
	"go.uber.org/zap"
)

// Engine owns one ledger and every component on it.
type Engine struct {
	mu     sync.Mutex
	logger *zap.Logger

	j        *ledger.Journal
	bus      *events.Bus
	acl      *access.Table
	book     *token.Book
	registry *factory.Registry
	router   *router.Router
	exchange *pumpswap.DEX
	agents   *agentfactory.Registry
	bonding  *bonding.Orchestrator

	admin solana.PublicKey
	asset *token.Token

	metrics *metrics.Collector
	msub    *events.Subscription
}

// New builds an engine from cfg. Committed events are delivered to store
// before each call returns; store may be nil. Event sequence numbers
// continue after the last one store holds.
func New(ctx context.Context, cfg *config.Config, clk clock.Clock, store storage.Store, logger *zap.Logger) (*Engine, error) {
	programID := ledger.DefaultProgramID
	if cfg.ProgramID != "" {
		id, err := solana.PublicKeyFromBase58(cfg.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("invalid program_id: %w", err)
		}
		programID = id
	}
	model, err := curve.ParseKind(cfg.Launch.PricingModel)
	if err != nil {
		return nil, err
	}

	e := &Engine{logger: logger.Named("engine"), bus: events.NewBus(logger)}
	e.j = ledger.NewJournal(clk, e.bus, logger)
	if store != nil {
		last, err := store.LastSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("read last event sequence: %w", err)
		}
		e.bus.Resume(last)
		if err := e.j.Resume(last); err != nil {
			return nil, err
		}
		storage.NewSink(store, logger).Attach(e.bus)
		if last > 0 {
			e.logger.Info("Resuming event sequence", zap.Uint64("last_seq", last))
		}
	}

	var routerAddr, bondingAddr, assetAddr solana.PublicKey
	for name, dst := range map[string]*solana.PublicKey{
		"admin":   &e.admin,
		"router":  &routerAddr,
		"bonding": &bondingAddr,
		"asset":   &assetAddr,
	} {
		if *dst, err = ledger.ComponentAddress(programID, name); err != nil {
			return nil, err
		}
	}

	if e.acl, err = access.NewTable(e.j, e.admin, logger); err != nil {
		return nil, err
	}
	e.book = token.NewBook(e.j, logger)
	if e.asset, err = token.New(e.j, assetAddr, token.Config{
		Name:     cfg.Asset.Name,
		Symbol:   cfg.Asset.Symbol,
		Decimals: cfg.Asset.Decimals,
		Owner:    e.admin,
	}, logger); err != nil {
		return nil, err
	}
	if err := e.book.Register(e.asset); err != nil {
		return nil, err
	}

	if e.registry, err = factory.New(e.j, e.acl, e.book, factory.Config{
		ProgramID: programID,
		MaxTaxBp:  cfg.Tax.MaxBp,
	}, logger); err != nil {
		return nil, err
	}
	e.router = router.New(e.j, e.acl, e.registry, e.book, routerAddr, logger)
	if err := e.registry.SetRouter(e.admin, routerAddr); err != nil {
		return nil, err
	}

	exchangeCfg := pumpswap.GetDefaultConfig()
	exchangeCfg.LPFeeBasisPoints = cfg.Exchange.LPFeeBp
	if e.exchange, err = pumpswap.NewDEX(e.j, e.book, logger, exchangeCfg); err != nil {
		return nil, err
	}
	e.agents = agentfactory.NewRegistry(e.j, logger)

	var taxReceiver solana.PublicKey
	if cfg.Launch.TokenTaxReceiver != "" {
		if taxReceiver, err = solana.PublicKeyFromBase58(cfg.Launch.TokenTaxReceiver); err != nil {
			return nil, fmt.Errorf("invalid launch.token_tax_receiver: %w", err)
		}
	}
	if e.bonding, err = bonding.New(bonding.Deps{
		Journal:  e.j,
		Access:   e.acl,
		Book:     e.book,
		Registry: e.registry,
		Router:   e.router,
		Exchange: e.exchange,
		Agents:   e.agents,
	}, bondingAddr, bonding.Config{
		ProgramID:           programID,
		Fee:                 cfg.Launch.Fee,
		InitialSupply:       cfg.Launch.InitialSupply,
		Decimals:            cfg.Launch.Decimals,
		MaxTxBp:             cfg.Launch.MaxTxBp,
		GradThreshold:       cfg.Launch.GradThreshold,
		GradSlippagePercent: cfg.Launch.GradSlippagePercent,
		Deadline:            cfg.Launch.Deadline,
		StartDelay:          cfg.Launch.StartDelay,
		Model:               model,
		VirtualAssetReserve: cfg.Launch.VirtualAssetReserve,
		TokenTaxBp:          cfg.Launch.TokenTaxBp,
		TokenTaxReceiver:    taxReceiver,
	}, logger); err != nil {
		return nil, err
	}
	for _, c := range []access.Capability{access.Executor, access.Creator} {
		if err := e.acl.Grant(e.admin, c, bondingAddr); err != nil {
			return nil, err
		}
	}

	if cfg.Tax.BuyBp > 0 || cfg.Tax.SellBp > 0 || cfg.Tax.AntiSniperStartBp > 0 {
		params, err := taxParams(cfg.Tax)
		if err != nil {
			return nil, err
		}
		if err := e.SetTaxParameters(params); err != nil {
			return nil, err
		}
	}

	e.logger.Info("Engine ready",
		zap.String("program_id", programID.String()),
		zap.String("asset", cfg.Asset.Symbol),
		zap.String("model", string(model)),
		zap.Uint64("fee", cfg.Launch.Fee),
		zap.Uint64("grad_threshold", cfg.Launch.GradThreshold))
	return e, nil
}

func taxParams(cfg config.TaxConfig) (factory.TaxParams, error) {
	params := factory.TaxParams{
		BuyBp:             cfg.BuyBp,
		SellBp:            cfg.SellBp,
		AntiSniperStartBp: cfg.AntiSniperStartBp,
	}
	var err error
	if cfg.Vault != "" {
		if params.Vault, err = solana.PublicKeyFromBase58(cfg.Vault); err != nil {
			return params, fmt.Errorf("invalid tax.vault: %w", err)
		}
	}
	if cfg.AntiSniperVault != "" {
		if params.AntiSniperVault, err = solana.PublicKeyFromBase58(cfg.AntiSniperVault); err != nil {
			return params, fmt.Errorf("invalid tax.anti_sniper_vault: %w", err)
		}
	}
	return params, nil
}

// atomic runs fn as one ledger transaction. A failed call leaves no trace.
func (e *Engine) atomic(op string, fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	err := e.j.Atomic(fn)
	if e.metrics != nil {
		e.metrics.ObserveCall(op, time.Since(start), err)
	}
	if err != nil {
		e.logger.Warn("Call rejected", zap.String("op", op), zap.Error(err))
		return err
	}
	return nil
}

// Instrument records call outcomes and committed events into c.
func (e *Engine) Instrument(c *metrics.Collector) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.msub != nil {
		e.msub.Cancel()
	}
	e.metrics = c
	e.msub = c.Attach(e.bus)
}

// Close stops event delivery.
func (e *Engine) Close(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bus.Close()
	return nil
}

func (e *Engine) Admin() solana.PublicKey        { return e.admin }
func (e *Engine) Asset() solana.PublicKey        { return e.asset.Address() }
func (e *Engine) Bus() *events.Bus               { return e.bus }
func (e *Engine) Exchange() *pumpswap.DEX        { return e.exchange }
func (e *Engine) Agents() *agentfactory.Registry { return e.agents }
func (e *Engine) Now() time.Time                 { return e.j.Now() }

// Faucet mints launch asset to an account.
func (e *Engine) Faucet(to solana.PublicKey, amount uint64) error {
	return e.atomic("faucet", func() error {
		return e.asset.Mint(e.admin, to, amount)
	})
}

// SetTaxParameters replaces the global buy/sell tax settings.
func (e *Engine) SetTaxParameters(params factory.TaxParams) error {
	return e.atomic("set_tax", func() error {
		return e.registry.SetTaxParameters(e.admin, params)
	})
}

// Launch creates a token, seeds its curve and spends the purchase beyond the
// fee on the creator's own buy.
func (e *Engine) Launch(ctx context.Context, creator solana.PublicKey, name, symbol string, purchase uint64) (bonding.Launch, error) {
	var rec bonding.Launch
	err := e.atomic("launch", func() error {
		tok, _, _, err := e.bonding.Launch(ctx, creator, name, symbol, purchase, e.asset.Address())
		if err != nil {
			return err
		}
		rec, _ = e.bonding.Get(tok)
		return nil
	})
	return rec, err
}

// ReserveLaunch is the first phase of a two-phase launch. A zero start
// uses the configured delay.
func (e *Engine) ReserveLaunch(ctx context.Context, creator solana.PublicKey, name, symbol string, purchase uint64, start time.Time) (bonding.Launch, error) {
	var rec bonding.Launch
	err := e.atomic("reserve_launch", func() error {
		tok, _, _, err := e.bonding.ReserveLaunch(ctx, creator, name, symbol, purchase, e.asset.Address(), start)
		if err != nil {
			return err
		}
		rec, _ = e.bonding.Get(tok)
		return nil
	})
	return rec, err
}

func (e *Engine) ExecuteLaunch(ctx context.Context, caller, tok solana.PublicKey) (uint64, error) {
	var out uint64
	err := e.atomic("execute_launch", func() error {
		var err error
		out, err = e.bonding.ExecuteLaunch(ctx, caller, tok)
		return err
	})
	return out, err
}

func (e *Engine) CancelLaunch(ctx context.Context, caller, tok solana.PublicKey) (uint64, error) {
	var refund uint64
	err := e.atomic("cancel_launch", func() error {
		var err error
		refund, err = e.bonding.CancelLaunch(ctx, caller, tok)
		return err
	})
	return refund, err
}

// QuoteBuy quotes a buy of amount at the current state, taxes included.
// Callers derive the minOut they pass to Buy from it.
func (e *Engine) QuoteBuy(tok solana.PublicKey, amount uint64) (router.BuyResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.router.QuoteBuy(tok, amount, false)
}

// QuoteSell quotes a sell of amount net of the sell tax.
func (e *Engine) QuoteSell(tok solana.PublicKey, amount uint64) (router.SellResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.router.QuoteSell(tok, amount)
}

// Buy spends amount of the asset on tok and fails with ErrSlippage when
// fewer than minOut tokens would arrive.
func (e *Engine) Buy(ctx context.Context, trader, tok solana.PublicKey, amount, minOut uint64) (router.BuyResult, error) {
	var res router.BuyResult
	err := e.atomic("buy", func() error {
		var err error
		res, err = e.bonding.Buy(ctx, trader, tok, amount, minOut)
		return err
	})
	return res, err
}

// Sell sells amount of tok and fails with ErrSlippage when less than minOut
// of the asset would arrive after tax.
func (e *Engine) Sell(ctx context.Context, trader, tok solana.PublicKey, amount, minOut uint64) (router.SellResult, error) {
	var res router.SellResult
	err := e.atomic("sell", func() error {
		var err error
		res, err = e.bonding.Sell(ctx, trader, tok, amount, minOut)
		return err
	})
	return res, err
}

// ForceGraduate graduates tok as the admin.
func (e *Engine) ForceGraduate(ctx context.Context, tok solana.PublicKey) error {
	return e.atomic("force_graduate", func() error {
		return e.bonding.ForceGraduate(ctx, e.admin, tok)
	})
}

func (e *Engine) GetMaxBuyInput(tok solana.PublicKey) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bonding.GetMaxBuyInput(tok)
}

// Get returns the launch record of tok.
func (e *Engine) Get(tok solana.PublicKey) (bonding.Launch, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bonding.Get(tok)
}

// Launches returns every launch in creation order.
func (e *Engine) Launches() []bonding.Launch {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]bonding.Launch, 0, e.bonding.Count())
	for _, rec := range e.bonding.All() {
		out = append(out, rec)
	}
	return out
}

// BalanceOf returns holder's balance of tok; the zero address selects the
// launch asset.
func (e *Engine) BalanceOf(tok, holder solana.PublicKey) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if tok.IsZero() {
		tok = e.asset.Address()
	}
	return e.book.BalanceOf(tok, holder)
}
