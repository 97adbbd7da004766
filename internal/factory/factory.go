// Package factory implements the pair registry: (token, asset) to pair
// lookup in both orders, global tax parameters and the router binding.
package factory

import (
	"iter"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/access"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/pair"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"go.uber.org/zap"
)

// DefaultMaxTaxBp is the tax ceiling when none is configured.
const DefaultMaxTaxBp = 9_900

// TaxParams are the global buy/sell tax settings.
type TaxParams struct {
	Vault             solana.PublicKey
	BuyBp             uint64
	SellBp            uint64
	AntiSniperStartBp uint64
	AntiSniperVault   solana.PublicKey
}

// Config configures a registry.
type Config struct {
	ProgramID solana.PublicKey
	MaxTaxBp  uint64
}

type key struct {
	a, b solana.PublicKey
}

// Registry maps (token, asset) to pairs.
type Registry struct {
	j      *ledger.Journal
	acl    *access.Table
	book   *token.Book
	logger *zap.Logger

	programID solana.PublicKey
	maxTaxBp  uint64

	router  solana.PublicKey
	tax     TaxParams
	pairs   map[key]*pair.Pair
	byAddr  map[solana.PublicKey]*pair.Pair
	byToken map[solana.PublicKey]*pair.Pair
	all     []*pair.Pair
}

// New creates a registry.
func New(j *ledger.Journal, acl *access.Table, book *token.Book, cfg Config, logger *zap.Logger) (*Registry, error) {
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = ledger.DefaultProgramID
	}
	if cfg.MaxTaxBp == 0 {
		cfg.MaxTaxBp = DefaultMaxTaxBp
	}
	if cfg.MaxTaxBp >= curve.BasisPoints {
		return nil, ledger.Failf("factory.new", ledger.ErrInvalidParameter, "tax ceiling %d bp", cfg.MaxTaxBp)
	}
	return &Registry{
		j:         j,
		acl:       acl,
		book:      book,
		logger:    logger.Named("factory"),
		programID: cfg.ProgramID,
		maxTaxBp:  cfg.MaxTaxBp,
		pairs:     make(map[key]*pair.Pair),
		byAddr:    make(map[solana.PublicKey]*pair.Pair),
		byToken:   make(map[solana.PublicKey]*pair.Pair),
	}, nil
}

// CreatePair creates the pair for tokenA (the traded token) against tokenB
// (the reserve asset). Caller must hold the creator capability.
func (r *Registry) CreatePair(caller, tokenA, tokenB solana.PublicKey, opts pair.Options) (*pair.Pair, error) {
	const op = "factory.create_pair"
	if err := r.acl.Require(op, access.Creator, caller); err != nil {
		return nil, err
	}
	if tokenA.IsZero() || tokenB.IsZero() {
		return nil, ledger.Fail(op, ledger.ErrZeroAddress)
	}
	if tokenA == tokenB {
		return nil, ledger.Fail(op, ledger.ErrIdenticalAddresses)
	}
	if r.router.IsZero() {
		return nil, ledger.Fail(op, ledger.ErrNoRouter)
	}
	if _, ok := r.pairs[key{tokenA, tokenB}]; ok {
		return nil, ledger.Failf(op, ledger.ErrPairExists, "%s/%s", tokenA, tokenB)
	}

	tok, err := r.book.Get(tokenA)
	if err != nil {
		return nil, err
	}
	asset, err := r.book.Get(tokenB)
	if err != nil {
		return nil, err
	}
	addr, err := ledger.PairAddress(r.programID, tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	p, err := pair.New(r.j, addr, tok, asset, r.router, opts, r.logger)
	if err != nil {
		return nil, err
	}

	ledger.SetKey(r.j, r.pairs, key{tokenA, tokenB}, p)
	ledger.SetKey(r.j, r.pairs, key{tokenB, tokenA}, p)
	ledger.SetKey(r.j, r.byAddr, addr, p)
	if _, ok := r.byToken[tokenA]; !ok {
		ledger.SetKey(r.j, r.byToken, tokenA, p)
	}
	ledger.Append(r.j, &r.all, p)

	r.j.Emit(&events.PairCreatedEvent{
		BaseEvent: r.j.Base(events.PairCreated, tokenA, addr),
		Asset:     tokenB,
		Model:     string(p.Model().Kind()),
		StartTime: p.StartTime(),
		Index:     len(r.all) - 1,
	})
	r.logger.Info("Pair created",
		zap.String("pair", addr.String()),
		zap.String("token", tokenA.String()),
		zap.String("asset", tokenB.String()),
		zap.String("model", string(p.Model().Kind())))
	return p, nil
}

// GetPair returns the pair address for (a, b) in either order, or the zero
// address.
func (r *Registry) GetPair(a, b solana.PublicKey) solana.PublicKey {
	if p, ok := r.pairs[key{a, b}]; ok {
		return p.Address()
	}
	return solana.PublicKey{}
}

// PairFor returns the pair for (a, b) in either order.
func (r *Registry) PairFor(a, b solana.PublicKey) (*pair.Pair, bool) {
	p, ok := r.pairs[key{a, b}]
	return p, ok
}

// Pair returns the pair at addr.
func (r *Registry) Pair(addr solana.PublicKey) (*pair.Pair, bool) {
	p, ok := r.byAddr[addr]
	return p, ok
}

// PairOf returns the first pair created for a traded token.
func (r *Registry) PairOf(tok solana.PublicKey) (*pair.Pair, error) {
	p, ok := r.byToken[tok]
	if !ok {
		return nil, ledger.Failf("factory.pair_of", ledger.ErrPairNotFound, "%s", tok)
	}
	return p, nil
}

// AllPairs iterates pairs in creation order.
func (r *Registry) AllPairs() iter.Seq2[int, *pair.Pair] {
	return func(yield func(int, *pair.Pair) bool) {
		for i, p := range r.all {
			if !yield(i, p) {
				return
			}
		}
	}
}

// AllPairsLength returns the number of pairs created.
func (r *Registry) AllPairsLength() int {
	return len(r.all)
}

// SetTaxParameters replaces the global tax settings. Admin-only; each rate
// is checked against the ceiling.
func (r *Registry) SetTaxParameters(caller solana.PublicKey, params TaxParams) error {
	const op = "factory.set_tax_parameters"
	if err := r.acl.Require(op, access.Admin, caller); err != nil {
		return err
	}
	for _, bp := range []uint64{params.BuyBp, params.SellBp, params.AntiSniperStartBp} {
		if bp > r.maxTaxBp {
			return ledger.Failf(op, ledger.ErrTaxTooHigh, "%d bp > %d", bp, r.maxTaxBp)
		}
	}
	if (params.BuyBp > 0 || params.SellBp > 0) && params.Vault.IsZero() {
		return ledger.Failf(op, ledger.ErrZeroAddress, "tax vault")
	}
	if params.AntiSniperStartBp > params.BuyBp && params.AntiSniperVault.IsZero() {
		return ledger.Failf(op, ledger.ErrZeroAddress, "anti-sniper vault")
	}

	ledger.Set(r.j, &r.tax, params)
	r.j.Emit(&events.TaxParametersUpdatedEvent{
		BaseEvent:         r.j.Base(events.TaxParametersUpdated, solana.PublicKey{}, solana.PublicKey{}),
		Vault:             params.Vault,
		AntiSniperVault:   params.AntiSniperVault,
		BuyBp:             params.BuyBp,
		SellBp:            params.SellBp,
		AntiSniperStartBp: params.AntiSniperStartBp,
	})
	r.logger.Info("Tax parameters updated",
		zap.Uint64("buy_bp", params.BuyBp),
		zap.Uint64("sell_bp", params.SellBp),
		zap.Uint64("anti_sniper_start_bp", params.AntiSniperStartBp))
	return nil
}

// TaxParameters returns the current tax settings.
func (r *Registry) TaxParameters() TaxParams {
	return r.tax
}

// MaxTaxBp returns the configured tax ceiling.
func (r *Registry) MaxTaxBp() uint64 {
	return r.maxTaxBp
}

// SetRouter binds the router that new pairs will trust. Admin-only.
func (r *Registry) SetRouter(caller, router solana.PublicKey) error {
	const op = "factory.set_router"
	if err := r.acl.Require(op, access.Admin, caller); err != nil {
		return err
	}
	if router.IsZero() {
		return ledger.Fail(op, ledger.ErrZeroAddress)
	}
	ledger.Set(r.j, &r.router, router)
	return nil
}

// Router returns the bound router address.
func (r *Registry) Router() solana.PublicKey {
	return r.router
}

// ProgramID returns the program id pair addresses are derived under.
func (r *Registry) ProgramID() solana.PublicKey {
	return r.programID
}
