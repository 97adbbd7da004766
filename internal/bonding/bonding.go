// Package bonding implements the launch orchestrator: token creation,
// curve trading with market-data snapshots, and graduation of a token's
// liquidity to the external exchange.
//
// Simple launches go Proposed → Trading → Graduated. Two-phase launches go
// Reserved → Trading → Graduated, or Reserved → Cancelled.
package bonding

import (
	"iter"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/access"
	"github.com/rovshanmuradov/launchpad/internal/agentfactory"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/dex"
	"github.com/rovshanmuradov/launchpad/internal/factory"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/router"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// State is a launch's lifecycle position.
type State string

const (
	StateProposed  State = "proposed"
	StateReserved  State = "reserved"
	StateTrading   State = "trading"
	StateGraduated State = "graduated"
	StateCancelled State = "cancelled"
)

// Config holds launch economics.
type Config struct {
	ProgramID solana.PublicKey

	// Fee is taken from the purchase and seeds the pair's asset side.
	Fee           uint64
	InitialSupply uint64
	Decimals      uint8
	MaxTxBp       uint64

	// GradThreshold is the pair asset balance that triggers graduation; 0
	// leaves graduation to ForceGraduate.
	GradThreshold       uint64
	GradSlippagePercent uint64
	Deadline            time.Duration

	StartDelay          time.Duration
	Model               curve.Kind
	VirtualAssetReserve uint64

	TokenTaxBp       uint64
	TokenTaxReceiver solana.PublicKey
}

// Validate checks the configuration.
func (c Config) Validate() error {
	const op = "bonding.config"
	switch {
	case c.Fee == 0:
		return ledger.Failf(op, ledger.ErrInvalidParameter, "launch fee must be positive")
	case c.InitialSupply == 0:
		return ledger.Failf(op, ledger.ErrInvalidParameter, "initial supply must be positive")
	case c.MaxTxBp > curve.BasisPoints:
		return ledger.Failf(op, ledger.ErrInvalidParameter, "max tx %d bp", c.MaxTxBp)
	case c.GradSlippagePercent > 100:
		return ledger.Failf(op, ledger.ErrInvalidParameter, "graduation slippage %d%%", c.GradSlippagePercent)
	case c.TokenTaxBp > token.MaxTaxBp:
		return ledger.Failf(op, ledger.ErrTaxTooHigh, "token tax %d bp", c.TokenTaxBp)
	case c.TokenTaxBp > 0 && c.TokenTaxReceiver.IsZero():
		return ledger.Failf(op, ledger.ErrZeroAddress, "token tax receiver")
	}
	if _, err := curve.ParseKind(string(c.Model)); err != nil {
		return ledger.Failf(op, ledger.ErrInvalidParameter, "%v", err)
	}
	return nil
}

// Pending is the second-phase state of a reserved launch.
type Pending struct {
	Escrow        uint64
	ApplicationID uint64
	StartTime     time.Time
	Pool          solana.PublicKey
	Executed      bool
}

// Launch is one token's record.
type Launch struct {
	Index   int
	Creator solana.PublicKey
	Token   solana.PublicKey
	Asset   solana.PublicKey
	// Pair is the canonical venue: the curve pair, then the external pool
	// after graduation.
	Pair        solana.PublicKey
	BondingPair solana.PublicKey
	Name        string
	Symbol      string
	Supply      uint64

	State          State
	TradingEnabled bool
	Graduated      bool
	TwoPhase       bool
	Pending        Pending

	// InitialPrice is the price at seeding, before any purchase.
	InitialPrice decimal.Decimal
	Market       MarketData

	CreatedAt   time.Time
	GraduatedAt time.Time
}

// Orchestrator drives launches through the registry, router and external
// venues. It holds the executor and creator capabilities.
type Orchestrator struct {
	j        *ledger.Journal
	acl      *access.Table
	book     *token.Book
	registry *factory.Registry
	router   *router.Router
	exchange dex.Exchange
	agents   agentfactory.Factory
	logger   *zap.Logger

	cfg   Config
	addr  solana.PublicKey
	guard ledger.Guard

	nonce     uint64
	launches  map[solana.PublicKey]*Launch
	all       []*Launch
	byCreator map[solana.PublicKey][]solana.PublicKey
}

// Deps are the collaborators of an orchestrator. Agents may be nil when
// two-phase launches are not used.
type Deps struct {
	Journal  *ledger.Journal
	Access   *access.Table
	Book     *token.Book
	Registry *factory.Registry
	Router   *router.Router
	Exchange dex.Exchange
	Agents   agentfactory.Factory
}

// New creates an orchestrator at addr.
func New(deps Deps, addr solana.PublicKey, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if addr.IsZero() {
		return nil, ledger.Fail("bonding.new", ledger.ErrZeroAddress)
	}
	if deps.Exchange == nil {
		return nil, ledger.Failf("bonding.new", ledger.ErrInvalidParameter, "no exchange")
	}
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = ledger.DefaultProgramID
	}
	return &Orchestrator{
		j:         deps.Journal,
		acl:       deps.Access,
		book:      deps.Book,
		registry:  deps.Registry,
		router:    deps.Router,
		exchange:  deps.Exchange,
		agents:    deps.Agents,
		logger:    logger.Named("bonding"),
		cfg:       cfg,
		addr:      addr,
		launches:  make(map[solana.PublicKey]*Launch),
		byCreator: make(map[solana.PublicKey][]solana.PublicKey),
	}, nil
}

// Address is the orchestrator's account.
func (o *Orchestrator) Address() solana.PublicKey {
	return o.addr
}

// Config returns the launch configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Get returns a copy of the token's launch record.
func (o *Orchestrator) Get(tok solana.PublicKey) (Launch, bool) {
	rec, ok := o.launches[tok]
	if !ok {
		return Launch{}, false
	}
	return *rec, true
}

// TokensOf lists the tokens creator launched, oldest first.
func (o *Orchestrator) TokensOf(creator solana.PublicKey) []solana.PublicKey {
	return append([]solana.PublicKey(nil), o.byCreator[creator]...)
}

// All iterates launches in creation order.
func (o *Orchestrator) All() iter.Seq2[int, Launch] {
	return func(yield func(int, Launch) bool) {
		for i, rec := range o.all {
			if !yield(i, *rec) {
				return
			}
		}
	}
}

// Count returns the number of launches.
func (o *Orchestrator) Count() int {
	return len(o.all)
}

func (o *Orchestrator) lookup(op string, tok solana.PublicKey) (*Launch, error) {
	rec, ok := o.launches[tok]
	if !ok {
		return nil, ledger.Failf(op, ledger.ErrUnknownToken, "no launch for %s", tok)
	}
	return rec, nil
}

// touch snapshots rec so the enclosing transaction can restore it.
func (o *Orchestrator) touch(rec *Launch) {
	old := *rec
	o.j.Record(func() { *rec = old })
}
