// Package pair holds the reserves of one (token, asset) combination.
//
// A pair performs no arithmetic and never moves funds on its own: every
// mutating method is gated on the router address.
package pair

import (
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"go.uber.org/zap"
)

// Options are fixed at pair creation.
type Options struct {
	Model curve.Kind
	// StartTime anchors the anti-sniper window. Zero means creation time.
	StartTime time.Time
	// StartDelay is the minimum gap between creation and StartTime.
	StartDelay time.Duration
	// VirtualAssetReserve adds depth to the asset side of a virtual-model
	// pair at seeding without any real asset behind it.
	VirtualAssetReserve uint64
}

// Pair is the reserve-holding ledger entry for one (token, asset).
type Pair struct {
	j      *ledger.Journal
	logger *zap.Logger

	addr   solana.PublicKey
	token  *token.Token
	asset  *token.Token
	router solana.PublicKey
	model  curve.Model

	createdAt    time.Time
	startTime    time.Time
	startDelay   time.Duration
	virtualAsset uint64

	seeded       bool
	seededAt     time.Time
	lastActivity time.Time
	k            *big.Int
}

// New creates a pair. Only router may move its funds.
func New(j *ledger.Journal, addr solana.PublicKey, tok, asset *token.Token, router solana.PublicKey, opts Options, logger *zap.Logger) (*Pair, error) {
	const op = "pair.new"
	if addr.IsZero() || router.IsZero() {
		return nil, ledger.Fail(op, ledger.ErrZeroAddress)
	}
	if tok.Address() == asset.Address() {
		return nil, ledger.Fail(op, ledger.ErrIdenticalAddresses)
	}
	model, err := curve.NewModel(opts.Model)
	if err != nil {
		return nil, ledger.Failf(op, ledger.ErrInvalidParameter, "%v", err)
	}
	if opts.VirtualAssetReserve > 0 && model.Kind() != curve.Virtual {
		return nil, ledger.Failf(op, ledger.ErrInvalidParameter, "virtual reserve on %s pair", model.Kind())
	}

	now := j.Now()
	start := opts.StartTime
	if start.IsZero() {
		start = now
	}
	if start.Before(now.Add(opts.StartDelay)) {
		return nil, ledger.Failf(op, ledger.ErrInvalidParameter, "start %s is inside the %s delay", start.Format(time.RFC3339), opts.StartDelay)
	}

	return &Pair{
		j: j,
		logger: logger.Named("pair").With(
			zap.String("pair", addr.String()),
			zap.String("token", tok.Address().String())),
		addr:         addr,
		token:        tok,
		asset:        asset,
		router:       router,
		model:        model,
		createdAt:    now,
		startTime:    start,
		startDelay:   opts.StartDelay,
		virtualAsset: opts.VirtualAssetReserve,
	}, nil
}

func (p *Pair) onlyRouter(op string, caller solana.PublicKey) error {
	if caller != p.router {
		return ledger.Failf(op, ledger.ErrUnauthorized, "%s is not the router", caller)
	}
	return nil
}

// Seed marks the pair live after the router deposited both legs. Virtual
// pairs capture k here and never refresh it.
func (p *Pair) Seed(caller solana.PublicKey) error {
	const op = "pair.seed"
	if err := p.onlyRouter(op, caller); err != nil {
		return err
	}
	if p.seeded {
		return ledger.Fail(op, ledger.ErrAlreadySeeded)
	}

	tokenBal := p.Balance()
	assetBal := p.AssetBalance()
	if tokenBal == 0 {
		return ledger.Failf(op, ledger.ErrInsufficientLiquidity, "no token reserve")
	}

	var k *big.Int
	if p.model.Kind() == curve.Virtual {
		depth := new(big.Int).Add(new(big.Int).SetUint64(assetBal), new(big.Int).SetUint64(p.virtualAsset))
		k = depth.Mul(depth, new(big.Int).SetUint64(tokenBal))
		if k.Sign() == 0 {
			return ledger.Failf(op, ledger.ErrInsufficientLiquidity, "zero invariant")
		}
	} else if assetBal == 0 {
		return ledger.Failf(op, ledger.ErrInsufficientLiquidity, "no asset reserve")
	}

	now := p.j.Now()
	ledger.Set(p.j, &p.seeded, true)
	ledger.Set(p.j, &p.seededAt, now)
	ledger.Set(p.j, &p.lastActivity, now)
	ledger.Set(p.j, &p.k, k)

	p.logger.Info("Pair seeded",
		zap.Uint64("token_reserve", tokenBal),
		zap.Uint64("asset_reserve", assetBal),
		zap.String("model", string(p.model.Kind())))
	return nil
}

// RecordTrade notes a swap whose funds the router already moved.
func (p *Pair) RecordTrade(caller solana.PublicKey, tokenIn, tokenOut, assetIn, assetOut uint64) error {
	const op = "pair.record_trade"
	if err := p.onlyRouter(op, caller); err != nil {
		return err
	}
	if !p.seeded {
		return ledger.Fail(op, ledger.ErrNotSeeded)
	}
	ledger.Set(p.j, &p.lastActivity, p.j.Now())
	p.j.Emit(&events.TradeExecutedEvent{
		BaseEvent: p.j.Base(events.TradeExecuted, p.token.Address(), p.addr),
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AssetIn:   assetIn,
		AssetOut:  assetOut,
	})
	return nil
}

// TransferReserve moves amount of one of the pair's tokens to recipient.
func (p *Pair) TransferReserve(caller, tok, recipient solana.PublicKey, amount uint64) error {
	const op = "pair.transfer_reserve"
	if err := p.onlyRouter(op, caller); err != nil {
		return err
	}
	if recipient.IsZero() {
		return ledger.Fail(op, ledger.ErrZeroAddress)
	}
	switch tok {
	case p.token.Address():
		return p.token.Transfer(p.addr, recipient, amount)
	case p.asset.Address():
		return p.asset.Transfer(p.addr, recipient, amount)
	}
	return ledger.Failf(op, ledger.ErrUnknownToken, "%s is not held by pair", tok)
}

// BurnReserve destroys amount of the pair's token balance.
func (p *Pair) BurnReserve(caller solana.PublicKey, amount uint64) error {
	const op = "pair.burn_reserve"
	if err := p.onlyRouter(op, caller); err != nil {
		return err
	}
	return p.token.Burn(p.addr, amount)
}

// ResetTime re-anchors the anti-sniper window.
func (p *Pair) ResetTime(caller solana.PublicKey, start time.Time) error {
	const op = "pair.reset_time"
	if err := p.onlyRouter(op, caller); err != nil {
		return err
	}
	if start.Before(p.j.Now()) {
		return ledger.Failf(op, ledger.ErrInvalidParameter, "start %s is in the past", start.Format(time.RFC3339))
	}
	ledger.Set(p.j, &p.startTime, start)
	p.logger.Debug("Start time reset", zap.Time("start_time", start))
	return nil
}

func (p *Pair) Address() solana.PublicKey   { return p.addr }
func (p *Pair) Token() solana.PublicKey     { return p.token.Address() }
func (p *Pair) Asset() solana.PublicKey     { return p.asset.Address() }
func (p *Pair) Router() solana.PublicKey    { return p.router }
func (p *Pair) Model() curve.Model          { return p.model }
func (p *Pair) CreatedAt() time.Time        { return p.createdAt }
func (p *Pair) StartTime() time.Time        { return p.startTime }
func (p *Pair) StartDelay() time.Duration   { return p.startDelay }
func (p *Pair) Seeded() bool                { return p.seeded }
func (p *Pair) SeededAt() time.Time         { return p.seededAt }
func (p *Pair) LastActivity() time.Time     { return p.lastActivity }
func (p *Pair) VirtualAssetReserve() uint64 { return p.virtualAsset }

// Balance is the live token balance.
func (p *Pair) Balance() uint64 {
	return p.token.BalanceOf(p.addr)
}

// AssetBalance is the live asset balance.
func (p *Pair) AssetBalance() uint64 {
	return p.asset.BalanceOf(p.addr)
}

// K returns a copy of the frozen invariant, nil for balance-model pairs.
func (p *Pair) K() *big.Int {
	if p.k == nil {
		return nil
	}
	return new(big.Int).Set(p.k)
}

// State snapshots what the pricing model needs.
func (p *Pair) State() curve.State {
	return curve.State{
		TokenBalance: p.Balance(),
		AssetBalance: p.AssetBalance(),
		K:            p.k,
	}
}

// Reserves returns the (token, asset) reserves as the pricing model sees
// them.
func (p *Pair) Reserves() (uint64, uint64) {
	return p.model.Reserves(p.State())
}

// Drift reports the real asset holdings next to the synthetic reserve the
// model prices against. They coincide for balance-model pairs.
func (p *Pair) Drift() (held, synthetic uint64) {
	st := p.State()
	return st.AssetBalance, p.model.SyntheticAsset(st)
}
