package bonding

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/access"
	"github.com/rovshanmuradov/launchpad/internal/agentfactory"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/pair"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"go.uber.org/zap"
)

// Launch creates a token and its curve pair and opens trading. The fee
// seeds the pair against the full supply; whatever the purchase holds beyond
// the fee is spent on the creator's own buy, which skips the anti-sniper
// surcharge.
func (o *Orchestrator) Launch(ctx context.Context, caller solana.PublicKey, name, symbol string, purchase uint64, asset solana.PublicKey) (tok, pairAddr solana.PublicKey, index int, err error) {
	const op = "bonding.launch"
	release, err := o.guard.Enter(op)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, 0, err
	}
	defer release()

	rec, err := o.create(op, caller, name, symbol, purchase, asset, pair.Options{})
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, 0, err
	}
	rec.State = StateTrading
	rec.TradingEnabled = true

	o.j.Emit(&events.TokenLaunchedEvent{
		BaseEvent:       o.j.Base(events.TokenLaunched, rec.Token, rec.Pair),
		Creator:         caller,
		Asset:           asset,
		Name:            name,
		Symbol:          symbol,
		Supply:          rec.Supply,
		Fee:             o.cfg.Fee,
		InitialPurchase: purchase - o.cfg.Fee,
		Index:           rec.Index,
	})

	if purchase > o.cfg.Fee {
		if _, err := o.initialBuy(rec, purchase-o.cfg.Fee); err != nil {
			return solana.PublicKey{}, solana.PublicKey{}, 0, err
		}
	}

	o.logger.Info("Token launched",
		zap.String("token", rec.Token.String()),
		zap.String("pair", rec.Pair.String()),
		zap.String("creator", caller.String()),
		zap.String("symbol", symbol),
		zap.Int("index", rec.Index))
	return rec.Token, rec.Pair, rec.Index, nil
}

// ReserveLaunch is the first phase of a two-phase launch: it creates the
// token and the seeded pair with trading disabled until startTime, escrows
// the purchase beyond the fee, pre-creates the external pool and opens the
// governance application with the pool blacklisted.
func (o *Orchestrator) ReserveLaunch(ctx context.Context, caller solana.PublicKey, name, symbol string, purchase uint64, asset solana.PublicKey, startTime time.Time) (tok, pairAddr solana.PublicKey, index int, err error) {
	const op = "bonding.reserve_launch"
	release, err := o.guard.Enter(op)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, 0, err
	}
	defer release()

	if o.agents == nil {
		return solana.PublicKey{}, solana.PublicKey{}, 0, ledger.Failf(op, ledger.ErrInvalidParameter, "no agent factory configured")
	}
	if startTime.IsZero() {
		startTime = o.j.Now().Add(o.cfg.StartDelay)
	}
	rec, err := o.create(op, caller, name, symbol, purchase, asset, pair.Options{
		StartTime:  startTime,
		StartDelay: o.cfg.StartDelay,
	})
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, 0, err
	}

	pool, err := o.exchange.CreatePool(ctx, rec.Token, asset)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, 0, err
	}
	appID, err := o.agents.CreateTokenAndApplication(ctx, agentfactory.ApplicationRequest{
		Token:   rec.Token,
		Creator: caller,
		Name:    name,
		Symbol:  symbol,
	})
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, 0, err
	}
	if err := o.agents.AddBlacklist(ctx, rec.Token, pool); err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, 0, err
	}

	rec.State = StateReserved
	rec.TwoPhase = true
	rec.Pending = Pending{
		Escrow:        purchase - o.cfg.Fee,
		ApplicationID: appID,
		StartTime:     startTime,
		Pool:          pool,
	}

	o.j.Emit(&events.LaunchReservedEvent{
		BaseEvent:     o.j.Base(events.LaunchReserved, rec.Token, rec.Pair),
		Creator:       caller,
		StartTime:     startTime,
		Escrow:        rec.Pending.Escrow,
		ApplicationID: appID,
	})
	o.logger.Info("Launch reserved",
		zap.String("token", rec.Token.String()),
		zap.String("creator", caller.String()),
		zap.Time("start_time", startTime),
		zap.Uint64("escrow", rec.Pending.Escrow),
		zap.Uint64("application_id", appID))
	return rec.Token, rec.Pair, rec.Index, nil
}

// ExecuteLaunch opens a reserved launch for trading and spends the escrow on
// the creator's initial buy. The creator or an admin may call it once, from
// the reserved start time on; a late execution moves the anti-sniper window
// to now.
func (o *Orchestrator) ExecuteLaunch(ctx context.Context, caller, tok solana.PublicKey) (uint64, error) {
	const op = "bonding.execute_launch"
	release, err := o.guard.Enter(op)
	if err != nil {
		return 0, err
	}
	defer release()

	rec, err := o.reserved(op, tok)
	if err != nil {
		return 0, err
	}
	if caller != rec.Creator && !o.acl.Has(access.Admin, caller) {
		return 0, ledger.Failf(op, ledger.ErrUnauthorized, "%s may not execute %s", caller, rec.Symbol)
	}
	now := o.j.Now()
	if now.Before(rec.Pending.StartTime) {
		return 0, ledger.Failf(op, ledger.ErrTooEarly, "trading starts %s", rec.Pending.StartTime.Format(time.RFC3339))
	}
	if now.After(rec.Pending.StartTime) {
		if err := o.router.ResetTime(o.addr, tok, now); err != nil {
			return 0, err
		}
	}

	o.touch(rec)
	rec.Pending.Executed = true
	rec.State = StateTrading
	rec.TradingEnabled = true

	var out uint64
	if rec.Pending.Escrow > 0 {
		if out, err = o.initialBuy(rec, rec.Pending.Escrow); err != nil {
			return 0, err
		}
	}

	o.j.Emit(&events.LaunchExecutedEvent{
		BaseEvent: o.j.Base(events.LaunchExecuted, rec.Token, rec.Pair),
		Creator:   rec.Creator,
		TokensOut: out,
	})
	o.logger.Info("Launch executed",
		zap.String("token", tok.String()),
		zap.String("caller", caller.String()),
		zap.Uint64("tokens_out", out))
	return out, nil
}

// CancelLaunch abandons a reservation before execution and refunds the
// escrow to the creator. The fee stays in the pair.
func (o *Orchestrator) CancelLaunch(ctx context.Context, caller, tok solana.PublicKey) (uint64, error) {
	const op = "bonding.cancel_launch"
	release, err := o.guard.Enter(op)
	if err != nil {
		return 0, err
	}
	defer release()

	rec, err := o.reserved(op, tok)
	if err != nil {
		return 0, err
	}
	if caller != rec.Creator {
		return 0, ledger.Failf(op, ledger.ErrUnauthorized, "only the creator may cancel %s", rec.Symbol)
	}

	refund := rec.Pending.Escrow
	if refund > 0 {
		if err := o.book.Transfer(rec.Asset, o.addr, rec.Creator, refund); err != nil {
			return 0, err
		}
	}
	o.touch(rec)
	rec.Pending.Escrow = 0
	rec.State = StateCancelled

	o.j.Emit(&events.LaunchCancelledEvent{
		BaseEvent: o.j.Base(events.LaunchCancelled, rec.Token, rec.Pair),
		Creator:   rec.Creator,
		Refund:    refund,
	})
	o.logger.Info("Launch cancelled",
		zap.String("token", tok.String()),
		zap.Uint64("refund", refund))
	return refund, nil
}

// reserved returns a two-phase record still waiting for execution.
func (o *Orchestrator) reserved(op string, tok solana.PublicKey) (*Launch, error) {
	rec, err := o.lookup(op, tok)
	if err != nil {
		return nil, err
	}
	switch {
	case !rec.TwoPhase:
		return nil, ledger.Failf(op, ledger.ErrInvalidParameter, "%s was not reserved", rec.Symbol)
	case rec.State == StateCancelled:
		return nil, ledger.Fail(op, ledger.ErrCancelled)
	case rec.Pending.Executed:
		return nil, ledger.Fail(op, ledger.ErrAlreadyExecuted)
	}
	return rec, nil
}

// create pulls the purchase, mints the token, creates and seeds the pair
// and stores the record in the Proposed state.
func (o *Orchestrator) create(op string, caller solana.PublicKey, name, symbol string, purchase uint64, asset solana.PublicKey, opts pair.Options) (*Launch, error) {
	if caller.IsZero() || asset.IsZero() {
		return nil, ledger.Fail(op, ledger.ErrZeroAddress)
	}
	if name == "" || symbol == "" {
		return nil, ledger.Failf(op, ledger.ErrInvalidParameter, "name and symbol are required")
	}
	if purchase < o.cfg.Fee {
		return nil, ledger.Failf(op, ledger.ErrInvalidParameter, "purchase %d below launch fee %d", purchase, o.cfg.Fee)
	}
	if _, err := o.book.Get(asset); err != nil {
		return nil, err
	}
	if err := o.book.Transfer(asset, caller, o.addr, purchase); err != nil {
		return nil, err
	}

	addr, err := ledger.TokenAddress(o.cfg.ProgramID, caller, o.nonce)
	if err != nil {
		return nil, err
	}
	ledger.Set(o.j, &o.nonce, o.nonce+1)

	tok, err := token.New(o.j, addr, token.Config{
		Name:     name,
		Symbol:   symbol,
		Decimals: o.cfg.Decimals,
		Owner:    o.addr,
	}, o.logger)
	if err != nil {
		return nil, err
	}
	if err := o.book.Register(tok); err != nil {
		return nil, err
	}
	if err := tok.Mint(o.addr, o.addr, o.cfg.InitialSupply); err != nil {
		return nil, err
	}
	if err := tok.UpdateMaxTransactionBasisPoints(o.addr, o.cfg.MaxTxBp); err != nil {
		return nil, err
	}
	if o.cfg.TokenTaxBp > 0 {
		if err := tok.UpdateTaxSettings(o.addr, o.cfg.TokenTaxReceiver, o.cfg.TokenTaxBp); err != nil {
			return nil, err
		}
	}

	opts.Model = o.cfg.Model
	opts.VirtualAssetReserve = o.cfg.VirtualAssetReserve
	p, err := o.registry.CreatePair(o.addr, addr, asset, opts)
	if err != nil {
		return nil, err
	}
	if err := o.router.AddInitialLiquidity(o.addr, addr, asset, o.cfg.InitialSupply, o.cfg.Fee, o.addr); err != nil {
		return nil, err
	}

	rec := &Launch{
		Index:     len(o.all),
		Creator:   caller,
		Token:     addr,
		Asset:     asset,
		Pair:      p.Address(),
		Name:      name,
		Symbol:    symbol,
		Supply:    o.cfg.InitialSupply,
		State:     StateProposed,
		CreatedAt: o.j.Now(),
	}
	if err := o.refresh(rec, 0); err != nil {
		return nil, err
	}
	rec.InitialPrice = rec.Market.Price

	ledger.SetKey(o.j, o.launches, addr, rec)
	ledger.Append(o.j, &o.all, rec)
	ledger.SetKey(o.j, o.byCreator, caller, append(o.TokensOf(caller), addr))
	return rec, nil
}

// initialBuy spends amount of the orchestrator's asset on the creator's
// purchase. The pair is exempted from the max-tx cap for this transfer only.
func (o *Orchestrator) initialBuy(rec *Launch, amount uint64) (uint64, error) {
	tok, err := o.book.Get(rec.Token)
	if err != nil {
		return 0, err
	}
	if err := tok.SetMaxTxExempt(o.addr, rec.Pair, true); err != nil {
		return 0, err
	}
	res, err := o.router.Buy(o.addr, amount, rec.Token, o.addr, true)
	if err != nil {
		return 0, err
	}
	if err := tok.SetMaxTxExempt(o.addr, rec.Pair, false); err != nil {
		return 0, err
	}
	if err := tok.Transfer(o.addr, rec.Creator, res.AmountOut); err != nil {
		return 0, err
	}

	o.touch(rec)
	if err := o.refresh(rec, amount); err != nil {
		return 0, err
	}
	o.logger.Debug("Initial purchase",
		zap.String("token", rec.Token.String()),
		zap.Uint64("amount_in", amount),
		zap.Uint64("amount_out", res.AmountOut))
	return res.AmountOut, nil
}
