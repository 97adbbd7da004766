// Package token implements the fungible token ledger: balances, allowances,
// the per-transaction cap and the post-graduation transfer tax.
package token

import (
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"go.uber.org/zap"
)

// MaxTaxBp is the ceiling for the transfer tax.
const MaxTaxBp = 1_000

// Config describes a token at construction.
type Config struct {
	Name     string
	Symbol   string
	Decimals uint8
	Owner    solana.PublicKey
}

type allowanceKey struct {
	owner, spender solana.PublicKey
}

// Token is one fungible asset. Every mutation goes through the journal so a
// rejected call leaves balances untouched.
type Token struct {
	j      *ledger.Journal
	logger *zap.Logger

	addr     solana.PublicKey
	owner    solana.PublicKey
	name     string
	symbol   string
	decimals uint8

	totalSupply uint64
	balances    map[solana.PublicKey]uint64
	allowances  map[allowanceKey]uint64

	maxTxBp uint64
	maxTx   uint64 // 0 disables the cap
	exempt  map[solana.PublicKey]bool

	taxReceiver solana.PublicKey
	taxBp       uint64
	taxIncluded map[solana.PublicKey]bool
}

// New creates an empty token at addr.
func New(j *ledger.Journal, addr solana.PublicKey, cfg Config, logger *zap.Logger) (*Token, error) {
	if addr.IsZero() || cfg.Owner.IsZero() {
		return nil, ledger.Fail("token.new", ledger.ErrZeroAddress)
	}
	if cfg.Symbol == "" {
		return nil, ledger.Failf("token.new", ledger.ErrInvalidParameter, "empty symbol")
	}
	t := &Token{
		j:           j,
		logger:      logger.Named("token").With(zap.String("symbol", cfg.Symbol)),
		addr:        addr,
		owner:       cfg.Owner,
		name:        cfg.Name,
		symbol:      cfg.Symbol,
		decimals:    cfg.Decimals,
		balances:    make(map[solana.PublicKey]uint64),
		allowances:  make(map[allowanceKey]uint64),
		exempt:      make(map[solana.PublicKey]bool),
		taxIncluded: make(map[solana.PublicKey]bool),
	}
	// the owner always moves freely
	t.exempt[cfg.Owner] = true
	return t, nil
}

func (t *Token) Address() solana.PublicKey { return t.addr }
func (t *Token) Owner() solana.PublicKey   { return t.owner }
func (t *Token) Name() string              { return t.name }
func (t *Token) Symbol() string            { return t.symbol }
func (t *Token) Decimals() uint8           { return t.decimals }
func (t *Token) TotalSupply() uint64       { return t.totalSupply }
func (t *Token) MaxTx() uint64             { return t.maxTx }
func (t *Token) MaxTxBp() uint64           { return t.maxTxBp }
func (t *Token) TaxBp() uint64             { return t.taxBp }

func (t *Token) TaxReceiver() solana.PublicKey { return t.taxReceiver }

// BalanceOf returns holder's balance.
func (t *Token) BalanceOf(holder solana.PublicKey) uint64 {
	return t.balances[holder]
}

// Allowance returns what spender may move on owner's behalf.
func (t *Token) Allowance(owner, spender solana.PublicKey) uint64 {
	return t.allowances[allowanceKey{owner, spender}]
}

// IsMaxTxExempt reports whether transfers from addr bypass the cap.
func (t *Token) IsMaxTxExempt(addr solana.PublicKey) bool {
	return t.exempt[addr]
}

// IsTaxIncluded reports whether addr is a flagged trading venue.
func (t *Token) IsTaxIncluded(addr solana.PublicKey) bool {
	return t.taxIncluded[addr]
}

func (t *Token) onlyOwner(op string, caller solana.PublicKey) error {
	if caller != t.owner {
		return ledger.Failf(op, ledger.ErrUnauthorized, "%s is not the token owner", caller)
	}
	return nil
}

// Mint creates amount new units for to. Owner-only.
func (t *Token) Mint(caller, to solana.PublicKey, amount uint64) error {
	const op = "token.mint"
	if err := t.onlyOwner(op, caller); err != nil {
		return err
	}
	if to.IsZero() {
		return ledger.Fail(op, ledger.ErrZeroAddress)
	}
	if amount == 0 {
		return ledger.Fail(op, ledger.ErrZeroAmount)
	}
	if t.totalSupply+amount < t.totalSupply {
		return ledger.Fail(op, ledger.ErrOverflow)
	}
	ledger.Set(t.j, &t.totalSupply, t.totalSupply+amount)
	t.credit(to, amount)
	return nil
}

// Burn destroys amount of holder's own balance.
func (t *Token) Burn(holder solana.PublicKey, amount uint64) error {
	const op = "token.burn"
	if amount == 0 {
		return nil
	}
	if t.balances[holder] < amount {
		return ledger.Failf(op, ledger.ErrInsufficientBalance, "burn %d of %d", amount, t.balances[holder])
	}
	t.debit(holder, amount)
	ledger.Set(t.j, &t.totalSupply, t.totalSupply-amount)
	return nil
}

// Approve sets spender's allowance over owner's balance.
func (t *Token) Approve(owner, spender solana.PublicKey, amount uint64) error {
	if owner.IsZero() || spender.IsZero() {
		return ledger.Fail("token.approve", ledger.ErrZeroAddress)
	}
	ledger.SetKey(t.j, t.allowances, allowanceKey{owner, spender}, amount)
	return nil
}

// Transfer moves amount from from to to.
func (t *Token) Transfer(from, to solana.PublicKey, amount uint64) error {
	return t.transfer("token.transfer", from, to, amount)
}

// TransferFrom moves amount from from to to using spender's allowance.
func (t *Token) TransferFrom(spender, from, to solana.PublicKey, amount uint64) error {
	const op = "token.transfer_from"
	key := allowanceKey{from, spender}
	allowed := t.allowances[key]
	if allowed < amount {
		return ledger.Failf(op, ledger.ErrInsufficientAllowance, "allowance %d, need %d", allowed, amount)
	}
	if err := t.transfer(op, from, to, amount); err != nil {
		return err
	}
	ledger.SetKey(t.j, t.allowances, key, allowed-amount)
	return nil
}

// transfer enforces the max-tx cap, then splits off the tax when either side
// is a tax-included venue and neither side is the tax receiver.
func (t *Token) transfer(op string, from, to solana.PublicKey, amount uint64) error {
	if from.IsZero() || to.IsZero() {
		return ledger.Fail(op, ledger.ErrZeroAddress)
	}
	if amount == 0 {
		return nil
	}
	if t.maxTx > 0 && !t.exempt[from] && amount > t.maxTx {
		return ledger.Failf(op, ledger.ErrExceedsMaxTx, "%d > %d", amount, t.maxTx)
	}
	if t.balances[from] < amount {
		return ledger.Failf(op, ledger.ErrInsufficientBalance, "%s has %d, need %d", t.symbol, t.balances[from], amount)
	}

	var tax uint64
	if t.taxBp > 0 && !t.taxReceiver.IsZero() &&
		(t.taxIncluded[from] || t.taxIncluded[to]) &&
		from != t.taxReceiver && to != t.taxReceiver {
		tax = curve.ApplyBp(amount, t.taxBp)
	}

	t.debit(from, amount)
	t.credit(to, amount-tax)
	if tax > 0 {
		t.credit(t.taxReceiver, tax)
		t.logger.Debug("Transfer tax applied",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Uint64("amount", amount),
			zap.Uint64("tax", tax))
	}
	return nil
}

func (t *Token) credit(to solana.PublicKey, amount uint64) {
	ledger.SetKey(t.j, t.balances, to, t.balances[to]+amount)
}

func (t *Token) debit(from solana.PublicKey, amount uint64) {
	ledger.SetKey(t.j, t.balances, from, t.balances[from]-amount)
}

// UpdateMaxTransactionBasisPoints sets the cap as a share of the current
// supply. Owner-only; 0 disables the cap.
func (t *Token) UpdateMaxTransactionBasisPoints(caller solana.PublicKey, bp uint64) error {
	const op = "token.update_max_tx"
	if err := t.onlyOwner(op, caller); err != nil {
		return err
	}
	if bp > curve.BasisPoints {
		return ledger.Failf(op, ledger.ErrInvalidParameter, "max tx %d bp", bp)
	}
	ledger.Set(t.j, &t.maxTxBp, bp)
	ledger.Set(t.j, &t.maxTx, curve.ApplyBp(t.totalSupply, bp))
	return nil
}

// SetMaxTxExempt toggles the cap exemption for transfers sent by addr.
func (t *Token) SetMaxTxExempt(caller, addr solana.PublicKey, exempt bool) error {
	const op = "token.set_max_tx_exempt"
	if err := t.onlyOwner(op, caller); err != nil {
		return err
	}
	if addr.IsZero() {
		return ledger.Fail(op, ledger.ErrZeroAddress)
	}
	ledger.SetKey(t.j, t.exempt, addr, exempt)
	return nil
}

// UpdateTaxSettings sets the transfer tax receiver and rate. Owner-only.
func (t *Token) UpdateTaxSettings(caller, receiver solana.PublicKey, bp uint64) error {
	const op = "token.update_tax"
	if err := t.onlyOwner(op, caller); err != nil {
		return err
	}
	if bp > MaxTaxBp {
		return ledger.Failf(op, ledger.ErrTaxTooHigh, "%d bp > %d", bp, MaxTaxBp)
	}
	if bp > 0 && receiver.IsZero() {
		return ledger.Fail(op, ledger.ErrZeroAddress)
	}
	ledger.Set(t.j, &t.taxReceiver, receiver)
	ledger.Set(t.j, &t.taxBp, bp)
	return nil
}

// FlagAsTaxIncluded marks addr as a taxed trading venue. One-way.
func (t *Token) FlagAsTaxIncluded(caller, addr solana.PublicKey) error {
	const op = "token.flag_tax_included"
	if err := t.onlyOwner(op, caller); err != nil {
		return err
	}
	if addr.IsZero() {
		return ledger.Fail(op, ledger.ErrZeroAddress)
	}
	ledger.SetKey(t.j, t.taxIncluded, addr, true)
	t.logger.Info("Address flagged as tax-included", zap.String("address", addr.String()))
	return nil
}
