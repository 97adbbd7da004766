package token

import (
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"go.uber.org/zap"
)

// Book resolves token addresses so pairs, the router and external venues can
// move any token by address.
type Book struct {
	j      *ledger.Journal
	tokens map[solana.PublicKey]*Token
	logger *zap.Logger
}

// NewBook creates an empty token directory.
func NewBook(j *ledger.Journal, logger *zap.Logger) *Book {
	return &Book{
		j:      j,
		tokens: make(map[solana.PublicKey]*Token),
		logger: logger.Named("book"),
	}
}

// Register adds t to the book.
func (b *Book) Register(t *Token) error {
	if _, ok := b.tokens[t.Address()]; ok {
		return ledger.Failf("book.register", ledger.ErrInvalidParameter, "token %s already registered", t.Address())
	}
	ledger.SetKey(b.j, b.tokens, t.Address(), t)
	b.logger.Debug("Token registered",
		zap.String("token", t.Address().String()),
		zap.String("symbol", t.Symbol()))
	return nil
}

// Get returns the token at addr.
func (b *Book) Get(addr solana.PublicKey) (*Token, error) {
	t, ok := b.tokens[addr]
	if !ok {
		return nil, ledger.Failf("book.get", ledger.ErrUnknownToken, "%s", addr)
	}
	return t, nil
}

// BalanceOf returns holder's balance of token, zero for unknown tokens.
func (b *Book) BalanceOf(token, holder solana.PublicKey) uint64 {
	if t, ok := b.tokens[token]; ok {
		return t.BalanceOf(holder)
	}
	return 0
}

// Transfer moves amount of token from from to to.
func (b *Book) Transfer(token, from, to solana.PublicKey, amount uint64) error {
	t, err := b.Get(token)
	if err != nil {
		return err
	}
	return t.Transfer(from, to, amount)
}

// TransferFrom moves amount of token using spender's allowance.
func (b *Book) TransferFrom(token, spender, from, to solana.PublicKey, amount uint64) error {
	t, err := b.Get(token)
	if err != nil {
		return err
	}
	return t.TransferFrom(spender, from, to, amount)
}
