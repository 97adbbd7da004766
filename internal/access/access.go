// Package access holds the capability table consulted at the top of every
// mutating entry point.
package access

import (
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"go.uber.org/zap"
)

// Capability is a permission tier.
type Capability string

const (
	// Admin configures taxes, routers and hooks.
	Admin Capability = "admin"
	// Executor may trade and graduate through the router.
	Executor Capability = "executor"
	// Creator may create pairs on the registry.
	Creator Capability = "creator"
)

type grant struct {
	cap  Capability
	addr solana.PublicKey
}

// Table is an explicit authorization table keyed by (capability, address).
type Table struct {
	j      *ledger.Journal
	grants map[grant]struct{}
	logger *zap.Logger
}

// NewTable creates a table with admin holding the Admin capability.
func NewTable(j *ledger.Journal, admin solana.PublicKey, logger *zap.Logger) (*Table, error) {
	if admin.IsZero() {
		return nil, ledger.Fail("access.new", ledger.ErrZeroAddress)
	}
	t := &Table{
		j:      j,
		grants: make(map[grant]struct{}),
		logger: logger.Named("access"),
	}
	t.grants[grant{Admin, admin}] = struct{}{}
	return t, nil
}

// Has reports whether who holds c.
func (t *Table) Has(c Capability, who solana.PublicKey) bool {
	_, ok := t.grants[grant{c, who}]
	return ok
}

// Require fails op unless who holds c.
func (t *Table) Require(op string, c Capability, who solana.PublicKey) error {
	if t.Has(c, who) {
		return nil
	}
	t.logger.Warn("Capability check failed",
		zap.String("op", op),
		zap.String("capability", string(c)),
		zap.String("caller", who.String()))
	return ledger.Failf(op, ledger.ErrUnauthorized, "%s lacks %s", who, c)
}

// Grant gives who the capability c. Caller must be an admin.
func (t *Table) Grant(caller solana.PublicKey, c Capability, who solana.PublicKey) error {
	if err := t.Require("access.grant", Admin, caller); err != nil {
		return err
	}
	if who.IsZero() {
		return ledger.Fail("access.grant", ledger.ErrZeroAddress)
	}
	if t.Has(c, who) {
		return nil
	}
	key := grant{c, who}
	t.grants[key] = struct{}{}
	t.j.Record(func() { delete(t.grants, key) })

	t.logger.Info("Capability granted",
		zap.String("capability", string(c)),
		zap.String("address", who.String()))
	return nil
}

// Revoke removes c from who. Caller must be an admin.
func (t *Table) Revoke(caller solana.PublicKey, c Capability, who solana.PublicKey) error {
	if err := t.Require("access.revoke", Admin, caller); err != nil {
		return err
	}
	key := grant{c, who}
	if _, ok := t.grants[key]; !ok {
		return nil
	}
	delete(t.grants, key)
	t.j.Record(func() { t.grants[key] = struct{}{} })
	return nil
}
