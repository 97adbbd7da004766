package agentfactory

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"go.uber.org/zap"
)

var _ Factory = (*Registry)(nil)

type blacklistKey struct {
	token, addr solana.PublicKey
}

// Registry is an in-process Factory. State changes go through the journal,
// so a reverted launch also rolls back its application.
type Registry struct {
	j      *ledger.Journal
	logger *zap.Logger

	apps      []*Application
	blacklist map[blacklistKey]bool
	calls     []string
}

// NewRegistry creates an empty factory.
func NewRegistry(j *ledger.Journal, logger *zap.Logger) *Registry {
	return &Registry{
		j:         j,
		logger:    logger.Named("agentfactory"),
		blacklist: make(map[blacklistKey]bool),
	}
}

func (r *Registry) CreateTokenAndApplication(ctx context.Context, req ApplicationRequest) (uint64, error) {
	const op = "agentfactory.create_application"
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if req.Token.IsZero() || req.Creator.IsZero() {
		return 0, ledger.Fail(op, ledger.ErrZeroAddress)
	}
	id := uint64(len(r.apps)) + 1
	ledger.Append(r.j, &r.apps, &Application{ID: id, Request: req, Status: StatusActive})
	r.record(op)
	r.logger.Info("Application created",
		zap.Uint64("application_id", id),
		zap.String("token", req.Token.String()),
		zap.String("symbol", req.Symbol))
	return id, nil
}

func (r *Registry) UpdateApplicationThreshold(ctx context.Context, id, threshold uint64) error {
	const op = "agentfactory.update_threshold"
	if err := ctx.Err(); err != nil {
		return err
	}
	app, err := r.active(op, id)
	if err != nil {
		return err
	}
	ledger.Set(r.j, &app.Threshold, threshold)
	r.record(op)
	return nil
}

func (r *Registry) ExecuteApplication(ctx context.Context, id uint64, split SupplySplit) error {
	const op = "agentfactory.execute_application"
	if err := ctx.Err(); err != nil {
		return err
	}
	app, err := r.active(op, id)
	if err != nil {
		return err
	}
	if split.LPSupply > split.TotalSupply {
		return ledger.Failf(op, ledger.ErrInvalidParameter, "lp supply %d > total %d", split.LPSupply, split.TotalSupply)
	}
	ledger.Set(r.j, &app.Split, split)
	ledger.Set(r.j, &app.Status, StatusExecuted)
	r.record(op)
	r.logger.Info("Application executed",
		zap.Uint64("application_id", id),
		zap.Uint64("total_supply", split.TotalSupply),
		zap.Uint64("lp_supply", split.LPSupply))
	return nil
}

func (r *Registry) AddBlacklist(ctx context.Context, token, addr solana.PublicKey) error {
	return r.setBlacklist(ctx, "agentfactory.add_blacklist", token, addr, true)
}

func (r *Registry) RemoveBlacklist(ctx context.Context, token, addr solana.PublicKey) error {
	return r.setBlacklist(ctx, "agentfactory.remove_blacklist", token, addr, false)
}

func (r *Registry) setBlacklist(ctx context.Context, op string, token, addr solana.PublicKey, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if token.IsZero() || addr.IsZero() {
		return ledger.Fail(op, ledger.ErrZeroAddress)
	}
	ledger.SetKey(r.j, r.blacklist, blacklistKey{token, addr}, on)
	r.record(op)
	return nil
}

// Application returns the application with id.
func (r *Registry) Application(id uint64) (Application, bool) {
	if id == 0 || id > uint64(len(r.apps)) {
		return Application{}, false
	}
	return *r.apps[id-1], true
}

// Blacklisted reports whether addr is blacklisted for token.
func (r *Registry) Blacklisted(token, addr solana.PublicKey) bool {
	return r.blacklist[blacklistKey{token, addr}]
}

// Calls returns the operations performed so far, in order.
func (r *Registry) Calls() []string {
	return append([]string(nil), r.calls...)
}

func (r *Registry) active(op string, id uint64) (*Application, error) {
	if id == 0 || id > uint64(len(r.apps)) {
		return nil, ledger.Failf(op, ledger.ErrInvalidParameter, "unknown application %d", id)
	}
	app := r.apps[id-1]
	if app.Status == StatusExecuted {
		return nil, ledger.Failf(op, ledger.ErrAlreadyExecuted, "application %d", id)
	}
	return app, nil
}

func (r *Registry) record(op string) {
	ledger.Append(r.j, &r.calls, op)
}
