// Package agentfactory is the boundary to the agent metadata and governance
// factory used by two-phase launches.
package agentfactory

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Factory mints the companion governance bundle for a launched token.
//
// The orchestrator calls it in a fixed order: CreateTokenAndApplication and
// AddBlacklist at reservation, then UpdateApplicationThreshold,
// RemoveBlacklist and ExecuteApplication at graduation.
type Factory interface {
	CreateTokenAndApplication(ctx context.Context, req ApplicationRequest) (uint64, error)
	UpdateApplicationThreshold(ctx context.Context, id, threshold uint64) error
	ExecuteApplication(ctx context.Context, id uint64, split SupplySplit) error
	AddBlacklist(ctx context.Context, token, addr solana.PublicKey) error
	RemoveBlacklist(ctx context.Context, token, addr solana.PublicKey) error
}

// ApplicationRequest describes the token an application is opened for.
type ApplicationRequest struct {
	Token   solana.PublicKey
	Creator solana.PublicKey
	Name    string
	Symbol  string
}

// SupplySplit is the final token distribution handed over at graduation.
type SupplySplit struct {
	TotalSupply uint64
	LPSupply    uint64
	Vault       solana.PublicKey
}

// Status is an application's lifecycle position.
type Status string

const (
	StatusActive   Status = "active"
	StatusExecuted Status = "executed"
)

// Application is the factory-side record of one launch.
type Application struct {
	ID        uint64
	Request   ApplicationRequest
	Threshold uint64
	Status    Status
	Split     SupplySplit
}
