// =============================
// File: internal/dex/pumpswap/config.go
// =============================
package pumpswap

import (
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

const (
	// DefaultLPFeeBasisPoints is charged on every swap input and stays in the pool.
	DefaultLPFeeBasisPoints = 25
	// MinimumLiquidity is locked in the pool on the first deposit.
	MinimumLiquidity = 1_000
)

// Config хранит конфигурацию для PumpSwap.
type Config struct {
	ProgramID        solana.PublicKey
	LPFeeBasisPoints uint64
}

// GetDefaultConfig возвращает конфигурацию по умолчанию для PumpSwap.
func GetDefaultConfig() *Config {
	programID, err := ledger.ComponentAddress(ledger.DefaultProgramID, "pumpswap")
	if err != nil {
		programID = ledger.DefaultProgramID
	}
	return &Config{
		ProgramID:        programID,
		LPFeeBasisPoints: DefaultLPFeeBasisPoints,
	}
}
