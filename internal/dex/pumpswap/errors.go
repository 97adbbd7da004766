// =============================
// File: internal/dex/pumpswap/errors.go
// =============================
package pumpswap

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

// SlippageExceededError представляет ошибку превышения проскальзывания
type SlippageExceededError struct {
	Op       string
	Minimum  uint64
	Received uint64
}

func (e *SlippageExceededError) Error() string {
	return fmt.Sprintf("slippage exceeded: got %d, minimum %d", e.Received, e.Minimum)
}

// Unwrap lets callers match ledger.ErrSlippage.
func (e *SlippageExceededError) Unwrap() error {
	return ledger.ErrSlippage
}

// IsSlippageExceededError определяет, является ли ошибка ошибкой превышения проскальзывания
func IsSlippageExceededError(err error) bool {
	var slip *SlippageExceededError
	return errors.As(err, &slip)
}
