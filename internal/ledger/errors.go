package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies a rejected call.
type Kind string

const (
	KindCapability Kind = "capability"
	KindValidation Kind = "validation"
	KindState      Kind = "state"
	KindEconomic   Kind = "economic"
	KindUnknown    Kind = "unknown"
)

// Capability errors
var (
	ErrUnauthorized = errors.New("caller lacks required capability")
)

// Validation errors
var (
	ErrZeroAddress           = errors.New("zero address")
	ErrZeroAmount            = errors.New("zero amount")
	ErrIdenticalAddresses    = errors.New("identical addresses")
	ErrInvalidParameter      = errors.New("invalid parameter")
	ErrExceedsMaxTx          = errors.New("amount exceeds max transaction")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// State errors
var (
	ErrAlreadySeeded    = errors.New("pair already seeded")
	ErrNotSeeded        = errors.New("pair not seeded")
	ErrPairExists       = errors.New("pair already exists")
	ErrPairNotFound     = errors.New("pair not found")
	ErrNoRouter         = errors.New("router not configured")
	ErrTradingDisabled  = errors.New("trading not enabled")
	ErrAlreadyGraduated = errors.New("token already graduated")
	ErrCancelled        = errors.New("launch cancelled")
	ErrAlreadyExecuted  = errors.New("launch already executed")
	ErrTooEarly         = errors.New("launch start time not reached")
	ErrUnknownToken     = errors.New("unknown token")
	ErrReentrant        = errors.New("reentrant call")
	ErrTxActive         = errors.New("transaction already active")
	ErrDeadlineExpired  = errors.New("deadline expired")
)

// Economic errors
var (
	ErrSlippage              = errors.New("output below minimum")
	ErrZeroSyntheticReserve  = errors.New("synthetic reserve is zero")
	ErrTaxTooHigh            = errors.New("tax exceeds ceiling")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrOverflow              = errors.New("arithmetic overflow")
)

var kinds = map[error]Kind{
	ErrUnauthorized: KindCapability,

	ErrZeroAddress:           KindValidation,
	ErrZeroAmount:            KindValidation,
	ErrIdenticalAddresses:    KindValidation,
	ErrInvalidParameter:      KindValidation,
	ErrExceedsMaxTx:          KindValidation,
	ErrInsufficientBalance:   KindValidation,
	ErrInsufficientAllowance: KindValidation,

	ErrAlreadySeeded:    KindState,
	ErrNotSeeded:        KindState,
	ErrPairExists:       KindState,
	ErrPairNotFound:     KindState,
	ErrNoRouter:         KindState,
	ErrTradingDisabled:  KindState,
	ErrAlreadyGraduated: KindState,
	ErrCancelled:        KindState,
	ErrAlreadyExecuted:  KindState,
	ErrTooEarly:         KindState,
	ErrUnknownToken:     KindState,
	ErrReentrant:        KindState,
	ErrTxActive:         KindState,
	ErrDeadlineExpired:  KindState,

	ErrSlippage:              KindEconomic,
	ErrZeroSyntheticReserve:  KindEconomic,
	ErrTaxTooHigh:            KindEconomic,
	ErrInsufficientLiquidity: KindEconomic,
	ErrOverflow:              KindEconomic,
}

// Error is a rejected call carrying a machine-readable reason.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fail wraps a sentinel into an *Error for op.
func Fail(op string, sentinel error) error {
	return &Error{Kind: kindOf(sentinel), Op: op, Err: sentinel}
}

// Failf is Fail with extra detail appended to the sentinel message.
func Failf(op string, sentinel error, format string, args ...any) error {
	detail := fmt.Sprintf(format, args...)
	return &Error{Kind: kindOf(sentinel), Op: op, Err: fmt.Errorf("%w: %s", sentinel, detail)}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}

func kindOf(sentinel error) Kind {
	if k, ok := kinds[sentinel]; ok {
		return k
	}
	return KindUnknown
}
