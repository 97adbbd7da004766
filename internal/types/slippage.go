// internal/types/slippage.go
package types

import (
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/shopspring/decimal"
)

// DefaultSlippageBps: допуск по умолчанию для сделок сценария
const DefaultSlippageBps = 50

// SlippageType определяет тип политики проскальзывания
type SlippageType string

const (
	// SlippageFixed использует фиксированное значение minAmountOut
	SlippageFixed SlippageType = "fixed"
	// SlippagePercent использует процент от ожидаемого выхода
	SlippagePercent SlippageType = "percent"
	// SlippageNone не использует ограничение minAmountOut
	SlippageNone SlippageType = "none"
)

// SlippageConfig конфигурирует политику проскальзывания
type SlippageConfig struct {
	// Type определяет тип политики проскальзывания
	Type SlippageType `yaml:"type" json:"type"`
	// Value содержит значение для выбранной политики:
	// - для SlippageFixed: точное значение minAmountOut
	// - для SlippagePercent: процент допустимого проскальзывания (например, 0.5 = 0.5%)
	// - для SlippageNone: игнорируется
	Value decimal.Decimal `yaml:"value" json:"value"`
}

// MinAmountOut возвращает expected, уменьшенный на bps базисных пунктов
func MinAmountOut(expected, bps uint64) uint64 {
	if bps >= curve.BasisPoints {
		return 0
	}
	out, err := curve.MulDiv(expected, curve.BasisPoints-bps, curve.BasisPoints)
	if err != nil {
		return 0
	}
	return out
}

// CalculateMinAmountOut вычисляет minAmountOut на основе политики проскальзывания
func CalculateMinAmountOut(expected uint64, config SlippageConfig) uint64 {
	switch config.Type {
	case SlippageFixed:
		return uint64(config.Value.Floor().IntPart())
	case SlippagePercent:
		// 1% проскальзывания даёт минимум 99% от ожидаемого
		bps := config.Value.Mul(decimal.NewFromInt(100)).Floor().IntPart()
		if bps < 0 {
			bps = 0
		}
		return MinAmountOut(expected, uint64(bps))
	default:
		return 0
	}
}
