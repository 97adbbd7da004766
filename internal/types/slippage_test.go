package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinAmountOut(t *testing.T) {
	assert.Equal(t, uint64(90_455), MinAmountOut(90_910, DefaultSlippageBps))
	assert.Equal(t, uint64(90_910), MinAmountOut(90_910, 0))
	assert.Zero(t, MinAmountOut(90_910, 10_000))
}

func TestCalculateMinAmountOut(t *testing.T) {
	assert.Equal(t, uint64(500), CalculateMinAmountOut(1_000, SlippageConfig{Type: SlippageFixed, Value: decimal.NewFromInt(500)}))
	assert.Equal(t, uint64(995), CalculateMinAmountOut(1_000, SlippageConfig{Type: SlippagePercent, Value: decimal.RequireFromString("0.5")}))
	assert.Equal(t, uint64(990), CalculateMinAmountOut(1_000, SlippageConfig{Type: SlippagePercent, Value: decimal.NewFromInt(1)}))
	assert.Zero(t, CalculateMinAmountOut(1_000, SlippageConfig{Type: SlippageNone}))
}
