package engine

import (
	"arb_go/internal/domain"

	"github.com/shopspring/decimal"
)

// MarketCondition classifies the observed market at execution time.
type MarketCondition int

const (
	ConditionNormal MarketCondition = iota + 1
	ConditionHighVolatility
	ConditionLowLiquidity
)

// String returns the string representation of MarketCondition.
func (c MarketCondition) String() string {
	switch c {
	case ConditionNormal:
		return "NORMAL"
	case ConditionHighVolatility:
		return "HIGH_VOLATILITY"
	case ConditionLowLiquidity:
		return "LOW_LIQUIDITY"
	default:
		return "UNKNOWN"
	}
}

// OrderStrategy is the order-type decision for one execution attempt.
type OrderStrategy struct {
	OrderType  string
	SizeFactor decimal.Decimal // Applied to the opportunity size
}

// PolicyConfig holds the thresholds the fallback policy classifies with.
type PolicyConfig struct {
	VolatilityThresholdPct decimal.Decimal // Bid/ask spread pct that flags volatility
	LiquidityFactor        decimal.Decimal // Required book size as a multiple of trade size
	ReducedSizeFactor      decimal.Decimal // Size multiplier under low liquidity
}

// DefaultPolicyConfig returns the standard thresholds.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		VolatilityThresholdPct: decimal.NewFromFloat(0.5),
		LiquidityFactor:        decimal.NewFromInt(2),
		ReducedSizeFactor:      decimal.NewFromFloat(0.5),
	}
}

// FallbackPolicy maps a market condition to an order strategy. It is a
// pure function of the observed condition; no hidden state.
type FallbackPolicy struct {
	cfg PolicyConfig
}

// NewFallbackPolicy creates a policy with the given thresholds.
func NewFallbackPolicy(cfg PolicyConfig) FallbackPolicy {
	return FallbackPolicy{cfg: cfg}
}

// Classify inspects both legs' quotes relative to the intended size.
// Volatile books take priority over thin ones: immediacy first.
func (p FallbackPolicy) Classify(buy, sell domain.Quote, size decimal.Decimal) MarketCondition {
	if buy.SpreadPct().GreaterThan(p.cfg.VolatilityThresholdPct) ||
		sell.SpreadPct().GreaterThan(p.cfg.VolatilityThresholdPct) {
		return ConditionHighVolatility
	}

	required := size.Mul(p.cfg.LiquidityFactor)
	if buy.AskSize.LessThan(required) || sell.BidSize.LessThan(required) {
		return ConditionLowLiquidity
	}

	return ConditionNormal
}

// Select returns the order strategy for a condition. Total over all
// conditions; unknown input falls back to a full-size market order.
func (p FallbackPolicy) Select(cond MarketCondition) OrderStrategy {
	one := decimal.NewFromInt(1)
	switch cond {
	case ConditionNormal:
		return OrderStrategy{OrderType: domain.OrderTypeLimit, SizeFactor: one}
	case ConditionHighVolatility:
		return OrderStrategy{OrderType: domain.OrderTypeMarket, SizeFactor: one}
	case ConditionLowLiquidity:
		return OrderStrategy{OrderType: domain.OrderTypeLimit, SizeFactor: p.cfg.ReducedSizeFactor}
	default:
		return OrderStrategy{OrderType: domain.OrderTypeMarket, SizeFactor: one}
	}
}
