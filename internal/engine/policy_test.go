package engine

import (
	"testing"

	"arb_go/internal/domain"

	"github.com/shopspring/decimal"
)

func calmQuote() domain.Quote {
	return domain.Quote{
		Bid:     d(100),
		Ask:     d(100.05),
		BidSize: d(10),
		AskSize: d(10),
	}
}

func TestClassify_Normal(t *testing.T) {
	p := NewFallbackPolicy(DefaultPolicyConfig())

	if got := p.Classify(calmQuote(), calmQuote(), d(1)); got != ConditionNormal {
		t.Errorf("got %s, want NORMAL", got)
	}
}

func TestClassify_WideSpreadFlagsVolatility(t *testing.T) {
	p := NewFallbackPolicy(DefaultPolicyConfig())

	wide := calmQuote()
	wide.Ask = d(101) // ~1% spread

	if got := p.Classify(wide, calmQuote(), d(1)); got != ConditionHighVolatility {
		t.Errorf("volatile buy leg: got %s", got)
	}
	if got := p.Classify(calmQuote(), wide, d(1)); got != ConditionHighVolatility {
		t.Errorf("volatile sell leg: got %s", got)
	}
}

func TestClassify_ThinBookFlagsLowLiquidity(t *testing.T) {
	p := NewFallbackPolicy(DefaultPolicyConfig())

	thin := calmQuote()
	thin.AskSize = d(1.5) // Below 2x the trade size

	if got := p.Classify(thin, calmQuote(), d(1)); got != ConditionLowLiquidity {
		t.Errorf("got %s, want LOW_LIQUIDITY", got)
	}
}

func TestClassify_VolatilityBeatsLiquidity(t *testing.T) {
	p := NewFallbackPolicy(DefaultPolicyConfig())

	bad := calmQuote()
	bad.Ask = d(101)
	bad.AskSize = d(0.1)

	if got := p.Classify(bad, calmQuote(), d(1)); got != ConditionHighVolatility {
		t.Errorf("volatility must take priority, got %s", got)
	}
}

func TestSelect_CoversEveryCondition(t *testing.T) {
	p := NewFallbackPolicy(DefaultPolicyConfig())
	one := decimal.NewFromInt(1)

	cases := []struct {
		cond MarketCondition
		typ  string
		size decimal.Decimal
	}{
		{ConditionNormal, domain.OrderTypeLimit, one},
		{ConditionHighVolatility, domain.OrderTypeMarket, one},
		{ConditionLowLiquidity, domain.OrderTypeLimit, d(0.5)},
		{MarketCondition(0), domain.OrderTypeMarket, one}, // Unknown input
	}
	for _, tc := range cases {
		strat := p.Select(tc.cond)
		if strat.OrderType != tc.typ {
			t.Errorf("%s: order type %s, want %s", tc.cond, strat.OrderType, tc.typ)
		}
		if !strat.SizeFactor.Equal(tc.size) {
			t.Errorf("%s: size factor %s, want %s", tc.cond, strat.SizeFactor, tc.size)
		}
	}
}
