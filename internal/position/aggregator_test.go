package position

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestExposureLaw(t *testing.T) {
	a := NewAggregator(nil)

	// Long 0.1 BTC @ 95000 on venue A, short 0.1 BTC @ 95100 on venue B.
	a.ApplyFill("venueA", "BTC", "BUY", d(95_000), d(0.1))
	a.ApplyFill("venueB", "BTC", "SELL", d(95_100), d(0.1))

	net := a.NetExposure("BTC")
	if !net.Equal(d(-10)) {
		t.Errorf("net exposure: got %s, want -10", net)
	}

	gross := a.GrossExposure("BTC")
	if !gross.Equal(d(19_010)) {
		t.Errorf("gross exposure: got %s, want 19010", gross)
	}
}

func TestApplyFill_IncreaseAveragesEntry(t *testing.T) {
	a := NewAggregator(nil)

	a.ApplyFill("venueA", "ETH", "BUY", d(3000), d(1))
	a.ApplyFill("venueA", "ETH", "BUY", d(3200), d(1))

	positions := a.Positions()
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	pos := positions[0]
	if !pos.Size.Equal(d(2)) {
		t.Errorf("size: got %s, want 2", pos.Size)
	}
	if !pos.EntryPrice.Equal(d(3100)) {
		t.Errorf("entry: got %s, want 3100", pos.EntryPrice)
	}
}

func TestApplyFill_ReduceAndClose(t *testing.T) {
	a := NewAggregator(nil)

	a.ApplyFill("venueA", "ETH", "BUY", d(3000), d(2))
	a.ApplyFill("venueA", "ETH", "SELL", d(3100), d(1))

	positions := a.Positions()
	if len(positions) != 1 {
		t.Fatalf("expected 1 position after reduce, got %d", len(positions))
	}
	if !positions[0].Size.Equal(d(1)) {
		t.Errorf("size after reduce: got %s, want 1", positions[0].Size)
	}
	if positions[0].Size.IsNegative() {
		t.Error("position size must never be negative")
	}

	// Closing removes the entry rather than leaving a zero-size row.
	a.ApplyFill("venueA", "ETH", "SELL", d(3100), d(1))
	if got := len(a.Positions()); got != 0 {
		t.Errorf("expected empty position set after close, got %d entries", got)
	}
}

func TestApplyFill_FlipOnOverfill(t *testing.T) {
	a := NewAggregator(nil)

	a.ApplyFill("venueA", "ETH", "BUY", d(3000), d(1))
	a.ApplyFill("venueA", "ETH", "SELL", d(3100), d(3))

	positions := a.Positions()
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	pos := positions[0]
	if pos.Side != "SELL" {
		t.Errorf("side after flip: got %s, want SELL", pos.Side)
	}
	if !pos.Size.Equal(d(2)) {
		t.Errorf("size after flip: got %s, want 2", pos.Size)
	}
	if !pos.EntryPrice.Equal(d(3100)) {
		t.Errorf("entry after flip: got %s, want 3100", pos.EntryPrice)
	}
}

func TestSnapshot_Totals(t *testing.T) {
	a := NewAggregator(nil)

	a.ApplyFill("venueA", "BTC", "BUY", d(95_000), d(0.1))
	a.ApplyFill("venueB", "BTC", "SELL", d(95_100), d(0.1))
	a.ApplyFill("venueA", "ETH", "BUY", d(3000), d(1))

	snap := a.Snapshot()

	if !snap.Net("BTC").Equal(d(-10)) {
		t.Errorf("BTC net: got %s, want -10", snap.Net("BTC"))
	}
	if !snap.Gross("ETH").Equal(d(3000)) {
		t.Errorf("ETH gross: got %s, want 3000", snap.Gross("ETH"))
	}
	if !snap.NetTotal.Equal(d(2990)) {
		t.Errorf("net total: got %s, want 2990", snap.NetTotal)
	}
	if !snap.GrossTotal.Equal(d(22_010)) {
		t.Errorf("gross total: got %s, want 22010", snap.GrossTotal)
	}

	// Unknown symbols read as zero.
	if !snap.Net("DOGE").IsZero() {
		t.Error("unknown symbol should read zero")
	}
}

func TestApplyFill_IgnoresDegenerateFills(t *testing.T) {
	a := NewAggregator(nil)

	a.ApplyFill("venueA", "BTC", "BUY", d(95_000), decimal.Zero)
	a.ApplyFill("venueA", "BTC", "BUY", d(95_000), d(-1))

	if got := len(a.Positions()); got != 0 {
		t.Errorf("degenerate fills should be ignored, got %d positions", got)
	}
}
