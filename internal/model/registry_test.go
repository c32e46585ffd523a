package model

import (
	"math"
	"testing"
)

func TestLookupKnownModel(t *testing.T) {
	m := Default.Lookup("gpt-4o")
	if m.Vendor != "openai" {
		t.Fatalf("expected openai vendor, got %q", m.Vendor)
	}
	if !m.Capabilities.ToolUse {
		t.Fatalf("expected tool use capability")
	}
}

func TestLookupUnknownModelFallsBack(t *testing.T) {
	m := Default.Lookup("some-model-nobody-registered")
	if m.ContextWindow != 128_000 || m.MaxOutputTokens != 32_000 {
		t.Fatalf("expected generic fallback limits, got %+v", m)
	}
	if !m.Capabilities.ToolUse {
		t.Fatalf("fallback should assume tool use")
	}
}

func TestPricingCost(t *testing.T) {
	p := Pricing{CostPer1MInput: 2.50, CostPer1MOutput: 10.00}
	got := p.Cost(1_000_000, 500_000)
	want := 2.50 + 5.00
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("cost mismatch: got %v want %v", got, want)
	}
}

func TestPricingCostZero(t *testing.T) {
	p := Pricing{CostPer1MInput: 2.50, CostPer1MOutput: 10.00}
	if got := p.Cost(0, 0); got != 0 {
		t.Fatalf("expected zero cost for zero tokens, got %v", got)
	}
}
