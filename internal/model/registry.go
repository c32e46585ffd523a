// Package model defines the immutable, process-wide catalog mapping model
// identifiers to their context window, output cap, capabilities, and
// per-million-token pricing.
package model

import "sync"

// ID is an opaque, case-sensitive model identifier.
type ID string

// Capabilities flags a model's feature surface.
type Capabilities struct {
	ToolUse       bool
	Streaming     bool
	ReasoningTrace bool
	ImageInput    bool
}

// Pricing is cost per one million tokens, in the provider's billing
// currency (assumed USD).
type Pricing struct {
	CostPer1MInput        float64
	CostPer1MOutput       float64
	CostPer1MInputCached  float64 // zero means "not applicable"
}

// Cost computes input*cost_in/1e6 + output*cost_out/1e6.
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*p.CostPer1MInput/1e6 + float64(outputTokens)*p.CostPer1MOutput/1e6
}

// Model is an immutable registry record.
type Model struct {
	ID              ID
	Vendor          string
	DisplayName     string
	ContextWindow   int
	MaxOutputTokens int
	Capabilities    Capabilities
	Pricing         Pricing
}

// genericFallback is returned for any id not present in the registry.
func genericFallback(id ID) Model {
	return Model{
		ID:              id,
		Vendor:          "unknown",
		DisplayName:     string(id),
		ContextWindow:   128_000,
		MaxOutputTokens: 32_000,
		Capabilities:    Capabilities{ToolUse: true, Streaming: true},
	}
}

// Registry is a read-only, process-wide catalog. The zero value is usable
// (every lookup returns the generic fallback); use NewRegistry to seed it.
type Registry struct {
	mu     sync.RWMutex
	models map[ID]Model
}

// NewRegistry builds a registry pre-populated with the given models.
func NewRegistry(models ...Model) *Registry {
	r := &Registry{models: make(map[ID]Model, len(models))}
	for _, m := range models {
		r.models[m.ID] = m
	}
	return r
}

// Lookup returns the model for id, or a generic fallback if unknown.
func (r *Registry) Lookup(id ID) Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.models[id]; ok {
		return m
	}
	return genericFallback(id)
}

// All returns a snapshot of every registered model.
func (r *Registry) All() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	return out
}

// Default is the process-wide immutable table built at startup, seeded
// with the vendors this module's provider backends speak to.
var Default = NewRegistry(
	Model{
		ID: "gpt-4o", Vendor: "openai", DisplayName: "GPT-4o",
		ContextWindow: 128_000, MaxOutputTokens: 16_384,
		Capabilities: Capabilities{ToolUse: true, Streaming: true, ImageInput: true},
		Pricing:      Pricing{CostPer1MInput: 2.50, CostPer1MOutput: 10.00},
	},
	Model{
		ID: "gpt-4o-mini", Vendor: "openai", DisplayName: "GPT-4o mini",
		ContextWindow: 128_000, MaxOutputTokens: 16_384,
		Capabilities: Capabilities{ToolUse: true, Streaming: true, ImageInput: true},
		Pricing:      Pricing{CostPer1MInput: 0.15, CostPer1MOutput: 0.60},
	},
	Model{
		ID: "claude-sonnet-4", Vendor: "anthropic", DisplayName: "Claude Sonnet 4",
		ContextWindow: 200_000, MaxOutputTokens: 64_000,
		Capabilities: Capabilities{ToolUse: true, Streaming: true, ReasoningTrace: true, ImageInput: true},
		Pricing:      Pricing{CostPer1MInput: 3.00, CostPer1MOutput: 15.00},
	},
	Model{
		ID: "gemini-2.0-flash", Vendor: "google", DisplayName: "Gemini 2.0 Flash",
		ContextWindow: 1_000_000, MaxOutputTokens: 8_192,
		Capabilities: Capabilities{ToolUse: true, Streaming: true, ImageInput: true},
		Pricing:      Pricing{CostPer1MInput: 0.10, CostPer1MOutput: 0.40},
	},
	Model{
		ID: "anthropic.claude-3-5-sonnet", Vendor: "bedrock", DisplayName: "Claude 3.5 Sonnet (Bedrock)",
		ContextWindow: 200_000, MaxOutputTokens: 8_192,
		Capabilities: Capabilities{ToolUse: true, Streaming: true, ImageInput: true},
		Pricing:      Pricing{CostPer1MInput: 3.00, CostPer1MOutput: 15.00},
	},
)
