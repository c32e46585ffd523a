package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxToolNameLength and MaxToolParamsSize bound a tool call's shape before
// it ever reaches an implementation, mirroring the registry-level guards
// the agent runtime applies ahead of dispatch.
const (
	MaxToolNameLength = 128
	MaxToolParamsSize = 256 * 1024
)

// registryEntry pairs a tool with the JSON schema compiled from its own
// Definition, so Dispatch can reject a malformed call before Run ever
// sees it. schema is nil for tools that declare no Parameters/Required,
// matching a bare "anything goes" contract rather than an empty object.
type registryEntry struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry holds the process's tool catalog: name -> implementation.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registryEntry
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registryEntry)}
}

// Register adds or replaces a tool by its declared name, compiling its
// Definition's Parameters/Required into a JSON schema for Dispatch to
// validate future calls against. A tool's own Definition is static,
// hand-authored Go, so a schema that fails to compile is a programming
// error in this process, not a runtime condition — Register panics on
// it immediately, the same way regexp.MustCompile does for a malformed
// pattern baked into the source.
func (r *Registry) Register(t Tool) {
	def := t.Definition()
	var schema *jsonschema.Schema
	if len(def.Parameters) > 0 || len(def.Required) > 0 {
		schema = mustCompileParamSchema(def)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = registryEntry{tool: t, schema: schema}
}

func mustCompileParamSchema(def Definition) *jsonschema.Schema {
	properties := make(map[string]any, len(def.Parameters))
	for name, p := range def.Parameters {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.EnumValues) > 0 {
			prop["enum"] = p.EnumValues
		}
		properties[name] = prop
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(def.Required) > 0 {
		doc["required"] = def.Required
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("tool %s: marshal param schema: %v", def.Name, err))
	}
	schema, err := jsonschema.CompileString(def.Name+".schema.json", string(raw))
	if err != nil {
		panic(fmt.Sprintf("tool %s: compile param schema: %v", def.Name, err))
	}
	return schema
}

// Lookup returns the tool registered under name, if any.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e.tool, ok
}

// Definitions returns every registered tool's schema, for presentation to
// the model.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools))
	for _, e := range r.tools {
		defs = append(defs, e.tool.Definition())
	}
	return defs
}

// Dispatch validates call shape, resolves the tool by name, validates the
// call's input against the tool's declared parameter schema, and runs it.
// A missing tool yields the fatal NotFound error (spec §4.1: unknown name
// is fatal to the turn); every other failure mode, including a schema
// violation, is returned as a non-fatal *Error for the caller to fold
// into a ToolResult.
func (r *Registry) Dispatch(ctx context.Context, call Call, tc Context) (Result, error) {
	if len(call.Name) > MaxToolNameLength {
		return Result{}, InvalidParams(fmt.Sprintf("tool name exceeds %d bytes", MaxToolNameLength))
	}
	if len(call.Input) > MaxToolParamsSize {
		return Result{}, InvalidParams(fmt.Sprintf("tool input exceeds %d bytes", MaxToolParamsSize))
	}

	r.mu.RLock()
	e, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, NotFound(call.Name)
	}

	if e.schema != nil {
		decoded := any(map[string]any{})
		if call.Input != "" {
			if err := json.Unmarshal([]byte(call.Input), &decoded); err != nil {
				return Result{}, InvalidParams(fmt.Sprintf("parse input for %s: %v", call.Name, err))
			}
		}
		if err := e.schema.Validate(decoded); err != nil {
			return Result{}, InvalidParams(fmt.Sprintf("%s: %v", call.Name, err))
		}
	}

	return e.tool.Run(ctx, call, tc)
}
