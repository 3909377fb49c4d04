package plugin

import (
	"context"
	"sort"
)

// Handler executes one plugin function.
type Handler func(ctx context.Context, args Args) Result

// Parameter describes one named argument of a Function.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // JSON schema type: string, number, integer, boolean, object, array
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Function is a named capability exposed by a Plugin.
type Function struct {
	Name        string
	Description string
	Parameters  []Parameter
	Handler     Handler
}

// Call validates required parameters and runs the handler.
func (f Function) Call(ctx context.Context, args Args) Result {
	if args == nil {
		args = Args{}
	}
	for _, p := range f.Parameters {
		if p.Required && !args.Has(p.Name) {
			return Fail(Missing(p.Name))
		}
	}
	if f.Handler == nil {
		return Fail(Invalid("function %q has no handler", f.Name))
	}
	return f.Handler(ctx, args)
}

// Schema returns the JSON schema of the function's arguments.
func (f Function) Schema() map[string]any {
	props := make(map[string]any, len(f.Parameters))
	required := []string{}
	for _, p := range f.Parameters {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	sort.Strings(required)
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Plugin groups related functions under a name, e.g. "postgres".
type Plugin interface {
	Name() string
	Description() string
	Functions() []Function
}

// Lookup finds a function of p by name.
func Lookup(p Plugin, name string) (Function, bool) {
	for _, f := range p.Functions() {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}
