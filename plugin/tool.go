package plugin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/tools"
)

// Tool exposes one plugin function as a langchaingo tool. Input is a JSON
// object of arguments; output is the JSON envelope.
type Tool struct {
	registry *Registry
	plugin   string
	fn       Function
}

var _ tools.Tool = (*Tool)(nil)

// ToolName joins a plugin and function name the way tools are addressed.
func ToolName(plugin, fn string) string {
	return plugin + "-" + fn
}

func (t *Tool) Name() string { return ToolName(t.plugin, t.fn.Name) }

func (t *Tool) Description() string {
	if len(t.fn.Parameters) == 0 {
		return t.fn.Description
	}
	var b strings.Builder
	b.WriteString(t.fn.Description)
	b.WriteString(" Input is a JSON object with fields:")
	for _, p := range t.fn.Parameters {
		fmt.Fprintf(&b, " %s (%s", p.Name, p.Type)
		if p.Required {
			b.WriteString(", required")
		}
		b.WriteString(")")
		if p.Description != "" {
			b.WriteString(": " + p.Description)
		}
		b.WriteString(";")
	}
	return b.String()
}

// Call decodes input and invokes the function through the registry. When
// input is not JSON and the function takes a single required string
// parameter, the raw input is used as that parameter.
func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	args, err := ParseArgs(input)
	if err != nil {
		p, ok := t.soleStringParam()
		if !ok {
			return Fail(err).JSON(), nil
		}
		args = Args{p: input}
	}
	return t.registry.Invoke(ctx, t.plugin, t.fn.Name, args).JSON(), nil
}

func (t *Tool) soleStringParam() (string, bool) {
	var name string
	for _, p := range t.fn.Parameters {
		if !p.Required {
			continue
		}
		if name != "" || p.Type != "string" {
			return "", false
		}
		name = p.Name
	}
	return name, name != ""
}

// Tools returns every registered function as a langchaingo tool, ordered
// by tool name.
func (r *Registry) Tools() []tools.Tool {
	var out []tools.Tool
	for _, name := range r.Names() {
		p, _ := r.Get(name)
		for _, fn := range p.Functions() {
			out = append(out, &Tool{registry: r, plugin: name, fn: fn})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Definitions returns function-calling definitions for every registered
// function, suitable for llms.WithTools.
func (r *Registry) Definitions() []llms.Tool {
	var out []llms.Tool
	for _, t := range r.Tools() {
		pt := t.(*Tool)
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        pt.Name(),
				Description: pt.fn.Description,
				Parameters:  pt.fn.Schema(),
			},
		})
	}
	return out
}
