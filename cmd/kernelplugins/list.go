package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/smallnest/kernelplugins/plugin"
	"github.com/spf13/cobra"
)

type listOptions struct {
	root    *rootOptions
	params  bool
	schemas bool
}

func newListCommand(root *rootOptions) *cobra.Command {
	o := &listOptions{root: root}
	cmd := &cobra.Command{
		Use:   "list [plugin]",
		Short: "List plugins and their functions",
		Example: `  # Every configured function
  kernelplugins list

  # Functions of one plugin with their parameters
  kernelplugins list postgres --params`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.App(cmd)
			if err != nil {
				return err
			}
			return o.Run(a.registry, args)
		},
	}
	cmd.Flags().BoolVarP(&o.params, "params", "p", false, "show function parameters")
	cmd.Flags().BoolVar(&o.schemas, "schemas", false, "print LLM tool definitions as JSON")
	return cmd
}

func (o *listOptions) Run(r *plugin.Registry, args []string) error {
	out := o.root.streams.Out
	names := r.Names()
	if len(args) == 1 {
		if _, ok := r.Get(args[0]); !ok {
			return fmt.Errorf("unknown plugin %q, have %s", args[0], strings.Join(names, ", "))
		}
		names = args
	}

	if o.schemas {
		var defs []any
		for _, d := range r.Definitions() {
			if len(args) == 0 || strings.HasPrefix(d.Function.Name, args[0]+"-") {
				defs = append(defs, d)
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(defs)
	}

	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	if o.params {
		table.AddRow("PLUGIN", "FUNCTION", "PARAMETERS", "DESCRIPTION")
	} else {
		table.AddRow("PLUGIN", "FUNCTION", "DESCRIPTION")
	}
	for _, name := range names {
		p, _ := r.Get(name)
		for _, fn := range p.Functions() {
			if o.params {
				table.AddRow(name, fn.Name, formatParams(fn.Parameters), fn.Description)
			} else {
				table.AddRow(name, fn.Name, fn.Description)
			}
		}
	}
	_, err := fmt.Fprintln(out, table)
	return err
}

func formatParams(params []plugin.Parameter) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		s := p.Name + ":" + p.Type
		if !p.Required {
			s += "?"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}
