package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/smallnest/kernelplugins/plugin"
	"github.com/spf13/cobra"
)

type callOptions struct {
	root   *rootOptions
	pretty bool
}

func newCallCommand(root *rootOptions) *cobra.Command {
	o := &callOptions{root: root}
	cmd := &cobra.Command{
		Use:   "call <plugin> <function> [json-args|-]",
		Short: "Invoke a plugin function and print the result envelope",
		Example: `  kernelplugins call calculator add '{"a": 2, "b": 3}'
  kernelplugins call websearch search '{"query": "golang generics"}'
  echo '{"table": "users"}' | kernelplugins call postgres describe_table -`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.App(cmd)
			if err != nil {
				return err
			}
			raw := ""
			if len(args) == 3 {
				raw = args[2]
			}
			if raw == "-" {
				b, err := io.ReadAll(root.streams.In)
				if err != nil {
					return err
				}
				raw = string(b)
			}
			return o.Run(cmd, a.registry, args[0], args[1], raw)
		},
	}
	cmd.Flags().BoolVar(&o.pretty, "pretty", true, "indent the JSON output")
	return cmd
}

func (o *callOptions) Run(cmd *cobra.Command, r *plugin.Registry, name, fn, raw string) error {
	var res plugin.Result
	if args, err := plugin.ParseArgs(raw); err != nil {
		res = plugin.Fail(err)
	} else {
		res = r.Invoke(cmd.Context(), name, fn, args)
	}
	if err := writeResult(o.root.streams.Out, res, o.pretty); err != nil {
		return err
	}
	if !res.Success {
		return errFailed
	}
	return nil
}

func writeResult(w io.Writer, res plugin.Result, pretty bool) error {
	if !pretty {
		_, err := fmt.Fprintln(w, res.JSON())
		return err
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		_, err = fmt.Fprintln(w, res.JSON())
		return err
	}
	_, err = fmt.Fprintln(w, strings.TrimSpace(string(b)))
	return err
}
