package main

import (
	"fmt"
	"strings"

	"github.com/smallnest/kernelplugins/codegen"
	"github.com/smallnest/kernelplugins/plugin"
	"github.com/smallnest/kernelplugins/plugin/python"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	root     *rootOptions
	retries  int
	codeOnly bool
	asJSON   bool
}

func newGenerateCommand(root *rootOptions) *cobra.Command {
	o := &generateOptions{root: root, retries: -1}
	cmd := &cobra.Command{
		Use:   "generate <task>...",
		Short: "Generate Python for a task with the LLM and run it, retrying on errors",
		Example: `  kernelplugins generate "print the first 10 prime numbers"
  kernelplugins generate --code-only "parse a CSV file named data.csv"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.App(cmd)
			if err != nil {
				return err
			}
			return o.Run(cmd, a.registry, strings.Join(args, " "))
		},
	}
	cmd.Flags().IntVarP(&o.retries, "retries", "r", -1, "regenerations after the first attempt (default from config)")
	cmd.Flags().BoolVar(&o.codeOnly, "code-only", false, "print the generated code without running it")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "print the result envelope")
	return cmd
}

func (o *generateOptions) Run(cmd *cobra.Command, r *plugin.Registry, task string) error {
	p, ok := r.Get("python")
	if !ok {
		return fmt.Errorf("python plugin is not registered")
	}
	fn := "generate_and_execute_code"
	if o.codeOnly {
		fn = "generate_python_code"
	}
	if _, ok := plugin.Lookup(p, fn); !ok {
		return fmt.Errorf("code generation is disabled: set llm.api_key or OPENAI_API_KEY")
	}

	args := plugin.Args{"task": task}
	if o.retries >= 0 {
		args["max_retries"] = o.retries
	}
	res := r.Invoke(cmd.Context(), "python", fn, args)

	out := o.root.streams.Out
	if o.asJSON {
		if err := writeResult(out, res, true); err != nil {
			return err
		}
	} else {
		switch data := res.Data.(type) {
		case *codegen.Generation:
			fmt.Fprintln(out, data.Code)
		case *python.Run:
			fmt.Fprint(out, data.Result.Output)
			if !res.Success {
				fmt.Fprintf(o.root.streams.ErrOut, "failed after %d attempt(s): %s\n", len(data.Attempts), res.Error)
			}
		default:
			if !res.Success {
				fmt.Fprintln(o.root.streams.ErrOut, res.Error)
			}
		}
	}
	if !res.Success {
		return errFailed
	}
	return nil
}
