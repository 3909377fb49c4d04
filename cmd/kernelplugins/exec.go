package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/smallnest/kernelplugins/plugin"
	"github.com/smallnest/kernelplugins/plugin/python"
	"github.com/spf13/cobra"
)

type execOptions struct {
	root    *rootOptions
	analyze bool
	asJSON  bool
}

func newExecCommand(root *rootOptions) *cobra.Command {
	o := &execOptions{root: root}
	cmd := &cobra.Command{
		Use:   "exec <file|->",
		Short: "Run a Python file in the sandbox",
		Example: `  kernelplugins exec script.py
  echo 'print(2 + 2)' | kernelplugins exec -
  kernelplugins exec --analyze script.py`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readSource(root.streams.In, args[0])
			if err != nil {
				return err
			}
			a, err := root.App(cmd)
			if err != nil {
				return err
			}
			return o.Run(cmd, a.registry, code)
		},
	}
	cmd.Flags().BoolVar(&o.analyze, "analyze", false, "check the code without running it")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "print the result envelope instead of the program output")
	return cmd
}

func readSource(in io.Reader, path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(in)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (o *execOptions) Run(cmd *cobra.Command, r *plugin.Registry, code string) error {
	fn := "execute_python"
	if o.analyze {
		fn = "analyze_code"
	}
	res := r.Invoke(cmd.Context(), "python", fn, plugin.Args{"code": code})
	if o.asJSON || o.analyze {
		if err := writeResult(o.root.streams.Out, res, true); err != nil {
			return err
		}
		if !res.Success {
			return errFailed
		}
		return nil
	}

	if ex, ok := res.Data.(*python.Execution); ok {
		fmt.Fprint(o.root.streams.Out, ex.Output)
		if ex.Error != "" {
			fmt.Fprintln(o.root.streams.ErrOut, strings.TrimRight(ex.Error, "\n"))
		}
	} else if !res.Success {
		fmt.Fprintln(o.root.streams.ErrOut, res.Error)
	}
	if !res.Success {
		return errFailed
	}
	return nil
}
