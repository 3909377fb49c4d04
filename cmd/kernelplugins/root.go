package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/smallnest/kernelplugins/config"
	"github.com/smallnest/kernelplugins/log"
	"github.com/spf13/cobra"
)

// IOStreams are the standard streams of a command.
type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// errFailed reports a failed plugin call whose envelope was already printed.
var errFailed = errors.New("plugin call failed")

// rootOptions holds the global flags and the lazily built application.
type rootOptions struct {
	configPath string
	logLevel   string
	streams    IOStreams

	app *app
}

// App loads the configuration and builds the registry on first use.
func (o *rootOptions) App(cmd *cobra.Command) (*app, error) {
	if o.app != nil {
		return o.app, nil
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		if _, err := log.ParseLevel(o.logLevel); err != nil {
			return nil, err
		}
		cfg.Log.Level = o.logLevel
	}
	a, err := newApp(cmd.Context(), cfg, o.streams.ErrOut)
	if err != nil {
		return nil, err
	}
	o.app = a
	return a, nil
}

// Close releases the clients opened by App.
func (o *rootOptions) Close() error {
	if o.app == nil {
		return nil
	}
	err := o.app.Close()
	o.app = nil
	return err
}

func newRootCommand(o *rootOptions) *cobra.Command {
	streams := o.streams
	cmd := &cobra.Command{
		Use:           "kernelplugins",
		Short:         "Invoke database, shell, search and Python plugins",
		Long:          "kernelplugins exposes databases, the shell, web search and a Python sandbox as named plugin functions that return a uniform {success, data|error} envelope.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(streams.In)
	cmd.SetOut(streams.Out)
	cmd.SetErr(streams.ErrOut)

	cmd.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "config file (default: $"+config.EnvConfig+" or ./kernelplugins.yaml)")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "debug, info, warn, error or none")

	cmd.AddCommand(
		newListCommand(o),
		newCallCommand(o),
		newExecCommand(o),
		newGenerateCommand(o),
	)
	return cmd
}

// report prints err unless it only signals an already printed failure.
// Cobra's own error output is silenced.
func report(w io.Writer, err error) error {
	if err != nil && !errors.Is(err, errFailed) {
		fmt.Fprintln(w, "Error:", err)
	}
	return err
}
