// Command kernelplugins lists and invokes the plugins configured for this
// host, and runs or generates Python in the sandbox.
package main

import (
	"os"
)

func main() {
	o := &rootOptions{streams: IOStreams{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr}}
	err := report(os.Stderr, newRootCommand(o).Execute())
	if cerr := o.Close(); cerr != nil {
		report(os.Stderr, cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}
