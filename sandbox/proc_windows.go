//go:build windows

package sandbox

import "os/exec"

// ConfigureProcess relies on the default cancellation, which kills the
// direct child only.
func ConfigureProcess(cmd *exec.Cmd) {}
