// Package shell runs host commands as a plugin.
//
// Commands run with the caller's privileges. Each one gets its own process
// group on Unix, so a timeout also stops anything it started. This is not a
// security boundary.
package shell
