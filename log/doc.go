// Package log provides the leveled logging used across kernelplugins.
//
// Every component accepts a Logger and falls back to the package-level
// default, which writes INFO and above to stderr:
//
//	log.SetLogLevel(log.LogLevelDebug)
//	log.Info("registered %d plugins", n)
//
// Three implementations are provided:
//
//   - DefaultLogger: Go's standard log package with a level filter.
//   - GologLogger: a wrapper around github.com/kataras/golog.
//   - ConsoleLogger: colorized, labelled lines rendered with lipgloss,
//     including the THINKING, PLANNING, CODE and EXECUTION phases of an
//     LLM code-generation run, section banners, and a bounded history of
//     recent entries.
//
// Code that wants phase output calls Phases(logger), which returns the
// logger itself when it already implements PhaseLogger and an adapter that
// prefixes plain Info/Debug lines otherwise.
package log
