package log

import (
	"fmt"
	"strings"
)

// Phase names a step of the generate-and-execute flow.
type Phase string

const (
	PhaseThinking  Phase = "THINKING"
	PhasePlanning  Phase = "PLANNING"
	PhaseCode      Phase = "CODE"
	PhaseExecution Phase = "EXECUTION"
)

// PhaseLogger is a Logger that can also render the phases of an LLM
// code-generation run.
type PhaseLogger interface {
	Logger
	Section(title string)
	Phase(phase Phase, format string, v ...any)
	Code(language, code string)
	Execution(output string, success bool)
}

// Phases returns l as a PhaseLogger. Loggers without native phase support
// get phase lines written through Info and Debug.
func Phases(l Logger) PhaseLogger {
	if l == nil {
		l = GetDefaultLogger()
	}
	if pl, ok := l.(PhaseLogger); ok {
		return pl
	}
	return &phaseAdapter{Logger: l}
}

type phaseAdapter struct {
	Logger
}

func (a *phaseAdapter) Section(title string) {
	a.Info("%s %s %s", sectionRule[:8], title, sectionRule[:8])
}

func (a *phaseAdapter) Phase(phase Phase, format string, v ...any) {
	a.Info("[%s] %s", phase, fmt.Sprintf(format, v...))
}

func (a *phaseAdapter) Code(language, code string) {
	a.Debug("[%s] generated %s code:\n%s", PhaseCode, strings.ToLower(language), code)
}

func (a *phaseAdapter) Execution(output string, success bool) {
	if success {
		a.Info("[%s] succeeded\n%s", PhaseExecution, output)
		return
	}
	a.Warn("[%s] failed\n%s", PhaseExecution, output)
}
