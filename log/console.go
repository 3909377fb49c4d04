package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	sectionWidth       = 80
	defaultHistorySize = 1000
)

var sectionRule = strings.Repeat("=", sectionWidth)

// emoji that some terminals and log collectors mangle
var asciiReplacer = strings.NewReplacer(
	"🧠", "[BRAIN]",
	"🤔", "[THINK]",
	"📋", "[PLAN]",
	"💻", "[CODE]",
	"⚡", "[EXEC]",
	"✅", "[OK]",
	"❌", "[FAIL]",
	"⚠️", "[WARN]",
	"🔍", "[SEARCH]",
	"🔄", "[RETRY]",
	"⏱️", "[TIME]",
	"📦", "[PKG]",
)

// Entry is one line retained in a ConsoleLogger's history.
type Entry struct {
	Time    time.Time
	Label   string
	Message string
}

// ConsoleLogger writes colorized, labelled lines for both plain levels and
// code-generation phases. It keeps the most recent entries in memory.
type ConsoleLogger struct {
	mu         sync.Mutex
	out        io.Writer
	level      LogLevel
	timestamps bool
	ascii      bool
	styles     map[string]lipgloss.Style
	banner     lipgloss.Style
	code       lipgloss.Style

	history []Entry
	next    int
	full    bool
}

var _ PhaseLogger = (*ConsoleLogger)(nil)

// ConsoleOption configures a ConsoleLogger
type ConsoleOption func(*ConsoleLogger)

// WithConsoleLevel sets the minimum level written.
func WithConsoleLevel(level LogLevel) ConsoleOption {
	return func(c *ConsoleLogger) { c.level = level }
}

// WithTimestamps toggles the leading timestamp.
func WithTimestamps(on bool) ConsoleOption {
	return func(c *ConsoleLogger) { c.timestamps = on }
}

// WithASCII replaces emoji with bracketed ASCII tags.
func WithASCII(on bool) ConsoleOption {
	return func(c *ConsoleLogger) { c.ascii = on }
}

// WithHistorySize sets how many entries Recent can return.
func WithHistorySize(n int) ConsoleOption {
	return func(c *ConsoleLogger) {
		if n > 0 {
			c.history = make([]Entry, n)
		}
	}
}

// NewConsoleLogger creates a ConsoleLogger writing to out (stderr when nil).
// Colors are only emitted when out is a terminal.
func NewConsoleLogger(out io.Writer, opts ...ConsoleOption) *ConsoleLogger {
	if out == nil {
		out = os.Stderr
	}
	r := lipgloss.NewRenderer(out)
	label := func(color string) lipgloss.Style {
		return r.NewStyle().Bold(true).Foreground(lipgloss.Color(color))
	}
	c := &ConsoleLogger{
		out:        out,
		level:      LogLevelInfo,
		timestamps: true,
		history:    make([]Entry, defaultHistorySize),
		styles: map[string]lipgloss.Style{
			LogLevelDebug.String():    label("8"),
			LogLevelInfo.String():     label("12"),
			LogLevelWarn.String():     label("11"),
			LogLevelError.String():    label("9"),
			LogLevelCritical.String(): label("15").Background(lipgloss.Color("1")),
			string(PhaseThinking):     label("13"),
			string(PhasePlanning):     label("14"),
			string(PhaseCode):         label("10"),
			string(PhaseExecution):    label("3"),
		},
		banner: r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		code:   r.NewStyle().Foreground(lipgloss.Color("10")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ConsoleLogger) Debug(format string, v ...any) { c.log(LogLevelDebug, format, v...) }
func (c *ConsoleLogger) Info(format string, v ...any)  { c.log(LogLevelInfo, format, v...) }
func (c *ConsoleLogger) Warn(format string, v ...any)  { c.log(LogLevelWarn, format, v...) }
func (c *ConsoleLogger) Error(format string, v ...any) { c.log(LogLevelError, format, v...) }

// Critical logs a message above error severity.
func (c *ConsoleLogger) Critical(format string, v ...any) { c.log(LogLevelCritical, format, v...) }

// SetLevel changes the minimum level written.
func (c *ConsoleLogger) SetLevel(level LogLevel) {
	c.mu.Lock()
	c.level = level
	c.mu.Unlock()
}

func (c *ConsoleLogger) log(level LogLevel, format string, v ...any) {
	c.emit(level, level.String(), fmt.Sprintf(format, v...))
}

// Section writes a banner framed by rules of "=".
func (c *ConsoleLogger) Section(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.level > LogLevelInfo {
		return
	}
	title = c.clean(title)
	pad := (sectionWidth - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	centered := strings.Repeat(" ", pad) + title
	fmt.Fprintf(c.out, "\n%s\n%s\n%s\n", c.banner.Render(sectionRule), c.banner.Render(centered), c.banner.Render(sectionRule))
	c.remember("SECTION", title)
}

// Phase writes a line labelled with phase.
func (c *ConsoleLogger) Phase(phase Phase, format string, v ...any) {
	c.emit(LogLevelInfo, string(phase), fmt.Sprintf(format, v...))
}

// Code writes a block of generated source.
func (c *ConsoleLogger) Code(language, code string) {
	header := fmt.Sprintf("💻 Generated %s code:", strings.ToUpper(language))
	c.emit(LogLevelInfo, string(PhaseCode), header)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.level > LogLevelInfo {
		return
	}
	for i, line := range strings.Split(strings.TrimRight(code, "\n"), "\n") {
		fmt.Fprintf(c.out, "%4d | %s\n", i+1, c.code.Render(line))
	}
}

// Execution reports the outcome of running generated code.
func (c *ConsoleLogger) Execution(output string, success bool) {
	level, status := LogLevelInfo, "✅ Execution succeeded"
	if !success {
		level, status = LogLevelWarn, "❌ Execution failed"
	}
	msg := status
	if out := strings.TrimSpace(output); out != "" {
		msg += "\n" + out
	}
	c.emit(level, string(PhaseExecution), msg)
}

// Recent returns up to n of the most recent entries, oldest first.
// n <= 0 returns the whole history.
func (c *ConsoleLogger) Recent(n int) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := c.next
	if c.full {
		size = len(c.history)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Entry, 0, n)
	start := c.next - n
	for i := 0; i < n; i++ {
		idx := (start + i + len(c.history)) % len(c.history)
		out = append(out, c.history[idx])
	}
	return out
}

func (c *ConsoleLogger) emit(level LogLevel, label, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.level > level {
		return
	}
	msg = c.clean(msg)

	var b strings.Builder
	if c.timestamps {
		b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	style, ok := c.styles[label]
	if !ok {
		style = c.styles[LogLevelInfo.String()]
	}
	b.WriteString(style.Render(fmt.Sprintf("%-9s", label)))
	b.WriteByte(' ')
	b.WriteString(msg)
	b.WriteByte('\n')
	io.WriteString(c.out, b.String())

	c.remember(label, msg)
}

func (c *ConsoleLogger) clean(s string) string {
	if c.ascii {
		return asciiReplacer.Replace(s)
	}
	return s
}

// remember must be called with c.mu held.
func (c *ConsoleLogger) remember(label, msg string) {
	c.history[c.next] = Entry{Time: time.Now(), Label: label, Message: msg}
	c.next++
	if c.next == len(c.history) {
		c.next = 0
		c.full = true
	}
}
