package sandbox

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrRestricted marks code rejected before it reaches the interpreter.
var ErrRestricted = errors.New("restricted code")

// Violation is one reason code was rejected.
type Violation struct {
	Module string // the offending module, empty for dynamic execution
	Call   string // eval, exec or __import__
	Line   int
}

func (v Violation) String() string {
	if v.Module != "" {
		return fmt.Sprintf("line %d: import of restricted module %q", v.Line, v.Module)
	}
	return fmt.Sprintf("line %d: use of %s() is not allowed", v.Line, v.Call)
}

// PolicyError lists every violation found in a piece of code.
type PolicyError struct {
	Violations []Violation
}

func (e *PolicyError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "security violation: " + strings.Join(parts, "; ")
}

func (e *PolicyError) Unwrap() error { return ErrRestricted }

var (
	dynamicImportRe = regexp.MustCompile(`(?:__import__|import_module)[\s\\]*\([\s\\]*[rRbBuU]?['"]([\w.]+)['"]`)
	dynamicCallRe   = regexp.MustCompile(`(?:^|[^\w.])(eval|exec|__import__)\s*\(`)
	fromImportRe    = regexp.MustCompile(`^from\s+([\w.]+)\s+import\b`)
	importRe        = regexp.MustCompile(`^import\s+(.+)$`)
)

// Import is a module referenced by code.
type Import struct {
	Module string
	Line   int
}

// Imports lists the absolute modules code imports, either statically or
// through __import__ and importlib.import_module with a literal name.
// It is a lexical scan: string and comment contents are ignored for
// import statements, and names computed at runtime are invisible.
func Imports(code string) []Import {
	var out []Import
	for _, m := range dynamicImportRe.FindAllStringSubmatchIndex(code, -1) {
		out = append(out, Import{
			Module: code[m[2]:m[3]],
			Line:   strings.Count(code[:m[0]], "\n") + 1,
		})
	}

	for _, l := range logicalLines(stripLiterals(code)) {
		for _, stmt := range splitStatements(l.text) {
			for _, mod := range statementModules(stmt) {
				out = append(out, Import{Module: mod, Line: l.line})
			}
		}
	}
	return out
}

// Check scans code against the configured policy without running it.
func (c Config) Check(code string) error {
	c = c.withDefaults()
	var violations []Violation
	for _, imp := range Imports(code) {
		if _, denied := c.denied(imp.Module); denied {
			violations = append(violations, Violation{Module: imp.Module, Line: imp.Line})
		}
	}
	if !c.AllowDynamicExecution {
		for _, l := range logicalLines(stripLiterals(code)) {
			for _, m := range dynamicCallRe.FindAllStringSubmatch(l.text, -1) {
				violations = append(violations, Violation{Call: m[1], Line: l.line})
			}
		}
	}
	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}

func matchesModule(module, denied string) bool {
	return module == denied || strings.HasPrefix(module, denied+".")
}

type logicalLine struct {
	text string
	line int // first physical line
}

// logicalLines splits literal-free code into lines, joining backslash
// continuations onto the line they start on.
func logicalLines(code string) []logicalLine {
	var (
		out     []logicalLine
		cur     strings.Builder
		pending bool
		start   int
	)
	for i, line := range strings.Split(code, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !pending {
			start = i + 1
		}
		if body, ok := strings.CutSuffix(line, "\\"); ok {
			cur.WriteString(body)
			cur.WriteByte(' ')
			pending = true
			continue
		}
		cur.WriteString(line)
		out = append(out, logicalLine{text: cur.String(), line: start})
		cur.Reset()
		pending = false
	}
	if pending {
		out = append(out, logicalLine{text: cur.String(), line: start})
	}
	return out
}

func splitStatements(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool { return r == ';' || r == ':' })
}

func statementModules(stmt string) []string {
	stmt = strings.TrimSpace(stmt)
	if m := fromImportRe.FindStringSubmatch(stmt); m != nil {
		if strings.HasPrefix(m[1], ".") {
			return nil
		}
		return []string{m[1]}
	}
	m := importRe.FindStringSubmatch(stmt)
	if m == nil {
		return nil
	}
	var mods []string
	for _, part := range strings.Split(m[1], ",") {
		part = strings.Trim(strings.TrimSpace(part), "()\\")
		if name := strings.Fields(part); len(name) > 0 && isDottedName(name[0]) {
			mods = append(mods, name[0])
		}
	}
	return mods
}

func isDottedName(s string) bool {
	for _, seg := range strings.Split(s, ".") {
		if seg == "" {
			return false
		}
		for i, r := range seg {
			if r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || i > 0 && r >= '0' && r <= '9' {
				continue
			}
			return false
		}
	}
	return true
}

// stripLiterals blanks out comments and the contents of string literals,
// keeping line structure so reported line numbers still match.
func stripLiterals(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for i := 0; i < len(code); {
		ch := code[i]
		switch {
		case ch == '#':
			for i < len(code) && code[i] != '\n' {
				i++
			}
		case ch == '\'' || ch == '"':
			quote := string(ch)
			if strings.HasPrefix(code[i:], strings.Repeat(quote, 3)) {
				quote = strings.Repeat(quote, 3)
			}
			b.WriteString(quote)
			i += len(quote)
			for i < len(code) {
				if code[i] == '\\' {
					if i+1 < len(code) && code[i+1] == '\n' {
						b.WriteByte('\n')
					}
					i += 2
					continue
				}
				if strings.HasPrefix(code[i:], quote) {
					break
				}
				if code[i] == '\n' {
					if len(quote) == 1 {
						break
					}
					b.WriteByte('\n')
				}
				i++
			}
			if i > len(code) {
				i = len(code)
			}
			if strings.HasPrefix(code[i:], quote) {
				b.WriteString(quote)
				i += len(quote)
			}
		default:
			b.WriteByte(ch)
			i++
		}
	}
	return b.String()
}
