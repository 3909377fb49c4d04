package codegen

import (
	"fmt"
	"strings"
)

const systemPromptTemplate = `You are an expert Python programmer. Write one complete, runnable Python 3 script that accomplishes the user's task.

Answer in exactly this format:
THINKING: what the task needs and any pitfalls
PLANNING: the steps the script takes
` + "```python" + `
# the complete script
` + "```" + `

Rules:
- Print every result the user should see to standard output.
- The script runs non-interactively: never read from standard input.
- These modules are unavailable and must not be imported: %s.
- Do not call eval, exec or __import__.
- Put all code in a single python code block.`

// SystemPrompt renders the default system prompt for a denylist.
func SystemPrompt(denylist []string) string {
	mods := "none"
	if len(denylist) > 0 {
		mods = strings.Join(denylist, ", ")
	}
	return fmt.Sprintf(systemPromptTemplate, mods)
}

// userPrompt renders the task, plus the failed attempt when regenerating.
func userPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(strings.TrimSpace(req.Task))
	if req.PriorError == "" {
		return b.String()
	}
	fmt.Fprintf(&b, "\n\nAttempt %d failed.", req.Attempt)
	if req.PriorCode != "" {
		b.WriteString("\nCode that failed:\n```python\n")
		b.WriteString(strings.TrimSpace(req.PriorCode))
		b.WriteString("\n```")
	}
	b.WriteString("\nError:\n")
	b.WriteString(strings.TrimSpace(req.PriorError))
	b.WriteString("\n\nFix the problem and return the corrected complete script.")
	return b.String()
}
