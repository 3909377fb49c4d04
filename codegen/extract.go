package codegen

import (
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[ \t]*\r?\n(.*?)```")

// ExtractCode returns the first Python code block in a model reply.
// Blocks tagged python, py or python3 win over untagged blocks; blocks in
// other languages are ignored.
func ExtractCode(reply string) (string, bool) {
	var untagged string
	found := false
	for _, m := range fenceRe.FindAllStringSubmatch(reply, -1) {
		code := strings.TrimSpace(m[2])
		if code == "" {
			continue
		}
		switch strings.ToLower(m[1]) {
		case "python", "py", "python3":
			return code, true
		case "":
			if !found {
				untagged, found = code, true
			}
		}
	}
	return untagged, found
}

// ContainsCode reports whether reply holds an extractable code block.
func ContainsCode(reply string) bool {
	_, ok := ExtractCode(reply)
	return ok
}

// ParseReasoning pulls the THINKING: and PLANNING: sections out of a reply.
// Each section runs until the next section marker or code fence.
func ParseReasoning(reply string) (thinking, planning string) {
	return section(reply, "THINKING:"), section(reply, "PLANNING:")
}

func section(reply, marker string) string {
	idx := strings.Index(reply, marker)
	if idx < 0 {
		return ""
	}
	rest := reply[idx+len(marker):]
	end := len(rest)
	for _, stop := range []string{"THINKING:", "PLANNING:", "```"} {
		if i := strings.Index(rest, stop); i >= 0 && i < end {
			end = i
		}
	}
	return strings.TrimSpace(rest[:end])
}
