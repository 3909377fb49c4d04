package sandbox

import (
	"bytes"
	"unicode/utf8"
)

// TruncationMarker is appended to output cut at the configured limit.
const TruncationMarker = "\n...[output truncated]"

// Truncate cuts s to at most max bytes, backing off to a rune boundary,
// and appends TruncationMarker. max <= 0 disables truncation.
func Truncate(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		return s, false
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + TruncationMarker, true
}

// Capture keeps just enough of a stream to truncate it later, so a chatty
// process cannot grow memory without bound.
type Capture struct {
	buf       bytes.Buffer
	max       int
	discarded int64
}

// NewCapture returns a Capture that keeps about max bytes.
func NewCapture(max int) *Capture {
	return &Capture{max: max}
}

func (c *Capture) Write(p []byte) (int, error) {
	n := len(p)
	if c.max <= 0 {
		return c.buf.Write(p)
	}
	keep := c.max + utf8.UTFMax - c.buf.Len()
	if keep <= 0 {
		c.discarded += int64(n)
		return n, nil
	}
	if n > keep {
		c.discarded += int64(n - keep)
		p = p[:keep]
	}
	c.buf.Write(p)
	return n, nil
}

// String returns the captured text, truncated, and whether it was cut.
func (c *Capture) String() (string, bool) {
	return Truncate(c.buf.String(), c.max)
}
