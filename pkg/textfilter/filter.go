// Package textfilter cleans model output before it is shown to players.
package textfilter

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// markupRules are applied in order. Each pattern keeps the text it wraps.
var markupRules = []struct {
	name        string
	pattern     string
	replacement string
}{
	{"fence", "(?m)^```[a-zA-Z]*\\s*$", ""},
	{"heading", `(?m)^[ \t]*#{1,6}[ \t]+`, ""},
	{"bullet", `(?m)^[ \t]*(?:[-*+•]|\d+[.)])[ \t]+`, ""},
	{"bold", `\*\*([^*\n]+)\*\*`, "$1"},
	{"underline_bold", `__([^_\n]+)__`, "$1"},
	{"italic", `\*([^*\n]+)\*`, "$1"},
	{"code", "`([^`\\n]+)`", "$1"},
	{"label", `(?i)\A[ \t]*(?:scene|outcome|ending|summary|description)[ \t]*:[ \t]*`, ""},
}

var (
	spaceRun     = regexp.MustCompile(`[ \t\f\v]+`)
	trailingWS   = regexp.MustCompile(`(?m)[ \t]+$`)
	paragraphRun = regexp.MustCompile(`\n{3,}`)
)

// Cleaner strips the markup the prompts ask models not to produce.
type Cleaner struct {
	rules []*regexp.Regexp
	repl  []string
}

// NewCleaner compiles the markup rules.
func NewCleaner() *Cleaner {
	c := &Cleaner{}
	for _, r := range markupRules {
		c.rules = append(c.rules, regexp.MustCompile(r.pattern))
		c.repl = append(c.repl, r.replacement)
	}
	return c
}

// Clean removes markup, collapses runs of spaces and blank lines, trims the result
// and normalizes it to NFC.
func (c *Cleaner) Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for i, re := range c.rules {
		text = re.ReplaceAllString(text, c.repl[i])
	}
	text = spaceRun.ReplaceAllString(text, " ")
	text = trailingWS.ReplaceAllString(text, "")
	text = paragraphRun.ReplaceAllString(text, "\n\n")
	return norm.NFC.String(strings.TrimSpace(text))
}

var defaultCleaner = NewCleaner()

// Clean runs the shared Cleaner.
func Clean(text string) string {
	return defaultCleaner.Clean(text)
}
