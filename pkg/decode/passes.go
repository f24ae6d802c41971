package decode

import (
	"regexp"
	"strings"
)

// RepairPass is a named, pure text transformation over candidate JSON.
// Passes run in a fixed order; each must be a no-op on already-valid input.
type RepairPass struct {
	Name  string
	Apply func(string) string
}

var (
	siblingObjects  = regexp.MustCompile(`\}\s*\{`)
	siblingArrays   = regexp.MustCompile(`\]\s*\[`)
	missingComma    = regexp.MustCompile(`("[^"\\]*"|\d|true|false|null|\}|\])\s*\n\s*"`)
	trailingComma   = regexp.MustCompile(`,(\s*[\}\]])`)
	doubledComma    = regexp.MustCompile(`,\s*,`)
	danglingEscape  = regexp.MustCompile(`([^\\])\\"(\s*[,\}\]])`)
	doubledIdentEsc = regexp.MustCompile(`\\\\"([A-Za-z_][A-Za-z0-9_]*)\\\\"`)
	lineSplice      = regexp.MustCompile(`\\\s*\n\s*`)
)

// Passes is the ordered structural and escaping normalization pipeline.
// Structural repairs come first so escaping repairs see well-shaped text.
var Passes = []RepairPass{
	{
		// Sibling objects emitted without a separating comma: `} {`.
		Name: "sibling-object-separator",
		Apply: func(s string) string {
			return siblingObjects.ReplaceAllString(s, "}, {")
		},
	},
	{
		Name: "sibling-array-separator",
		Apply: func(s string) string {
			return siblingArrays.ReplaceAllString(s, "], [")
		},
	},
	{
		// A value followed on the next line by another field, with the
		// comma dropped between them.
		Name: "newline-field-separator",
		Apply: func(s string) string {
			return missingComma.ReplaceAllStringFunc(s, func(m string) string {
				idx := strings.LastIndexByte(m, '\n')
				if idx < 0 {
					return m
				}
				head := strings.TrimRight(m[:idx], " \t")
				if strings.HasSuffix(head, ",") || strings.HasSuffix(head, "{") || strings.HasSuffix(head, "[") || strings.HasSuffix(head, ":") {
					return m
				}
				return head + "," + m[idx:]
			})
		},
	},
	{
		// Backslash left dangling before a closing quote: `...\" ,` where
		// the value really ended.
		Name: "dangling-escape",
		Apply: func(s string) string {
			return danglingEscape.ReplaceAllString(s, `$1"$2`)
		},
	},
	{
		// Doubled backslashes wrapping quoted identifiers inside generated
		// SQL text, typically `\\"column\\"`.
		Name: "doubled-identifier-escape",
		Apply: func(s string) string {
			return doubledIdentEsc.ReplaceAllString(s, `\"$1\"`)
		},
	},
	{
		// A literal backslash-newline used as a line continuation inside a
		// string value.
		Name: "line-continuation",
		Apply: func(s string) string {
			return lineSplice.ReplaceAllString(s, " ")
		},
	},
	{
		Name: "doubled-comma",
		Apply: func(s string) string {
			return doubledComma.ReplaceAllString(s, ",")
		},
	},
	{
		Name: "trailing-comma",
		Apply: func(s string) string {
			return trailingComma.ReplaceAllString(s, "$1")
		},
	},
}

// ApplyPasses runs every repair pass in order and returns the result.
func ApplyPasses(s string) string {
	for _, p := range Passes {
		s = p.Apply(s)
	}
	return s
}
