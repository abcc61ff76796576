// internal/services/markdown.go
package services

import (
	"html"
	"regexp"
)

// Applied in this order; ### must run before ## or level-3 headings would be
// captured as level-2.
var scriptRules = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`###\s*(.*)`), `<h3>${1}</h3>`},
	{regexp.MustCompile(`##\s*(.*)`), `<h2>${1}</h2>`},
	{regexp.MustCompile(`\*\*(.*?)\*\*`), `<strong>${1}</strong>`},
}

// FormatScript renders the headings and bold text of a reel script as HTML.
// Other markup in the script is escaped.
func FormatScript(script string) string {
	out := html.EscapeString(script)
	for _, rule := range scriptRules {
		out = rule.pattern.ReplaceAllString(out, rule.replacement)
	}
	return out
}
