// Package sanitize cleans free text entered by users before it is stored or
// rendered into notification bodies.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	entityReplacer    = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// StripHTML removes markup, including tags that were entity-encoded.
func StripHTML(s string) string {
	result := tagPattern.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	return tagPattern.ReplaceAllString(result, "")
}

// Text strips markup and collapses runs of whitespace to a single space.
func Text(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(StripHTML(s), " "))
}
