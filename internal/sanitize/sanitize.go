// Package sanitize provides the hygiene helpers applied to every piece of
// user-supplied text before it is stored or relayed. All functions are pure.
package sanitize

import (
	"regexp"
	"strings"
)

// htmlEscaper rewrites the five characters that matter for HTML injection.
// It is applied exactly once per input; running it over already-escaped text
// would double-encode the ampersands.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

// EscapeHTML replaces & < > " ' with their HTML entities.
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

// Clean trims surrounding whitespace and HTML-escapes the result.
func Clean(input string) string {
	return EscapeHTML(strings.TrimSpace(input))
}

// ValidName reports whether a display name is 3-20 characters of
// alphanumerics, underscores, or hyphens.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}
