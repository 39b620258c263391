package utils

import (
	"html"
	"regexp"
	"strings"
)

var (
	angleBrackets  = regexp.MustCompile(`[<>]`)
	scriptProtocol = regexp.MustCompile(`(?i)javascript\s*:`)
	eventHandler   = regexp.MustCompile(`(?i)\bon\w+\s*=`)
	slugInvalid    = regexp.MustCompile(`[^a-z0-9]+`)
)

// SanitizeInput strips angle brackets, javascript: protocols and inline
// event-handler attributes, then trims surrounding whitespace. Stripping
// repeats until nothing changes so nested payloads cannot reassemble.
func SanitizeInput(s string) string {
	for {
		next := angleBrackets.ReplaceAllString(s, "")
		next = scriptProtocol.ReplaceAllString(next, "")
		next = eventHandler.ReplaceAllString(next, "")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

// EscapeHTML escapes &, <, >, quotes for safe embedding in markup.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes SQL LIKE wildcards; use with ESCAPE '\'.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ContainsPattern builds a case-insensitive "contains" LIKE operand.
func ContainsPattern(s string) string {
	return "%" + EscapeLike(strings.ToLower(strings.TrimSpace(s))) + "%"
}

// Slugify lower-cases s and joins alphanumeric runs with dashes.
func Slugify(s string) string {
	slug := slugInvalid.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(slug, "-")
}
