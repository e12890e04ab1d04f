// Package rewrite holds the pure path and header transformations applied to
// proxied requests and responses.
package rewrite

import "strings"

// Prefix maps a leading path segment on the inbound side to the one the
// upstream expects.
type Prefix struct {
	From string
	To   string
}

// Match reports whether path starts with p.From on a segment boundary:
// "/api" matches "/api" and "/api/x" but not "/apix".
func (p Prefix) Match(path string) bool {
	from := strings.TrimSuffix(p.From, "/")
	if from == "" {
		return strings.HasPrefix(path, "/")
	}
	if !strings.HasPrefix(path, from) {
		return false
	}
	rest := path[len(from):]
	return rest == "" || rest[0] == '/'
}

// Apply replaces p.From with p.To at the start of path and keeps the
// remainder untouched. It returns false when path is not under p.From.
func (p Prefix) Apply(path string) (string, bool) {
	if !p.Match(path) {
		return "", false
	}
	from := strings.TrimSuffix(p.From, "/")
	to := strings.TrimSuffix(p.To, "/")
	rest := path[len(from):]
	if to == "" && rest == "" {
		return "/", true
	}
	return to + rest, true
}
