package rewrite

import (
	"net/http"
	"slices"
	"strings"
)

// ExcludedResponseHeaders are connection-level framing headers that are
// never relayed from the upstream response to the caller.
var ExcludedResponseHeaders = []string{"Transfer-Encoding", "Connection"}

// Field is one header name with all of its values, in arrival order.
type Field struct {
	Name   string
	Values []string
}

// Fields is an ordered header list. Names compare case-insensitively.
type Fields []Field

// FromHTTP converts an http.Header into Fields sorted by name so that the
// result is deterministic.
func FromHTTP(h http.Header) Fields {
	fs := make(Fields, 0, len(h))
	for name, vals := range h {
		fs = append(fs, Field{Name: name, Values: slices.Clone(vals)})
	}
	slices.SortFunc(fs, func(a, b Field) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return fs
}

// ToHTTP converts Fields back into an http.Header, canonicalizing names.
func (fs Fields) ToHTTP() http.Header {
	h := make(http.Header, len(fs))
	for _, f := range fs {
		key := http.CanonicalHeaderKey(f.Name)
		h[key] = append(h[key], f.Values...)
	}
	return h
}

// Without returns a copy of fs with every field named in names removed.
func (fs Fields) Without(names ...string) Fields {
	out := make(Fields, 0, len(fs))
	for _, f := range fs {
		if slices.ContainsFunc(names, func(n string) bool { return strings.EqualFold(n, f.Name) }) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// With returns a copy of fs where name carries exactly value. An existing
// field keeps its position; a new one is appended.
func (fs Fields) With(name, value string) Fields {
	out := make(Fields, 0, len(fs)+1)
	replaced := false
	for _, f := range fs {
		if strings.EqualFold(f.Name, name) {
			if !replaced {
				out = append(out, Field{Name: f.Name, Values: []string{value}})
				replaced = true
			}
			continue
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, Field{Name: name, Values: []string{value}})
	}
	return out
}
