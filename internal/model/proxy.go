// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// ResponseMode says how the upstream body is handed back to the caller.
type ResponseMode int

const (
	// ModeText buffers the whole upstream body before writing it.
	ModeText ResponseMode = iota
	// ModeBinary streams raw upstream bytes as they arrive.
	ModeBinary
)

func (m ResponseMode) String() string {
	if m == ModeBinary {
		return "binary"
	}
	return "text"
}

// ResponseModeFor picks ModeBinary when any Accept value asks for
// application/octet-stream.
func ResponseModeFor(accept []string) ResponseMode {
	for _, a := range accept {
		if strings.Contains(strings.ToLower(a), "application/octet-stream") {
			return ModeBinary
		}
	}
	return ModeText
}

// ProxyRequest represents a client request to be forwarded upstream.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	// Path is the escaped inbound path.
	Path string
	// RawQuery is forwarded byte for byte.
	RawQuery string
	Header   http.Header
	Body     io.Reader
}

// ProxyResponse represents the upstream response to be relayed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	Mode       ResponseMode
	// TargetURL is the resolved upstream URL, kept for logging.
	TargetURL string
}
