// Package service implements the forwarding and fan-out logic behind the
// proxy routes.
package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"cors-dev-proxy/internal/client"
	"cors-dev-proxy/internal/config"
	"cors-dev-proxy/internal/model"
	"cors-dev-proxy/internal/rewrite"
)

// ErrOutsidePrefix is returned when a request path is not under the
// configured proxy prefix.
var ErrOutsidePrefix = errors.New("path is outside the proxy prefix")

// ErrReadBody is returned when the inbound request body cannot be read.
var ErrReadBody = errors.New("read request body")

// ProxyService rewrites inbound requests onto the upstream and forwards them.
type ProxyService struct {
	client  *client.UpstreamClient
	logger  *slog.Logger
	baseURL *url.URL
	prefix  rewrite.Prefix
}

// NewProxyService creates a ProxyService.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream base_url %q must be absolute", cfg.Upstream.BaseURL)
	}

	return &ProxyService{
		client:  c,
		logger:  logger.With("component", "proxy_service"),
		baseURL: u,
		prefix: rewrite.Prefix{
			From: cfg.Proxy.Prefix,
			To:   cfg.Proxy.UpstreamPrefix,
		},
	}, nil
}

// Forward sends a ProxyRequest to the upstream and returns the response with
// framing headers already removed. A non-2xx upstream status is not an error.
// The caller is responsible for closing the response body.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	target, err := s.TargetURL(pr.Path, pr.RawQuery)
	if err != nil {
		return nil, err
	}

	header := rewrite.FromHTTP(pr.Header).With("Host", s.baseURL.Host).ToHTTP()

	var body io.Reader
	if hasBody(pr.Method) && pr.Body != nil {
		buf, err := io.ReadAll(pr.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReadBody, err)
		}
		body = bytes.NewReader(buf)
	}

	mode := model.ResponseModeFor(pr.Header.Values("Accept"))

	s.logger.Info("forwarding request",
		"method", pr.Method,
		"target", target,
		"mode", mode.String(),
	)

	resp, err := s.client.DoStream(pr.Ctx, pr.Method, target, header, body)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	resp.Header = rewrite.FromHTTP(resp.Header).Without(rewrite.ExcludedResponseHeaders...).ToHTTP()
	resp.Mode = mode
	return resp, nil
}

// TargetURL maps an escaped inbound path and raw query onto the upstream.
// The query string is appended unmodified.
func (s *ProxyService) TargetURL(path, rawQuery string) (string, error) {
	rewritten, ok := s.prefix.Apply(path)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrOutsidePrefix, path)
	}

	var b strings.Builder
	b.WriteString(s.baseURL.Scheme)
	b.WriteString("://")
	b.WriteString(s.baseURL.Host)
	b.WriteString(strings.TrimSuffix(s.baseURL.EscapedPath(), "/"))
	b.WriteString(rewritten)
	if rawQuery != "" {
		b.WriteByte('?')
		b.WriteString(rawQuery)
	}
	return b.String(), nil
}

// hasBody reports whether the inbound body is forwarded for method.
func hasBody(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}
