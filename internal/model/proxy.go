// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest is an inbound call to /api/proxy/{...path} to be forwarded upstream.
type ProxyRequest struct {
	Ctx      context.Context
	Method   string
	Segments []string // path segments after the proxy prefix, still escaped
	RawQuery string   // query without the leading '?'
	Header   http.Header
	Body     io.Reader
}

// UpstreamResponse is the backend reply as received; Body must be closed.
type UpstreamResponse struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       io.ReadCloser
}

// ProxyResponse is the fully read, filtered response relayed to the caller.
type ProxyResponse struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte // nil when the upstream sent no body
}
