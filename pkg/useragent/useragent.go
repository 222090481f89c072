// Package useragent identifies fuzic on outgoing HTTP requests.
package useragent

import (
	"fmt"
	"net/http"

	"github.com/toozej/fuzic/pkg/version"
)

const projectURL = "https://github.com/toozej/fuzic"

// String returns the User-Agent header value for the running build, e.g.
// "fuzic/v1.2.0 (+https://github.com/toozej/fuzic)".
func String() string {
	return WithVersion(version.Get().Version)
}

// WithVersion builds the User-Agent header value for a specific version.
func WithVersion(v string) string {
	if v == "" {
		v = "dev"
	}
	return fmt.Sprintf("fuzic/%s (+%s)", v, projectURL)
}

// Transport sets User-Agent on requests that do not carry one.
type Transport struct {
	Base      http.RoundTripper
	UserAgent string
}

// Wrap returns base decorated with the fuzic User-Agent. A nil base means
// http.DefaultTransport.
func Wrap(base http.RoundTripper) *Transport {
	return &Transport{Base: base, UserAgent: String()}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Header.Get("User-Agent") != "" {
		return base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.UserAgent)
	return base.RoundTrip(r)
}
