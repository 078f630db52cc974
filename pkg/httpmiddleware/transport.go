// Package httpmiddleware composes outbound http.RoundTripper chains used by
// the backend client.
package httpmiddleware

import (
	"net"
	"net/http"
	"time"
)

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Middleware wraps an http.RoundTripper.
type Middleware func(http.RoundTripper) http.RoundTripper

// Wrap applies middlewares to base; the first middleware is the outermost.
func Wrap(base http.RoundTripper, middlewares ...Middleware) http.RoundTripper {
	if base == nil {
		base = DefaultTransport()
	}
	for i := len(middlewares) - 1; i >= 0; i-- {
		base = middlewares[i](base)
	}
	return base
}

// DefaultTransport returns a pooled transport for the backend API.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// Headers sets fixed headers on every request without overriding values the
// caller already set. Requests are cloned before mutation.
func Headers(headers map[string]string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			req = req.Clone(req.Context())
			for k, v := range headers {
				if req.Header.Get(k) == "" {
					req.Header.Set(k, v)
				}
			}
			return next.RoundTrip(req)
		})
	}
}

// APIKey sends the backend key in the X-API-KEY header.
func APIKey(key string) Middleware {
	if key == "" {
		return func(next http.RoundTripper) http.RoundTripper { return next }
	}
	return Headers(map[string]string{"X-API-KEY": key})
}

// JSON negotiates JSON for both directions.
func JSON() Middleware {
	return Headers(map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	})
}

// DurationRecorder receives the latency of each round trip and whether it failed.
type DurationRecorder interface {
	RecordBackendCall(d time.Duration, status int, err error)
}

// Metrics reports every round trip to rec.
func Metrics(rec DurationRecorder) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if rec == nil {
			return next
		}
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			rec.RecordBackendCall(time.Since(start), status, err)
			return resp, err
		})
	}
}
