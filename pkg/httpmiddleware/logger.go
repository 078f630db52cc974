package httpmiddleware

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Logger logs each backend exchange. maxBodySize controls body logging:
// 0 logs no body, -1 logs the whole body, n > 0 logs the first n bytes.
func Logger(logger *slog.Logger, maxBodySize int) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if logger == nil {
			return next
		}
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			logRequest(logger, req, maxBodySize)

			start := time.Now()
			resp, err := next.RoundTrip(req)
			elapsed := time.Since(start)

			if err != nil {
				logger.LogAttrs(req.Context(), slog.LevelError, "backend request failed",
					slog.String("method", req.Method),
					slog.String("url", req.URL.Redacted()),
					slog.Duration("duration", elapsed),
					slog.Any("error", err))
				return resp, err
			}

			logResponse(logger, req, resp, elapsed, maxBodySize)
			return resp, nil
		})
	}
}

func logRequest(logger *slog.Logger, req *http.Request, maxBodySize int) {
	if !logger.Enabled(req.Context(), slog.LevelDebug) {
		return
	}
	attrs := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("url", req.URL.Redacted()),
		headerGroup(req.Header),
	}

	if maxBodySize != 0 && req.Body != nil && req.Body != http.NoBody {
		body, err := peekBody(&req.Body, maxBodySize)
		if err == nil && len(body) > 0 {
			attrs = append(attrs, slog.String("body", string(body)))
		}
	}

	logger.LogAttrs(req.Context(), slog.LevelDebug, "backend request", attrs...)
}

func logResponse(logger *slog.Logger, req *http.Request, resp *http.Response, elapsed time.Duration, maxBodySize int) {
	level := slog.LevelDebug
	switch {
	case resp.StatusCode >= 500:
		level = slog.LevelError
	case resp.StatusCode >= 400:
		level = slog.LevelWarn
	}
	if !logger.Enabled(req.Context(), level) {
		return
	}

	attrs := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("url", req.URL.Redacted()),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", elapsed),
	}
	if maxBodySize != 0 && resp.Body != nil {
		body, err := peekBody(&resp.Body, maxBodySize)
		if err == nil && len(body) > 0 {
			attrs = append(attrs, slog.String("body", string(body)))
		}
	}

	logger.LogAttrs(req.Context(), level, "backend response", attrs...)
}

func headerGroup(h http.Header) slog.Attr {
	attrs := make([]slog.Attr, 0, len(h))
	for k, v := range h {
		if isSensitiveHeader(k) {
			attrs = append(attrs, slog.String(k, "[REDACTED]"))
			continue
		}
		attrs = append(attrs, slog.String(k, strings.Join(v, ", ")))
	}
	return slog.Attr{Key: "headers", Value: slog.GroupValue(attrs...)}
}

// peekBody reads up to maxBodySize bytes and puts the full stream back in place.
func peekBody(body *io.ReadCloser, maxBodySize int) ([]byte, error) {
	orig := *body
	defer orig.Close()

	all, err := io.ReadAll(orig)
	if err != nil {
		*body = io.NopCloser(bytes.NewReader(all))
		return nil, fmt.Errorf("read body: %w", err)
	}
	*body = io.NopCloser(bytes.NewReader(all))

	if maxBodySize > 0 && len(all) > maxBodySize {
		return all[:maxBodySize], nil
	}
	return all, nil
}

func isSensitiveHeader(name string) bool {
	switch strings.ToLower(name) {
	case "authorization", "cookie", "set-cookie", "x-api-key", "x-auth-token", "x-csrf-token":
		return true
	}
	return false
}
