package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
)

// redactedParams are route parameters whose values are secrets.
var redactedParams = []string{"bot_credential"}

const redacted = "[redacted]"

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger returns a middleware that logs HTTP requests with slog.
// Secret path parameters and request headers are never logged.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", redactPath(r)),
				slog.Int("status_code", wrapped.status),
				slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}
			// With an active span the log handler adds trace_id itself.
			if traceID := GetTraceID(r.Context()); traceID != "" && !trace.SpanContextFromContext(r.Context()).IsValid() {
				attrs = append(attrs, slog.String("trace_id", traceID))
			}

			level := slog.LevelInfo
			if wrapped.status >= 500 {
				level = slog.LevelError
			} else if wrapped.status >= 400 {
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http_request", attrs...)
		})
	}
}

// redactPath replaces secret route parameter values in the request path.
// It reads the chi route context, which is only populated after routing, so
// it must run once the handler has returned.
func redactPath(r *http.Request) string {
	path := r.URL.Path
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return path
	}
	for _, name := range redactedParams {
		value := rctx.URLParam(name)
		if value == "" {
			continue
		}
		// chi matches on RawPath when it is set, so the value may be escaped.
		if unescaped, err := url.PathUnescape(value); err == nil {
			path = strings.ReplaceAll(path, unescaped, redacted)
		}
		path = strings.ReplaceAll(path, value, redacted)
	}
	return path
}
