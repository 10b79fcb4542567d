package trace

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "expenses/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// HeaderRequestID is echoed back on every response.
	HeaderRequestID = "X-Request-ID"
)

// Middleware assigns a request id, puts a request-scoped logger in the
// context and logs request start and completion.
type Middleware struct {
	logger    *applog.Logger
	extractIP func(*http.Request) string
	metrics   Metrics
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests int64
	ServerErrors  int64
	// LastDuration is the duration of the most recent request in microseconds.
	LastDuration int64
}

func NewMiddleware(logger *applog.Logger, extractIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Middleware{
		logger:    logger.WithComponent(applog.ComponentTrace),
		extractIP: extractIP,
	}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		// Honour a well-formed id from an upstream proxy.
		requestID := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		reqLogger := m.logger.With(applog.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = applog.WithContext(ctx, reqLogger)
		r = r.WithContext(ctx)

		sl := applog.NewStructuredLogger(reqLogger)
		sl.LogHTTPStart(ctx, r, clientIP)

		atomic.AddInt64(&m.metrics.TotalRequests, 1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		atomic.StoreInt64(&m.metrics.LastDuration, duration.Microseconds())
		if rw.statusCode >= 500 {
			atomic.AddInt64(&m.metrics.ServerErrors, 1)
		}
		sl.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	return uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests: atomic.LoadInt64(&m.metrics.TotalRequests),
		ServerErrors:  atomic.LoadInt64(&m.metrics.ServerErrors),
		LastDuration:  atomic.LoadInt64(&m.metrics.LastDuration),
	}
}
