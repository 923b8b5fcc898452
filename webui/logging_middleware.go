package webui

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"inpaint_backend/logging"
)

// LoggingMiddleware logs one structured entry per request.
type LoggingMiddleware struct {
	logger    *logging.Logger
	skipPaths map[string]bool
}

// NewLoggingMiddleware returns a middleware that logs to logger. Requests to
// skipPaths are not logged.
func NewLoggingMiddleware(logger *logging.Logger, skipPaths ...string) *LoggingMiddleware {
	if logger == nil {
		logger = logging.NewNop()
	}
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &LoggingMiddleware{logger: logger.Named("http"), skipPaths: skip}
}

// Handler wraps next with request logging. 5xx responses log at error level,
// 4xx at warn, everything else at info.
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", getClientIP(r)),
			zap.Int64("bytes", wrapped.bytesWritten),
		}
		switch level := statusLevel(wrapped.statusCode); level {
		case zapcore.ErrorLevel:
			m.logger.Error("request", fields...)
		case zapcore.WarnLevel:
			m.logger.Warn("request", fields...)
		default:
			m.logger.Info("request", fields...)
		}
	})
}

func statusLevel(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// responseWriterWrapper captures the status code and response size.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

func (w *responseWriterWrapper) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack lets the websocket upgrader take over the connection.
func (w *responseWriterWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("webui: response writer does not support hijacking")
	}
	w.wroteHeader = true
	w.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (w *responseWriterWrapper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// getClientIP prefers the first X-Forwarded-For entry, then X-Real-IP.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
