package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// responseRecorder wraps http.ResponseWriter to capture status code and size.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// RequestLogger logs HTTP requests with timing information and puts a
// request-scoped logger in the context.
type RequestLogger struct {
	logger *logging.Logger
}

func NewRequestLogger(logger *logging.Logger) *RequestLogger {
	if logger == nil {
		logger = logging.Default
	}
	return &RequestLogger{logger: logger}
}

func (l *RequestLogger) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		reqLogger := l.logger.WithField("request_id", requestID)
		r = r.WithContext(logging.WithContext(r.Context(), reqLogger))

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(recorder, r)

		fields := logging.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      recorder.statusCode,
			"size":        recorder.size,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": GetClientIP(r),
			"user_agent":  r.UserAgent(),
		}

		switch {
		case recorder.statusCode >= 500:
			reqLogger.Error("HTTP request", fields)
		case recorder.statusCode >= 400:
			reqLogger.Warn("HTTP request", fields)
		default:
			reqLogger.Info("HTTP request", fields)
		}
	})
}
