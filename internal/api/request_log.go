package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/aslmarket/aslmatch/internal/pkg/logger"
)

// requestLogFormatter writes access logs through the structured logger
// instead of chi's plain-text default.
type requestLogFormatter struct{}

func (requestLogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &requestLogEntry{
		log: logger.With(
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"remote_ip", r.RemoteAddr,
		),
	}
}

type requestLogEntry struct {
	log *logger.Logger
}

func (e *requestLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	fields := []interface{}{"status", status, "bytes", bytes, "duration", elapsed}
	switch {
	case status >= 500:
		e.log.Error("http request", fields...)
	case status >= 400:
		e.log.Warn("http request", fields...)
	default:
		e.log.Info("http request", fields...)
	}
}

func (e *requestLogEntry) Panic(v interface{}, stack []byte) {
	e.log.Error("http handler panic", "panic", v, "stack", string(stack))
}
