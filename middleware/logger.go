package middleware

import (
	"log/slog"
	"net/http"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Параметры запроса, значения которых не пишутся в лог.
var redactedParams = []string{"token", "code", "state"}

// RequestLogger - chi RequestLogger поверх slog. Секреты в query
// (?token= у WebSocket, code/state у OAuth callback) заменяются на REDACTED.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return chiMiddleware.RequestLogger(&redactingFormatter{
		next: &chiMiddleware.DefaultLogFormatter{
			Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelInfo),
			NoColor: true,
		},
	})
}

type redactingFormatter struct {
	next chiMiddleware.LogFormatter
}

func (f *redactingFormatter) NewLogEntry(r *http.Request) chiMiddleware.LogEntry {
	return f.next.NewLogEntry(redactQuery(r))
}

func redactQuery(r *http.Request) *http.Request {
	if r.URL.RawQuery == "" {
		return r
	}
	query := r.URL.Query()
	changed := false
	for _, key := range redactedParams {
		if query.Has(key) {
			query.Set(key, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return r
	}

	clone := r.Clone(r.Context())
	clone.URL.RawQuery = query.Encode()
	clone.RequestURI = clone.URL.RequestURI()
	return clone
}
