package shield

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/merceaemil/taxonomy-navigator/kit"
)

// TraceHeader carries the trace id in both directions.
const TraceHeader = "X-Trace-ID"

// TraceID tags each request with a trace id and a logger bound to it. An id
// supplied by a fronting proxy is kept when it is short and plain;
// otherwise a random 8-hex-char id is minted.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(TraceHeader)
		if !validTraceID(id) {
			id = newTraceID()
		}
		w.Header().Set(TraceHeader, id)

		log := slog.Default().With("trace_id", id, "method", r.Method, "path", r.URL.Path)
		log.Debug("request", "remote_addr", r.RemoteAddr)

		ctx := kit.WithTraceID(r.Context(), id)
		ctx = context.WithValue(ctx, loggerKey, log)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetLogger returns the request's logger, or slog.Default() outside a
// traced request.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

func newTraceID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func validTraceID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-':
		default:
			return false
		}
	}
	return true
}
