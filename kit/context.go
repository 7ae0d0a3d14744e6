package kit

import "context"

// ctxKey keys the values kit carries through an endpoint chain.
type ctxKey int

const (
	transportKey ctxKey = iota
	requestIDKey
	traceIDKey
)

// WithTransport records which surface ("http", "mcp", "cli") a call came in on.
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, transportKey, t)
}

// GetTransport defaults to "http".
func GetTransport(ctx context.Context) string {
	if t, ok := ctx.Value(transportKey).(string); ok && t != "" {
		return t
	}
	return "http"
}

// WithRequestID tags one endpoint call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithTraceID tags everything done for one inbound HTTP request.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}
