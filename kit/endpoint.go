// CLAUDE:SUMMARY Transport-neutral endpoint type and middleware chaining shared by the HTTP and MCP surfaces.
// Package kit holds the transport-neutral endpoint shape and the context
// keys every transport agrees on.
package kit

import "context"

// Endpoint is one operation, independent of the transport that invokes it.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware decorates an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first one is outermost.
func Chain(outer Middleware, others ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(others) - 1; i >= 0; i-- {
			next = others[i](next)
		}
		return outer(next)
	}
}
