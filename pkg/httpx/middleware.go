package httpx

import "net/http"

// Middleware wraps an http.Handler with cross-cutting behaviour. Each
// middleware has a single contract: request in, request-or-short-circuit
// response out.
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares around a handler. The first middleware listed is
// the outermost, i.e. it runs first. Composition is explicit so the pipeline
// order is visible (and testable) at the call site rather than implied by
// registration side effects.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
