// Package middleware holds the HTTP middleware the front door mounts
// ahead of the websocket upgrade and file-sync handlers: request IDs,
// request logging, panic recovery, and CORS.
package middleware

import "net/http"

// Middleware wraps an http.Handler. The front door's chi router composes
// these with router.Use, outermost first.
type Middleware func(http.Handler) http.Handler
