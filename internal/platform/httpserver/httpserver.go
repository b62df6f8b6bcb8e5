// Package httpserver builds the HTTP server that fronts the certification
// API. Shutdown is driven by cmd/server, so the server carries no lifecycle
// logic of its own.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for the workflow API. ReadHeaderTimeout bounds
// slow-header clients; handler timeouts are the middleware's concern.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
