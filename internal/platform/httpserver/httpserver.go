package httpserver

import (
	"net/http"
	"time"
)

// New builds the marketplace HTTP server. The write timeout must exceed the
// worst-case settlement path, which can wait on a contended row lock.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
