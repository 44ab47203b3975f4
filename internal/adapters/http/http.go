package http

import (
	"net/http"
	"time"
)

// NewServer leaves WriteTimeout unset; websocket writes set their own deadlines.
func NewServer(handler http.Handler, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
