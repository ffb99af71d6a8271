// Package httpserver builds the process's http.Server.
package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// New builds the server. Read and write timeouts are generous because
// registration saves stream several document uploads in one request. Server
// level errors (TLS handshakes, panics outside handlers) go to logger.
func New(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}
