// Path: internal/delivery/rest/server.go
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP server for the read API.
type Server struct {
	httpServer *http.Server
}

// NewRouter wires the API routes onto a fresh mux.
func NewRouter(service dataService) *http.ServeMux {
	modelHandlers := NewModelHandlers(service)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /loras", modelHandlers.ListLoras)
	mux.HandleFunc("GET /models/{org}/{name}", modelHandlers.GetModelByID)
	mux.HandleFunc("POST /refresh", modelHandlers.Refresh)
	mux.HandleFunc("GET /status", modelHandlers.Status)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// NewServer creates and configures a new API server.
func NewServer(port string, service dataService) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:        ":" + port,
			Handler:     NewRouter(service),
			ReadTimeout: 5 * time.Second,
			// A refresh walks several upstream pages and downloads covers.
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  15 * time.Second,
		},
	}
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
