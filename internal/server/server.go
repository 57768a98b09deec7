// Package server implements the HTTP API, middleware, and request handlers serving
// the latest decoded master server list.
package server

import (
	"net/http"
	"time"

	"github.com/tederis/ase2json/internal/config"
	"github.com/tederis/ase2json/internal/projector"
)

// New creates a new Server. store may be nil when storage is disabled.
func New(store SnapshotLister, cfg *config.Config) *Server {
	s := &Server{
		authToken:      cfg.Server.AuthToken,
		trustProxy:     cfg.Server.TrustProxy,
		hardLimitCount: cfg.Server.HardLimitCount,
		hardLimitWin:   cfg.Server.HardLimitWin,
		storage:        store,
		shutdown:       make(chan struct{}),
	}

	return s
}

// Close stops background routines started by the handler.
func (s *Server) Close() {
	close(s.shutdown)
}

// Update replaces the served document. data is the encoded full document.
func (s *Server) Update(doc *projector.Document, data []byte, at time.Time) error {
	light, err := projector.Encode(doc.Lighten())
	if err != nil {
		return err
	}

	s.latest.Store(&published{
		updatedAt:   at,
		full:        data,
		light:       light,
		fullDigest:  projector.Digest(data),
		lightDigest: projector.Digest(light),
		lossy:       doc.Lossy,
		truncated:   doc.Truncated,
	})

	return nil
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/servers", s.RateLimitMiddleware(http.HandlerFunc(s.handleServers)))
	mux.Handle("GET /api/summary", s.RateLimitMiddleware(http.HandlerFunc(s.handleSummary)))
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))
	mux.Handle("GET /healthz", http.HandlerFunc(s.handleHealth))

	snapshots := s.RateLimitMiddleware(http.HandlerFunc(s.handleSnapshots))
	if s.storage != nil {
		snapshots = AdminAuthMiddleware(s.authToken, snapshots)
	}
	mux.Handle("GET /api/snapshots", snapshots)

	return s.LoggingMiddleware(mux)
}
