package server

import (
	"sync/atomic"
	"time"

	"github.com/tederis/ase2json/internal/models"
)

// SnapshotLister reads the stored snapshot history.
type SnapshotLister interface {
	ListSnapshots(limit int) ([]models.Snapshot, error)
}

// Server holds the dependencies, configuration, and runtime state required
// to serve the latest master server list over HTTP.
type Server struct {
	// latest is the document served by /api/servers; nil until the first poll succeeds.
	latest atomic.Pointer[published]

	// storage provides the snapshot history. It can be nil when storage is disabled.
	storage SnapshotLister

	// shutdown stops the rate limiter cleanup.
	shutdown chan struct{}

	// authToken is the Bearer token required by /api/snapshots. Empty rejects every request.
	authToken string

	// hardLimitCount is the maximum number of requests allowed per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}

// published is one encoded document in both of its shapes.
type published struct {
	updatedAt   time.Time
	full        []byte
	light       []byte
	fullDigest  string
	lightDigest string
	lossy       int
	truncated   bool
}
