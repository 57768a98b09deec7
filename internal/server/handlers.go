package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tederis/ase2json/internal/models"
	"github.com/tederis/ase2json/internal/vars"
)

const (
	defaultSnapshotLimit = 20
	maxSnapshotLimit     = 500
)

// handleServers serves the latest document. ?light=1 selects the summary only.
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	light, _ := strconv.ParseBool(r.URL.Query().Get("light"))
	s.serveDocument(w, r, light)
}

// handleSummary serves the summary counters of the latest document.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.serveDocument(w, r, true)
}

func (s *Server) serveDocument(w http.ResponseWriter, r *http.Request, light bool) {
	doc := s.latest.Load()
	if doc == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no list fetched yet"})
		return
	}

	body, digest := doc.full, doc.fullDigest
	if light {
		body, digest = doc.light, doc.lightDigest
	}

	etag := `"` + digest + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", doc.updatedAt.UTC().Format(http.TimeFormat))
	w.Header().Set("X-Truncated", strconv.FormatBool(doc.truncated))
	w.Header().Set("X-Lossy-Names", strconv.Itoa(doc.lossy))

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

// handleSnapshots returns the stored snapshot history, newest first.
// Query params: ?limit=20
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		http.Error(w, "Storage disabled", http.StatusNotFound)
		return
	}

	limit := defaultSnapshotLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxSnapshotLimit)
	}

	snapshots, err := s.storage.ListSnapshots(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list snapshots")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}
	if snapshots == nil {
		snapshots = []models.Snapshot{}
	}

	respondJSON(w, http.StatusOK, snapshots)
}

// handleVersion returns the build info.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, vars.Info())
}

// handleHealth reports liveness and whether a list has been fetched.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{"status": "ok", "ready": false}
	if doc := s.latest.Load(); doc != nil {
		status["ready"] = true
		status["age"] = time.Since(doc.updatedAt).Round(time.Second).String()
	}

	respondJSON(w, http.StatusOK, status)
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
