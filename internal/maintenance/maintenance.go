// Package maintenance provides offline tasks for the snapshot database.
package maintenance

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/tederis/ase2json/internal/config"
	"github.com/tederis/ase2json/internal/models"
)

// Store is the part of the snapshot repository used by maintenance tasks.
type Store interface {
	DeleteSnapshotsBefore(t time.Time) (int64, error)
	LatestSnapshot() (*models.Snapshot, error)
}

// Run checks if any maintenance flags are set and executes the corresponding task.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(cfg *config.Config, store Store, w io.Writer) (bool, error) {
	switch {
	case cfg.Storage.PruneOlder > 0:
		return true, prune(store, time.Now().Add(-cfg.Storage.PruneOlder))
	case cfg.Storage.ShowLatest:
		return true, showLatest(store, w)
	default:
		return false, nil
	}
}

func prune(store Store, before time.Time) error {
	log.Info().Time("before", before).Msg("Pruning old snapshots...")

	count, err := store.DeleteSnapshotsBefore(before)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}

	log.Info().Int64("deleted", count).Msg("Prune finished")
	return nil
}

// showLatest writes the stored document of the most recent snapshot.
func showLatest(store Store, w io.Writer) error {
	snap, err := store.LatestSnapshot()
	if err != nil {
		return fmt.Errorf("failed to read latest snapshot: %w", err)
	}
	if snap == nil {
		return fmt.Errorf("no snapshots stored")
	}

	log.Info().
		Int64("id", snap.ID).
		Str("source", snap.Source).
		Str("fetched", humanize.Time(snap.FetchedAt)).
		Bool("truncated", snap.Truncated).
		Msg("Latest snapshot")

	_, err = w.Write(snap.Document)
	return err
}
