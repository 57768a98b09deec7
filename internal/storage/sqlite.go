// Package storage keeps the history of projected master server lists in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/tederis/ase2json/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveSnapshot stores s unless the latest stored snapshot has the same digest.
// It reports whether a row was inserted.
func (r *Repository) SaveSnapshot(s models.Snapshot) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var latest string
	err = tx.QueryRow(`SELECT digest FROM snapshots ORDER BY id DESC LIMIT 1`).Scan(&latest)
	switch {
	case err == nil && latest == s.Digest:
		return false, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return false, err
	}

	_, err = tx.Exec(`
		INSERT INTO snapshots (
			fetched_at, source, revision, servers_count, players_count,
			decoded_count, truncated, digest, document
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.FetchedAt.UTC().UnixMilli(), s.Source, s.Revision, s.ServersCount, s.PlayersCount,
		s.DecodedCount, s.Truncated, s.Digest, s.Document,
	)
	if err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// LatestSnapshot returns the most recent snapshot with its document, or nil
// when the history is empty.
func (r *Repository) LatestSnapshot() (*models.Snapshot, error) {
	row := r.db.QueryRow(`
		SELECT id, fetched_at, source, revision, servers_count, players_count,
		       decoded_count, truncated, digest, document
		FROM snapshots
		ORDER BY id DESC
		LIMIT 1
	`)

	var (
		s         models.Snapshot
		fetchedAt int64
	)
	err := row.Scan(
		&s.ID, &fetchedAt, &s.Source, &s.Revision, &s.ServersCount, &s.PlayersCount,
		&s.DecodedCount, &s.Truncated, &s.Digest, &s.Document,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.FetchedAt = time.UnixMilli(fetchedAt).UTC()

	return &s, nil
}

// ListSnapshots returns up to limit snapshots, newest first, without documents.
func (r *Repository) ListSnapshots(limit int) ([]models.Snapshot, error) {
	rows, err := r.db.Query(`
		SELECT id, fetched_at, source, revision, servers_count, players_count,
		       decoded_count, truncated, digest
		FROM snapshots
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	snapshots := []models.Snapshot{}
	for rows.Next() {
		var (
			s         models.Snapshot
			fetchedAt int64
		)
		if err := rows.Scan(
			&s.ID, &fetchedAt, &s.Source, &s.Revision, &s.ServersCount, &s.PlayersCount,
			&s.DecodedCount, &s.Truncated, &s.Digest,
		); err != nil {
			return nil, err
		}
		s.FetchedAt = time.UnixMilli(fetchedAt).UTC()
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snapshots, nil
}

// DeleteSnapshotsBefore removes snapshots fetched before t and returns how many were deleted.
func (r *Repository) DeleteSnapshotsBefore(t time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM snapshots WHERE fetched_at < ?`, t.UTC().UnixMilli())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
