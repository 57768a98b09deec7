// Package models defines the data structures used for persistence and the HTTP API.
package models

import "time"

// Snapshot is one stored projection of a master server reply.
type Snapshot struct {
	FetchedAt    time.Time `json:"fetched_at"`
	Source       string    `json:"source"`
	Revision     string    `json:"revision"`
	Digest       string    `json:"digest"`
	Document     []byte    `json:"-"`
	ID           int64     `json:"id"`
	ServersCount int64     `json:"servers_count"`
	PlayersCount int64     `json:"players_count"`
	DecodedCount int64     `json:"decoded_count"`
	Truncated    bool      `json:"truncated"`
}
