package persistence

import (
	"context"
	"fmt"
	"idle-miner-sync/internal/models"
)

// RemoteStore is the authoritative store of player snapshots.
// It abstracts the underlying storage mechanism (e.g., BadgerDB, SQLite)
// from the rest of the application. Both calls may fail transiently.
type RemoteStore interface {
	// Read loads the snapshot owned by playerID.
	// If no snapshot exists yet, it returns (nil, nil).
	Read(ctx context.Context, playerID string) (*models.Snapshot, error)

	// Write atomically replaces the snapshot owned by playerID.
	Write(ctx context.Context, playerID string, snapshot *models.Snapshot) error

	// Close gracefully closes the connection to the database.
	Close() error
}

// NewRemoteStore opens the store named by kind ("badger" or "sqlite") at path.
func NewRemoteStore(kind, path string) (RemoteStore, error) {
	switch kind {
	case "badger":
		return NewBadgerRepository(path)
	case "sqlite":
		return NewSQLiteRepository(path)
	}
	return nil, fmt.Errorf("unknown store %q", kind)
}
