package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"idle-miner-sync/internal/models"

	"github.com/dgraph-io/badger/v3"
)

const playerKeyPrefix = "player_state/"

// badgerRepository is the BadgerDB implementation of the RemoteStore.
type badgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository creates and returns a new repository instance connected to a BadgerDB database.
func NewBadgerRepository(dbPath string) (RemoteStore, error) {
	return openBadger(badger.DefaultOptions(dbPath))
}

// NewInMemoryBadgerRepository opens a BadgerDB that lives only in memory.
func NewInMemoryBadgerRepository() (RemoteStore, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true))
}

func openBadger(opts badger.Options) (RemoteStore, error) {
	// Badger's own logging would interleave with ours; errors still come back from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerRepository{db: db}, nil
}

func playerKey(playerID string) []byte {
	return []byte(playerKeyPrefix + playerID)
}

// Write marshals the snapshot into JSON and saves it under the player's key in one transaction.
func (r *badgerRepository) Write(ctx context.Context, playerID string, snapshot *models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snapshot == nil {
		return errors.New("refusing to write nil snapshot")
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(playerKey(playerID), data)
	})
}

// Read loads the player's snapshot.
// If the key is not found, it returns (nil, nil) to indicate no snapshot is present.
func (r *badgerRepository) Read(ctx context.Context, playerID string) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var snapshot models.Snapshot

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(playerKey(playerID))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("snapshot value is empty in database")
			}
			return json.Unmarshal(val, &snapshot)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &snapshot, nil
}

// Close gracefully closes the connection to the database.
func (r *badgerRepository) Close() error {
	return r.db.Close()
}
