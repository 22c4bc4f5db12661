package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"idle-miner-sync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func richSnapshot() *models.Snapshot {
	now := time.Date(2024, 5, 1, 12, 0, 0, 123000000, time.UTC)
	s := models.NewSnapshot("player-1", now)
	s.Ledger = models.ResourceLedger{
		Ores:  map[string]int64{models.OreStone: 12, models.OreIron: 3},
		Coins: 250,
	}
	s.Modifiers = models.ModifierSet{models.UpgradePickaxeLevel: 3, models.UpgradeAutoMiner: 1}
	s.Workers = map[string]int{"noviceMiner": 2}
	s.Equipment = map[string]string{"pickaxe": "ironPickaxe"}
	s.UnlockedLocations = []string{models.DefaultLocation, "deepCave"}
	s.PrestigeMultiplier = 1.5
	s.Progress = 42.5
	s.Energy.Current = 80
	s.Stats = models.Stats{TotalOresMined: 15, TotalClicks: 30, PlaySeconds: 600}
	s.SyncID = "3xVb9Q"
	return s
}

// exerciseStore runs the shared contract every RemoteStore must satisfy.
func exerciseStore(t *testing.T, store RemoteStore) {
	ctx := context.Background()

	missing, err := store.Read(ctx, "player-1")
	require.NoError(t, err)
	assert.Nil(t, missing, "absent player reads as nil")

	want := richSnapshot()
	require.NoError(t, store.Write(ctx, "player-1", want))

	got, err := store.Read(ctx, "player-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
	assert.True(t, want.Energy.LastRegen.Equal(got.Energy.LastRegen))
	got.UpdatedAt, got.Energy.LastRegen = want.UpdatedAt, want.Energy.LastRegen
	assert.Equal(t, want, got)

	// Writes replace the whole record.
	want.Ledger.Coins = 1
	want.SyncID = "next"
	require.NoError(t, store.Write(ctx, "player-1", want))
	got, err = store.Read(ctx, "player-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Ledger.Coins)
	assert.Equal(t, "next", got.SyncID)

	// Players do not see each other's state.
	other, err := store.Read(ctx, "player-2")
	require.NoError(t, err)
	assert.Nil(t, other)

	assert.Error(t, store.Write(ctx, "player-1", nil))
}

func TestBadgerRepository(t *testing.T) {
	store, err := NewBadgerRepository(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestInMemoryBadgerRepository(t *testing.T) {
	store, err := NewInMemoryBadgerRepository()
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLiteRepository(t *testing.T) {
	store, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "miner.db"))
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestBadgerRepositoryHonoursCancelledContext(t *testing.T) {
	store, err := NewInMemoryBadgerRepository()
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Write(ctx, "player-1", richSnapshot()), context.Canceled)
}

func TestNewRemoteStore(t *testing.T) {
	dir := t.TempDir()

	store, err := NewRemoteStore("sqlite", filepath.Join(dir, "miner.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewRemoteStore("badger", filepath.Join(dir, "badger"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = NewRemoteStore("postgres", dir)
	assert.Error(t, err)
}
