package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"idle-miner-sync/internal/models"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the sqlite3 driver
)

// sqliteRepository stores one row per player in player_game_state.
// Map-valued fields are kept as JSON text columns.
type sqliteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (or creates) the database and makes sure the schema exists.
func NewSQLiteRepository(dataSourceName string) (RemoteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err = createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &sqliteRepository{db: db}, nil
}

// createTables creates the player state table if it doesn't exist.
func createTables(db *sql.DB) error {
	createPlayerStateTableSQL := `
	CREATE TABLE IF NOT EXISTS player_game_state (
		user_id TEXT PRIMARY KEY,
		coins INTEGER NOT NULL,
		ores TEXT NOT NULL,
		upgrades TEXT NOT NULL,
		workers TEXT NOT NULL,
		equipment TEXT NOT NULL,
		current_location TEXT NOT NULL,
		unlocked_locations TEXT NOT NULL,
		prestige_multiplier REAL NOT NULL,
		mining_progress REAL NOT NULL,
		energy REAL NOT NULL,
		max_energy REAL NOT NULL,
		energy_regen_rate REAL NOT NULL,
		last_energy_regen TEXT NOT NULL,
		stats TEXT NOT NULL,
		sync_id TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`

	_, err := db.Exec(createPlayerStateTableSQL)
	return err
}

// playerRow is the column-level shape of one player_game_state row.
type playerRow struct {
	UserID             string
	Coins              int64
	Ores               string
	Upgrades           string
	Workers            string
	Equipment          string
	CurrentLocation    string
	UnlockedLocations  string
	PrestigeMultiplier float64
	MiningProgress     float64
	Energy             float64
	MaxEnergy          float64
	EnergyRegenRate    float64
	LastEnergyRegen    string
	Stats              string
	SyncID             string
	UpdatedAt          string
}

func toRow(playerID string, s *models.Snapshot) (*playerRow, error) {
	row := &playerRow{
		UserID:             playerID,
		Coins:              s.Ledger.Coins,
		CurrentLocation:    s.CurrentLocation,
		PrestigeMultiplier: s.PrestigeMultiplier,
		MiningProgress:     s.Progress,
		Energy:             s.Energy.Current,
		MaxEnergy:          s.Energy.Max,
		EnergyRegenRate:    s.Energy.RegenPerMinute,
		LastEnergyRegen:    s.Energy.LastRegen.UTC().Format(time.RFC3339Nano),
		SyncID:             s.SyncID,
		UpdatedAt:          s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	fields := []struct {
		dst *string
		src interface{}
	}{
		{&row.Ores, s.Ledger.Ores},
		{&row.Upgrades, s.Modifiers},
		{&row.Workers, s.Workers},
		{&row.Equipment, s.Equipment},
		{&row.UnlockedLocations, s.UnlockedLocations},
		{&row.Stats, s.Stats},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = string(data)
	}
	return row, nil
}

func (row *playerRow) toSnapshot() (*models.Snapshot, error) {
	s := &models.Snapshot{
		PlayerID:           row.UserID,
		Ledger:             models.ResourceLedger{Coins: row.Coins},
		CurrentLocation:    row.CurrentLocation,
		PrestigeMultiplier: row.PrestigeMultiplier,
		Progress:           row.MiningProgress,
		Energy: models.EnergyState{
			Current:        row.Energy,
			Max:            row.MaxEnergy,
			RegenPerMinute: row.EnergyRegenRate,
		},
		SyncID: row.SyncID,
	}

	var err error
	if s.Energy.LastRegen, err = time.Parse(time.RFC3339Nano, row.LastEnergyRegen); err != nil {
		return nil, fmt.Errorf("bad last_energy_regen: %w", err)
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, row.UpdatedAt); err != nil {
		return nil, fmt.Errorf("bad updated_at: %w", err)
	}

	fields := []struct {
		src string
		dst interface{}
	}{
		{row.Ores, &s.Ledger.Ores},
		{row.Upgrades, &s.Modifiers},
		{row.Workers, &s.Workers},
		{row.Equipment, &s.Equipment},
		{row.UnlockedLocations, &s.UnlockedLocations},
		{row.Stats, &s.Stats},
	}
	for _, f := range fields {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Write upserts the player's row in a single statement.
func (r *sqliteRepository) Write(ctx context.Context, playerID string, snapshot *models.Snapshot) error {
	if snapshot == nil {
		return errors.New("refusing to write nil snapshot")
	}
	row, err := toRow(playerID, snapshot)
	if err != nil {
		return err
	}

	const upsertSQL = `
	INSERT INTO player_game_state (
		user_id, coins, ores, upgrades, workers, equipment, current_location,
		unlocked_locations, prestige_multiplier, mining_progress, energy,
		max_energy, energy_regen_rate, last_energy_regen, stats, sync_id, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		coins = excluded.coins,
		ores = excluded.ores,
		upgrades = excluded.upgrades,
		workers = excluded.workers,
		equipment = excluded.equipment,
		current_location = excluded.current_location,
		unlocked_locations = excluded.unlocked_locations,
		prestige_multiplier = excluded.prestige_multiplier,
		mining_progress = excluded.mining_progress,
		energy = excluded.energy,
		max_energy = excluded.max_energy,
		energy_regen_rate = excluded.energy_regen_rate,
		last_energy_regen = excluded.last_energy_regen,
		stats = excluded.stats,
		sync_id = excluded.sync_id,
		updated_at = excluded.updated_at;`

	_, err = r.db.ExecContext(ctx, upsertSQL,
		row.UserID, row.Coins, row.Ores, row.Upgrades, row.Workers, row.Equipment,
		row.CurrentLocation, row.UnlockedLocations, row.PrestigeMultiplier,
		row.MiningProgress, row.Energy, row.MaxEnergy, row.EnergyRegenRate,
		row.LastEnergyRegen, row.Stats, row.SyncID, row.UpdatedAt,
	)
	return err
}

// Read loads the player's row. A missing row returns (nil, nil).
func (r *sqliteRepository) Read(ctx context.Context, playerID string) (*models.Snapshot, error) {
	const selectSQL = `
	SELECT user_id, coins, ores, upgrades, workers, equipment, current_location,
		unlocked_locations, prestige_multiplier, mining_progress, energy,
		max_energy, energy_regen_rate, last_energy_regen, stats, sync_id, updated_at
	FROM player_game_state WHERE user_id = ?;`

	var row playerRow
	err := r.db.QueryRowContext(ctx, selectSQL, playerID).Scan(
		&row.UserID, &row.Coins, &row.Ores, &row.Upgrades, &row.Workers, &row.Equipment,
		&row.CurrentLocation, &row.UnlockedLocations, &row.PrestigeMultiplier,
		&row.MiningProgress, &row.Energy, &row.MaxEnergy, &row.EnergyRegenRate,
		&row.LastEnergyRegen, &row.Stats, &row.SyncID, &row.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toSnapshot()
}

// Close gracefully closes the connection to the database.
func (r *sqliteRepository) Close() error {
	return r.db.Close()
}
