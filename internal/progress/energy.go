package progress

import (
	"idle-miner-sync/internal/models"
	"math"
	"time"
)

// RegenEnergy regenerates energy for the time between e.LastRegen and now.
// A now at or before LastRegen changes nothing.
func RegenEnergy(e models.EnergyState, now time.Time) models.EnergyState {
	if e.LastRegen.IsZero() {
		e.LastRegen = now
		return e
	}
	if !now.After(e.LastRegen) {
		return e
	}

	minutes := now.Sub(e.LastRegen).Minutes()
	if e.Current < e.Max && e.RegenPerMinute > 0 {
		e.Current = math.Min(e.Max, e.Current+e.RegenPerMinute*minutes)
	}
	e.LastRegen = now
	return e
}
