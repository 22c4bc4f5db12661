// Package progress turns discrete player actions and timer ticks into
// mining progress. Everything here is pure: no clocks are read and no state
// is kept between calls.
package progress

import (
	"idle-miner-sync/internal/models"
	"math"
	"sort"
	"time"
)

const (
	baseClickIncrement = 5.0
	autoMinerPerSecond = 0.5
)

// Advance applies one action to state. The override, when non-nil, replaces
// state.PerActionIncrement for this call only.
//
// A non-positive increment leaves the value untouched and never completes.
// Rejecting actions while a completion is being processed is the caller's job.
func Advance(state models.ProgressState, override *float64) (models.ProgressState, bool) {
	increment := state.PerActionIncrement
	if override != nil {
		increment = *override
	}

	next := state
	next.Value = clamp(state.Value)
	if increment <= 0 || math.IsNaN(increment) {
		return next, false
	}

	newValue := math.Min(models.ProgressMax, next.Value+increment)
	if newValue >= models.ProgressMax {
		next.Value = 0
		return next, true
	}
	next.Value = newValue
	return next, false
}

// SpeedFactor is the multiplier miningSpeed applies to every increment.
func SpeedFactor(mods models.ModifierSet) float64 {
	speed := mods.Level(models.UpgradeMiningSpeed)
	if speed < 1 {
		speed = 1
	}
	return float64(speed)*0.2 + 0.8
}

// ClickIncrement is the progress one manual click adds.
func ClickIncrement(mods models.ModifierSet) float64 {
	return baseClickIncrement * SpeedFactor(mods)
}

// AutoIncrement is the progress the auto miner adds over elapsed.
func AutoIncrement(mods models.ModifierSet, elapsed time.Duration) float64 {
	level := mods.Level(models.UpgradeAutoMiner)
	if level <= 0 || elapsed <= 0 {
		return 0
	}
	return float64(level) * autoMinerPerSecond * elapsed.Seconds() * SpeedFactor(mods)
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > models.ProgressMax:
		return models.ProgressMax
	}
	return v
}

// DefaultWorkerTypes are the hireable workers.
func DefaultWorkerTypes() map[string]models.WorkerType {
	return map[string]models.WorkerType{
		"noviceMiner":      {Power: 1, PeriodSec: 10},
		"experiencedMiner": {Power: 5, PeriodSec: 10},
		"masterMiner":      {Power: 20, PeriodSec: 10},
	}
}

// WorkerYield returns the whole ores hired workers produce over elapsed,
// plus the fractional remainder to feed into the next call.
func WorkerYield(workers map[string]int, types map[string]models.WorkerType, elapsed time.Duration, carry float64) (int64, float64) {
	if elapsed <= 0 || len(workers) == 0 {
		return 0, carry
	}

	names := make([]string, 0, len(workers))
	for name := range workers {
		names = append(names, name)
	}
	sort.Strings(names)

	perSecond := 0.0
	for _, name := range names {
		count := workers[name]
		wt, ok := types[name]
		if !ok || count <= 0 || wt.PeriodSec <= 0 {
			continue
		}
		perSecond += float64(count) * float64(wt.Power) / float64(wt.PeriodSec)
	}

	produced := carry + perSecond*elapsed.Seconds()
	whole := math.Floor(produced)
	return int64(whole), produced - whole
}
