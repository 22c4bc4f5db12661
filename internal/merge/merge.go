// Package merge reconciles a locally mutated snapshot with a freshly read
// remote one.
//
// Field classes:
//   - accumulated (ore quantities, coins, stats): remote + (local - baseline)
//   - read-only here (upgrades, workers, equipment, locations, prestige,
//     energy capacity): remote wins
//   - progress value: local wins, only this device advances it
//   - energy level: the side with the newer LastRegen wins, ties go to remote
//
// This is last-writer-wins per field class, not transactional isolation.
package merge

import (
	"idle-miner-sync/internal/models"
	"sort"
)

// Merge returns the reconciled snapshot. A nil remote (first ever sync)
// returns a copy of local unchanged. The result's Baseline is set to the
// remote counters, so Merge(Merge(l, r), r) equals Merge(l, r).
//
// Neither argument is modified.
func Merge(local, remote *models.Snapshot) *models.Snapshot {
	if remote == nil {
		return local.Clone()
	}
	out := remote.Clone()
	remoteCounters := remote.Counters()
	out.Baseline = &remoteCounters
	if local == nil {
		return out
	}

	var baseline models.Counters
	if local.Baseline != nil {
		baseline = *local.Baseline
	}

	out.Ledger.Ores = applyDelta(remote.Ledger.Ores, local.Ledger.Ores, baseline.Ores)
	out.Ledger.Coins = remote.Ledger.Coins + (local.Ledger.Coins - baseline.Coins)
	out.Stats = models.Stats{
		TotalOresMined: remote.Stats.TotalOresMined + (local.Stats.TotalOresMined - baseline.Stats.TotalOresMined),
		TotalClicks:    remote.Stats.TotalClicks + (local.Stats.TotalClicks - baseline.Stats.TotalClicks),
		PlaySeconds:    remote.Stats.PlaySeconds + (local.Stats.PlaySeconds - baseline.Stats.PlaySeconds),
	}

	out.Progress = local.Progress

	if local.Energy.LastRegen.After(remote.Energy.LastRegen) {
		out.Energy.Current = local.Energy.Current
		out.Energy.LastRegen = local.Energy.LastRegen
		if out.Energy.Max > 0 && out.Energy.Current > out.Energy.Max {
			out.Energy.Current = out.Energy.Max
		}
	}

	return out
}

// MergeChecked is Merge followed by the ledger invariant check. On violation
// the merged snapshot is discarded and an error wrapping
// models.ErrInvariantViolation is returned.
func MergeChecked(local, remote *models.Snapshot) (*models.Snapshot, error) {
	out := Merge(local, remote)
	if out == nil {
		return nil, nil
	}
	if err := out.Ledger.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// DropConflicts returns a copy of local whose delta no longer drives any
// counter below zero when merged onto remote, together with the dropped
// ledger keys in sorted order ("coins" for the coin balance). A key is
// dropped by moving its baseline to the local value, so its delta becomes
// zero and the merge takes the remote value. Only negative deltas are
// dropped. A remote that is already negative is left as it is.
func DropConflicts(local, remote *models.Snapshot) (*models.Snapshot, []string) {
	if local == nil || remote == nil {
		return local.Clone(), nil
	}
	out := local.Clone()
	var baseline models.Counters
	if out.Baseline != nil {
		baseline = out.Baseline.Clone()
	}
	if baseline.Ores == nil {
		baseline.Ores = make(map[string]int64)
	}

	var dropped []string
	for kind, qty := range out.Ledger.Ores {
		delta := qty - baseline.Ores[kind]
		if delta < 0 && remote.Ledger.Ores[kind]+delta < 0 {
			baseline.Ores[kind] = qty
			dropped = append(dropped, kind)
		}
	}
	// kinds that only exist in the baseline were spent down to nothing locally
	for kind, base := range baseline.Ores {
		if _, ok := out.Ledger.Ores[kind]; ok || base <= 0 {
			continue
		}
		if remote.Ledger.Ores[kind]-base < 0 {
			baseline.Ores[kind] = 0
			dropped = append(dropped, kind)
		}
	}
	sort.Strings(dropped)

	if delta := out.Ledger.Coins - baseline.Coins; delta < 0 && remote.Ledger.Coins+delta < 0 {
		baseline.Coins = out.Ledger.Coins
		dropped = append(dropped, "coins")
	}

	out.Baseline = &baseline
	return out, dropped
}

// Delta returns local - baseline for the accumulated fields. Useful for
// logging what a cycle is about to push.
func Delta(local *models.Snapshot) models.Counters {
	var baseline models.Counters
	if local.Baseline != nil {
		baseline = *local.Baseline
	}
	d := models.Counters{
		Ores:  applyDelta(nil, local.Ledger.Ores, baseline.Ores),
		Coins: local.Ledger.Coins - baseline.Coins,
		Stats: models.Stats{
			TotalOresMined: local.Stats.TotalOresMined - baseline.Stats.TotalOresMined,
			TotalClicks:    local.Stats.TotalClicks - baseline.Stats.TotalClicks,
			PlaySeconds:    local.Stats.PlaySeconds - baseline.Stats.PlaySeconds,
		},
	}
	for k, v := range d.Ores {
		if v == 0 {
			delete(d.Ores, k)
		}
	}
	return d
}

// applyDelta computes remote[k] + local[k] - baseline[k] over the union of keys.
func applyDelta(remote, local, baseline map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(remote)+len(local))
	for k, v := range remote {
		out[k] = v
	}
	for k, v := range local {
		out[k] += v
	}
	for k, v := range baseline {
		out[k] -= v
	}
	return out
}
