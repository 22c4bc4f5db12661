package statemanager

import (
	"context"
	"errors"
	"idle-miner-sync/internal/merge"
	"idle-miner-sync/internal/models"

	"go.uber.org/zap"
)

// cycle is one fetch, merge, persist round. Its inputs are copied under the
// lock so the remote calls can run without it.
type cycle struct {
	done          chan struct{}
	playerID      string
	local         *models.Snapshot
	pendingSyncID string
	view          View
}

// mutation runs on the merged snapshot before it is written.
type mutation func(merged *models.Snapshot) error

// startCycleLocked moves to Persisting. The caller must unlock and call run.
func (sm *StateManager) startCycleLocked() *cycle {
	c := &cycle{
		done:          sm.beginLocked(),
		playerID:      sm.playerID,
		local:         sm.local.Clone(),
		pendingSyncID: sm.pendingSyncID,
	}
	c.view = sm.viewLocked()
	return c
}

// run executes the cycle and publishes its outcome. It must be called
// without the lock held.
func (sm *StateManager) run(ctx context.Context, c *cycle, mutate mutation) (models.SyncResult, error) {
	sm.present(c.view)

	next, result, err := sm.sync(ctx, c, mutate)

	sm.mu.Lock()
	switch {
	case err != nil:
		// local stays as it was before the cycle
	case result.Succeeded:
		sm.local = next
		sm.pendingSyncID = ""
	case next != nil:
		sm.local = next
		sm.pendingSyncID = next.SyncID
	}
	view := sm.endLocked(c.done)
	sm.mu.Unlock()

	sm.present(view)

	switch {
	case errors.Is(err, models.ErrInvariantViolation):
		sm.logger.Error("Cycle aborted", zap.String("player", c.playerID), zap.Error(err))
		sm.notifier.Notify(Notice{Kind: NoticeInvariant, Message: err.Error()})
	case err != nil:
		sm.logger.Error("Cycle aborted", zap.String("player", c.playerID), zap.Error(err))
	case result.Succeeded:
		sm.notifier.Notify(Notice{Kind: NoticeSynced, Message: "progress saved", SyncID: next.SyncID})
	default:
		n := Notice{Kind: NoticeSyncFailed, Message: "could not save progress, it is kept locally and will be retried"}
		if next != nil {
			n.SyncID = next.SyncID
		}
		sm.notifier.Notify(n)
	}
	return result, err
}

// sync reads the remote snapshot, merges the local delta into it, applies
// mutate and writes the result. A nil snapshot is returned when nothing was
// merged. Local deltas that would overdraw the remote are dropped and
// reported before the merge is retried.
func (sm *StateManager) sync(ctx context.Context, c *cycle, mutate mutation) (*models.Snapshot, models.SyncResult, error) {
	failed := models.SyncResult{Succeeded: false}

	remote, err := sm.gateway.Fetch(ctx, c.playerID)
	if err != nil {
		sm.logger.Warn("Remote read failed, local progress kept", zap.String("player", c.playerID), zap.Error(err))
		return nil, failed, nil
	}

	local := c.local
	if remote != nil && c.pendingSyncID != "" && remote.SyncID == c.pendingSyncID {
		// The write we gave up on reached the store after all.
		landed := remote.Counters()
		local.Baseline = &landed
		sm.logger.Info("Previously failed write found in store", zap.String("syncID", c.pendingSyncID))
	}

	if sm.logger.Core().Enabled(zap.DebugLevel) {
		delta := merge.Delta(local)
		sm.logger.Debug("Merging local delta",
			zap.String("player", c.playerID),
			zap.Any("ores", delta.Ores),
			zap.Int64("coins", delta.Coins))
	}

	merged, err := merge.MergeChecked(local, remote)
	if errors.Is(err, models.ErrInvariantViolation) {
		// Drop the local changes that the remote can no longer cover,
		// typically a sale whose write failed while another device sold
		// the same ore, and keep the rest.
		repaired, dropped := merge.DropConflicts(local, remote)
		if len(dropped) > 0 {
			sm.logger.Warn("Dropped conflicting local changes",
				zap.String("player", c.playerID),
				zap.Strings("kinds", dropped),
				zap.Error(err))
			sm.notifier.Notify(Notice{Kind: NoticeInvariant, Message: err.Error()})
			merged, err = merge.MergeChecked(repaired, remote)
		}
	}
	if err != nil {
		return nil, failed, err
	}
	if mutate != nil {
		if err := mutate(merged); err != nil {
			return nil, failed, err
		}
		if err := merged.Ledger.Validate(); err != nil {
			return nil, failed, err
		}
	}

	merged.PlayerID = c.playerID
	merged.SyncID = sm.newSyncID()
	merged.UpdatedAt = sm.now()

	result := sm.gateway.Persist(ctx, merged)
	if result.Succeeded {
		written := merged.Counters()
		merged.Baseline = &written
	}
	return merged, result, nil
}
