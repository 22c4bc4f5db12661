package statemanager

import (
	"context"
	"errors"
	"fmt"
	"idle-miner-sync/internal/models"
	"idle-miner-sync/internal/progress"
	"time"
)

// Outcome reports what one mining action did.
type Outcome struct {
	Completed bool
	Reward    *models.Reward
	// Sync is nil when the action did not complete a cycle.
	Sync *models.SyncResult
}

// Sale reports what a sell action sold. Sold is empty when the remote could
// not be read.
type Sale struct {
	Sold  map[string]int64
	Coins int64
	Sync  models.SyncResult
}

// Mine applies one manual click.
func (sm *StateManager) Mine(ctx context.Context) (Outcome, error) {
	sm.mu.Lock()
	if err := sm.admitLocked(); err != nil {
		sm.mu.Unlock()
		return Outcome{}, sm.rejected("mine", err)
	}

	working := sm.local.Clone()
	working.Stats.TotalClicks++
	next, completed := progress.Advance(models.ProgressState{
		Value:              working.Progress,
		PerActionIncrement: progress.ClickIncrement(working.Modifiers),
	}, nil)
	working.Progress = next.Value

	if !completed {
		sm.local = working
		sm.state = Accumulating
		view := sm.viewLocked()
		sm.mu.Unlock()
		sm.present(view)
		return Outcome{}, nil
	}
	return sm.completeLocked(ctx, working, nil)
}

// Tick advances automation by elapsed: auto miner progress, worker output,
// energy regeneration and play time. It can complete a cycle like Mine.
// Tick never notifies about a missing session.
func (sm *StateManager) Tick(ctx context.Context, elapsed time.Duration) (Outcome, error) {
	if elapsed < 0 {
		elapsed = 0
	}

	sm.mu.Lock()
	if err := sm.admitLocked(); err != nil {
		sm.mu.Unlock()
		return Outcome{}, err
	}

	working := sm.local.Clone()
	working.Energy = progress.RegenEnergy(working.Energy, sm.now())

	playCarry := sm.playCarry + elapsed
	seconds := int64(playCarry / time.Second)
	playCarry -= time.Duration(seconds) * time.Second
	working.Stats.PlaySeconds += seconds

	mined, workerCarry := progress.WorkerYield(working.Workers, sm.workerTypes, elapsed, sm.workerCarry)
	if mined > 0 {
		kind := sm.resolver.Kind(sm.catalog.Profile(working.CurrentLocation))
		addOre(working, kind, mined)
	}

	increment := progress.AutoIncrement(working.Modifiers, elapsed)
	next, completed := progress.Advance(models.ProgressState{Value: working.Progress, PerActionIncrement: increment}, nil)
	working.Progress = next.Value

	commit := func() {
		sm.playCarry = playCarry
		sm.workerCarry = workerCarry
	}

	if !completed {
		commit()
		sm.local = working
		if increment > 0 {
			sm.state = Accumulating
		}
		view := sm.viewLocked()
		sm.mu.Unlock()
		sm.present(view)
		return Outcome{}, nil
	}
	return sm.completeLocked(ctx, working, commit)
}

// completeLocked resolves the reward for a finished cycle onto working and
// persists. It is entered with the lock held and returns with it released.
// working replaces local only if the reward keeps the ledger valid.
func (sm *StateManager) completeLocked(ctx context.Context, working *models.Snapshot, commit func()) (Outcome, error) {
	sm.state = Completing
	completing := sm.viewLocked()
	completing.ProgressValue = working.Progress

	rw := sm.resolver.Resolve(sm.catalog.Profile(working.CurrentLocation), working.Modifiers)
	addOre(working, rw.Kind, rw.Amount)

	if err := working.Ledger.Validate(); err != nil {
		sm.state = Idle
		idle := sm.viewLocked()
		sm.mu.Unlock()
		sm.present(completing)
		sm.present(idle)
		sm.logger.Sugar().Errorf("Dropped completed cycle: %v", err)
		sm.notifier.Notify(Notice{Kind: NoticeInvariant, Message: err.Error()})
		return Outcome{}, err
	}

	if commit != nil {
		commit()
	}
	sm.local = working
	sm.latest = &rw
	c := sm.startCycleLocked()
	sm.mu.Unlock()

	sm.present(completing)
	sm.logger.Sugar().Debugf("Cycle completed: %d %s", rw.Amount, rw.Kind)

	result, err := sm.run(ctx, c, nil)
	out := Outcome{Completed: true, Reward: &rw}
	if err != nil {
		return out, err
	}
	out.Sync = &result
	return out, nil
}

// SellOre sells every unit of kind the player holds according to the fresh
// remote snapshot merged with local progress.
func (sm *StateManager) SellOre(ctx context.Context, kind string) (Sale, error) {
	if !sm.catalog.Sellable(kind) {
		return Sale{}, fmt.Errorf("%w: %q", models.ErrNotSellable, kind)
	}
	return sm.sell(ctx, "sell", []string{kind})
}

// SellAll sells every sellable ore.
func (sm *StateManager) SellAll(ctx context.Context) (Sale, error) {
	return sm.sell(ctx, "sell_all", sm.catalog.SellableKinds())
}

func (sm *StateManager) sell(ctx context.Context, action string, kinds []string) (Sale, error) {
	sm.mu.Lock()
	if err := sm.admitLocked(); err != nil {
		sm.mu.Unlock()
		return Sale{}, sm.rejected(action, err)
	}
	c := sm.startCycleLocked()
	sm.mu.Unlock()

	sale := Sale{Sold: make(map[string]int64)}
	result, err := sm.run(ctx, c, func(merged *models.Snapshot) error {
		for _, kind := range kinds {
			qty := merged.Ledger.Ores[kind]
			if qty <= 0 {
				continue
			}
			value, err := sm.catalog.SaleValue(kind, qty)
			if err != nil {
				return err
			}
			merged.Ledger.Ores[kind] = 0
			merged.Ledger.Coins += value
			sale.Sold[kind] = qty
			sale.Coins += value
		}
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	sale.Sync = result
	return sale, nil
}

// Save runs a persistence cycle without any action.
func (sm *StateManager) Save(ctx context.Context) (models.SyncResult, error) {
	sm.mu.Lock()
	if err := sm.admitLocked(); err != nil {
		sm.mu.Unlock()
		return models.SyncResult{}, sm.rejected("save", err)
	}
	c := sm.startCycleLocked()
	sm.mu.Unlock()

	return sm.run(ctx, c, nil)
}

// Run calls Tick every interval until ctx is done. Time spent busy, or lost to
// a tick dropped on an invariant violation, is carried into the next tick. Ticks run detached from ctx so a shutdown drains the
// persistence a tick started instead of cutting its retries short.
func (sm *StateManager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tickCtx := context.WithoutCancel(ctx)
	last := sm.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := sm.now()
			_, err := sm.Tick(tickCtx, now.Sub(last))
			if err != nil && !errors.Is(err, models.ErrBusy) && !errors.Is(err, models.ErrNoSession) {
				sm.logger.Sugar().Errorf("Automation tick failed: %v", err)
			}
			if tickConsumed(err) {
				last = now
			}
		}
	}
}

// tickConsumed reports whether a tick that returned err used up its elapsed
// time. Busy and invariant failures drop the tick's work, so its time is
// owed to the next tick. Without a session there is nothing to owe.
func tickConsumed(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, models.ErrBusy), errors.Is(err, models.ErrInvariantViolation):
		return false
	default:
		return true
	}
}

func (sm *StateManager) rejected(action string, err error) error {
	if errors.Is(err, models.ErrNoSession) {
		sm.rejectNoSession(action)
	} else {
		sm.logger.Sugar().Debugf("Rejected %s: %v", action, err)
	}
	return err
}

func addOre(s *models.Snapshot, kind string, amount int64) {
	if s.Ledger.Ores == nil {
		s.Ledger.Ores = make(map[string]int64)
	}
	s.Ledger.Ores[kind] += amount
	s.Stats.TotalOresMined += amount
}
