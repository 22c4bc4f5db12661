package persistence

import (
	"context"
	"errors"
	"fmt"
	"idle-miner-sync/internal/models"
	"idle-miner-sync/internal/retry"
	"time"

	"go.uber.org/zap"
)

// Gateway is the only path from the sync engine to the RemoteStore.
// Every call goes through the same retry policy; faults never escape as panics.
type Gateway struct {
	store  RemoteStore
	policy retry.Policy
	logger *zap.Logger
}

// NewGateway wraps store with policy. A nil logger disables logging.
func NewGateway(store RemoteStore, policy retry.Policy, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{store: store, policy: policy, logger: logger}
}

// Persist writes snapshot as the player's authoritative state, retrying
// transient faults. The outcome is reported as a SyncResult, never an error.
func (g *Gateway) Persist(ctx context.Context, snapshot *models.Snapshot) models.SyncResult {
	if snapshot == nil || snapshot.PlayerID == "" {
		g.logger.Warn("Refusing to persist snapshot without a player")
		return models.SyncResult{Succeeded: false}
	}

	attempts, err := g.run(ctx, "write", func(ctx context.Context) error {
		return g.store.Write(ctx, snapshot.PlayerID, snapshot)
	})
	if err != nil {
		g.logger.Error("Failed to persist snapshot",
			zap.String("player", snapshot.PlayerID),
			zap.String("syncID", snapshot.SyncID),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return models.SyncResult{Succeeded: false}
	}

	g.logger.Debug("Snapshot persisted",
		zap.String("player", snapshot.PlayerID),
		zap.String("syncID", snapshot.SyncID),
		zap.Int("attempts", attempts))
	return models.SyncResult{Succeeded: true}
}

// Fetch reads the player's authoritative snapshot under the same retry policy.
// A missing snapshot is (nil, nil). Exhausted retries wrap ErrTransientRemote.
func (g *Gateway) Fetch(ctx context.Context, playerID string) (*models.Snapshot, error) {
	var snapshot *models.Snapshot
	attempts, err := g.run(ctx, "read", func(ctx context.Context) error {
		s, err := g.store.Read(ctx, playerID)
		if err != nil {
			return err
		}
		snapshot = s
		return nil
	})
	if err != nil {
		g.logger.Warn("Failed to read remote snapshot",
			zap.String("player", playerID),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return nil, fmt.Errorf("%w: read %s after %d attempts: %w", models.ErrTransientRemote, playerID, attempts, err)
	}
	return snapshot, nil
}

// Close closes the underlying store.
func (g *Gateway) Close() error {
	return g.store.Close()
}

func (g *Gateway) run(ctx context.Context, op string, call func(ctx context.Context) error) (int, error) {
	policy := g.policy
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, next time.Duration, err error) {
		g.logger.Sugar().Warnf("Remote %s attempt %d failed, retrying in %v: %v", op, attempt, next, err)
		if onRetry != nil {
			onRetry(attempt, next, err)
		}
	}
	return policy.Do(ctx, func(ctx context.Context, _ int) error {
		return guard(ctx, call)
	})
}

// guard turns a panicking store call into an ordinary attempt failure.
func guard(ctx context.Context, call func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: store panicked: %v", models.ErrTransientRemote, r)
		}
	}()
	if err = call(ctx); err != nil && !errors.Is(err, models.ErrTransientRemote) {
		err = fmt.Errorf("%w: %w", models.ErrTransientRemote, err)
	}
	return err
}
