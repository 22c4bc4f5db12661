// Package statemanager owns one player session: it turns actions into
// progress, completes cycles into rewards and runs the fetch, merge and
// persist cycle against the remote store.
//
// All state mutations happen under one mutex. The remote read and write run
// outside it while the session is Persisting, and every action submitted in
// that window is rejected with models.ErrBusy rather than queued.
package statemanager

import (
	"context"
	"fmt"
	"idle-miner-sync/internal/identity"
	"idle-miner-sync/internal/models"
	"idle-miner-sync/internal/persistence"
	"idle-miner-sync/internal/progress"
	"idle-miner-sync/internal/reward"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jxskiss/base62"
	"go.uber.org/zap"
)

// Option configures a StateManager.
type Option func(*StateManager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(sm *StateManager) { sm.now = now }
}

// WithPresenter sets the presentation sink.
func WithPresenter(p Presenter) Option {
	return func(sm *StateManager) { sm.presenter = p }
}

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(sm *StateManager) { sm.notifier = n }
}

// WithWorkerTypes replaces the hireable worker table.
func WithWorkerTypes(types map[string]models.WorkerType) Option {
	return func(sm *StateManager) { sm.workerTypes = types }
}

// WithSyncIDs replaces the sync id generator.
func WithSyncIDs(next func() string) Option {
	return func(sm *StateManager) { sm.newSyncID = next }
}

// StateManager is responsible for all state mutations and persistence of one session.
type StateManager struct {
	identity    identity.Provider
	gateway     *persistence.Gateway
	resolver    *reward.Resolver
	catalog     *reward.Catalog
	workerTypes map[string]models.WorkerType
	presenter   Presenter
	notifier    Notifier
	now         func() time.Time
	newSyncID   func() string
	logger      *zap.Logger

	mu            sync.Mutex
	playerID      string
	local         *models.Snapshot
	state         State
	latest        *models.Reward
	pendingSyncID string // id of the last write that reported failure
	workerCarry   float64
	playCarry     time.Duration
	inflight      chan struct{} // closed when the running persistence ends
	closed        bool
	viewSeq       uint64

	presentMu sync.Mutex
	presented uint64 // Seq of the last view handed to the presenter
}

// NewStateManager creates a StateManager. Call Open before submitting actions.
func NewStateManager(id identity.Provider, gateway *persistence.Gateway, resolver *reward.Resolver, catalog *reward.Catalog, logger *zap.Logger, opts ...Option) *StateManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if catalog == nil {
		catalog = reward.NewCatalog(nil, nil)
	}
	sm := &StateManager{
		identity:    id,
		gateway:     gateway,
		resolver:    resolver,
		catalog:     catalog,
		workerTypes: progress.DefaultWorkerTypes(),
		presenter:   nopPresenter{},
		notifier:    nopNotifier{},
		now:         time.Now,
		newSyncID:   NewSyncID,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(sm)
	}
	if sm.presenter == nil {
		sm.presenter = nopPresenter{}
	}
	if sm.notifier == nil {
		sm.notifier = nopNotifier{}
	}
	return sm
}

// NewSyncID returns a short random id stamped on every written snapshot.
func NewSyncID() string {
	id := uuid.New()
	return base62.EncodeToString(id[:])
}

// Open signs the session in: it reads the player's snapshot, creating and
// writing the default one on first sign-in.
func (sm *StateManager) Open(ctx context.Context) error {
	sm.mu.Lock()
	if sm.closed {
		sm.mu.Unlock()
		return fmt.Errorf("%w: session closed", models.ErrNoSession)
	}
	playerID, ok := sm.identity.Identity()
	if !ok || playerID == "" {
		sm.mu.Unlock()
		sm.rejectNoSession("open")
		return models.ErrNoSession
	}
	if sm.state == Completing || sm.state == Persisting {
		sm.mu.Unlock()
		return models.ErrBusy
	}
	done := sm.beginLocked()
	sm.mu.Unlock()

	snapshot, pending, err := sm.load(ctx, playerID)

	sm.mu.Lock()
	if err == nil {
		sm.playerID = playerID
		sm.local = snapshot
		sm.pendingSyncID = pending
		sm.latest = nil
		sm.workerCarry, sm.playCarry = 0, 0
	}
	view := sm.endLocked(done)
	sm.mu.Unlock()

	sm.present(view)
	if err != nil {
		sm.logger.Warn("Could not load player snapshot", zap.String("player", playerID), zap.Error(err))
		sm.notifier.Notify(Notice{Kind: NoticeSyncFailed, Message: "could not load progress"})
		return err
	}
	sm.logger.Sugar().Infof("Session opened for player %s.", playerID)
	return nil
}

// load reads the remote snapshot, creating it when absent. A failed creation
// write keeps the default snapshot locally with its sync id pending.
func (sm *StateManager) load(ctx context.Context, playerID string) (*models.Snapshot, string, error) {
	remote, err := sm.gateway.Fetch(ctx, playerID)
	if err != nil {
		return nil, "", err
	}
	if remote != nil {
		baseline := remote.Counters()
		remote.Baseline = &baseline
		return remote, "", nil
	}

	created := models.NewSnapshot(playerID, sm.now())
	created.SyncID = sm.newSyncID()
	if result := sm.gateway.Persist(ctx, created); !result.Succeeded {
		sm.logger.Sugar().Warnf("Could not write initial snapshot for %s, keeping it locally.", playerID)
		sm.notifier.Notify(Notice{Kind: NoticeSyncFailed, Message: "initial save failed, progress is kept locally", SyncID: created.SyncID})
		return created, created.SyncID, nil
	}
	baseline := created.Counters()
	created.Baseline = &baseline
	sm.logger.Sugar().Infof("Created initial snapshot for player %s.", playerID)
	return created, "", nil
}

// Close drains the session: it waits for the in-flight persistence (or ctx)
// and rejects every later action.
func (sm *StateManager) Close(ctx context.Context) error {
	sm.mu.Lock()
	sm.closed = true
	done := sm.inflight
	sm.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		sm.logger.Sugar().Warn("Session closed before the last persistence finished.")
		return ctx.Err()
	}
}

// Snapshot returns a deep copy of the local snapshot, or nil before Open.
func (sm *StateManager) Snapshot() *models.Snapshot {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.local.Clone()
}

// View returns what the presentation layer last saw.
func (sm *StateManager) View() View {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.viewLocked()
}

// State returns the current state.
func (sm *StateManager) State() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

func (sm *StateManager) viewLocked() View {
	sm.viewSeq++
	v := View{State: sm.state, IsPersisting: sm.state == Persisting, Seq: sm.viewSeq}
	if sm.local != nil {
		v.ProgressValue = sm.local.Progress
	}
	if sm.latest != nil {
		r := *sm.latest
		v.LatestReward = &r
	}
	return v
}

// present hands v to the presenter unless a newer view already went out.
// Views are taken under mu and presented after it is released.
func (sm *StateManager) present(v View) {
	sm.presentMu.Lock()
	defer sm.presentMu.Unlock()
	if v.Seq <= sm.presented {
		return
	}
	sm.presented = v.Seq
	sm.presenter.Present(v)
}

// admitLocked decides whether an action may run now.
func (sm *StateManager) admitLocked() error {
	if sm.closed {
		return fmt.Errorf("%w: session closed", models.ErrNoSession)
	}
	playerID, ok := sm.identity.Identity()
	if !ok || sm.local == nil || playerID != sm.playerID {
		return models.ErrNoSession
	}
	if sm.state == Completing || sm.state == Persisting {
		return models.ErrBusy
	}
	return nil
}

// beginLocked enters Persisting and returns the channel endLocked closes.
func (sm *StateManager) beginLocked() chan struct{} {
	sm.state = Persisting
	done := make(chan struct{})
	sm.inflight = done
	return done
}

func (sm *StateManager) endLocked(done chan struct{}) View {
	sm.state = Idle
	sm.inflight = nil
	close(done)
	return sm.viewLocked()
}

func (sm *StateManager) rejectNoSession(action string) {
	sm.logger.Sugar().Warnf("Rejected %s: no active session.", action)
	sm.notifier.Notify(Notice{Kind: NoticeNoSession, Message: "sign in to keep playing"})
}
