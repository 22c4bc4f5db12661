package statemanager

import (
	"fmt"
	"idle-miner-sync/internal/models"
)

// State is the orchestrator's position in the sync cycle.
type State int

const (
	Idle State = iota
	Accumulating
	Completing
	Persisting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Accumulating:
		return "accumulating"
	case Completing:
		return "completing"
	case Persisting:
		return "persisting"
	}
	return "unknown"
}

// MarshalText lets State travel as a string in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the form MarshalText produces.
func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{Idle, Accumulating, Completing, Persisting} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// View is what the presentation layer sees after every transition.
type View struct {
	ProgressValue float64        `json:"progress_value"`
	LatestReward  *models.Reward `json:"latest_reward,omitempty"`
	IsPersisting  bool           `json:"is_persisting"`
	State         State          `json:"state"`
	// Seq increases with every view taken, so consumers can tell a stale
	// view from the current one.
	Seq uint64 `json:"seq"`
}

// Presenter receives a View after every transition. It must not block for long
// and must not call back into the StateManager.
type Presenter interface {
	Present(View)
}

// NoticeKind classifies a Notice.
type NoticeKind int

const (
	NoticeSynced NoticeKind = iota
	NoticeSyncFailed
	NoticeInvariant
	NoticeNoSession
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeSynced:
		return "synced"
	case NoticeSyncFailed:
		return "sync_failed"
	case NoticeInvariant:
		return "invariant_violation"
	case NoticeNoSession:
		return "no_session"
	}
	return "unknown"
}

// MarshalText lets NoticeKind travel as a string in JSON.
func (k NoticeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the form MarshalText produces.
func (k *NoticeKind) UnmarshalText(text []byte) error {
	for _, candidate := range []NoticeKind{NoticeSynced, NoticeSyncFailed, NoticeInvariant, NoticeNoSession} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown notice kind %q", text)
}

// Notice is a terminal, user-visible event.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	SyncID  string     `json:"sync_id,omitempty"`
}

// Notifier receives terminal success and failure events. Best effort.
type Notifier interface {
	Notify(Notice)
}

type nopPresenter struct{}

func (nopPresenter) Present(View) {}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(View)

func (f PresenterFunc) Present(v View) { f(v) }

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }
