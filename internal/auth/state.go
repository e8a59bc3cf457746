package auth

import (
	"log/slog"

	"github.com/teemow/inboxreader/internal/logging"
)

// State is a step of the authentication state machine shared by all flows.
type State int

const (
	StateUnauthenticated State = iota
	StateRequesting
	StatePolling
	StateWaitingForCallback
	StateWaitingForBrowserResult
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateRequesting:
		return "requesting"
	case StatePolling:
		return "polling"
	case StateWaitingForCallback:
		return "waiting_for_callback"
	case StateWaitingForBrowserResult:
		return "waiting_for_browser_result"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateAuthenticated || s == StateFailed
}

// StateObserver is notified of every state transition of a flow.
type StateObserver func(flow string, state State)

// stateTracker logs transitions and forwards them to an optional observer.
type stateTracker struct {
	flow     string
	logger   *slog.Logger
	observer StateObserver
}

func (t stateTracker) enter(s State) {
	t.logger.Debug("authentication state changed", logging.Flow(t.flow), slog.String("state", s.String()))
	if t.observer != nil {
		t.observer(t.flow, s)
	}
}
