package viewer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/cert-teacher/internal/store"
)

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 2 * time.Hour

// maxUpdateAttempts bounds the read-modify-write loop in Update.
const maxUpdateAttempts = 3

// Sessions maps session ids to flows held in a store.FlowStore. Several
// processes may share one store: every change is a versioned write, and
// a lost race is retried against the fresh state.
type Sessions struct {
	flows store.FlowStore
}

// NewSessions creates a session table on flows.
func NewSessions(flows store.FlowStore) *Sessions {
	return &Sessions{flows: flows}
}

// NewMemorySessions creates a session table that lives in this process.
// A ttl of zero uses DefaultSessionTTL.
func NewMemorySessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return NewSessions(store.NewMemoryFlowStore(ttl))
}

// New returns a fresh session id. Nothing is stored until the first
// Update.
func (s *Sessions) New() string {
	return uuid.NewString()
}

// Valid reports whether id is a well-formed session id.
func Valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// IsTransitionError reports whether err is a rejected flow transition
// rather than a storage failure.
func IsTransitionError(err error) bool {
	return errors.Is(err, ErrNothingUploaded) || errors.Is(err, ErrQuestionNotShown)
}

// Get returns the flow for id. Unknown or expired ids report false.
func (s *Sessions) Get(ctx context.Context, id string) (Flow, bool, error) {
	item, err := s.flows.GetFlow(ctx, id)
	if err != nil {
		return Flow{}, false, fmt.Errorf("load session %s: %w", id, err)
	}
	if item == nil {
		return Flow{}, false, nil
	}
	return flowFromItem(item), true, nil
}

// Update applies fn to the current flow for id and stores the result.
// Unknown or expired ids start from an idle flow. When fn fails nothing is
// written, so a rejected transition leaves the session unchanged.
func (s *Sessions) Update(ctx context.Context, id string, fn func(*Flow) error) (Flow, error) {
	for attempt := 1; ; attempt++ {
		item, err := s.flows.GetFlow(ctx, id)
		if err != nil {
			return Flow{}, fmt.Errorf("load session %s: %w", id, err)
		}
		var cur Flow
		var version int64
		if item != nil {
			cur = flowFromItem(item)
			version = item.Version
		}

		next := cur
		if err := fn(&next); err != nil {
			return cur, err
		}

		err = s.flows.PutFlow(ctx, &store.FlowItem{
			SessionID: id,
			State:     string(next.State()),
			Filename:  next.filename,
			Version:   version + 1,
		})
		if errors.Is(err, store.ErrFlowConflict) && attempt < maxUpdateAttempts {
			log.Debug().Str("session", id).Int("attempt", attempt).Msg("Session changed concurrently, retrying")
			continue
		}
		if err != nil {
			return cur, fmt.Errorf("save session %s: %w", id, err)
		}
		return next, nil
	}
}

func flowFromItem(item *store.FlowItem) Flow {
	switch st := State(item.State); st {
	case StateUploaded, StateQuestionShown, StateAnswerShown:
		return Flow{state: st, filename: item.Filename}
	default:
		return Flow{}
	}
}
