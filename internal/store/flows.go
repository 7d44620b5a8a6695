package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

// FlowItem is the persisted front-end flow of one browser session. Items
// carry an expiresAt TTL attribute so abandoned sessions are removed by
// the table itself.
type FlowItem struct {
	SessionID string `json:"sessionId" dynamodbav:"sessionId"`
	State     string `json:"state" dynamodbav:"state"`
	Filename  string `json:"filename,omitempty" dynamodbav:"filename,omitempty"`
	Version   int64  `json:"version" dynamodbav:"version"`
	ExpiresAt int64  `json:"expiresAt" dynamodbav:"expiresAt"`
}

var (
	// ErrEmptySession is returned when a flow has no session id.
	ErrEmptySession = errors.New("session id is empty")

	// ErrFlowConflict is returned by PutFlow when another request changed
	// the session since it was read.
	ErrFlowConflict = errors.New("session flow changed concurrently")
)

// FlowStore keeps session flows. Implementations are safe for concurrent
// use across processes sharing the same backing table.
type FlowStore interface {
	// GetFlow returns the live flow for sessionID, or nil, nil when there
	// is none or it has expired.
	GetFlow(ctx context.Context, sessionID string) (*FlowItem, error)

	// PutFlow writes item when the stored version is item.Version-1, or
	// when no live item exists. Otherwise it returns ErrFlowConflict.
	// ExpiresAt is set by the store.
	PutFlow(ctx context.Context, item *FlowItem) error
}

// MemoryFlowStore is an in-process FlowStore for the local server and
// tests.
type MemoryFlowStore struct {
	mu    sync.Mutex
	items map[string]FlowItem
	ttl   time.Duration
	now   func() time.Time
}

var _ FlowStore = (*MemoryFlowStore)(nil)

// NewMemoryFlowStore creates an empty MemoryFlowStore whose items live
// for ttl after their last write.
func NewMemoryFlowStore(ttl time.Duration) *MemoryFlowStore {
	return &MemoryFlowStore{items: make(map[string]FlowItem), ttl: ttl, now: time.Now}
}

// SetClock replaces the store's time source.
func (m *MemoryFlowStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryFlowStore) GetFlow(ctx context.Context, sessionID string) (*FlowItem, error) {
	if sessionID == "" {
		return nil, ErrEmptySession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[sessionID]
	if !ok || it.ExpiresAt <= m.now().Unix() {
		return nil, nil
	}
	return &it, nil
}

func (m *MemoryFlowStore) PutFlow(ctx context.Context, item *FlowItem) error {
	if item == nil || item.SessionID == "" {
		return ErrEmptySession
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().Unix()
	if cur, ok := m.items[item.SessionID]; ok && cur.ExpiresAt > now && cur.Version != item.Version-1 {
		return ErrFlowConflict
	}
	for id, it := range m.items {
		if it.ExpiresAt <= now {
			delete(m.items, id)
		}
	}
	stored := *item
	stored.ExpiresAt = m.now().Add(m.ttl).Unix()
	m.items[item.SessionID] = stored
	return nil
}

// Len returns the number of live flows.
func (m *MemoryFlowStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().Unix()
	n := 0
	for _, it := range m.items {
		if it.ExpiresAt > now {
			n++
		}
	}
	return n
}
