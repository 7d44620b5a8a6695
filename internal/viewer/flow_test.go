package viewer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/cert-teacher/internal/store"
)

func TestFlow_HappyPath(t *testing.T) {
	var f Flow
	assert.Equal(t, StateIdle, f.State())

	require.NoError(t, f.Upload("dea01.png"))
	assert.Equal(t, StateUploaded, f.State())
	assert.Equal(t, "dea01", f.RecordID())

	require.NoError(t, f.ShowQuestion())
	assert.Equal(t, StateQuestionShown, f.State())

	require.NoError(t, f.ShowAnswer())
	assert.Equal(t, StateAnswerShown, f.State())
}

func TestFlow_AnswerBeforeQuestion(t *testing.T) {
	var f Flow
	assert.ErrorIs(t, f.ShowAnswer(), ErrNothingUploaded)

	require.NoError(t, f.Upload("q.jpg"))
	assert.ErrorIs(t, f.ShowAnswer(), ErrQuestionNotShown)
	assert.Equal(t, StateUploaded, f.State())
}

func TestFlow_QuestionBeforeUpload(t *testing.T) {
	var f Flow
	assert.ErrorIs(t, f.ShowQuestion(), ErrNothingUploaded)
	assert.Equal(t, StateIdle, f.State())
}

func TestFlow_UploadResets(t *testing.T) {
	var f Flow
	require.NoError(t, f.Upload("first.png"))
	require.NoError(t, f.ShowQuestion())
	require.NoError(t, f.ShowAnswer())

	require.NoError(t, f.Upload("second.png"))
	assert.Equal(t, StateUploaded, f.State())
	assert.Equal(t, "second", f.RecordID())
	assert.ErrorIs(t, f.ShowAnswer(), ErrQuestionNotShown)
}

func TestFlow_ReshowQuestion(t *testing.T) {
	var f Flow
	require.NoError(t, f.Upload("q.png"))
	require.NoError(t, f.ShowQuestion())
	require.NoError(t, f.ShowAnswer())
	require.NoError(t, f.ShowQuestion())
	assert.Equal(t, StateQuestionShown, f.State())
	require.NoError(t, f.ShowAnswer())
}

func TestFlow_EmptyUpload(t *testing.T) {
	var f Flow
	assert.Error(t, f.Upload(""))
	assert.Equal(t, StateIdle, f.State())
}

func TestSessions_UpdateKeepsStateOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessions(0)
	id := s.New()
	assert.True(t, Valid(id))

	_, err := s.Update(ctx, id, func(f *Flow) error { return f.Upload("q.png") })
	require.NoError(t, err)

	_, err = s.Update(ctx, id, func(f *Flow) error {
		f.filename = "mutated.png"
		return errors.New("rejected")
	})
	require.Error(t, err)

	f, ok, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "q.png", f.Filename())
	assert.Equal(t, StateUploaded, f.State())
}

func TestSessions_TransitionErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessions(0)
	_, err := s.Update(ctx, s.New(), func(f *Flow) error { return f.ShowAnswer() })
	assert.ErrorIs(t, err, ErrNothingUploaded)
	assert.True(t, IsTransitionError(err))
	assert.False(t, IsTransitionError(errors.New("throttled")))
}

func TestSessions_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	flows := store.NewMemoryFlowStore(time.Minute)
	flows.SetClock(func() time.Time { return now })
	s := NewSessions(flows)

	id := s.New()
	_, err := s.Update(ctx, id, func(f *Flow) error { return f.Upload("q.png") })
	require.NoError(t, err)
	assert.Equal(t, 1, flows.Len())

	now = now.Add(2 * time.Minute)
	_, ok, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, flows.Len())

	f, err := s.Update(ctx, id, func(f *Flow) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateIdle, f.State())
}

func TestSessions_SharedStore(t *testing.T) {
	ctx := context.Background()
	flows := store.NewMemoryFlowStore(time.Hour)
	a, b := NewSessions(flows), NewSessions(flows)

	id := a.New()
	_, err := a.Update(ctx, id, func(f *Flow) error { return f.Upload("問題01.png") })
	require.NoError(t, err)

	f, err := b.Update(ctx, id, func(f *Flow) error { return f.ShowQuestion() })
	require.NoError(t, err)
	assert.Equal(t, StateQuestionShown, f.State())
	assert.Equal(t, "問題01", f.RecordID())

	f, ok, err := a.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StateQuestionShown, f.State())
}

// racingFlows lets another writer bump the stored version between a read
// and the write that follows it, a fixed number of times.
type racingFlows struct {
	*store.MemoryFlowStore
	races int
}

func (r *racingFlows) PutFlow(ctx context.Context, item *store.FlowItem) error {
	if r.races > 0 {
		r.races--
		if cur, _ := r.MemoryFlowStore.GetFlow(ctx, item.SessionID); cur != nil {
			bumped := *cur
			bumped.Version++
			r.MemoryFlowStore.PutFlow(ctx, &bumped)
		}
	}
	return r.MemoryFlowStore.PutFlow(ctx, item)
}

func TestSessions_RetriesConflicts(t *testing.T) {
	ctx := context.Background()
	flows := &racingFlows{MemoryFlowStore: store.NewMemoryFlowStore(time.Hour)}
	s := NewSessions(flows)
	id := s.New()
	_, err := s.Update(ctx, id, func(f *Flow) error { return f.Upload("q.png") })
	require.NoError(t, err)

	flows.races = 1
	f, err := s.Update(ctx, id, func(f *Flow) error { return f.ShowQuestion() })
	require.NoError(t, err)
	assert.Equal(t, StateQuestionShown, f.State())

	flows.races = maxUpdateAttempts
	_, err = s.Update(ctx, id, func(f *Flow) error { return f.ShowAnswer() })
	assert.ErrorIs(t, err, store.ErrFlowConflict)

	f, _, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateQuestionShown, f.State())
}

func TestSessions_Concurrent(t *testing.T) {
	ctx := context.Background()
	flows := store.NewMemoryFlowStore(time.Hour)
	s := NewSessions(flows)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := s.New()
			_, err := s.Update(ctx, id, func(f *Flow) error { return f.Upload("q.png") })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 32, flows.Len())
}

func TestValid(t *testing.T) {
	assert.False(t, Valid("not-a-uuid"))
	assert.False(t, Valid(""))
	assert.True(t, Valid("a1b2c3d4-e5f6-4890-abcd-ef1234567890"))
}
