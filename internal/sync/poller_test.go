package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notifycore/internal/api"
	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/internal/source"
	"github.com/nhle/notifycore/tests/testutil"
)

type fakeSource struct {
	kind  source.Kind
	key   string
	calls atomic.Int32

	mu   gosync.Mutex
	snap *source.Snapshot
	err  error
}

func (f *fakeSource) Kind() source.Kind { return f.kind }
func (f *fakeSource) CacheKey() string  { return f.key }

func (f *fakeSource) Fetch(context.Context) (*source.Snapshot, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.err
}

func (f *fakeSource) set(snap *source.Snapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap, f.err = snap, err
}

func messagesSource(msgs ...model.Message) *fakeSource {
	return &fakeSource{
		kind: source.KindMessages,
		key:  model.CacheKeyMessages,
		snap: &source.Snapshot{OwnerID: "u1", Messages: msgs},
	}
}

func notificationsSource(ns ...model.SystemNotification) *fakeSource {
	return &fakeSource{
		kind: source.KindNotifications,
		key:  model.CacheKeyNotifications,
		snap: &source.Snapshot{OwnerID: "u1", Notifications: ns},
	}
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSyncOnceStoresSnapshots(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	p := New(s, quiet())
	p.RegisterSource(messagesSource(model.Message{ID: "m1", SenderID: "u2", ReceiverID: "u1", Content: "hi", CreatedAt: time.Now()}))
	p.RegisterSource(notificationsSource(model.SystemNotification{ID: "n1", UserID: "u1", Type: "outbid", CreatedAt: time.Now()}))

	require.NoError(t, p.SyncOnce(ctx))

	msgs, err := s.ListMessages(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	ns, err := s.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, ns, 1)

	for _, st := range p.GetStatuses() {
		assert.Equal(t, SyncIdle, st.State)
		assert.False(t, st.LastSync.IsZero())
	}
}

func TestSyncOnceReportsErrors(t *testing.T) {
	s := testutil.NewTestStore(t)
	src := notificationsSource()
	src.set(nil, &api.AuthError{Method: "GET", Path: "/api/notifications"})
	p := New(s, quiet())
	p.RegisterSource(src)

	err := p.SyncOnce(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))

	statuses := p.GetStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, SyncError, statuses[0].State)
}

func TestNewCountOnlyCountsUnseenUnread(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	src := notificationsSource(model.SystemNotification{ID: "n1", UserID: "u1", CreatedAt: time.Now()})
	p := New(s, quiet())

	first := p.fetchAndStore(ctx, src)
	require.NoError(t, first.Error)
	assert.Equal(t, 1, first.NewCount)

	src.set(&source.Snapshot{OwnerID: "u1", Notifications: []model.SystemNotification{
		{ID: "n1", UserID: "u1", CreatedAt: time.Now()},
		{ID: "n2", UserID: "u1", CreatedAt: time.Now()},
		{ID: "n3", UserID: "u1", IsRead: true, CreatedAt: time.Now()},
	}}, nil)
	second := p.fetchAndStore(ctx, src)
	require.NoError(t, second.Error)
	assert.Equal(t, 1, second.NewCount)
}

func TestInvalidateRefetchesMatchingSource(t *testing.T) {
	s := testutil.NewTestStore(t)
	msgs := messagesSource()
	notes := notificationsSource()
	p := New(s, quiet(), WithInterval(time.Hour))
	p.RegisterSource(msgs)
	p.RegisterSource(notes)
	p.SetLive(true)

	p.Start()
	defer p.Stop()

	// Initial fetch for both.
	require.Eventually(t, func() bool {
		return msgs.calls.Load() == 1 && notes.calls.Load() == 1
	}, time.Second, time.Millisecond)

	p.Invalidate(model.CacheKeyNotifications)
	require.Eventually(t, func() bool { return notes.calls.Load() == 2 }, time.Second, time.Millisecond)
	assert.EqualValues(t, 1, msgs.calls.Load())

	p.Invalidate("/api/unrelated")
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, msgs.calls.Load())
	assert.EqualValues(t, 2, notes.calls.Load())
}

func TestIntervalPollingOnlyWhenNotLive(t *testing.T) {
	s := testutil.NewTestStore(t)
	notes := notificationsSource()
	p := New(s, quiet(), WithInterval(5*time.Millisecond))
	p.RegisterSource(notes)
	p.SetLive(true)

	p.Start()
	defer p.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, notes.calls.Load(), "ticks are ignored while live")

	p.SetLive(false)
	require.Eventually(t, func() bool { return notes.calls.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestResultsPublished(t *testing.T) {
	s := testutil.NewTestStore(t)
	src := messagesSource()
	src.set(nil, errors.New("boom"))
	p := New(s, quiet(), WithInterval(time.Hour))
	p.RegisterSource(src)
	p.Start()
	defer p.Stop()

	select {
	case res := <-p.Results():
		assert.Equal(t, source.KindMessages, res.Source)
		assert.EqualError(t, res.Error, "boom")
		assert.False(t, res.AuthExpired)
	case <-time.After(time.Second):
		t.Fatal("no result published")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	p := New(testutil.NewTestStore(t), quiet())
	p.Stop()
	p.Start()
	p.Stop()
	p.Stop()
}

func TestRestartResumesPolling(t *testing.T) {
	s := testutil.NewTestStore(t)
	notes := notificationsSource()
	p := New(s, quiet(), WithInterval(5*time.Millisecond))
	p.RegisterSource(notes)

	p.Start()
	require.Eventually(t, func() bool { return notes.calls.Load() >= 1 }, time.Second, time.Millisecond)
	p.Stop()

	before := notes.calls.Load()
	p.Start()
	defer p.Stop()
	require.Eventually(t, func() bool { return notes.calls.Load() >= before+3 }, time.Second, time.Millisecond,
		"a restarted poller keeps polling on its interval")
}
