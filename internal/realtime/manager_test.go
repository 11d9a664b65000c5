package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notifycore/internal/model"
)

const waitFor = 2 * time.Second

var errRefused = errors.New("connection refused")

type fakeConn struct {
	frames  chan []byte
	closed  chan struct{}
	once    sync.Once
	pingErr error
	pings   atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case data := <-c.frames:
		return websocket.MessageText, data, nil
	case <-c.closed:
		return 0, nil, io.EOF
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (c *fakeConn) Ping(ctx context.Context) error {
	c.pings.Add(1)
	if c.pingErr != nil {
		return c.pingErr
	}
	return ctx.Err()
}

func (c *fakeConn) Close(websocket.StatusCode, string) error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// drop simulates the server closing the connection.
func (c *fakeConn) drop() { c.Close(websocket.StatusGoingAway, "") }

// fakeDialer hands out scripted outcomes in order. Once the script runs
// out every dial is refused.
type fakeDialer struct {
	mu      sync.Mutex
	script  []*fakeConn
	dials   atomic.Int32
	urls    []string
	headers []http.Header
}

func (d *fakeDialer) dial(_ context.Context, url string, header http.Header) (Conn, error) {
	d.dials.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	d.headers = append(d.headers, header)
	if len(d.script) == 0 {
		return nil, errRefused
	}
	next := d.script[0]
	d.script = d.script[1:]
	if next == nil {
		return nil, errRefused
	}
	return next, nil
}

type recordingInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingInvalidator) Invalidate(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, keys...)
}

func (r *recordingInvalidator) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

type stateLog struct {
	mu      sync.Mutex
	changes []StateChange
}

func (l *stateLog) record(c StateChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func (l *stateLog) count(to State) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.changes {
		if c.To == to {
			n++
		}
	}
	return n
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(d *fakeDialer, inv Invalidator, delay time.Duration) (*Manager, *stateLog) {
	m := NewManager(Config{
		BaseURL:        "http://localhost:5000",
		ReconnectDelay: delay,
		Invalidator:    inv,
		Dialer:         d.dial,
		Logger:         quietLogger(),
	})
	log := &stateLog{}
	m.OnStateChange(log.record)
	return m, log
}

func TestConnectRequiresIdentity(t *testing.T) {
	m, _ := newTestManager(&fakeDialer{}, nil, time.Millisecond)
	assert.ErrorIs(t, m.Connect(Identity{}), ErrNoIdentity)
	assert.Equal(t, Disconnected, m.State())
}

func TestConnectDeliversEventsAndInvalidates(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{script: []*fakeConn{conn}}
	inv := &recordingInvalidator{}
	m, _ := newTestManager(d, inv, time.Millisecond)

	events := make(chan Event, 4)
	m.OnEvent(func(ev Event) { events <- ev })

	require.NoError(t, m.Connect(Identity{UserID: "u1", Token: "tok"}))
	require.Eventually(t, func() bool { return m.State() == Connected }, waitFor, time.Millisecond)

	conn.frames <- []byte(`{"type":"TYPING"}`)
	conn.frames <- []byte(`garbage`)
	conn.frames <- []byte(`{"type":"NOTIFICATION","notification":{"id":"n1","type":"outbid"}}`)

	select {
	case ev := <-events:
		assert.Equal(t, EventNotification, ev.Kind)
		assert.Equal(t, "n1", ev.Notification.ID)
	case <-time.After(waitFor):
		t.Fatal("no event delivered")
	}

	// Undecodable frames neither reach listeners nor close the connection.
	assert.Equal(t, Connected, m.State())
	assert.Equal(t, []string{model.CacheKeyNotifications, model.CacheKeyMessages}, inv.snapshot())

	d.mu.Lock()
	assert.Equal(t, "ws://localhost:5000/ws?userId=u1", d.urls[0])
	assert.Equal(t, "Bearer tok", d.headers[0].Get("Authorization"))
	d.mu.Unlock()

	m.Disconnect()
}

func TestReconnectBudgetExhausts(t *testing.T) {
	d := &fakeDialer{}
	m, log := newTestManager(d, nil, time.Millisecond)

	require.NoError(t, m.Connect(Identity{UserID: "u1"}))
	require.Eventually(t, func() bool { return m.State() == Exhausted }, waitFor, time.Millisecond)

	// One initial dial plus DefaultMaxAttempts reconnects.
	assert.EqualValues(t, 1+DefaultMaxAttempts, d.dials.Load())
	assert.Equal(t, DefaultMaxAttempts, m.Attempts())
	assert.Equal(t, 1, log.count(Exhausted))
	assert.Equal(t, DefaultMaxAttempts, log.count(Reconnecting))

	// Exhausted stays put without an explicit Connect.
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1+DefaultMaxAttempts, d.dials.Load())
}

func TestAttemptsResetOnOpen(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{script: []*fakeConn{nil, nil, conn}}
	m, _ := newTestManager(d, nil, time.Millisecond)

	require.NoError(t, m.Connect(Identity{UserID: "u1"}))
	require.Eventually(t, func() bool { return m.State() == Connected }, waitFor, time.Millisecond)
	assert.Equal(t, 0, m.Attempts())
	assert.EqualValues(t, 3, d.dials.Load())

	m.Disconnect()
}

func TestServerDropTriggersReconnect(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	d := &fakeDialer{script: []*fakeConn{first, second}}
	m, log := newTestManager(d, nil, time.Millisecond)

	require.NoError(t, m.Connect(Identity{UserID: "u1"}))
	require.Eventually(t, func() bool { return m.State() == Connected }, waitFor, time.Millisecond)

	first.drop()
	require.Eventually(t, func() bool { return log.count(Connected) == 2 }, waitFor, time.Millisecond)
	assert.Equal(t, 1, log.count(Reconnecting))
	assert.Equal(t, 0, m.Attempts())

	m.Disconnect()
}

func TestMissedPongTriggersReconnect(t *testing.T) {
	stale := newFakeConn()
	stale.pingErr = context.DeadlineExceeded
	healthy := newFakeConn()
	d := &fakeDialer{script: []*fakeConn{stale, healthy}}
	m := NewManager(Config{
		BaseURL:        "http://localhost:5000",
		ReconnectDelay: time.Millisecond,
		PingInterval:   5 * time.Millisecond,
		Dialer:         d.dial,
		Logger:         quietLogger(),
	})
	log := &stateLog{}
	m.OnStateChange(log.record)

	require.NoError(t, m.Connect(Identity{UserID: "u1"}))
	require.Eventually(t, func() bool { return log.count(Reconnecting) >= 1 }, waitFor, time.Millisecond)
	require.Eventually(t, func() bool { return log.count(Connected) == 2 }, waitFor, time.Millisecond)

	select {
	case <-stale.closed:
	default:
		t.Fatal("unhealthy connection was not closed")
	}
	require.Eventually(t, func() bool { return healthy.pings.Load() >= 2 }, waitFor, time.Millisecond)
	assert.Equal(t, Connected, m.State())
	assert.Equal(t, 1, log.count(Reconnecting))

	m.Disconnect()
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestManager(d, nil, time.Hour)

	require.NoError(t, m.Connect(Identity{UserID: "u1"}))
	require.Eventually(t, func() bool { return m.State() == Reconnecting }, waitFor, time.Millisecond)

	m.mu.Lock()
	staleEpoch := m.epoch
	m.mu.Unlock()

	m.Disconnect()
	assert.Equal(t, Disconnected, m.State())
	assert.Equal(t, 0, m.Attempts())

	// A timer that fires after teardown must not resurrect the connection.
	m.reconnect(staleEpoch)
	assert.Equal(t, Disconnected, m.State())
	assert.EqualValues(t, 1, d.dials.Load())
}

func TestListenersSeeTransitionsInOrder(t *testing.T) {
	for range 100 {
		conn := newFakeConn()
		d := &fakeDialer{script: []*fakeConn{conn}}
		m, log := newTestManager(d, nil, time.Hour)

		require.NoError(t, m.Connect(Identity{UserID: "u1"}))
		require.Eventually(t, func() bool { return m.State() == Connected }, waitFor, time.Millisecond)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); conn.drop() }()
		go func() { defer wg.Done(); m.Disconnect() }()
		wg.Wait()
		// The read loop may still be unwinding; its drop is stale by now.
		time.Sleep(time.Millisecond)

		log.mu.Lock()
		changes := append([]StateChange(nil), log.changes...)
		log.mu.Unlock()
		require.NotEmpty(t, changes)
		for i := 1; i < len(changes); i++ {
			require.Equal(t, changes[i-1].To, changes[i].From, "transition %d out of order", i)
		}
		require.Equal(t, Disconnected, changes[len(changes)-1].To)
		require.Equal(t, Disconnected, m.State())
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{script: []*fakeConn{conn}}
	m, log := newTestManager(d, nil, time.Millisecond)

	m.Disconnect()
	assert.Equal(t, 0, log.count(Disconnected))

	require.NoError(t, m.Connect(Identity{UserID: "u1"}))
	require.Eventually(t, func() bool { return m.State() == Connected }, waitFor, time.Millisecond)

	m.Disconnect()
	m.Disconnect()
	assert.Equal(t, 1, log.count(Disconnected))

	// The read loop sees its context cancelled and must not reconnect.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, Disconnected, m.State())
	assert.EqualValues(t, 1, d.dials.Load())
}

func TestConnectAfterExhaustedStartsFresh(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestManager(d, nil, time.Millisecond)

	require.NoError(t, m.Connect(Identity{UserID: "u1"}))
	require.Eventually(t, func() bool { return m.State() == Exhausted }, waitFor, time.Millisecond)

	conn := newFakeConn()
	d.mu.Lock()
	d.script = []*fakeConn{conn}
	d.mu.Unlock()

	require.NoError(t, m.Connect(Identity{UserID: "u1"}))
	require.Eventually(t, func() bool { return m.State() == Connected }, waitFor, time.Millisecond)
	assert.Equal(t, 0, m.Attempts())

	m.Disconnect()
}

func TestManagerOverRealWebSocket(t *testing.T) {
	gotUser := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser <- r.URL.Query().Get("userId")
		c, err := websocket.Accept(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer c.CloseNow()
		ctx := r.Context()
		assert.NoError(t, c.Write(ctx, websocket.MessageText,
			[]byte(`{"type":"NEW_MESSAGE","message":{"id":"m9","senderId":"u2","content":"hello"}}`)))
		// Block until the client goes away.
		_, _, _ = c.Read(ctx)
	}))
	defer srv.Close()

	m := NewManager(Config{BaseURL: srv.URL, ReconnectDelay: time.Millisecond, Logger: quietLogger()})
	events := make(chan Event, 1)
	m.OnEvent(func(ev Event) { events <- ev })

	require.NoError(t, m.Connect(Identity{UserID: "u1"}))
	defer m.Disconnect()

	assert.Equal(t, "u1", <-gotUser)
	select {
	case ev := <-events:
		require.NotNil(t, ev.Message)
		assert.Equal(t, "hello", ev.Message.Content)
	case <-time.After(waitFor):
		t.Fatal("no event delivered")
	}
}
