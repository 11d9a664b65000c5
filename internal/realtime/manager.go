// Package realtime keeps one persistent WebSocket connection per session
// to the notification endpoint and turns inbound frames into events.
//
// Lifecycle:
//
//	Disconnected --Connect--> Connecting --open--> Connected
//	Connected --close/error/missed pong--> Reconnecting --delay--> Connecting
//	Reconnecting --budget spent--> Exhausted
//
// Reconnects use a fixed delay and a bounded attempt budget. The attempt
// counter resets whenever the connection opens. Exhausted is left only
// through an explicit Connect.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/nhle/notifycore/internal/model"
)

const (
	// DefaultReconnectDelay is the fixed pause before each reconnect.
	DefaultReconnectDelay = 3 * time.Second
	// DefaultMaxAttempts is the reconnect budget after a drop.
	DefaultMaxAttempts = 5
	// DefaultPingInterval is how often an open connection is pinged.
	DefaultPingInterval = 25 * time.Second
	// DefaultPingTimeout bounds the wait for a pong.
	DefaultPingTimeout = 10 * time.Second
)

// ErrNoIdentity is returned by Connect when the identity has no user id.
var ErrNoIdentity = errors.New("connect requires an authenticated identity")

// ErrUnhealthy causes a drop when the peer stops answering pings.
var ErrUnhealthy = errors.New("connection failed health check")

// Identity scopes a connection to an authenticated user.
type Identity struct {
	UserID string
	Token  string
}

// Invalidator is told which cached collections went stale. The poller
// satisfies it.
type Invalidator interface {
	Invalidate(keys ...string)
}

// Config holds the parameters of a Manager. Zero values pick defaults.
type Config struct {
	BaseURL        string
	ReconnectDelay time.Duration
	MaxAttempts    int
	PingInterval   time.Duration
	PingTimeout    time.Duration

	// Invalidator receives InvalidateKeys after every recognized event.
	Invalidator    Invalidator
	InvalidateKeys []string

	Dialer Dialer
	Logger *slog.Logger
}

// Manager owns the connection state machine. All state is guarded by mu
// and mutated only by the Manager's own handlers.
type Manager struct {
	baseURL     string
	delay       time.Duration
	maxAttempts int
	pingEvery   time.Duration
	pingTimeout time.Duration
	invalidator Invalidator
	keys        []string
	dial        Dialer
	logger      *slog.Logger

	mu       sync.Mutex
	state    State
	attempts int
	// epoch increments on every Connect and Disconnect. Goroutines and
	// timers carry the epoch they were started under and do nothing once
	// it is stale.
	epoch    uint64
	identity Identity
	cancel   context.CancelFunc
	timer    *time.Timer
	pending  []StateChange

	// dispatchMu serializes listener invocations.
	dispatchMu    sync.Mutex
	listenersMu   sync.RWMutex
	eventHandlers []func(Event)
	stateHandlers []func(StateChange)
}

// NewManager creates a Manager in the Disconnected state.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		baseURL:     cfg.BaseURL,
		delay:       cfg.ReconnectDelay,
		maxAttempts: cfg.MaxAttempts,
		pingEvery:   cfg.PingInterval,
		pingTimeout: cfg.PingTimeout,
		invalidator: cfg.Invalidator,
		keys:        cfg.InvalidateKeys,
		dial:        cfg.Dialer,
		logger:      cfg.Logger,
	}
	if m.delay <= 0 {
		m.delay = DefaultReconnectDelay
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = DefaultMaxAttempts
	}
	if m.pingEvery <= 0 {
		m.pingEvery = DefaultPingInterval
	}
	if m.pingTimeout <= 0 {
		m.pingTimeout = DefaultPingTimeout
	}
	if m.keys == nil {
		m.keys = []string{model.CacheKeyNotifications, model.CacheKeyMessages}
	}
	if m.dial == nil {
		m.dial = WebSocketDialer
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// OnEvent registers a listener for decoded events. Listeners run one at a
// time, in arrival order.
func (m *Manager) OnEvent(h func(Event)) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.eventHandlers = append(m.eventHandlers, h)
}

// OnStateChange registers a listener for state transitions. A transition
// into Exhausted is the advisory signal to fall back to polling.
func (m *Manager) OnStateChange(h func(StateChange)) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.stateHandlers = append(m.stateHandlers, h)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the current reconnect attempt counter.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect establishes the connection for id, replacing any existing one.
// It returns once the first dial has been started; the outcome is
// reported through state changes.
func (m *Manager) Connect(id Identity) error {
	if id.UserID == "" {
		return ErrNoIdentity
	}
	url, err := BuildURL(m.baseURL, id.UserID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.stopLocked()
	m.epoch++
	m.identity = id
	m.attempts = 0
	m.setStateLocked(Connecting)
	epoch := m.epoch
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	m.flushStates()
	go m.run(ctx, epoch, url)
	return nil
}

// Disconnect closes the connection and cancels any pending reconnect.
// It is safe to call repeatedly or before Connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.stopLocked()
	m.epoch++
	m.attempts = 0
	m.identity = Identity{}
	changed := m.state != Disconnected
	if changed {
		m.setStateLocked(Disconnected)
	}
	m.mu.Unlock()

	if changed {
		m.logger.Info("realtime disconnected")
		m.flushStates()
	}
}

// stopLocked cancels the live connection and the reconnect timer.
func (m *Manager) stopLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// run dials and then reads until the connection drops.
func (m *Manager) run(ctx context.Context, epoch uint64, url string) {
	header := http.Header{}
	m.mu.Lock()
	if m.identity.Token != "" {
		header.Set("Authorization", "Bearer "+m.identity.Token)
	}
	m.mu.Unlock()

	conn, err := m.dial(ctx, url, header)
	if err != nil {
		m.handleDrop(epoch, err)
		return
	}

	if !m.handleOpen(epoch) {
		conn.Close(websocket.StatusNormalClosure, "superseded")
		return
	}

	connCtx, fail := context.WithCancelCause(ctx)
	go m.keepAlive(connCtx, fail, conn)
	err = m.readLoop(connCtx, epoch, conn)
	if cause := context.Cause(connCtx); cause != nil {
		err = cause
	}
	fail(nil)
	conn.Close(websocket.StatusNormalClosure, "")
	m.handleDrop(epoch, err)
}

// keepAlive pings conn until ctx ends. A ping that fails or goes
// unanswered cancels ctx with ErrUnhealthy, which ends the read loop.
func (m *Manager) keepAlive(ctx context.Context, fail context.CancelCauseFunc, conn Conn) {
	ticker := time.NewTicker(m.pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, m.pingTimeout)
		err := conn.Ping(pingCtx)
		cancel()
		if err != nil {
			if ctx.Err() == nil {
				fail(fmt.Errorf("%w: %w", ErrUnhealthy, err))
			}
			return
		}
	}
}

// readLoop delivers frames until a read fails. A frame that cannot be
// decoded is logged and skipped.
func (m *Manager) readLoop(ctx context.Context, epoch uint64, conn Conn) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if !m.current(epoch) {
			return context.Canceled
		}
		if typ != websocket.MessageText {
			m.logger.Debug("dropping binary frame", slog.Int("bytes", len(data)))
			continue
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			m.logger.Warn("dropping undecodable frame",
				slog.String("error", err.Error()),
				slog.Int("bytes", len(data)),
			)
			continue
		}

		if m.invalidator != nil {
			m.invalidator.Invalidate(m.keys...)
		}
		m.emitEvent(ev)
	}
}

// handleOpen moves a current Connecting manager into Connected and resets
// the attempt counter. It reports false if the epoch is stale.
func (m *Manager) handleOpen(epoch uint64) bool {
	m.mu.Lock()
	if epoch != m.epoch || m.state != Connecting {
		m.mu.Unlock()
		return false
	}
	m.attempts = 0
	m.setStateLocked(Connected)
	userID := m.identity.UserID
	m.mu.Unlock()

	m.logger.Info("realtime connected", slog.String("user_id", userID))
	m.flushStates()
	return true
}

// handleDrop reacts to a failed dial or a closed connection: schedule the
// next attempt, or give up once the budget is spent.
func (m *Manager) handleDrop(epoch uint64, cause error) {
	m.mu.Lock()
	if epoch != m.epoch || (m.state != Connecting && m.state != Connected) {
		m.mu.Unlock()
		return
	}

	if m.attempts >= m.maxAttempts {
		m.setStateLocked(Exhausted)
		attempts := m.attempts
		m.mu.Unlock()

		m.logger.Error("realtime reconnect budget exhausted",
			slog.Int("attempts", attempts),
			slog.Any("error", cause),
		)
		m.flushStates()
		return
	}

	m.attempts++
	m.setStateLocked(Reconnecting)
	attempt := m.attempts
	m.timer = time.AfterFunc(m.delay, func() { m.reconnect(epoch) })
	m.mu.Unlock()

	m.logger.Warn("realtime connection lost, reconnecting",
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", m.maxAttempts),
		slog.Duration("delay", m.delay),
		slog.Any("error", cause),
	)
	m.flushStates()
}

// reconnect fires from the reconnect timer. A timer that outlived a
// Disconnect or a newer Connect carries a stale epoch and does nothing.
func (m *Manager) reconnect(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.state != Reconnecting {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	url, err := BuildURL(m.baseURL, m.identity.UserID)
	if err != nil {
		m.mu.Unlock()
		m.handleDrop(epoch, err)
		return
	}
	m.setStateLocked(Connecting)
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	m.flushStates()
	go m.run(ctx, epoch, url)
}

func (m *Manager) current(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return epoch == m.epoch
}

// setStateLocked records the transition and queues it for listeners.
// The queue keeps delivery in the order transitions happened under mu.
func (m *Manager) setStateLocked(to State) {
	m.pending = append(m.pending, StateChange{From: m.state, To: to, Attempt: m.attempts})
	m.state = to
}

func (m *Manager) emitEvent(ev Event) {
	m.listenersMu.RLock()
	handlers := append([]func(Event){}, m.eventHandlers...)
	m.listenersMu.RUnlock()

	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

// flushStates delivers queued transitions. Whichever caller holds
// dispatchMu drains the queue, so a caller may find its own transition
// already delivered.
func (m *Manager) flushStates() {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			return
		}
		change := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()

		m.listenersMu.RLock()
		handlers := append([]func(StateChange){}, m.stateHandlers...)
		m.listenersMu.RUnlock()
		for _, h := range handlers {
			h(change)
		}
	}
}
