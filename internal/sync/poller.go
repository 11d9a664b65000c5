package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/nhle/notifycore/internal/api"
	"github.com/nhle/notifycore/internal/source"
	"github.com/nhle/notifycore/internal/store"
)

// SyncState represents the current state of a source sync operation.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the sync state for a single source.
type SyncStatus struct {
	Source   source.Kind
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResult is published after every fetch.
type SyncResult struct {
	Source   source.Kind
	Snapshot *source.Snapshot
	// NewCount is the number of unread records not present before.
	NewCount int
	Error    error
	// AuthExpired is set when the backend rejected the session token.
	AuthExpired bool
}

const (
	// fetchTimeout is the maximum time allowed for a single fetch operation.
	fetchTimeout = 30 * time.Second
	// DefaultInterval is the fallback polling period.
	DefaultInterval = 60 * time.Second
)

// sourceEntry holds a registered source and its trigger channel.
type sourceEntry struct {
	src     source.Source
	trigger chan struct{}
}

// Poller keeps the local store in step with the backend. While the
// realtime connection is live it fetches only when a cache key is
// invalidated; otherwise it also polls on a fixed interval.
type Poller struct {
	store    store.Store
	interval time.Duration
	logger   *slog.Logger

	sources  []sourceEntry
	statuses map[source.Kind]*SyncStatus
	resultCh chan SyncResult
	stopCh   chan struct{}
	live     atomic.Bool
	mu       gosync.Mutex
	running  bool
	wg       gosync.WaitGroup
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the fallback polling period.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// New creates a new Poller with the given store.
func New(s store.Store, opts ...Option) *Poller {
	p := &Poller{
		store:    s,
		interval: DefaultInterval,
		logger:   slog.Default(),
		statuses: make(map[source.Kind]*SyncStatus),
		resultCh: make(chan SyncResult, 16),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RegisterSource adds a source adapter to the poller. Sources must be
// registered before Start.
func (p *Poller) RegisterSource(src source.Source) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sources = append(p.sources, sourceEntry{src: src, trigger: make(chan struct{}, 1)})
	p.statuses[src.Kind()] = &SyncStatus{Source: src.Kind(), State: SyncIdle}
}

// Start launches one polling goroutine per source. Each does an initial
// fetch immediately. A stopped poller can be started again.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})

	for _, entry := range p.sources {
		p.wg.Add(1)
		go p.pollSource(entry, p.stopCh)
	}
}

// Stop halts all polling goroutines and waits for in-flight fetches.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
}

// Results delivers a SyncResult after every fetch. Results are dropped
// when nobody keeps up with the channel.
func (p *Poller) Results() <-chan SyncResult {
	return p.resultCh
}

// SetLive tells the poller whether push delivery is available. Dropping
// out of live mode triggers an immediate catch-up fetch.
func (p *Poller) SetLive(live bool) {
	if was := p.live.Swap(live); was && !live {
		p.RefreshAll()
	}
}

// Live reports whether interval polling is currently suspended.
func (p *Poller) Live() bool {
	return p.live.Load()
}

// Invalidate marks the collections behind keys as stale and schedules a
// refetch of each. Triggers coalesce while a fetch is pending.
func (p *Poller) Invalidate(keys ...string) {
	p.mu.Lock()
	sources := slices.Clone(p.sources)
	p.mu.Unlock()

	for _, entry := range sources {
		if slices.Contains(keys, entry.src.CacheKey()) {
			p.trigger(entry)
		}
	}
}

// RefreshAll triggers an immediate poll of all registered sources.
func (p *Poller) RefreshAll() {
	p.mu.Lock()
	sources := slices.Clone(p.sources)
	p.mu.Unlock()

	for _, entry := range sources {
		p.trigger(entry)
	}
}

// SyncOnce fetches every source synchronously and returns the first error.
// It does not require Start.
func (p *Poller) SyncOnce(ctx context.Context) error {
	p.mu.Lock()
	sources := slices.Clone(p.sources)
	p.mu.Unlock()

	var errs []error
	for _, entry := range sources {
		if res := p.fetchAndStore(ctx, entry.src); res.Error != nil {
			errs = append(errs, res.Error)
		}
	}
	return errors.Join(errs...)
}

// GetStatuses returns the current sync status of all registered sources,
// ordered by source kind.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	slices.SortFunc(statuses, func(a, b SyncStatus) int {
		if a.Source < b.Source {
			return -1
		}
		if a.Source > b.Source {
			return 1
		}
		return 0
	})
	return statuses
}

func (p *Poller) trigger(entry sourceEntry) {
	select {
	case entry.trigger <- struct{}{}:
	default:
		// A fetch is already pending for this source.
	}
}

// pollSource runs the polling loop for a single source.
func (p *Poller) pollSource(entry sourceEntry, stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runFetch(entry.src)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if p.live.Load() {
				continue
			}
			p.runFetch(entry.src)
		case <-entry.trigger:
			p.runFetch(entry.src)
		}
	}
}

func (p *Poller) runFetch(src source.Source) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	p.sendResult(p.fetchAndStore(ctx, src))
}

// fetchAndStore performs a single fetch and replaces the stored copy of
// the collection.
func (p *Poller) fetchAndStore(ctx context.Context, src source.Source) SyncResult {
	kind := src.Kind()
	p.setStatus(kind, SyncRunning, nil)

	snap, err := src.Fetch(ctx)
	if err != nil {
		p.setStatus(kind, SyncError, err)
		res := SyncResult{Source: kind, Error: err, AuthExpired: api.IsAuthError(err)}
		if res.AuthExpired {
			p.logger.Warn("session expired", slog.String("source", string(kind)))
		} else {
			p.logger.Error("sync failed", slog.String("source", string(kind)), slog.Any("error", err))
		}
		return res
	}

	newCount, err := p.countNew(ctx, kind, snap)
	if err == nil {
		err = p.replace(ctx, kind, snap)
	}
	if err != nil {
		err = fmt.Errorf("storing %s: %w", kind, err)
		p.setStatus(kind, SyncError, err)
		p.logger.Error("sync failed", slog.String("source", string(kind)), slog.Any("error", err))
		return SyncResult{Source: kind, Error: err}
	}

	p.setStatus(kind, SyncIdle, nil)
	p.logger.Debug("sync complete",
		slog.String("source", string(kind)),
		slog.Int("records", len(snap.Messages)+len(snap.Notifications)),
		slog.Int("new", newCount),
	)
	return SyncResult{Source: kind, Snapshot: snap, NewCount: newCount}
}

// countNew counts unread records in snap that the store has not seen.
func (p *Poller) countNew(ctx context.Context, kind source.Kind, snap *source.Snapshot) (int, error) {
	known := make(map[string]bool)
	switch kind {
	case source.KindMessages:
		existing, err := p.store.ListMessages(ctx, snap.OwnerID)
		if err != nil {
			return 0, err
		}
		for _, m := range existing {
			known[m.ID] = true
		}
		n := 0
		for _, m := range snap.Messages {
			if !known[m.ID] && !m.IsRead && m.ReceiverID == snap.OwnerID {
				n++
			}
		}
		return n, nil
	case source.KindNotifications:
		existing, err := p.store.ListNotifications(ctx, snap.OwnerID)
		if err != nil {
			return 0, err
		}
		for _, n := range existing {
			known[n.ID] = true
		}
		n := 0
		for _, sn := range snap.Notifications {
			if !known[sn.ID] && !sn.IsRead {
				n++
			}
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unknown source kind %q", kind)
	}
}

func (p *Poller) replace(ctx context.Context, kind source.Kind, snap *source.Snapshot) error {
	if kind == source.KindMessages {
		return p.store.ReplaceMessages(ctx, snap.OwnerID, snap.Messages)
	}
	return p.store.ReplaceNotifications(ctx, snap.OwnerID, snap.Notifications)
}

// setStatus updates the sync status for a source.
func (p *Poller) setStatus(kind source.Kind, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[kind]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResult on the result channel without blocking.
func (p *Poller) sendResult(res SyncResult) {
	select {
	case p.resultCh <- res:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}
