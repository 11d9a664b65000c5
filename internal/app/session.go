package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nhle/notifycore/internal/api"
	"github.com/nhle/notifycore/internal/credential"
	"github.com/nhle/notifycore/internal/feed"
	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/internal/push"
	"github.com/nhle/notifycore/internal/realtime"
	"github.com/nhle/notifycore/internal/store"
	appsync "github.com/nhle/notifycore/internal/sync"
)

// Session wires the realtime connection, the poller, the feed and push
// reconciliation for one signed-in user.
//
// Events from the connection invalidate the poller's cache keys; the
// poller refetches and stores; Feed rebuilds from the store. While the
// connection is up the poller does not tick. Once it is exhausted the
// poller falls back to interval polling.
type Session struct {
	cfg      *model.AppConfig
	identity credential.Identity
	store    store.Store
	logger   *slog.Logger

	client   *api.Client
	poller   *appsync.Poller
	conn     *realtime.Manager
	commands *feed.Commands
	push     *push.Service
}

// New builds a session. It performs no I/O; call Start to go live.
func New(cfg *model.AppConfig, id credential.Identity, s store.Store, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("user_id", id.UserID))

	client := api.NewClient(cfg.Server.BaseURL, id.Token, api.WithTimeout(cfg.Server.Timeout()))

	poller := appsync.New(s,
		appsync.WithInterval(cfg.Feed.PollInterval()),
		appsync.WithLogger(logger),
	)
	registerSources(poller, client, id.UserID)

	conn := realtime.NewManager(realtime.Config{
		BaseURL:        cfg.Server.BaseURL,
		ReconnectDelay: cfg.Realtime.ReconnectDelay(),
		MaxAttempts:    cfg.Realtime.MaxReconnectAttempts,
		PingInterval:   cfg.Realtime.PingInterval(),
		Invalidator:    poller,
		Logger:         logger,
	})
	conn.OnStateChange(func(c realtime.StateChange) {
		poller.SetLive(pushDelivery(c.To))
	})

	device := push.NewLocalDevice(cfg.Push)
	pushSvc, err := push.NewService(push.Config{
		Platform:    model.Platform(cfg.Push.Platform),
		DeviceName:  cfg.Push.DeviceName,
		Backend:     client,
		Cache:       push.NewCache(s),
		Permissions: device,
		Web:         device,
		Native:      device,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &Session{
		cfg:      cfg,
		identity: id,
		store:    s,
		logger:   logger,
		client:   client,
		poller:   poller,
		conn:     conn,
		commands: feed.NewCommands(client, poller),
		push:     pushSvc,
	}, nil
}

// pushDelivery reports whether events can still arrive over the
// connection in state st.
func pushDelivery(st realtime.State) bool {
	switch st {
	case realtime.Connecting, realtime.Connected, realtime.Reconnecting:
		return true
	default:
		return false
	}
}

// Start begins polling and opens the realtime connection.
func (s *Session) Start() error {
	s.poller.Start()
	if err := s.Reconnect(); err != nil {
		s.poller.Stop()
		return fmt.Errorf("starting session: %w", err)
	}
	s.logger.Info("session started")
	return nil
}

// Reconnect opens a fresh realtime connection with a full attempt budget.
// It is how a session leaves the exhausted state.
func (s *Session) Reconnect() error {
	return s.conn.Connect(realtime.Identity{UserID: s.identity.UserID, Token: s.identity.Token})
}

// Close disconnects and stops polling. It is safe to call more than once.
func (s *Session) Close() {
	s.conn.Disconnect()
	s.poller.Stop()
}

// Refresh pulls both sources once, synchronously.
func (s *Session) Refresh(ctx context.Context) error {
	return s.poller.SyncOnce(ctx)
}

// Feed builds the feed from the locally stored sources.
func (s *Session) Feed(ctx context.Context) (model.Feed, error) {
	msgs, err := s.store.ListMessages(ctx, s.identity.UserID)
	if err != nil {
		return model.Feed{}, err
	}
	ns, err := s.store.ListNotifications(ctx, s.identity.UserID)
	if err != nil {
		return model.Feed{}, err
	}
	return feed.BuildFeedWithLimit(msgs, ns, s.identity.UserID, s.cfg.Feed.Limit), nil
}

// UserID returns the signed-in user.
func (s *Session) UserID() string { return s.identity.UserID }

// Commands returns the read-state commands.
func (s *Session) Commands() *feed.Commands { return s.commands }

// Push returns the push reconciliation service.
func (s *Session) Push() *push.Service { return s.push }

// Connection returns the realtime connection manager.
func (s *Session) Connection() *realtime.Manager { return s.conn }

// Poller returns the background poller.
func (s *Session) Poller() *appsync.Poller { return s.poller }
