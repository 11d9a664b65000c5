package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"

	"golang.org/x/sync/semaphore"

	"github.com/nhle/notifycore/internal/api"
	"github.com/nhle/notifycore/internal/model"
)

var (
	// ErrRegistrationInFlight is returned when a registration is started
	// while another one for this device has not finished.
	ErrRegistrationInFlight = errors.New("push registration already in progress")
	// ErrPermissionDenied is returned by Enroll when the user declines.
	ErrPermissionDenied = errors.New("push permission denied")
)

// Backend is the push part of the REST API. *api.Client satisfies it.
type Backend interface {
	VAPIDPublicKey(ctx context.Context) (string, error)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	SubscribeWeb(ctx context.Context, sub api.WebSubscription) error
	RegisterNative(ctx context.Context, reg api.NativeRegistration) error
	Unregister(ctx context.Context, req api.UnregisterRequest) (bool, error)
}

// Config holds the collaborators of a Service.
type Config struct {
	Platform   model.Platform
	DeviceName string

	Backend     Backend
	Cache       *Cache
	Permissions PermissionChecker
	// Web is required on the web platform, Native on iOS and Android.
	Web    WebSubscriber
	Native TokenSource

	Logger *slog.Logger
}

// Status is a snapshot of the device's push state.
type Status struct {
	Platform   model.Platform
	Permission model.Permission
	Cache      model.PushCache
	DeviceID   string
}

// Service runs reconciliation and registration for one device. It is
// the only writer of the push cache.
type Service struct {
	platform   model.Platform
	deviceName string
	backend    Backend
	cache      *Cache
	perms      PermissionChecker
	web        WebSubscriber
	native     TokenSource
	logger     *slog.Logger

	// registering admits one registration at a time.
	registering *semaphore.Weighted
	// cacheMu serializes read-modify-write cycles on the cache.
	cacheMu gosync.Mutex
}

// NewService validates cfg and creates a Service.
func NewService(cfg Config) (*Service, error) {
	switch {
	case cfg.Backend == nil || cfg.Cache == nil || cfg.Permissions == nil:
		return nil, fmt.Errorf("creating push service: backend, cache and permissions are required")
	case cfg.Platform == model.PlatformWeb && cfg.Web == nil:
		return nil, fmt.Errorf("creating push service: web platform needs a web subscriber")
	case cfg.Platform.Native() && cfg.Native == nil:
		return nil, fmt.Errorf("creating push service: %s platform needs a token source", cfg.Platform)
	case cfg.Platform != model.PlatformWeb && !cfg.Platform.Native():
		return nil, fmt.Errorf("creating push service: unknown platform %q", cfg.Platform)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		platform:    cfg.Platform,
		deviceName:  cfg.DeviceName,
		backend:     cfg.Backend,
		cache:       cfg.Cache,
		perms:       cfg.Permissions,
		web:         cfg.Web,
		native:      cfg.Native,
		logger:      logger,
		registering: semaphore.NewWeighted(1),
	}, nil
}

// Reconcile compares the local cache with the server, persists the
// corrected cache and, when the decision is AutoRegister, registers.
//
// Server lookups that fail are treated as unknown rather than as empty,
// so a network blip never clears a valid subscription. A registration
// suppressed because another is in flight is not an error.
func (s *Service) Reconcile(ctx context.Context) (Decision, error) {
	perm, err := s.perms.Permission(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("checking push permission: %w", err)
	}

	in := Input{Platform: s.platform, Permission: perm}

	if s.platform == model.PlatformWeb {
		key, err := s.backend.VAPIDPublicKey(ctx)
		if err != nil {
			s.logger.Warn("vapid key unavailable", slog.Any("error", err))
		} else {
			in.ServerKeyFingerprint = Fingerprint(key)
		}
	}

	subs, err := s.backend.ListSubscriptions(ctx)
	if err != nil {
		s.logger.Warn("subscription list unavailable", slog.Any("error", err))
		in.SubscriptionsUnavailable = true
	}
	in.Subscriptions = subs

	s.cacheMu.Lock()
	in.Cache, err = s.cache.Load(ctx)
	if err != nil {
		s.cacheMu.Unlock()
		return Decision{}, err
	}
	d := Reconcile(in)
	if d.Cache != in.Cache {
		err = s.cache.Save(ctx, d.Cache)
	}
	s.cacheMu.Unlock()
	if err != nil {
		return d, err
	}

	s.logger.Info("push reconciled",
		slog.String("platform", string(s.platform)),
		slog.String("action", d.Action.String()),
		slog.String("reason", d.Reason),
	)

	if d.Action == AutoRegister {
		if err := s.Register(ctx); err != nil {
			if errors.Is(err, ErrRegistrationInFlight) {
				s.logger.Debug("auto registration suppressed")
				return d, nil
			}
			return d, err
		}
	}
	return d, nil
}

// Enroll is the accept path of the enrollment prompt: request permission
// and register. A refusal is recorded as a dismissal.
func (s *Service) Enroll(ctx context.Context) error {
	perm, err := s.perms.Request(ctx)
	if err != nil {
		return fmt.Errorf("requesting push permission: %w", err)
	}
	if perm != model.PermissionGranted {
		if err := s.Dismiss(ctx); err != nil {
			return err
		}
		return ErrPermissionDenied
	}
	return s.Register(ctx)
}

// Register binds this device to the backend. Subscribed is set only after
// the backend confirms and is cleared on any failure.
func (s *Service) Register(ctx context.Context) error {
	if !s.registering.TryAcquire(1) {
		return ErrRegistrationInFlight
	}
	defer s.registering.Release(1)

	keyFingerprint, err := s.register(ctx)
	if err != nil {
		s.logger.Error("push registration failed",
			slog.String("platform", string(s.platform)),
			slog.Any("error", err),
		)
		if clearErr := s.update(ctx, func(pc *model.PushCache) { pc.Subscribed = false }); clearErr != nil {
			return errors.Join(err, clearErr)
		}
		return err
	}

	s.logger.Info("push registered", slog.String("platform", string(s.platform)))
	return s.update(ctx, func(pc *model.PushCache) {
		pc.Subscribed = true
		pc.Dismissed = false
		if keyFingerprint != "" {
			pc.KeyFingerprint = keyFingerprint
		}
	})
}

// register performs the platform registration and returns the signing
// key fingerprint it registered under, if any.
func (s *Service) register(ctx context.Context) (string, error) {
	if s.platform.Native() {
		token, err := s.native.Token(ctx)
		if err != nil {
			return "", fmt.Errorf("getting device token: %w", err)
		}
		deviceID, err := s.cache.DeviceID(ctx)
		if err != nil {
			return "", err
		}
		return "", s.backend.RegisterNative(ctx, api.NativeRegistration{
			Token:      token,
			Platform:   s.platform,
			DeviceID:   deviceID,
			DeviceName: s.deviceName,
		})
	}

	key, err := s.backend.VAPIDPublicKey(ctx)
	if err != nil {
		return "", err
	}
	sub, err := s.web.Subscribe(ctx, key)
	if err != nil {
		return "", fmt.Errorf("creating web push subscription: %w", err)
	}
	if err := s.backend.SubscribeWeb(ctx, sub); err != nil {
		return "", err
	}
	return Fingerprint(key), nil
}

// Dismiss records that the user declined the enrollment prompt.
func (s *Service) Dismiss(ctx context.Context) error {
	return s.update(ctx, func(pc *model.PushCache) { pc.Dismissed = true })
}

// Unregister removes this device's registration from the backend and
// clears the local subscribed flag. It reports whether the backend had
// one to remove.
func (s *Service) Unregister(ctx context.Context) (bool, error) {
	var req api.UnregisterRequest
	if s.platform.Native() {
		token, err := s.native.Token(ctx)
		if err != nil {
			return false, fmt.Errorf("getting device token: %w", err)
		}
		req.Token = token
	} else {
		endpoint, err := s.web.Endpoint(ctx)
		if err != nil {
			return false, fmt.Errorf("getting web push endpoint: %w", err)
		}
		req.Endpoint = endpoint
	}

	removed, err := s.backend.Unregister(ctx, req)
	if err != nil {
		return false, err
	}
	if err := s.update(ctx, func(pc *model.PushCache) { pc.Subscribed = false }); err != nil {
		return removed, err
	}
	return removed, nil
}

// Status reports the current permission and cached state.
func (s *Service) Status(ctx context.Context) (Status, error) {
	perm, err := s.perms.Permission(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("checking push permission: %w", err)
	}
	pc, err := s.cache.Load(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{Platform: s.platform, Permission: perm, Cache: pc}
	if s.platform.Native() {
		if st.DeviceID, err = s.cache.DeviceID(ctx); err != nil {
			return Status{}, err
		}
	}
	return st, nil
}

func (s *Service) update(ctx context.Context, fn func(*model.PushCache)) error {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	pc, err := s.cache.Load(ctx)
	if err != nil {
		return err
	}
	fn(&pc)
	return s.cache.Save(ctx, pc)
}
