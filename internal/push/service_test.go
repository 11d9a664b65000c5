package push

import (
	"context"
	"errors"
	"io"
	"log/slog"
	gosync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notifycore/internal/api"
	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/tests/testutil"
)

type fakeBackend struct {
	mu gosync.Mutex

	key     string
	keyErr  error
	subs    []model.Subscription
	listErr error
	regErr  error

	// block, when set, holds registrations until closed.
	block   chan struct{}
	entered chan struct{}

	webSubs     []api.WebSubscription
	nativeRegs  []api.NativeRegistration
	unregisters []api.UnregisterRequest
}

func (f *fakeBackend) VAPIDPublicKey(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key, f.keyErr
}

func (f *fakeBackend) ListSubscriptions(context.Context) ([]model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs, f.listErr
}

func (f *fakeBackend) SubscribeWeb(_ context.Context, sub api.WebSubscription) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.regErr != nil {
		return f.regErr
	}
	f.webSubs = append(f.webSubs, sub)
	f.subs = append(f.subs, model.Subscription{Platform: model.PlatformWeb})
	return nil
}

func (f *fakeBackend) RegisterNative(_ context.Context, reg api.NativeRegistration) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.regErr != nil {
		return f.regErr
	}
	f.nativeRegs = append(f.nativeRegs, reg)
	f.subs = append(f.subs, model.Subscription{Platform: reg.Platform})
	return nil
}

func (f *fakeBackend) Unregister(_ context.Context, req api.UnregisterRequest) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregisters = append(f.unregisters, req)
	removed := len(f.subs) > 0
	f.subs = nil
	return removed, nil
}

func (f *fakeBackend) wait() {
	if f.block == nil {
		return
	}
	f.entered <- struct{}{}
	<-f.block
}

func newService(t *testing.T, platform model.Platform, backend *fakeBackend, pushCfg model.PushConfig) (*Service, *Cache) {
	t.Helper()
	cache := NewCache(testutil.NewTestStore(t))
	device := NewLocalDevice(pushCfg)
	svc, err := NewService(Config{
		Platform:    platform,
		DeviceName:  "test device",
		Backend:     backend,
		Cache:       cache,
		Permissions: device,
		Web:         device,
		Native:      device,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return svc, cache
}

var webDevice = model.PushConfig{
	Permission: "granted",
	Endpoint:   "https://push.example.com/send/abc",
	P256dh:     "p256",
	Auth:       "auth",
}

func TestNewServiceValidatesPlatformCollaborators(t *testing.T) {
	cache := NewCache(testutil.NewTestStore(t))
	device := NewLocalDevice(model.PushConfig{})

	_, err := NewService(Config{Platform: model.PlatformWeb, Backend: &fakeBackend{}, Cache: cache, Permissions: device})
	assert.Error(t, err)
	_, err = NewService(Config{Platform: model.PlatformIOS, Backend: &fakeBackend{}, Cache: cache, Permissions: device})
	assert.Error(t, err)
	_, err = NewService(Config{Platform: "blackberry", Backend: &fakeBackend{}, Cache: cache, Permissions: device, Web: device})
	assert.Error(t, err)
}

func TestReconcileAutoRegistersWeb(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{key: "BPkey"}
	svc, cache := newService(t, model.PlatformWeb, backend, webDevice)

	d, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, AutoRegister, d.Action)

	pc, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PushCache{Subscribed: true, KeyFingerprint: Fingerprint("BPkey")}, pc)
	require.Len(t, backend.webSubs, 1)
	assert.Equal(t, webDevice.Endpoint, backend.webSubs[0].Endpoint)

	// The next pass finds the registration and does nothing.
	d, err = svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, NoOp, d.Action)
	assert.Len(t, backend.webSubs, 1)
}

func TestReconcileKeyRotationClearsCache(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{key: "new-key", subs: []model.Subscription{{Platform: model.PlatformWeb}}}
	svc, cache := newService(t, model.PlatformWeb, backend, webDevice)
	require.NoError(t, cache.Save(ctx, model.PushCache{Subscribed: true, Dismissed: true, KeyFingerprint: Fingerprint("old-key")}))

	d, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ClearLocal, d.Action)
	assert.Equal(t, ReasonKeyRotated, d.Reason)

	pc, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PushCache{KeyFingerprint: Fingerprint("new-key")}, pc)
}

func TestReconcileLeavesCacheOnListFailure(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{key: "k", listErr: errors.New("offline")}
	svc, cache := newService(t, model.PlatformWeb, backend, webDevice)
	want := model.PushCache{Subscribed: true, KeyFingerprint: Fingerprint("k")}
	require.NoError(t, cache.Save(ctx, want))

	d, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, NoOp, d.Action)

	pc, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, pc)
}

func TestReconcileClearsDrift(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	svc, cache := newService(t, model.PlatformAndroid, backend, model.PushConfig{Permission: "prompt", Token: "fcm"})
	require.NoError(t, cache.Save(ctx, model.PushCache{Subscribed: true}))

	d, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ClearLocal, d.Action)

	// Drift cleared, so the following pass may prompt again.
	d, err = svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, PromptEnrollment, d.Action)
}

func TestRegisterFailureLeavesSubscribedUnset(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{regErr: &api.StatusError{Method: "POST", Path: "/api/push/register-native", StatusCode: 500}}
	svc, cache := newService(t, model.PlatformIOS, backend, model.PushConfig{Permission: "granted", Token: "apns"})

	_, err := svc.Reconcile(ctx)
	require.Error(t, err)
	assert.Equal(t, 500, api.StatusCode(err))

	pc, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.False(t, pc.Subscribed)

	// The failed registration is retried on the next pass.
	backend.mu.Lock()
	backend.regErr = nil
	backend.mu.Unlock()
	d, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, AutoRegister, d.Action)
	require.Len(t, backend.nativeRegs, 1)
	assert.Equal(t, "apns", backend.nativeRegs[0].Token)
	assert.Equal(t, "test device", backend.nativeRegs[0].DeviceName)
	assert.NotEmpty(t, backend.nativeRegs[0].DeviceID)
}

func TestConcurrentRegistrationIsSuppressed(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	svc, _ := newService(t, model.PlatformAndroid, backend, model.PushConfig{Permission: "granted", Token: "fcm"})

	done := make(chan error, 1)
	go func() { done <- svc.Register(ctx) }()
	<-backend.entered

	assert.ErrorIs(t, svc.Register(ctx), ErrRegistrationInFlight)

	// Reconcile swallows the suppression.
	d, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, AutoRegister, d.Action)

	close(backend.block)
	require.NoError(t, <-done)
	assert.Len(t, backend.nativeRegs, 1)
}

func TestEnrollDeniedDismisses(t *testing.T) {
	ctx := context.Background()
	svc, cache := newService(t, model.PlatformIOS, &fakeBackend{}, model.PushConfig{Permission: "denied", Token: "apns"})

	assert.ErrorIs(t, svc.Enroll(ctx), ErrPermissionDenied)
	pc, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.True(t, pc.Dismissed)
}

func TestEnrollGrantsUndecidedPermission(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	svc, cache := newService(t, model.PlatformAndroid, backend, model.PushConfig{Permission: "prompt", Token: "fcm"})

	require.NoError(t, svc.Enroll(ctx))
	pc, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.True(t, pc.Subscribed)

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PermissionGranted, st.Permission)
	assert.NotEmpty(t, st.DeviceID)
}

func TestUnregisterClearsSubscribed(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{key: "k"}
	svc, cache := newService(t, model.PlatformWeb, backend, webDevice)
	require.NoError(t, svc.Register(ctx))

	removed, err := svc.Unregister(ctx)
	require.NoError(t, err)
	assert.True(t, removed)
	require.Len(t, backend.unregisters, 1)
	assert.Equal(t, webDevice.Endpoint, backend.unregisters[0].Endpoint)

	pc, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.False(t, pc.Subscribed)
}

func TestDeviceIDIsStable(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(testutil.NewTestStore(t))
	first, err := cache.DeviceID(ctx)
	require.NoError(t, err)
	second, err := cache.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
