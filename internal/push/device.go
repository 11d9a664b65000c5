package push

import (
	"context"
	"errors"
	gosync "sync"

	"github.com/nhle/notifycore/internal/api"
	"github.com/nhle/notifycore/internal/model"
)

// PermissionChecker reports and requests the OS or browser level
// notification permission.
type PermissionChecker interface {
	Permission(ctx context.Context) (model.Permission, error)
	// Request asks the user and returns the resulting permission.
	Request(ctx context.Context) (model.Permission, error)
}

// WebSubscriber creates browser push subscriptions.
type WebSubscriber interface {
	Subscribe(ctx context.Context, publicKey string) (api.WebSubscription, error)
	// Endpoint returns the endpoint of the current subscription, if any.
	Endpoint(ctx context.Context) (string, error)
}

// TokenSource yields the native push token of an iOS or Android device.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

var errNoCredential = errors.New("no push credential configured")

// LocalDevice is a device whose permission and push credential come from
// configuration. Request treats an undecided permission as granted,
// since invoking it is the user's explicit opt-in.
type LocalDevice struct {
	mu         gosync.Mutex
	permission model.Permission
	token      string
	sub        api.WebSubscription
}

// NewLocalDevice creates a LocalDevice from the push configuration.
func NewLocalDevice(cfg model.PushConfig) *LocalDevice {
	return &LocalDevice{
		permission: model.ParsePermission(cfg.Permission),
		token:      cfg.Token,
		sub: api.WebSubscription{
			Endpoint: cfg.Endpoint,
			Keys:     api.WebPushKeys{P256dh: cfg.P256dh, Auth: cfg.Auth},
		},
	}
}

// Permission returns the configured permission.
func (d *LocalDevice) Permission(context.Context) (model.Permission, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permission, nil
}

// Request grants an undecided permission. A denial sticks.
func (d *LocalDevice) Request(context.Context) (model.Permission, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.permission == model.PermissionPrompt {
		d.permission = model.PermissionGranted
	}
	return d.permission, nil
}

// Subscribe returns the configured web subscription.
func (d *LocalDevice) Subscribe(context.Context, string) (api.WebSubscription, error) {
	if d.sub.Endpoint == "" {
		return api.WebSubscription{}, errNoCredential
	}
	return d.sub, nil
}

// Endpoint returns the configured web push endpoint.
func (d *LocalDevice) Endpoint(context.Context) (string, error) {
	return d.sub.Endpoint, nil
}

// Token returns the configured native token.
func (d *LocalDevice) Token(context.Context) (string, error) {
	if d.token == "" {
		return "", errNoCredential
	}
	return d.token, nil
}
