package api

import (
	"context"
	"fmt"

	"github.com/nhle/notifycore/internal/model"
)

// WebPushKeys are the client keys of a browser push subscription.
type WebPushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// WebSubscription is the browser PushSubscription JSON sent to the backend.
type WebSubscription struct {
	Endpoint string      `json:"endpoint"`
	Keys     WebPushKeys `json:"keys"`
}

// NativeRegistration is a device token registration for iOS or Android.
type NativeRegistration struct {
	Token      string         `json:"token"`
	Platform   model.Platform `json:"platform"`
	DeviceID   string         `json:"deviceId,omitempty"`
	DeviceName string         `json:"deviceName,omitempty"`
}

// UnregisterRequest removes a registration by token or by endpoint.
type UnregisterRequest struct {
	Token    string `json:"token,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

type vapidKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// VAPIDPublicKey returns the current web push signing key.
func (c *Client) VAPIDPublicKey(ctx context.Context) (string, error) {
	var resp vapidKeyResponse
	if err := c.Get(ctx, "/api/push/vapid-public-key", &resp); err != nil {
		return "", fmt.Errorf("getting vapid public key: %w", err)
	}
	if resp.PublicKey == "" {
		return "", fmt.Errorf("getting vapid public key: empty key")
	}
	return resp.PublicKey, nil
}

// ListSubscriptions returns the authoritative push registrations of the
// session user.
func (c *Client) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	var subs []model.Subscription
	if err := c.Get(ctx, "/api/push/subscriptions", &subs); err != nil {
		return nil, fmt.Errorf("listing push subscriptions: %w", err)
	}
	return subs, nil
}

// SubscribeWeb registers a browser push subscription.
func (c *Client) SubscribeWeb(ctx context.Context, sub WebSubscription) error {
	var resp successResponse
	if err := c.Post(ctx, "/api/push/subscribe", sub, &resp); err != nil {
		return fmt.Errorf("subscribing web push: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("subscribing web push: backend did not confirm")
	}
	return nil
}

// RegisterNative registers an iOS or Android device token.
func (c *Client) RegisterNative(ctx context.Context, reg NativeRegistration) error {
	var resp successResponse
	if err := c.Post(ctx, "/api/push/register-native", reg, &resp); err != nil {
		return fmt.Errorf("registering native %s token: %w", reg.Platform, err)
	}
	if !resp.Success {
		return fmt.Errorf("registering native %s token: backend did not confirm", reg.Platform)
	}
	return nil
}

// Unregister removes a registration. It reports whether the backend
// found and deleted one.
func (c *Client) Unregister(ctx context.Context, req UnregisterRequest) (bool, error) {
	var resp successResponse
	if err := c.Post(ctx, "/api/push/unregister", req, &resp); err != nil {
		return false, fmt.Errorf("unregistering push: %w", err)
	}
	return resp.Success, nil
}
