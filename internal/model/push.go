package model

import "time"

// Platform is the device family a push registration belongs to.
type Platform string

const (
	PlatformWeb     Platform = "web"
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Native reports whether the platform registers through a device token
// rather than a web push endpoint.
func (p Platform) Native() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// Permission is the OS or browser level notification permission.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionPrompt  Permission = "prompt"
	PermissionDenied  Permission = "denied"
)

// ParsePermission normalizes a permission string reported by a device.
// Capacitor's "prompt-with-rationale" and the browser's "default" both
// mean the user has not decided yet.
func ParsePermission(s string) Permission {
	switch s {
	case "granted":
		return PermissionGranted
	case "denied":
		return PermissionDenied
	default:
		return PermissionPrompt
	}
}

// Subscription is a server-side push registration for the current user.
type Subscription struct {
	ID                  string    `json:"id"`
	Platform            Platform  `json:"platform"`
	EndpointFingerprint string    `json:"endpointFingerprint,omitempty"`
	DeviceName          string    `json:"deviceName,omitempty"`
	RegisteredAt        time.Time `json:"createdAt"`
}

// PushCache is the local mirror of the device's subscription state.
type PushCache struct {
	Dismissed      bool
	Subscribed     bool
	KeyFingerprint string
}
