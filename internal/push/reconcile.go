// Package push keeps the device's push registration consistent with the
// server and decides whether the enrollment prompt may be shown.
//
// Reconcile is a pure decision over a snapshot of local and server state.
// Service gathers that snapshot, applies the decision to the local cache
// and runs registrations, at most one at a time.
package push

import (
	"github.com/nhle/notifycore/internal/model"
)

// Action is the outcome of a reconciliation pass.
type Action int

const (
	// NoOp leaves everything as is.
	NoOp Action = iota
	// ClearLocal wipes local subscription flags that no longer hold.
	ClearLocal
	// PromptEnrollment asks the user to enable notifications.
	PromptEnrollment
	// AutoRegister binds a registration without asking; permission is
	// already granted.
	AutoRegister
)

func (a Action) String() string {
	switch a {
	case NoOp:
		return "noop"
	case ClearLocal:
		return "clear_local"
	case PromptEnrollment:
		return "prompt_enrollment"
	case AutoRegister:
		return "auto_register"
	default:
		return "unknown"
	}
}

// Reasons reported with each decision.
const (
	ReasonKeyRotated        = "key_rotated"
	ReasonDismissed         = "dismissed"
	ReasonSubscribed        = "subscribed"
	ReasonServerUnavailable = "server_list_unavailable"
	ReasonDrift             = "server_subscription_missing"
	ReasonPermissionGranted = "permission_granted"
	ReasonPermissionPrompt  = "permission_undecided"
	ReasonPermissionDenied  = "permission_denied"
)

// Input is everything one reconciliation pass looks at.
type Input struct {
	Platform model.Platform
	Cache    model.PushCache

	// Subscriptions is the server's list for the current user. It is only
	// meaningful when SubscriptionsUnavailable is false.
	Subscriptions            []model.Subscription
	SubscriptionsUnavailable bool

	// ServerKeyFingerprint identifies the server's current web push
	// signing key. Empty means unknown.
	ServerKeyFingerprint string

	Permission model.Permission
}

// Decision is the outcome of Reconcile. Cache is the local cache as it
// must be persisted after the decision.
type Decision struct {
	Action Action
	Reason string
	Cache  model.PushCache
}

// Reconcile evaluates the rules in order; the first match wins.
//
//  1. Web and the server key differs from the recorded one: ClearLocal.
//  2. Dismissed: NoOp.
//  3. Subscribed: NoOp if the server lists this platform, else ClearLocal.
//  4. Permission granted: AutoRegister.
//  5. Permission undecided: PromptEnrollment.
//  6. Permission denied: ClearLocal and mark dismissed.
//
// A cache without a recorded fingerprint adopts the server's without
// counting it as a rotation.
func Reconcile(in Input) Decision {
	cache := in.Cache

	if in.Platform == model.PlatformWeb && in.ServerKeyFingerprint != "" {
		switch cache.KeyFingerprint {
		case in.ServerKeyFingerprint:
		case "":
			cache.KeyFingerprint = in.ServerKeyFingerprint
		default:
			return Decision{
				Action: ClearLocal,
				Reason: ReasonKeyRotated,
				Cache:  model.PushCache{KeyFingerprint: in.ServerKeyFingerprint},
			}
		}
	}

	if cache.Dismissed {
		return Decision{Action: NoOp, Reason: ReasonDismissed, Cache: cache}
	}

	if cache.Subscribed {
		if in.SubscriptionsUnavailable {
			return Decision{Action: NoOp, Reason: ReasonServerUnavailable, Cache: cache}
		}
		if hasPlatform(in.Subscriptions, in.Platform) {
			return Decision{Action: NoOp, Reason: ReasonSubscribed, Cache: cache}
		}
		cache.Subscribed = false
		return Decision{Action: ClearLocal, Reason: ReasonDrift, Cache: cache}
	}

	switch in.Permission {
	case model.PermissionGranted:
		return Decision{Action: AutoRegister, Reason: ReasonPermissionGranted, Cache: cache}
	case model.PermissionDenied:
		cache.Subscribed = false
		cache.Dismissed = true
		return Decision{Action: ClearLocal, Reason: ReasonPermissionDenied, Cache: cache}
	default:
		return Decision{Action: PromptEnrollment, Reason: ReasonPermissionPrompt, Cache: cache}
	}
}

func hasPlatform(subs []model.Subscription, p model.Platform) bool {
	for _, s := range subs {
		if s.Platform == p {
			return true
		}
	}
	return false
}
