package store

import (
	"context"
	"errors"

	"github.com/nhle/notifycore/internal/model"
)

// ErrNotFound is returned when a key-value entry does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the local persistence interface: a mirror of the two
// pull-based feed sources plus a small key-value area for device state.
type Store interface {
	// === Feed sources ===

	// ReplaceMessages swaps the cached messages of viewerID for msgs.
	ReplaceMessages(ctx context.Context, viewerID string, msgs []model.Message) error
	ListMessages(ctx context.Context, viewerID string) ([]model.Message, error)

	// ReplaceNotifications swaps the cached notifications of userID for ns.
	ReplaceNotifications(ctx context.Context, userID string, ns []model.SystemNotification) error
	ListNotifications(ctx context.Context, userID string) ([]model.SystemNotification, error)

	// === Key-value ===

	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error
}
