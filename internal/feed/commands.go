package feed

import (
	"context"
	"fmt"

	"github.com/nhle/notifycore/internal/model"
)

// ReadMarker is the subset of the API client the read commands need.
type ReadMarker interface {
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	MarkMessageRead(ctx context.Context, id string) error
}

// Invalidator is told which cached collections went stale. The poller
// satisfies it.
type Invalidator interface {
	Invalidate(keys ...string)
}

// Commands requests read-state changes from the backend. They never edit
// a rendered feed; the change shows after the next pull, which a
// successful command triggers through the Invalidator.
type Commands struct {
	api         ReadMarker
	invalidator Invalidator
}

// NewCommands creates read commands. inv may be nil.
func NewCommands(api ReadMarker, inv Invalidator) *Commands {
	return &Commands{api: api, invalidator: inv}
}

// MarkRead persists the read state of a single item.
func (c *Commands) MarkRead(ctx context.Context, kind model.SourceKind, id string) error {
	switch kind {
	case model.SourceKindSystemNotification:
		if err := c.api.MarkNotificationRead(ctx, id); err != nil {
			return err
		}
		c.invalidate(model.CacheKeyNotifications)
	case model.SourceKindMessage:
		if err := c.api.MarkMessageRead(ctx, id); err != nil {
			return err
		}
		c.invalidate(model.CacheKeyMessages)
	default:
		return fmt.Errorf("marking %s read: unknown source kind %q", id, kind)
	}
	return nil
}

// MarkAllRead marks every system notification read with one bulk request.
func (c *Commands) MarkAllRead(ctx context.Context) error {
	if err := c.api.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}
	c.invalidate(model.CacheKeyNotifications)
	return nil
}

func (c *Commands) invalidate(keys ...string) {
	if c.invalidator != nil {
		c.invalidator.Invalidate(keys...)
	}
}
