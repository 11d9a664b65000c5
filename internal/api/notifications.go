package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/notifycore/internal/model"
)

// ListMessages returns every direct message involving userID.
func (c *Client) ListMessages(ctx context.Context, userID string) ([]model.Message, error) {
	var msgs []model.Message
	if err := c.Get(ctx, "/api/messages/"+url.PathEscape(userID), &msgs); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return msgs, nil
}

// MarkMessageRead flags a single direct message as read.
func (c *Client) MarkMessageRead(ctx context.Context, id string) error {
	if err := c.Patch(ctx, "/api/messages/"+url.PathEscape(id)+"/read", nil, nil); err != nil {
		return fmt.Errorf("marking message %s read: %w", id, err)
	}
	return nil
}

// ListNotifications returns the system notifications of the session user.
func (c *Client) ListNotifications(ctx context.Context) ([]model.SystemNotification, error) {
	var ns []model.SystemNotification
	if err := c.Get(ctx, "/api/notifications", &ns); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return ns, nil
}

// MarkNotificationRead flags a single system notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if err := c.Post(ctx, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead flags every notification of the session user
// as read in one request. Repeating it is harmless.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.Post(ctx, "/api/notifications/read-all", nil, nil); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}
