package notifications

import (
	"context"
	"fmt"

	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/internal/source"
)

// Lister is the API call the adapter depends on. *api.Client satisfies it.
type Lister interface {
	ListNotifications(ctx context.Context) ([]model.SystemNotification, error)
}

// Adapter implements source.Source for system notifications.
type Adapter struct {
	client Lister
	userID string
}

// NewAdapter creates a notifications adapter. The backend scopes the list
// by the session token; userID only keys the local copy.
func NewAdapter(client Lister, userID string) *Adapter {
	return &Adapter{client: client, userID: userID}
}

// Kind returns source.KindNotifications.
func (a *Adapter) Kind() source.Kind {
	return source.KindNotifications
}

// CacheKey returns the notifications invalidation key.
func (a *Adapter) CacheKey() string {
	return model.CacheKeyNotifications
}

// Fetch lists the system notifications of the session user.
func (a *Adapter) Fetch(ctx context.Context) (*source.Snapshot, error) {
	ns, err := a.client.ListNotifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}
	for i := range ns {
		if ns[i].UserID == "" {
			ns[i].UserID = a.userID
		}
	}
	return &source.Snapshot{OwnerID: a.userID, Notifications: ns}, nil
}
