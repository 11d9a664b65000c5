package messages

import (
	"context"
	"fmt"

	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/internal/source"
)

// Lister is the API call the adapter depends on. *api.Client satisfies it.
type Lister interface {
	ListMessages(ctx context.Context, userID string) ([]model.Message, error)
}

// Adapter implements source.Source for the direct messages of one user.
type Adapter struct {
	client Lister
	userID string
}

// NewAdapter creates a messages adapter scoped to userID.
func NewAdapter(client Lister, userID string) *Adapter {
	return &Adapter{client: client, userID: userID}
}

// Kind returns source.KindMessages.
func (a *Adapter) Kind() source.Kind {
	return source.KindMessages
}

// CacheKey returns the messages invalidation key.
func (a *Adapter) CacheKey() string {
	return model.CacheKeyMessages
}

// Fetch lists every message involving the user, sent or received.
func (a *Adapter) Fetch(ctx context.Context) (*source.Snapshot, error) {
	msgs, err := a.client.ListMessages(ctx, a.userID)
	if err != nil {
		return nil, fmt.Errorf("fetching messages for %s: %w", a.userID, err)
	}
	return &source.Snapshot{OwnerID: a.userID, Messages: msgs}, nil
}
