package source

import (
	"context"

	"github.com/nhle/notifycore/internal/model"
)

// Kind identifies a feed input collection.
type Kind string

const (
	KindMessages      Kind = "messages"
	KindNotifications Kind = "notifications"
)

// Snapshot is the full server-side state of one collection for one user.
// Adapters always return the whole collection; the store replaces its
// copy wholesale.
type Snapshot struct {
	OwnerID       string
	Messages      []model.Message
	Notifications []model.SystemNotification
}

// Unread counts the unread records of the snapshot.
func (s *Snapshot) Unread() int {
	n := 0
	for _, m := range s.Messages {
		if !m.IsRead && m.ReceiverID == s.OwnerID {
			n++
		}
	}
	for _, sn := range s.Notifications {
		if !sn.IsRead {
			n++
		}
	}
	return n
}

// Source is a pull adapter for one feed input collection.
type Source interface {
	// Kind returns the collection this adapter pulls.
	Kind() Kind

	// CacheKey is the invalidation key that marks this collection stale.
	CacheKey() string

	// Fetch pulls the current collection from the backend.
	Fetch(ctx context.Context) (*Snapshot, error)
}
