package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/internal/source"
)

type stubLister struct {
	ns  []model.SystemNotification
	err error
}

func (s stubLister) ListNotifications(context.Context) ([]model.SystemNotification, error) {
	return s.ns, s.err
}

func TestFetchStampsOwner(t *testing.T) {
	a := NewAdapter(stubLister{ns: []model.SystemNotification{{ID: "n1"}, {ID: "n2", UserID: "u1"}}}, "u1")
	assert.Equal(t, source.KindNotifications, a.Kind())
	assert.Equal(t, model.CacheKeyNotifications, a.CacheKey())

	snap, err := a.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", snap.OwnerID)
	for _, n := range snap.Notifications {
		assert.Equal(t, "u1", n.UserID)
	}
	assert.Equal(t, 2, snap.Unread())
}

func TestFetchWrapsErrors(t *testing.T) {
	cause := errors.New("offline")
	_, err := NewAdapter(stubLister{err: cause}, "u1").Fetch(context.Background())
	assert.ErrorIs(t, err, cause)
}
