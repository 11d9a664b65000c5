package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/internal/realtime"
)

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func TestRenderFeed(t *testing.T) {
	f := model.Feed{
		UnreadCount: 1,
		Items: []model.NotificationItem{
			{ID: "n1", SourceKind: model.SourceKindSystemNotification, Category: model.CategoryOutbid,
				Title: "Outbid", Body: "Someone bid higher", Timestamp: now.Add(-5 * time.Minute), Target: "/product/p1"},
			{ID: "m1", SourceKind: model.SourceKindMessage, Category: model.CategoryMessage,
				Title: "New message", Timestamp: now.Add(-3 * time.Hour), Read: true, Target: "/messages/u2"},
		},
	}

	var buf bytes.Buffer
	renderFeed(&buf, f, now)
	out := buf.String()

	assert.Contains(t, out, "1 unread")
	assert.Contains(t, out, "Outbid")
	assert.Contains(t, out, "Someone bid higher")
	assert.Contains(t, out, "/product/p1")
	assert.Contains(t, out, "5m ago")
	assert.Contains(t, out, "3h ago")
	assert.Contains(t, out, "message:m1")
	assert.Equal(t, 1, strings.Count(out, "●"))
}

func TestRenderEmptyFeed(t *testing.T) {
	var buf bytes.Buffer
	renderFeed(&buf, model.Feed{}, now)
	assert.Contains(t, buf.String(), "nothing yet")
}

func TestRenderEventAndState(t *testing.T) {
	var buf bytes.Buffer
	renderEvent(&buf, realtime.Event{
		Kind:    realtime.EventNewMessage,
		Message: &realtime.MessagePayload{ID: "m1", SenderID: "u2", Content: "hello"},
	})
	renderState(&buf, realtime.StateChange{From: realtime.Connected, To: realtime.Reconnecting, Attempt: 2})

	out := buf.String()
	assert.Contains(t, out, "message from u2")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "reconnecting")
	assert.Contains(t, out, "attempt 2")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "a b", truncate("a\n  b", 10))
	assert.Equal(t, "abc…", truncate("abcdefgh", 4))
	assert.Equal(t, "مرحبا", truncate("مرحبا", 5))
}

func TestAgo(t *testing.T) {
	assert.Equal(t, "just now", ago(10*time.Second))
	assert.Equal(t, "2d ago", ago(49*time.Hour))
}
