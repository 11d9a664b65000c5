package realtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventNotificationNested(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"NOTIFICATION","notification":{"id":"n1","type":"outbid","title":"Outbid","message":"someone bid more","linkUrl":"/product/7","relatedId":"7"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventNotification, ev.Kind)
	require.NotNil(t, ev.Notification)
	assert.Nil(t, ev.Message)
	assert.Equal(t, NotificationPayload{
		ID: "n1", Type: "outbid", Title: "Outbid", Message: "someone bid more", LinkURL: "/product/7", RelatedID: "7",
	}, *ev.Notification)
}

func TestDecodeEventNotificationFlat(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"NOTIFICATION","notificationType":"order_shipped","id":"n2","message":"on its way"}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Notification)
	assert.Equal(t, "order_shipped", ev.Notification.Type)
	assert.Equal(t, defaultToastTitle, ev.Notification.Title)
	assert.Equal(t, "on its way", ev.Notification.Message)
}

func TestDecodeEventNewMessage(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"NEW_MESSAGE","message":{"id":"m1","senderId":"u2","content":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventNewMessage, ev.Kind)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "u2", ev.Message.SenderID)
	assert.Equal(t, "hi", ev.Message.Content)

	ev, err = DecodeEvent([]byte(`{"type":"NEW_MESSAGE","id":"m2","senderId":"u3","content":"flat"}`))
	require.NoError(t, err)
	assert.Equal(t, "m2", ev.Message.ID)
	assert.Equal(t, "flat", ev.Message.Content)
}

func TestDecodeEventRejects(t *testing.T) {
	malformed := []string{
		`not json`,
		`[1,2,3]`,
		`"NOTIFICATION"`,
		`{"type":7}`,
		`{"payload":{}}`,
		``,
	}
	for _, in := range malformed {
		t.Run(in, func(t *testing.T) {
			_, err := DecodeEvent([]byte(in))
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}

	_, err := DecodeEvent([]byte(`{"type":"TYPING"}`))
	assert.True(t, errors.Is(err, ErrUnknownEvent))
	assert.Contains(t, err.Error(), "TYPING")
}
