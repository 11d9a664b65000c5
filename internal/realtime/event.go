package realtime

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// EventKind is the value of the envelope's "type" discriminator.
type EventKind string

const (
	EventNotification EventKind = "NOTIFICATION"
	EventNewMessage   EventKind = "NEW_MESSAGE"
)

var (
	// ErrMalformedEvent is returned for frames that are not a JSON object
	// with a string "type".
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEvent is returned for well-formed frames of an
	// unrecognized type.
	ErrUnknownEvent = errors.New("unknown event type")
)

// defaultToastTitle is used when a notification event has no title.
const defaultToastTitle = "إشعار جديد"

// NotificationPayload is the body of a NOTIFICATION event.
type NotificationPayload struct {
	ID        string
	Type      string
	Title     string
	Message   string
	LinkURL   string
	RelatedID string
}

// MessagePayload is the body of a NEW_MESSAGE event.
type MessagePayload struct {
	ID       string
	SenderID string
	Content  string
	LinkURL  string
}

// Event is a decoded inbound frame. Exactly one payload is set,
// according to Kind.
type Event struct {
	Kind         EventKind
	Notification *NotificationPayload
	Message      *MessagePayload
}

// DecodeEvent parses a single inbound frame. A NOTIFICATION payload may be
// nested under "notification" or flattened into the envelope; a
// NEW_MESSAGE payload may be nested under "message" or flat.
func DecodeEvent(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return Event{}, ErrMalformedEvent
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Event{}, ErrMalformedEvent
	}
	typ := root.Get("type")
	if typ.Type != gjson.String {
		return Event{}, ErrMalformedEvent
	}

	switch EventKind(typ.Str) {
	case EventNotification:
		body := root
		notificationType := root.Get("notificationType").String()
		if nested := root.Get("notification"); nested.IsObject() {
			body = nested
			notificationType = nested.Get("type").String()
		}
		p := &NotificationPayload{
			ID:        body.Get("id").String(),
			Type:      notificationType,
			Title:     body.Get("title").String(),
			Message:   body.Get("message").String(),
			LinkURL:   body.Get("linkUrl").String(),
			RelatedID: body.Get("relatedId").String(),
		}
		if p.Title == "" {
			p.Title = defaultToastTitle
		}
		return Event{Kind: EventNotification, Notification: p}, nil

	case EventNewMessage:
		body := root
		if nested := root.Get("message"); nested.IsObject() {
			body = nested
		}
		return Event{Kind: EventNewMessage, Message: &MessagePayload{
			ID:       body.Get("id").String(),
			SenderID: body.Get("senderId").String(),
			Content:  body.Get("content").String(),
			LinkURL:  body.Get("linkUrl").String(),
		}}, nil

	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, typ.Str)
	}
}
