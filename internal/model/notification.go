package model

import "time"

// SourceKind identifies which pull-based data source produced a feed item.
type SourceKind string

const (
	SourceKindMessage            SourceKind = "message"
	SourceKindSystemNotification SourceKind = "notification"
)

// Category is the semantic class of a feed item. It drives the icon and
// the default navigation target.
type Category string

const (
	CategoryMessage        Category = "message"
	CategoryShipping       Category = "shipping"
	CategoryOffer          Category = "offer"
	CategoryBid            Category = "bid"
	CategoryOutbid         Category = "outbid"
	CategorySale           Category = "sale"
	CategoryReturn         Category = "return"
	CategoryPayment        Category = "payment"
	CategoryAuctionEnd     Category = "auction_end"
	CategoryAuctionEnding  Category = "auction_ending"
	CategorySellerApproval Category = "seller_approval"
	CategorySavedSearch    Category = "saved_search"
	CategorySystem         Category = "system"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryMessage,
	CategoryShipping,
	CategoryOffer,
	CategoryBid,
	CategoryOutbid,
	CategorySale,
	CategoryReturn,
	CategoryPayment,
	CategoryAuctionEnd,
	CategoryAuctionEnding,
	CategorySellerApproval,
	CategorySavedSearch,
	CategorySystem,
}

// TargetKind describes what a TargetRef points at.
type TargetKind string

const (
	TargetProduct      TargetKind = "product"
	TargetConversation TargetKind = "conversation"
	TargetURL          TargetKind = "url"
)

// TargetRef is an explicit navigation reference carried by an item.
type TargetRef struct {
	Kind  TargetKind `json:"kind"`
	Value string     `json:"value"`
}

// NotificationItem is a single row of the aggregated feed. Items are
// values recomputed on every pull; nothing mutates them in place.
type NotificationItem struct {
	// ID is the identifier assigned by the originating source.
	ID string `json:"id"`

	// SourceKind together with ID forms the item identity.
	SourceKind SourceKind `json:"source_kind"`

	Category Category `json:"category"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`

	// Timestamp is when the underlying record was created server-side.
	Timestamp time.Time `json:"timestamp"`

	Read bool `json:"read"`

	// TargetRef is the explicit link, if the record carried one.
	TargetRef *TargetRef `json:"target_ref,omitempty"`

	// Target is the resolved navigation path for the item.
	Target string `json:"target"`

	// Icon is the icon name derived from Category.
	Icon string `json:"icon"`
}

// Key returns the identity of the item across both sources.
func (n NotificationItem) Key() string {
	return string(n.SourceKind) + ":" + n.ID
}

// Feed is the rendered result of merging both sources.
type Feed struct {
	Items       []NotificationItem `json:"items"`
	UnreadCount int                `json:"unread_count"`
}

// SystemNotification is a record from the dedicated notifications table.
type SystemNotification struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Type      string    `json:"type" db:"type"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	IsRead    bool      `json:"isRead" db:"is_read"`
	RelatedID string    `json:"relatedId,omitempty" db:"related_id"`
	LinkURL   string    `json:"linkUrl,omitempty" db:"link_url"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Cache keys shared by the poller, the realtime invalidation hook and the
// read commands. They name the collection endpoints they mirror.
const (
	CacheKeyNotifications = "/api/notifications"
	CacheKeyMessages      = "/api/messages"
)
