// Package feed merges direct messages and system notifications into one
// ordered feed and derives category, icon and navigation target for each
// item. BuildFeed is a pure function; the read commands live in
// commands.go.
package feed

import (
	"cmp"
	"slices"

	"github.com/nhle/notifycore/internal/model"
)

// DefaultLimit bounds the number of items in a rendered feed.
const DefaultLimit = 30

// defaultTitle is used when neither the record nor its category provides one.
const defaultTitle = "إشعار جديد"

// messageTitles titles message-derived items, which carry no title of
// their own.
var messageTitles = map[model.Category]string{
	model.CategoryMessage:        "رسالة جديدة",
	model.CategoryShipping:       "تم شحن طلبك",
	model.CategoryOffer:          "عرض سعر جديد",
	model.CategoryBid:            "مزايدة جديدة",
	model.CategorySale:           "تم بيع منتجك",
	model.CategoryReturn:         "طلب إرجاع",
	model.CategoryPayment:        "تم استلام الدفع",
	model.CategoryAuctionEnd:     "انتهى المزاد",
	model.CategorySellerApproval: "تمت الموافقة على حسابك",
}

// BuildFeed merges msgs and notifications for viewerID into a feed of at
// most DefaultLimit items.
func BuildFeed(
	msgs []model.Message,
	notifications []model.SystemNotification,
	viewerID string,
) model.Feed {
	return BuildFeedWithLimit(msgs, notifications, viewerID, DefaultLimit)
}

// BuildFeedWithLimit is BuildFeed with an explicit item bound. A limit of
// zero or less means DefaultLimit.
//
// Items are ordered by timestamp descending. Equal timestamps put system
// notifications before messages and then order by ID, so the result does
// not depend on the order of either input slice. Records repeated within a
// source collapse to one item. UnreadCount is computed after truncation.
func BuildFeedWithLimit(
	msgs []model.Message,
	notifications []model.SystemNotification,
	viewerID string,
	limit int,
) model.Feed {
	if limit <= 0 {
		limit = DefaultLimit
	}

	byKey := make(map[string]model.NotificationItem, len(msgs)+len(notifications))
	add := func(item model.NotificationItem) {
		if prev, ok := byKey[item.Key()]; ok && !supersedes(item, prev) {
			return
		}
		byKey[item.Key()] = item
	}

	for _, n := range notifications {
		add(FromNotification(n))
	}
	for _, m := range msgs {
		if m.ReceiverID != viewerID {
			continue
		}
		add(FromMessage(m))
	}

	items := make([]model.NotificationItem, 0, len(byKey))
	for _, item := range byKey {
		items = append(items, item)
	}
	slices.SortFunc(items, compareItems)

	if len(items) > limit {
		items = items[:limit]
	}

	unread := 0
	for _, item := range items {
		if !item.Read {
			unread++
		}
	}

	return model.Feed{Items: items, UnreadCount: unread}
}

// FromMessage converts a direct message into a feed item, classifying it
// by its body.
func FromMessage(m model.Message) model.NotificationItem {
	category := Classify(m.Content)

	var ref *model.TargetRef
	switch {
	case m.ListingID != "":
		ref = &model.TargetRef{Kind: model.TargetProduct, Value: m.ListingID}
	case category == model.CategoryMessage && m.SenderID != "":
		ref = &model.TargetRef{Kind: model.TargetConversation, Value: m.SenderID}
	}

	title, ok := messageTitles[category]
	if !ok {
		title = defaultTitle
	}

	return model.NotificationItem{
		ID:         m.ID,
		SourceKind: model.SourceKindMessage,
		Category:   category,
		Title:      title,
		Body:       m.Content,
		Timestamp:  m.CreatedAt,
		Read:       m.IsRead,
		TargetRef:  ref,
		Target:     ResolveTarget(category, ref),
		Icon:       Icon(category),
	}
}

// FromNotification converts a system notification into a feed item. The
// record's own type decides the category.
func FromNotification(n model.SystemNotification) model.NotificationItem {
	category := CategoryForType(n.Type)

	var ref *model.TargetRef
	switch {
	case n.LinkURL != "":
		ref = &model.TargetRef{Kind: model.TargetURL, Value: n.LinkURL}
	case n.RelatedID != "":
		ref = &model.TargetRef{Kind: model.TargetProduct, Value: n.RelatedID}
	}

	title := n.Title
	if title == "" {
		title = defaultTitle
	}

	return model.NotificationItem{
		ID:         n.ID,
		SourceKind: model.SourceKindSystemNotification,
		Category:   category,
		Title:      title,
		Body:       n.Message,
		Timestamp:  n.CreatedAt,
		Read:       n.IsRead,
		TargetRef:  ref,
		Target:     ResolveTarget(category, ref),
		Icon:       Icon(category),
	}
}

// MarkedRead returns a copy of item flagged as read. Callers may use it to
// hide a clicked item before the next pull confirms the change.
func MarkedRead(item model.NotificationItem) model.NotificationItem {
	item.Read = true
	return item
}

// sourceRank orders sources on equal timestamps.
func sourceRank(k model.SourceKind) int {
	if k == model.SourceKindSystemNotification {
		return 0
	}
	return 1
}

func compareItems(a, b model.NotificationItem) int {
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	if c := cmp.Compare(sourceRank(a.SourceKind), sourceRank(b.SourceKind)); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// supersedes decides between two records with the same identity: the
// newer one wins, and on a tie a read copy beats an unread one since read
// state only moves forward.
func supersedes(next, prev model.NotificationItem) bool {
	if c := next.Timestamp.Compare(prev.Timestamp); c != 0 {
		return c > 0
	}
	if next.Read != prev.Read {
		return next.Read
	}
	return next.Body > prev.Body
}
