package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notifycore/internal/model"
)

var t0 = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func msg(id, body string, at time.Time) model.Message {
	return model.Message{ID: id, SenderID: "seller", ReceiverID: "viewer", Content: body, CreatedAt: at}
}

func note(id, typ string, at time.Time) model.SystemNotification {
	return model.SystemNotification{ID: id, UserID: "viewer", Type: typ, Title: "title " + id, CreatedAt: at}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		body string
		want model.Category
	}{
		{"مرحبا، تم شحن طلبك اليوم", model.CategoryShipping},
		{"لديك عرض سعر جديد على المنتج", model.CategoryOffer},
		{"تمت مزايدة أعلى منك", model.CategoryBid},
		{"تم بيع منتجك في المزاد", model.CategorySale},
		{"طلب إرجاع للمنتج", model.CategoryReturn},
		{"تم استلام الدفع بنجاح", model.CategoryPayment},
		{"انتهى المزاد على الساعة", model.CategoryAuctionEnd},
		{"تمت الموافقة على طلبك", model.CategorySellerApproval},
		{"Your order has SHIPPED", model.CategoryShipping},
		{"هل المنتج متوفر؟", model.CategoryMessage},
		{"", model.CategoryMessage},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.body))
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// Mentions both shipping and payment; shipping is earlier in the table.
	assert.Equal(t, model.CategoryShipping, Classify("تم استلام الدفع و تم شحن طلبك"))
}

func TestCategoryForType(t *testing.T) {
	assert.Equal(t, model.CategoryShipping, CategoryForType("order_shipped"))
	assert.Equal(t, model.CategoryOutbid, CategoryForType("outbid"))
	assert.Equal(t, model.CategoryBid, CategoryForType("bid"))
	assert.Equal(t, model.CategorySystem, CategoryForType("something_new"))
}

func TestEveryCategoryHasTarget(t *testing.T) {
	for _, c := range model.Categories {
		_, hasTarget := defaultTargets[c]
		_, hasIcon := icons[c]
		assert.True(t, hasTarget, "no default target for %s", c)
		assert.True(t, hasIcon, "no icon for %s", c)
	}
}

func TestResolveTargetExplicitLinkWins(t *testing.T) {
	assert.Equal(t, "/my-purchases", ResolveTarget(model.CategoryShipping, nil))
	assert.Equal(t, "/orders/9", ResolveTarget(model.CategoryShipping,
		&model.TargetRef{Kind: model.TargetURL, Value: "/orders/9"}))
	assert.Equal(t, "/product/p1", ResolveTarget(model.CategoryBid,
		&model.TargetRef{Kind: model.TargetProduct, Value: "p1"}))
	assert.Equal(t, "/messages/u2", ResolveTarget(model.CategoryMessage,
		&model.TargetRef{Kind: model.TargetConversation, Value: "u2"}))
	assert.True(t, IsExternal("https://example.com/x"))
	assert.False(t, IsExternal("/product/1"))
}

func TestBuildFeedFiltersAndOrders(t *testing.T) {
	msgs := []model.Message{
		msg("m1", "تم شحن طلبك", t0.Add(2*time.Minute)),
		msg("m2", "مرحبا", t0),
		{ID: "m3", SenderID: "viewer", ReceiverID: "seller", Content: "outgoing", CreatedAt: t0.Add(time.Hour)},
	}
	notes := []model.SystemNotification{
		note("n1", "outbid", t0.Add(time.Minute)),
		note("n2", "order_shipped", t0),
	}

	f := BuildFeed(msgs, notes, "viewer")

	keys := make([]string, 0, len(f.Items))
	for _, it := range f.Items {
		keys = append(keys, it.Key())
	}
	assert.Equal(t, []string{"message:m1", "notification:n1", "notification:n2", "message:m2"}, keys)
	assert.Equal(t, model.CategoryShipping, f.Items[0].Category)
	assert.Equal(t, "truck", f.Items[0].Icon)
	assert.Equal(t, "/messages/seller", f.Items[3].Target)
	assert.Equal(t, 4, f.UnreadCount)
}

func TestBuildFeedOrderIndependent(t *testing.T) {
	var msgs []model.Message
	var notes []model.SystemNotification
	for i := range 40 {
		at := t0.Add(time.Duration(i%7) * time.Minute)
		msgs = append(msgs, msg(fmt.Sprintf("m%02d", i), "body", at))
		notes = append(notes, note(fmt.Sprintf("n%02d", i), "new_bid", at))
	}
	want := BuildFeed(msgs, notes, "viewer")

	r := rand.New(rand.NewPCG(1, 2))
	for range 10 {
		r.Shuffle(len(msgs), func(i, j int) { msgs[i], msgs[j] = msgs[j], msgs[i] })
		r.Shuffle(len(notes), func(i, j int) { notes[i], notes[j] = notes[j], notes[i] })
		assert.Equal(t, want, BuildFeed(msgs, notes, "viewer"))
	}
}

func TestBuildFeedTiesPutNotificationsFirst(t *testing.T) {
	f := BuildFeed([]model.Message{msg("a", "x", t0)}, []model.SystemNotification{note("z", "outbid", t0)}, "viewer")
	require.Len(t, f.Items, 2)
	assert.Equal(t, model.SourceKindSystemNotification, f.Items[0].SourceKind)
}

func TestBuildFeedTruncatesBeforeCounting(t *testing.T) {
	var msgs []model.Message
	var notes []model.SystemNotification
	for i := range 500 {
		// Newest 30 are read; everything older is unread.
		m := msg(fmt.Sprintf("m%04d", i), "x", t0.Add(-time.Duration(i)*time.Minute))
		m.IsRead = i < 15
		msgs = append(msgs, m)
		n := note(fmt.Sprintf("n%04d", i), "outbid", t0.Add(-time.Duration(i)*time.Minute))
		n.IsRead = i < 15
		notes = append(notes, n)
	}

	f := BuildFeed(msgs, notes, "viewer")
	assert.Len(t, f.Items, DefaultLimit)
	assert.Equal(t, 0, f.UnreadCount)
}

func TestBuildFeedIsIdempotent(t *testing.T) {
	msgs := []model.Message{msg("m1", "x", t0), msg("m2", "y", t0.Add(time.Second))}
	notes := []model.SystemNotification{note("n1", "sale", t0)}
	assert.Equal(t, BuildFeed(msgs, notes, "viewer"), BuildFeed(msgs, notes, "viewer"))
}

func TestBuildFeedDeduplicatesWithinSource(t *testing.T) {
	n := note("n1", "outbid", t0)
	read := n
	read.IsRead = true

	f := BuildFeed(nil, []model.SystemNotification{n, read}, "viewer")
	require.Len(t, f.Items, 1)
	assert.True(t, f.Items[0].Read)

	f = BuildFeed([]model.Message{msg("same", "x", t0)}, []model.SystemNotification{note("same", "outbid", t0)}, "viewer")
	assert.Len(t, f.Items, 2)
}

func TestFromNotificationTargets(t *testing.T) {
	n := note("n1", "order_shipped", t0)
	n.RelatedID = "p5"
	assert.Equal(t, "/product/p5", FromNotification(n).Target)

	n.LinkURL = "/orders/3"
	assert.Equal(t, "/orders/3", FromNotification(n).Target)

	n.Title = ""
	assert.Equal(t, defaultTitle, FromNotification(n).Title)
}

func TestMarkedReadReturnsCopy(t *testing.T) {
	item := FromMessage(msg("m1", "x", t0))
	read := MarkedRead(item)
	assert.True(t, read.Read)
	assert.False(t, item.Read)
}

type fakeMarker struct {
	calls []string
	err   error
}

func (f *fakeMarker) MarkNotificationRead(_ context.Context, id string) error {
	f.calls = append(f.calls, "notification:"+id)
	return f.err
}

func (f *fakeMarker) MarkAllNotificationsRead(context.Context) error {
	f.calls = append(f.calls, "all")
	return f.err
}

func (f *fakeMarker) MarkMessageRead(_ context.Context, id string) error {
	f.calls = append(f.calls, "message:"+id)
	return f.err
}

type fakeInvalidator struct{ keys []string }

func (f *fakeInvalidator) Invalidate(keys ...string) { f.keys = append(f.keys, keys...) }

func TestCommandsRouteBySourceAndInvalidate(t *testing.T) {
	api := &fakeMarker{}
	inv := &fakeInvalidator{}
	c := NewCommands(api, inv)
	ctx := context.Background()

	require.NoError(t, c.MarkRead(ctx, model.SourceKindSystemNotification, "n1"))
	require.NoError(t, c.MarkRead(ctx, model.SourceKindMessage, "m1"))
	require.NoError(t, c.MarkAllRead(ctx))
	require.Error(t, c.MarkRead(ctx, "bogus", "x"))

	assert.Equal(t, []string{"notification:n1", "message:m1", "all"}, api.calls)
	assert.Equal(t, []string{model.CacheKeyNotifications, model.CacheKeyMessages, model.CacheKeyNotifications}, inv.keys)
}

func TestCommandsDoNotInvalidateOnFailure(t *testing.T) {
	api := &fakeMarker{err: errors.New("offline")}
	inv := &fakeInvalidator{}
	c := NewCommands(api, inv)

	require.Error(t, c.MarkAllRead(context.Background()))
	assert.Empty(t, inv.keys)
}
