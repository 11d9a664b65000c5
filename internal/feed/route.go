package feed

import (
	"strings"

	"github.com/nhle/notifycore/internal/model"
)

// fallbackTarget is used for a category missing from defaultTargets.
// TestEveryCategoryHasTarget keeps the table total.
const fallbackTarget = "/notifications"

var defaultTargets = map[model.Category]string{
	model.CategoryMessage:        "/messages",
	model.CategoryShipping:       "/my-purchases",
	model.CategoryOffer:          "/my-offers",
	model.CategoryBid:            "/my-bids",
	model.CategoryOutbid:         "/my-bids",
	model.CategorySale:           "/my-sales",
	model.CategoryReturn:         "/returns",
	model.CategoryPayment:        "/my-sales",
	model.CategoryAuctionEnd:     "/my-auctions",
	model.CategoryAuctionEnding:  "/my-bids",
	model.CategorySellerApproval: "/seller-dashboard",
	model.CategorySavedSearch:    "/search",
	model.CategorySystem:         "/notifications",
}

// DefaultTarget returns the navigation path for a category.
func DefaultTarget(c model.Category) string {
	if t, ok := defaultTargets[c]; ok {
		return t
	}
	return fallbackTarget
}

// ResolveTarget returns where an item navigates to. An explicit TargetRef
// always wins over the category default.
func ResolveTarget(c model.Category, ref *model.TargetRef) string {
	if ref == nil || ref.Value == "" {
		return DefaultTarget(c)
	}
	switch ref.Kind {
	case model.TargetURL:
		return ref.Value
	case model.TargetProduct:
		return "/product/" + ref.Value
	case model.TargetConversation:
		return "/messages/" + ref.Value
	default:
		return DefaultTarget(c)
	}
}

// IsExternal reports whether target leaves the app (an absolute URL)
// rather than navigating in-app.
func IsExternal(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}
