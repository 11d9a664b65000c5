package feed

import (
	"strings"

	"github.com/nhle/notifycore/internal/model"
)

// pattern maps a set of body substrings to a category.
type pattern struct {
	category model.Category
	needles  []string
}

// messagePatterns is scanned top to bottom; the first row with a matching
// needle decides the category. Needles are compared against the
// lower-cased body.
var messagePatterns = []pattern{
	{model.CategoryShipping, []string{"تم شحن طلبك", "تم شحن", "داواکارییەکەت نێردرا", "shipped"}},
	{model.CategoryOffer, []string{"عرض سعر", "عرضك", "پێشنیار", "offer"}},
	{model.CategoryBid, []string{"مزايدة", "زايد", "مزایدە", "bid"}},
	{model.CategorySale, []string{"تم بيع", "فرۆشرا", "sold"}},
	{model.CategoryReturn, []string{"إرجاع", "استرجاع", "گەڕاندنەوە", "return"}},
	{model.CategoryPayment, []string{"الدفع", "پارە وەرگیرا", "payment"}},
	{model.CategoryAuctionEnd, []string{"انتهى المزاد", "مزایدە تەواو بوو", "auction ended"}},
	{model.CategorySellerApproval, []string{"تمت الموافقة", "حساب البائع", "seller account"}},
}

// Classify derives the category of a direct message from its free-text
// body. Messages that match no pattern are plain messages.
func Classify(body string) model.Category {
	lower := strings.ToLower(body)
	for _, p := range messagePatterns {
		for _, needle := range p.needles {
			if strings.Contains(lower, needle) {
				return p.category
			}
		}
	}
	return model.CategoryMessage
}

// notificationTypes maps the backend's notification type strings onto
// categories. Unknown types fall back to CategorySystem.
var notificationTypes = map[string]model.Category{
	"new_message":              model.CategoryMessage,
	"order_shipped":            model.CategoryShipping,
	"offer_received":           model.CategoryOffer,
	"offer_accepted":           model.CategoryOffer,
	"offer_rejected":           model.CategoryOffer,
	"new_bid":                  model.CategoryBid,
	"auction_won":              model.CategoryBid,
	"outbid":                   model.CategoryOutbid,
	"order_received":           model.CategorySale,
	"auction_sold":             model.CategorySale,
	"return_requested":         model.CategoryReturn,
	"return_approved":          model.CategoryReturn,
	"payment_received":         model.CategoryPayment,
	"auction_lost":             model.CategoryAuctionEnd,
	"auction_ended_no_bids":    model.CategoryAuctionEnd,
	"auction_ended_no_reserve": model.CategoryAuctionEnd,
	"auction_ending_soon":      model.CategoryAuctionEnding,
	"seller_approved":          model.CategorySellerApproval,
	"saved_search_match":       model.CategorySavedSearch,
}

// CategoryForType maps a system notification type to its category. A type
// that already names a category is taken as is.
func CategoryForType(typ string) model.Category {
	if c, ok := notificationTypes[typ]; ok {
		return c
	}
	for _, c := range model.Categories {
		if string(c) == typ {
			return c
		}
	}
	return model.CategorySystem
}
