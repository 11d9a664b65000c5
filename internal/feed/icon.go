package feed

import "github.com/nhle/notifycore/internal/model"

var icons = map[model.Category]string{
	model.CategoryMessage:        "message-square",
	model.CategoryShipping:       "truck",
	model.CategoryOffer:          "tag",
	model.CategoryBid:            "gavel",
	model.CategoryOutbid:         "alert-triangle",
	model.CategorySale:           "shopping-bag",
	model.CategoryReturn:         "undo",
	model.CategoryPayment:        "credit-card",
	model.CategoryAuctionEnd:     "alert-triangle",
	model.CategoryAuctionEnding:  "clock",
	model.CategorySellerApproval: "check",
	model.CategorySavedSearch:    "search",
	model.CategorySystem:         "bell",
}

// Icon returns the icon name for a category.
func Icon(c model.Category) string {
	if name, ok := icons[c]; ok {
		return name
	}
	return "bell"
}
