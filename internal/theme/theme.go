package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notifycore/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
)

// HeaderStyle is used for the feed title line.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for connection and sync status lines.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// UnreadStyle marks the title of an unread item.
var UnreadStyle = lipgloss.NewStyle().Bold(true)

// ReadStyle dims the title of a read item.
var ReadStyle = lipgloss.NewStyle().Foreground(ColorGray)

// HelpStyle is used for hints, targets and timestamps.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// PanelStyle frames overlays such as help and the enrollment prompt.
var PanelStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorSubtle).
	Padding(1, 2)

// SelectedStyle highlights the row under the cursor.
var SelectedStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// categoryColors groups categories by how urgent they usually are.
var categoryColors = map[model.Category]lipgloss.AdaptiveColor{
	model.CategoryMessage:        ColorBlue,
	model.CategoryShipping:       ColorGreen,
	model.CategoryOffer:          ColorMagenta,
	model.CategoryBid:            ColorYellow,
	model.CategoryOutbid:         ColorRed,
	model.CategorySale:           ColorGreen,
	model.CategoryReturn:         ColorOrange,
	model.CategoryPayment:        ColorGreen,
	model.CategoryAuctionEnd:     ColorGray,
	model.CategoryAuctionEnding:  ColorOrange,
	model.CategorySellerApproval: ColorGreen,
	model.CategorySavedSearch:    ColorBlue,
	model.CategorySystem:         ColorGray,
}

// CategoryStyle returns a color-coded label style for a feed category.
func CategoryStyle(c model.Category) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	if color, ok := categoryColors[c]; ok {
		return base.Foreground(color)
	}
	return base.Foreground(ColorGray)
}

// StateStyle returns a color-coded style for a connection state name.
func StateStyle(state string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch state {
	case "connected":
		return base.Foreground(ColorGreen)
	case "connecting", "reconnecting":
		return base.Foreground(ColorYellow)
	case "exhausted":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}
