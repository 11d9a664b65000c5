package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notifycore/internal/theme"
)

// Layout manages the inbox frame: a header line, the content area and a
// status bar.
type Layout struct {
	Width  int
	Height int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentHeight returns the rows left for the content area.
func (l Layout) ContentHeight() int {
	return max(l.Height-2, 0)
}

// bar renders left in style and right flush against the right edge.
func (l Layout) bar(style lipgloss.Style, left, right string) string {
	leftRendered := style.Render(left)
	gap := max(l.Width-lipgloss.Width(leftRendered)-lipgloss.Width(right), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, leftRendered, filler, right)
}

// Frame joins the header, the content and the status bar.
func (l Layout) Frame(title, connection, content, hints string) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		l.bar(theme.HeaderStyle, title, connection),
		lipgloss.NewStyle().Height(l.ContentHeight()).Render(content),
		l.bar(theme.StatusBarStyle, hints, ""),
	)
}
