package inbox

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/internal/theme"
)

// Item wraps a feed item so it can be used in a bubbles/list.
type Item struct {
	model.NotificationItem
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.NotificationItem.Title }

// itemDelegate renders a feed item as two lines: the title line and a
// dimmed line with the body preview and age.
type itemDelegate struct {
	now func() time.Time
}

func (d itemDelegate) Height() int                             { return 2 }
func (d itemDelegate) Spacing() int                            { return 0 }
func (d itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

// Render draws a single feed item.
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, li list.Item) {
	it, ok := li.(Item)
	if !ok {
		return
	}

	cursor := "  "
	if index == m.Index() {
		cursor = theme.SelectedStyle.Render("▸ ")
	}

	marker := " "
	title := theme.ReadStyle.Render(it.Title)
	if !it.Read {
		marker = theme.UnreadStyle.Foreground(theme.ColorBlue).Render("●")
		title = theme.UnreadStyle.Render(it.Title)
	}

	width := max(m.Width()-6, 10)
	label := theme.CategoryStyle(it.Category).Render(string(it.Category))
	line1 := cursor + marker + " " + label + " " + title

	detail := relativeTime(d.now().Sub(it.Timestamp))
	if body := oneLine(it.Body); body != "" {
		detail = body + " · " + detail
	}
	line2 := "    " + theme.HelpStyle.Render(clip(detail, width))

	fmt.Fprint(w, lipgloss.JoinVertical(lipgloss.Left, line1, line2))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// relativeTime formats an age for display.
func relativeTime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
