package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/internal/realtime"
	"github.com/nhle/notifycore/internal/theme"
)

const bodyWidth = 72

// renderFeed writes the feed as a styled list.
func renderFeed(w io.Writer, f model.Feed, now time.Time) {
	fmt.Fprintln(w, theme.HeaderStyle.Render(fmt.Sprintf("Notifications · %d unread", f.UnreadCount)))
	if len(f.Items) == 0 {
		fmt.Fprintln(w, theme.HelpStyle.Render("  nothing yet"))
		return
	}
	for _, it := range f.Items {
		renderItem(w, it, now)
	}
}

func renderItem(w io.Writer, it model.NotificationItem, now time.Time) {
	marker, title := " ", theme.ReadStyle.Render(it.Title)
	if !it.Read {
		marker, title = "●", theme.UnreadStyle.Render(it.Title)
	}

	fmt.Fprintf(w, "%s %s %s\n", marker, theme.CategoryStyle(it.Category).Render(string(it.Category)), title)
	if body := truncate(it.Body, bodyWidth); body != "" {
		fmt.Fprintf(w, "    %s\n", body)
	}
	fmt.Fprintf(w, "    %s\n", theme.HelpStyle.Render(fmt.Sprintf("%s  %s  %s:%s",
		it.Target, ago(now.Sub(it.Timestamp)), it.SourceKind, it.ID)))
}

// renderEvent writes a single line for a live event.
func renderEvent(w io.Writer, ev realtime.Event) {
	switch ev.Kind {
	case realtime.EventNotification:
		n := ev.Notification
		fmt.Fprintf(w, "%s %s %s\n", theme.StateStyle("connected").Render("▶"), theme.UnreadStyle.Render(n.Title), truncate(n.Message, bodyWidth))
	case realtime.EventNewMessage:
		m := ev.Message
		fmt.Fprintf(w, "%s %s %s\n", theme.StateStyle("connected").Render("▶"), theme.UnreadStyle.Render("message from "+m.SenderID), truncate(m.Content, bodyWidth))
	}
}

// renderState writes a connection state change.
func renderState(w io.Writer, c realtime.StateChange) {
	label := theme.StateStyle(c.To.String()).Render(c.To.String())
	if c.To == realtime.Reconnecting {
		label += theme.HelpStyle.Render(fmt.Sprintf(" attempt %d", c.Attempt))
	}
	fmt.Fprintln(w, theme.StatusBarStyle.Render("connection")+" "+label)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func ago(d time.Duration) string {
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
