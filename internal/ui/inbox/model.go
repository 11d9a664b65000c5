package inbox

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notifycore/internal/keys"
	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/internal/theme"
)

// OpenMsg is sent when the user opens the selected item.
type OpenMsg struct {
	Item model.NotificationItem
}

// Model is the feed list view.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates an empty inbox.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, itemDelegate{now: time.Now}, width, height)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return Model{list: l, keys: k, width: width, height: height}
}

// SetFeed replaces the items, keeping the cursor on the same item when it
// is still present.
func (m *Model) SetFeed(f model.Feed) tea.Cmd {
	var selected string
	if it, ok := m.Selected(); ok {
		selected = it.Key()
	}

	items := make([]list.Item, len(f.Items))
	cursor := 0
	for i, it := range f.Items {
		items[i] = Item{it}
		if it.Key() == selected {
			cursor = i
		}
	}
	cmd := m.list.SetItems(items)
	m.list.Select(cursor)
	return cmd
}

// Selected returns the item under the cursor.
func (m Model) Selected() (model.NotificationItem, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.NotificationItem{}, false
	}
	return it.NotificationItem, true
}

// Len returns the number of items shown.
func (m Model) Len() int {
	return len(m.list.Items())
}

// Update handles key input for the list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Open) {
		it, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return OpenMsg{Item: it} }
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list, or a placeholder when the feed is empty.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notifications yet.")
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
