// Package ui is the interactive inbox: the live feed with the connection
// state in the header and the push enrollment prompt when one is due.
package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/notifycore/internal/feed"
	"github.com/nhle/notifycore/internal/keys"
	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/internal/push"
	"github.com/nhle/notifycore/internal/realtime"
	appsync "github.com/nhle/notifycore/internal/sync"
	"github.com/nhle/notifycore/internal/theme"
	helpview "github.com/nhle/notifycore/internal/ui/help"
	"github.com/nhle/notifycore/internal/ui/inbox"
)

const commandTimeout = 15 * time.Second

// FeedReader builds the current feed.
type FeedReader interface {
	Feed(ctx context.Context) (model.Feed, error)
}

// ReadCommands changes read state on the backend.
type ReadCommands interface {
	MarkRead(ctx context.Context, kind model.SourceKind, id string) error
	MarkAllRead(ctx context.Context) error
}

// Poller is the part of the background poller the inbox drives.
type Poller interface {
	RefreshAll()
	Results() <-chan appsync.SyncResult
}

// Connection is the realtime connection as seen by the inbox.
type Connection interface {
	OnEvent(func(realtime.Event))
	OnStateChange(func(realtime.StateChange))
	State() realtime.State
}

// Push is the push reconciliation service.
type Push interface {
	Reconcile(ctx context.Context) (push.Decision, error)
	Enroll(ctx context.Context) error
	Dismiss(ctx context.Context) error
}

// Deps are the collaborators of the inbox.
type Deps struct {
	Feed       FeedReader
	Commands   ReadCommands
	Poller     Poller
	Connection Connection
	Push       Push
	// Reconnect restarts the realtime connection.
	Reconnect func() error
}

type viewMode int

const (
	modeList viewMode = iota
	modeHelp
	modeEnroll
)

type (
	feedLoadedMsg struct {
		feed model.Feed
		err  error
	}
	syncMsg       appsync.SyncResult
	stateMsg      realtime.StateChange
	eventMsg      realtime.Event
	reconciledMsg struct {
		decision push.Decision
		err      error
	}
	doneMsg struct {
		text string
		err  error
	}
)

// Model is the root Bubble Tea model of the inbox.
type Model struct {
	deps   Deps
	keys   *keys.KeyMap
	layout Layout
	inbox  inbox.Model
	help   helpview.Model

	mode     viewMode
	enroll   *huh.Form
	accepted *bool

	conn        realtime.State
	attempt     int
	unread      int
	status      string
	authExpired bool

	states chan realtime.StateChange
	events chan realtime.Event
}

// New creates the inbox and subscribes to the connection. Call it before
// the connection is started so no transition is missed.
func New(deps Deps) Model {
	k := keys.DefaultKeyMap()
	m := Model{
		deps:   deps,
		keys:   k,
		layout: NewLayout(80, 24),
		inbox:  inbox.New(k, 80, 22),
		help:   helpview.New(k, 80, 22),
		conn:   deps.Connection.State(),
		states: make(chan realtime.StateChange, 16),
		events: make(chan realtime.Event, 16),
	}

	deps.Connection.OnStateChange(func(c realtime.StateChange) {
		select {
		case m.states <- c:
		default:
		}
	})
	deps.Connection.OnEvent(func(ev realtime.Event) {
		select {
		case m.events <- ev:
		default:
			// The feed reload that follows the event catches it up.
		}
	})
	return m
}

// Init loads the stored feed, starts listening and reconciles push.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadFeed(),
		m.waitForSync(),
		m.waitForState(),
		m.waitForEvent(),
		m.reconcile(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = NewLayout(msg.Width, msg.Height)
		m.inbox.SetSize(msg.Width, m.layout.ContentHeight())
		m.help.SetSize(msg.Width, m.layout.ContentHeight())
		if m.mode == modeEnroll {
			return m.updateEnroll(msg)
		}
		return m, nil

	case feedLoadedMsg:
		if msg.err != nil {
			m.status = "loading feed: " + msg.err.Error()
			return m, nil
		}
		m.unread = msg.feed.UnreadCount
		return m, m.inbox.SetFeed(msg.feed)

	case syncMsg:
		if msg.AuthExpired {
			m.authExpired = true
		} else if msg.Error == nil {
			m.authExpired = false
		}
		return m, tea.Batch(m.loadFeed(), m.waitForSync())

	case stateMsg:
		m.conn = msg.To
		m.attempt = msg.Attempt
		if msg.To == realtime.Exhausted {
			m.status = "live updates paused, polling instead (c to reconnect)"
		}
		return m, m.waitForState()

	case eventMsg:
		m.status = describeEvent(realtime.Event(msg))
		return m, m.waitForEvent()

	case reconciledMsg:
		if msg.err != nil {
			m.status = "push: " + msg.err.Error()
			return m, nil
		}
		if msg.decision.Action == push.PromptEnrollment {
			m.accepted = new(bool)
			m.enroll = NewEnrollForm(m.accepted)
			m.mode = modeEnroll
			return m, m.enroll.Init()
		}
		return m, nil

	case doneMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else if msg.text != "" {
			m.status = msg.text
		}
		return m, nil

	case inbox.OpenMsg:
		return m, m.open(msg.Item)
	}

	switch m.mode {
	case modeEnroll:
		return m.updateEnroll(msg)
	case modeHelp:
		if msg, ok := msg.(tea.KeyMsg); ok {
			switch {
			case key.Matches(msg, m.keys.Quit):
				return m, tea.Quit
			case key.Matches(msg, m.keys.Help), key.Matches(msg, m.keys.Back):
				m.mode = modeList
			}
		}
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.mode = modeHelp
			return m, nil
		case key.Matches(msg, m.keys.MarkAllRead):
			return m, m.markAllRead()
		case key.Matches(msg, m.keys.Refresh):
			m.deps.Poller.RefreshAll()
			m.status = "refreshing…"
			return m, nil
		case key.Matches(msg, m.keys.Reconnect):
			return m, m.reconnect()
		}
	}

	var cmd tea.Cmd
	m.inbox, cmd = m.inbox.Update(msg)
	return m, cmd
}

// updateEnroll forwards msg to the enrollment form and acts on its answer.
func (m Model) updateEnroll(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.enroll.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.enroll = f
	}

	switch m.enroll.State {
	case huh.StateCompleted:
		m.mode = modeList
		if *m.accepted {
			return m, m.run("push notifications enabled", m.deps.Push.Enroll)
		}
		return m, m.run("", m.deps.Push.Dismiss)
	case huh.StateAborted:
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

// View renders the frame around the active view.
func (m Model) View() string {
	title := fmt.Sprintf("Notifications · %d unread", m.unread)

	var content string
	switch m.mode {
	case modeHelp:
		content = m.help.View()
	case modeEnroll:
		content = theme.PanelStyle.Render(m.enroll.View())
	default:
		content = m.inbox.View()
	}

	return m.layout.Frame(title, m.connectionLabel(), content, m.hints())
}

func (m Model) connectionLabel() string {
	label := m.conn.String()
	if m.conn == realtime.Reconnecting && m.attempt > 0 {
		label = fmt.Sprintf("%s %d", label, m.attempt)
	}
	return theme.StateStyle(m.conn.String()).Render(label)
}

func (m Model) hints() string {
	switch {
	case m.authExpired:
		return "session expired, run `notifyctl login <token>`"
	case m.mode == modeEnroll:
		return "←/→ choose · enter confirm · esc later"
	case m.mode == modeHelp:
		return "? close help · esc back"
	case m.status != "":
		return m.status
	default:
		return m.help.ShortView()
	}
}

// open marks an unread item read and shows where it points.
func (m Model) open(it model.NotificationItem) tea.Cmd {
	target := it.Target
	if feed.IsExternal(target) {
		target += " (external)"
	}
	text := "→ " + target
	if it.Read {
		return func() tea.Msg { return doneMsg{text: text} }
	}
	return m.run(text, func(ctx context.Context) error {
		return m.deps.Commands.MarkRead(ctx, it.SourceKind, it.ID)
	})
}

func (m Model) markAllRead() tea.Cmd {
	return m.run("all notifications marked read", m.deps.Commands.MarkAllRead)
}

func (m Model) reconnect() tea.Cmd {
	if m.conn != realtime.Exhausted && m.conn != realtime.Disconnected {
		return nil
	}
	reconnect := m.deps.Reconnect
	return func() tea.Msg {
		if reconnect == nil {
			return doneMsg{err: errors.New("reconnect unavailable")}
		}
		return doneMsg{text: "reconnecting…", err: reconnect()}
	}
}

func (m Model) run(text string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return doneMsg{err: err}
		}
		return doneMsg{text: text}
	}
}

func (m Model) loadFeed() tea.Cmd {
	r := m.deps.Feed
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		f, err := r.Feed(ctx)
		return feedLoadedMsg{feed: f, err: err}
	}
}

func (m Model) reconcile() tea.Cmd {
	p := m.deps.Push
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		d, err := p.Reconcile(ctx)
		return reconciledMsg{decision: d, err: err}
	}
}

func (m Model) waitForSync() tea.Cmd {
	ch := m.deps.Poller.Results()
	return func() tea.Msg { return syncMsg(<-ch) }
}

func (m Model) waitForState() tea.Cmd {
	ch := m.states
	return func() tea.Msg { return stateMsg(<-ch) }
}

func (m Model) waitForEvent() tea.Cmd {
	ch := m.events
	return func() tea.Msg { return eventMsg(<-ch) }
}

func describeEvent(ev realtime.Event) string {
	switch ev.Kind {
	case realtime.EventNotification:
		return "new: " + ev.Notification.Title
	case realtime.EventNewMessage:
		return "new message from " + ev.Message.SenderID
	default:
		return ""
	}
}
