// Package tui is a terminal front-end for a session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"linguachat/client/internal/composer"
	"linguachat/client/internal/config"
	"linguachat/client/internal/livechannel"
	"linguachat/client/internal/localization"
	"linguachat/client/internal/models"
	"linguachat/client/internal/session"
	"linguachat/client/internal/store"
)

const requestTimeout = 20 * time.Second

// Chat is the session API used by the terminal front-end.
type Chat interface {
	OpenRoom(ctx context.Context, roomID string, lang models.Language) error
	SetDisplayLanguage(ctx context.Context, lang models.Language) error
	Reload(ctx context.Context) error
	Send(ctx context.Context, text string) error
	View(ctx context.Context) ([]store.Entry, error)
	Status(ctx context.Context) (session.Status, error)
	Updates() <-chan struct{}
}

type theme struct {
	header   lipgloss.Style
	online   lipgloss.Style
	offline  lipgloss.Style
	own      lipgloss.Style
	sender   lipgloss.Style
	muted    lipgloss.Style
	notice   lipgloss.Style
	errorMsg lipgloss.Style
}

func newTheme() theme {
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	pink := lipgloss.Color("#ff71ce")
	muted := lipgloss.Color("#9ca3d8")

	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue),
		online:   lipgloss.NewStyle().Foreground(mint).Bold(true),
		offline:  lipgloss.NewStyle().Foreground(pink).Bold(true),
		own:      lipgloss.NewStyle().Foreground(mint).Bold(true),
		sender:   lipgloss.NewStyle().Foreground(blue).Bold(true),
		muted:    lipgloss.NewStyle().Foreground(muted),
		notice:   lipgloss.NewStyle().Foreground(muted).Italic(true),
		errorMsg: lipgloss.NewStyle().Foreground(pink),
	}
}

type viewMsg struct {
	entries []store.Entry
	status  session.Status
	err     error
}

type updateMsg struct{}

type actionMsg struct {
	action string
	err    error
}

// Model is the bubbletea model of the chat view.
type Model struct {
	chat     Chat
	composer *composer.Composer
	labels   *localization.Localizer

	input    textinput.Model
	timeline viewport.Model
	theme    theme

	entries []store.Entry
	status  session.Status
	notice  string
	failed  bool
	width   int
	height  int
}

func New(chat Chat, labels *localization.Localizer) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = config.MaxMessageLength
	input.Placeholder = labels.Label(models.LanguageOriginal, localization.ComposerHint)
	input.Focus()

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true

	return Model{
		chat:     chat,
		composer: composer.New(chat),
		labels:   labels,
		input:    input,
		timeline: timeline,
		theme:    newTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.refreshCmd(), waitUpdate(m.chat.Updates()))
}

func waitUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return updateMsg{}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		st, err := m.chat.Status(ctx)
		if err != nil {
			return viewMsg{err: err}
		}
		entries, err := m.chat.View(ctx)
		return viewMsg{entries: entries, status: st, err: err}
	}
}

func (m Model) actionCmd(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return actionMsg{action: action, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.timeline.Width = msg.Width
		m.timeline.Height = max(msg.Height-6, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.renderTimeline()
		return m, nil

	case updateMsg:
		return m, tea.Batch(m.refreshCmd(), waitUpdate(m.chat.Updates()))

	case viewMsg:
		if msg.err != nil {
			m.setNotice(msg.err.Error(), true)
			return m, nil
		}
		m.entries, m.status = msg.entries, msg.status
		m.input.Placeholder = m.label(localization.ComposerHint)
		m.renderTimeline()
		return m, nil

	case actionMsg:
		m.handleAction(msg)
		return m, m.refreshCmd()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.composer.SetDraft(m.input.Value())
	return m, cmd
}

// submit runs a slash command or sends the draft.
func (m *Model) submit() tea.Cmd {
	value := strings.TrimSpace(m.input.Value())
	if !strings.HasPrefix(value, "/") {
		return m.actionCmd("send", m.composer.Submit)
	}

	m.input.SetValue("")
	m.composer.SetDraft("")
	fields := strings.Fields(value)
	switch fields[0] {
	case "/room":
		if len(fields) < 2 {
			m.setNotice("usage: /room <id> [language]", true)
			return nil
		}
		lang := m.status.Room.Language
		if len(fields) > 2 {
			lang = models.Language(fields[2])
		}
		roomID := fields[1]
		return m.actionCmd("room", func(ctx context.Context) error {
			return m.chat.OpenRoom(ctx, roomID, lang)
		})
	case "/lang":
		if len(fields) < 2 {
			m.setNotice("usage: /lang <"+strings.Join(languageCodes(), "|")+">", true)
			return nil
		}
		lang := models.Language(fields[1])
		return m.actionCmd("lang", func(ctx context.Context) error {
			return m.chat.SetDisplayLanguage(ctx, lang)
		})
	case "/reload":
		return m.actionCmd("reload", m.chat.Reload)
	case "/quit":
		return tea.Quit
	default:
		m.setNotice(fmt.Sprintf("unknown command %s", fields[0]), true)
		return nil
	}
}

func (m *Model) handleAction(msg actionMsg) {
	if msg.err == nil {
		if msg.action == "send" {
			m.input.SetValue(m.composer.Draft())
		}
		m.setNotice("", false)
		return
	}

	switch {
	case errors.Is(msg.err, livechannel.ErrNotOpen):
		m.setNotice(m.label(localization.ErrorNotOpen), true)
	case errors.Is(msg.err, composer.ErrEmptyMessage):
		m.setNotice(m.label(localization.ErrorEmptyMessage), true)
	case msg.action == "send":
		m.setNotice(m.label(localization.ErrorSendFailed)+": "+msg.err.Error(), true)
	default:
		m.setNotice(msg.err.Error(), true)
	}
}

func (m *Model) setNotice(text string, failed bool) {
	m.notice, m.failed = text, failed
}

func (m Model) label(key string) string {
	return m.labels.Label(m.status.Room.Language, key)
}

func (m *Model) renderTimeline() {
	lines := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		name := e.SenderName
		if name == "" {
			name = m.label(localization.UnknownSender)
		}
		style := m.theme.sender
		if e.IsOwnMessage {
			style = m.theme.own
		}
		line := style.Render(name+":") + " " + e.Text
		if e.Translated {
			line += m.theme.muted.Render(" *")
		}
		lines = append(lines, line)
	}
	m.timeline.SetContent(strings.Join(lines, "\n"))
	m.timeline.GotoBottom()
}

// Banner renders the room, language and connection line.
func (m Model) Banner() string {
	if !m.status.HasRoom {
		return m.theme.header.Render(m.label(localization.StatusIdle))
	}

	key := localization.ConnectionKey(m.status.Connection)
	if m.status.Fetching && !m.status.Loaded {
		key = localization.StatusLoading
	}
	conn := m.theme.online.Render(m.label(key))
	if m.status.Disconnected() {
		conn = m.theme.offline.Render(m.label(key))
	}

	return m.theme.header.Render(fmt.Sprintf("#%s  %s: %s  %s",
		m.status.Room.RoomID, m.label(localization.LanguageLabel), m.status.Room.Language, conn))
}

func (m Model) View() string {
	notice := m.theme.notice.Render(m.notice)
	if m.failed {
		notice = m.theme.errorMsg.Render(m.notice)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.Banner(),
		m.timeline.View(),
		notice,
		m.input.View(),
	)
}

func languageCodes() []string {
	codes := make([]string, 0, len(models.SupportedLanguages))
	for _, lang := range models.SupportedLanguages {
		codes = append(codes, string(lang))
	}
	return codes
}
