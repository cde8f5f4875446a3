// Package tui is the interactive chat surface: a conversation pane with a
// composer, and a collapsible sidebar listing past conversations. All
// mutations go through the chat controller; the model only decides what to
// draw and which operation to fire next.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/r1cksync/poils-cli/internal/api"
	"github.com/r1cksync/poils-cli/internal/chatctl"
	"github.com/r1cksync/poils-cli/internal/docscan"
	"github.com/r1cksync/poils-cli/internal/session"
)

const sidebarWidth = 30

type focusArea int

const (
	focusComposer focusArea = iota
	focusSidebar
)

type (
	chatsLoadedMsg struct{ err error }
	chatOpenedMsg  struct{ err error }
	sentMsg        struct {
		text string
		err  error
	}
	deletedMsg struct {
		id  string
		err error
	}
	uploadedMsg struct {
		name string
		err  error
	}
	noticeMsg notice
)

// Options configure the chat program.
type Options struct {
	// Notices carries controller and session notifications into the
	// update loop. Required when those collaborators were built with one.
	Notices *Notices
	// Markdown renders assistant replies through glamour.
	Markdown bool
	Logger   *slog.Logger
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctrl    *chatctl.Controller
	sess    *session.Session
	client  *api.Client
	notices *Notices
	logger  *slog.Logger

	input    textinput.Model
	spin     spinner.Model
	vp       viewport.Model
	renderer *glamour.TermRenderer
	markdown bool

	focus       focusArea
	sidebarOpen bool
	cursor      int

	width  int
	height int
	ready  bool

	status      string
	statusError bool
	quitReason  string
}

func New(ctrl *chatctl.Controller, sess *session.Session, client *api.Client, opts Options) *Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about your documents, or /upload <path>"
	ti.CharLimit = 4000
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	notices := opts.Notices
	if notices == nil {
		notices = NewNotices()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Model{
		ctrl:        ctrl,
		sess:        sess,
		client:      client,
		notices:     notices,
		logger:      logger,
		input:       ti,
		spin:        sp,
		markdown:    opts.Markdown,
		sidebarOpen: true,
	}
}

// Run drives the program to completion and reports why it ended.
func (m *Model) Run() error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(*Model); ok && fm.quitReason != "" {
		fmt.Fprintln(os.Stderr, fm.quitReason)
	}
	return nil
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spin.Tick,
		m.loadChatsCmd(),
		m.waitNoticeCmd(),
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refreshViewport()

	case tea.KeyMsg:
		model, cmd, handled := m.handleKey(msg)
		if handled {
			return model, cmd
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	case noticeMsg:
		m.setStatus(msg.text, msg.isError)
		cmds = append(cmds, m.waitNoticeCmd())

	case chatsLoadedMsg:
		m.clampCursor()
		m.refreshViewport()

	case chatOpenedMsg:
		m.refreshViewport()

	case sentMsg:
		if msg.err != nil {
			// The draft survives a failed send.
			m.input.SetValue(msg.text)
		}
		m.clampCursor()
		m.refreshViewport()

	case deletedMsg:
		m.clampCursor()
		m.refreshViewport()

	case uploadedMsg:
		if msg.err == nil {
			m.setStatus(fmt.Sprintf("Uploaded %s", msg.name), false)
		} else {
			m.setStatus(fmt.Sprintf("Upload failed: %v", msg.err), true)
		}
	}

	if m.sess.State() == session.StateAnonymous {
		if m.quitReason == "" {
			m.quitReason = "Session ended. Run `poils login` to sign in again."
		}
		return m, tea.Quit
	}

	if m.focus == focusComposer {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit, true

	case "ctrl+b":
		m.sidebarOpen = !m.sidebarOpen
		if !m.sidebarOpen {
			m.focus = focusComposer
			m.input.Focus()
		}
		m.resize(m.width, m.height)
		m.refreshViewport()
		return m, nil, true

	case "tab":
		if m.sidebarOpen {
			if m.focus == focusComposer {
				m.focus = focusSidebar
				m.input.Blur()
			} else {
				m.focus = focusComposer
				m.input.Focus()
			}
		}
		return m, nil, true

	case "ctrl+l":
		return m, m.logoutCmd(), true
	}

	if m.focus == focusSidebar {
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil, true
		case "down", "j":
			if m.cursor < len(m.ctrl.Chats())-1 {
				m.cursor++
			}
			return m, nil, true
		case "enter":
			chats := m.ctrl.Chats()
			if m.cursor < len(chats) {
				return m, m.openChatCmd(chats[m.cursor].ID), true
			}
			return m, nil, true
		case "n":
			m.ctrl.ClearActive()
			m.focus = focusComposer
			m.input.Focus()
			m.refreshViewport()
			return m, nil, true
		case "d", "delete":
			chats := m.ctrl.Chats()
			if m.cursor < len(chats) {
				return m, m.deleteChatCmd(chats[m.cursor].ID), true
			}
			return m, nil, true
		}
		return m, nil, false
	}

	if msg.String() == "enter" {
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.ctrl.Sending() {
			return m, nil, true
		}
		if path, ok := strings.CutPrefix(text, "/upload "); ok {
			m.input.SetValue("")
			return m, m.uploadCmd(strings.TrimSpace(path)), true
		}
		m.input.SetValue("")
		return m, m.sendCmd(text), true
	}

	return m, nil, false
}

func (m *Model) loadChatsCmd() tea.Cmd {
	return func() tea.Msg {
		return chatsLoadedMsg{err: m.ctrl.LoadChats(context.Background())}
	}
}

func (m *Model) openChatCmd(id string) tea.Cmd {
	return func() tea.Msg {
		return chatOpenedMsg{err: m.ctrl.SelectChat(context.Background(), id)}
	}
}

func (m *Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return sentMsg{text: text, err: m.ctrl.SendMessage(context.Background(), text)}
	}
}

func (m *Model) deleteChatCmd(id string) tea.Cmd {
	return func() tea.Msg {
		return deletedMsg{id: id, err: m.ctrl.DeleteChat(context.Background(), id)}
	}
}

func (m *Model) uploadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		info, err := docscan.Inspect(path)
		if err != nil {
			return uploadedMsg{name: path, err: err}
		}
		f, err := os.Open(path)
		if err != nil {
			return uploadedMsg{name: info.Name, err: err}
		}
		defer f.Close()

		chatID := ""
		if active := m.ctrl.Active(); active != nil {
			chatID = active.ID
		}
		_, err = m.client.Documents.Upload(context.Background(), f, info.Name, chatID)
		return uploadedMsg{name: info.Name, err: err}
	}
}

func (m *Model) logoutCmd() tea.Cmd {
	return func() tea.Msg {
		m.sess.Logout(context.Background())
		return noticeMsg{}
	}
}

func (m *Model) waitNoticeCmd() tea.Cmd {
	return func() tea.Msg {
		return noticeMsg(<-m.notices.ch)
	}
}

func (m *Model) setStatus(text string, isError bool) {
	if text == "" {
		return
	}
	m.status = text
	m.statusError = isError
}

func (m *Model) clampCursor() {
	if n := len(m.ctrl.Chats()); m.cursor >= n && n > 0 {
		m.cursor = n - 1
	} else if n == 0 {
		m.cursor = 0
	}
}

func (m *Model) chatPaneWidth() int {
	w := m.width
	if m.sidebarOpen {
		w -= sidebarWidth
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	paneWidth := m.chatPaneWidth()
	// header + status + input + hint
	vpHeight := height - 4
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.vp = viewport.New(paneWidth, vpHeight)
		m.ready = true
	} else {
		m.vp.Width = paneWidth
		m.vp.Height = vpHeight
	}
	m.input.Width = paneWidth - 4

	if m.markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(paneWidth-4),
		)
		if err != nil {
			m.logger.Debug("markdown renderer unavailable", "error", err)
			m.renderer = nil
		} else {
			m.renderer = r
		}
	}
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.vp.SetContent(m.renderMessages())
	m.vp.GotoBottom()
}

func (m *Model) renderMessages() string {
	active := m.ctrl.Active()
	width := m.chatPaneWidth()

	if active == nil || !active.HasMessages() {
		empty := emptyStateStyle.Width(width).Render(
			"\nStart a conversation about your documents.\n" +
				"Type a message below, or /upload <path> to add a file.",
		)
		return empty
	}

	var b strings.Builder
	for _, msg := range active.Messages {
		b.WriteString(m.renderMessage(msg, width))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderMessage(msg api.Message, width int) string {
	ts := timestampStyle.Render(msg.Timestamp.Local().Format("15:04"))

	if msg.Role == api.RoleUser {
		bubble := userBubbleStyle.MaxWidth(width - 8).Render(msg.Content)
		line := lipgloss.JoinVertical(lipgloss.Right, bubble, ts)
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, line)
	}

	body := msg.Content
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(msg.Content); err == nil {
			body = strings.TrimRight(rendered, "\n")
		}
	}
	bubble := assistantBubbleStyle.MaxWidth(width - 4).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, bubble, ts)
}

func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	pane := m.renderChatPane()
	if !m.sidebarOpen {
		return pane
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), pane)
}

func (m *Model) renderChatPane() string {
	title := "New chat"
	if active := m.ctrl.Active(); active != nil {
		title = active.Title
	}
	header := headerStyle.Render(title)

	status := " "
	switch {
	case m.ctrl.Sending():
		status = m.spin.View() + " thinking..."
	case m.ctrl.Loading():
		status = m.spin.View() + " loading chats..."
	case m.status != "":
		if m.statusError {
			status = statusErrorStyle.Render(m.status)
		} else {
			status = statusOKStyle.Render(m.status)
		}
	}

	hint := hintStyle.Render("enter send · tab sidebar · ctrl+b toggle · ctrl+l logout · ctrl+c quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.vp.View(),
		status,
		m.input.View(),
		hint,
	)
}

func (m *Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(sidebarTitleStyle.Render("Poils"))
	b.WriteString("\n")

	if user, err := m.sess.Current(); err == nil {
		b.WriteString(identityStyle.Render(user.Email))
	}
	b.WriteString("\n\n")

	chats := m.ctrl.Chats()
	if len(chats) == 0 {
		b.WriteString(sidebarItemStyle.Render("No conversations yet"))
		b.WriteString("\n")
	}
	activeID := ""
	if active := m.ctrl.Active(); active != nil {
		activeID = active.ID
	}
	for i, chat := range chats {
		label := truncate(chat.Title, sidebarWidth-4)
		switch {
		case m.focus == focusSidebar && i == m.cursor:
			label = sidebarSelectedStyle.Render("> " + label)
		case chat.ID == activeID:
			label = sidebarSelectedStyle.Render("  " + label)
		default:
			label = sidebarItemStyle.Render("  " + label)
		}
		b.WriteString(label)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(hintStyle.Render("n new · d delete"))

	return sidebarStyle.
		Width(sidebarWidth - 1).
		Height(m.height - 1).
		Render(b.String())
}

// truncate cuts s to at most max terminal cells. Devanagari and other
// multibyte titles must never be sliced mid-rune.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	return runewidth.Truncate(s, max, "…")
}
