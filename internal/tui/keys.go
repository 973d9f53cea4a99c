package tui

import (
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/raglet/raglet/internal/auth"
	"github.com/raglet/raglet/internal/convo"
)

// Slash command constants.
const (
	cmdHelp = "/help"
	cmdExit = "/exit"
	cmdQuit = "/quit"
	cmdNew  = "/new"
)

// keyMap holds key bindings for help bar display.
type keyMap struct {
	Submit     key.Binding
	NewLine    key.Binding
	History    key.Binding
	Nav        key.Binding
	Select     key.Binding
	NewConv    key.Binding
	Refresh    key.Binding
	Mode       key.Binding
	Back       key.Binding
	Cancel     key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		NewLine:    key.NewBinding(key.WithKeys("shift+enter"), key.WithHelp("s+enter", "newline")),
		History:    key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "history")),
		Nav:        key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "navigate")),
		Select:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		NewConv:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new thread")),
		Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Mode:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch mode")),
		Back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Cancel:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "exit")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
	}
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()

	if k.Mod&tea.ModCtrl != 0 {
		switch k.Code {
		case 'c':
			return m.handleCtrlC()
		case 'd':
			return m, m.cleanup()
		}
	}

	switch m.view {
	case viewLogin:
		return m.handleLoginKey(msg)
	case viewPicker:
		return m.handlePickerKey(msg)
	default:
		return m.handleChatKey(msg)
	}
}

func (m *Model) handleLoginKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()
	switch k.Code {
	case tea.KeyEnter:
		if m.focusIdx == 0 {
			m.focusIdx = 1
			m.username.Blur()
			return m, m.password.Focus()
		}
		username := strings.TrimSpace(m.username.Value())
		password := m.password.Value()
		if username == "" || password == "" {
			m.notice = "Enter a username and password."
			return m, nil
		}
		m.notice = ""
		return m, m.login(username, password)

	case tea.KeyTab, tea.KeyDown, tea.KeyUp:
		if m.focusIdx == 0 {
			m.focusIdx = 1
			m.username.Blur()
			return m, m.password.Focus()
		}
		m.focusIdx = 0
		m.password.Blur()
		return m, m.username.Focus()
	}

	return m.updateFocused(msg)
}

func (m *Model) handlePickerKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()
	convs := m.directory.Conversations()

	switch k.Code {
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case tea.KeyDown:
		if m.cursor < len(convs)-1 {
			m.cursor++
		}
		return m, nil

	case tea.KeyEnter:
		if len(convs) == 0 {
			return m, nil
		}
		return m, m.selectConversation(convs[m.cursor].ID)

	case tea.KeyTab:
		return m.toggleMode()

	case tea.KeyEscape:
		return m, m.cleanup()
	}

	switch k.Code {
	case 'n':
		return m, m.startConversation()
	case 'r':
		m.dirLoading = true
		return m, m.loadDirectory()
	}

	return m, nil
}

// toggleMode switches between the public and dual document sets. The
// guard corrects disallowed switches by navigation: a restricted
// account asking for dual mode stays on public with a notice instead
// of an error screen.
func (m *Model) toggleMode() (tea.Model, tea.Cmd) {
	target := "dual"
	if m.mode == "dual" {
		target = "public"
	}
	if target == "dual" {
		decision := m.deps.Guard.Authorize(auth.ViewDual)
		if !decision.Allowed {
			m.notice = "Secure mode is not available for this account."
			return m, nil
		}
	}
	m.setMode(target)
	m.notice = ""
	m.dirLoading = true
	return m, m.loadDirectory()
}

func (m *Model) handleChatKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()

	switch k.Code {
	case tea.KeyEnter:
		// Enter submits, Shift+Enter adds a newline in the textarea.
		if k.Mod&tea.ModShift == 0 {
			return m.handleSubmit()
		}

	case tea.KeyUp:
		if m.input.Line() == 0 {
			return m.navigateHistory(-1)
		}

	case tea.KeyDown:
		if m.input.Line() == m.input.LineCount()-1 {
			return m.navigateHistory(1)
		}

	case tea.KeyEscape:
		// Back to the picker; the session keeps its transcript so the
		// thread can be re-entered without a reload.
		m.view = viewPicker
		m.dirLoading = true
		return m, m.loadDirectory()

	case tea.KeyPgUp:
		m.viewport.PageUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.PageDown()
		return m, nil
	}

	// Always allow typing, even while a send is pending.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleCtrlC() (tea.Model, tea.Cmd) {
	now := time.Now()

	// Double Ctrl+C within 1 second = quit
	if now.Sub(m.lastCtrlC) < time.Second {
		return m, m.cleanup()
	}
	m.lastCtrlC = now

	if m.view == viewChat {
		m.input.Reset()
	}
	return m, nil
}

func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		return m.handleSlashCommand(text)
	}

	if m.session.State() == convo.StateSending {
		// One send at a time; the typed text stays in the input.
		return m, nil
	}

	m.history = append(m.history, text)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.historyIdx = len(m.history)

	m.input.Reset()

	cmd := m.send(text)
	m.rebuildViewportContent()
	return m, tea.Batch(m.spinner.Tick, cmd)
}

func (m *Model) handleSlashCommand(cmd string) (tea.Model, tea.Cmd) {
	m.input.Reset()
	switch cmd {
	case cmdHelp:
		m.notice = "Commands: " + cmdHelp + ", " + cmdNew + ", " + cmdExit +
			"\nShortcuts: Enter send · Shift+Enter newline · Esc threads · Ctrl+D exit"
		m.rebuildViewportContent()
		return m, nil
	case cmdNew:
		return m, m.startConversation()
	case cmdExit, cmdQuit:
		return m, m.cleanup()
	default:
		m.notice = "Unknown command: " + cmd
		m.rebuildViewportContent()
		return m, nil
	}
}

func (m *Model) navigateHistory(delta int) (tea.Model, tea.Cmd) {
	if len(m.history) == 0 {
		return m, nil
	}

	m.historyIdx += delta
	if m.historyIdx < 0 {
		m.historyIdx = 0
	}
	if m.historyIdx > len(m.history) {
		m.historyIdx = len(m.history)
	}

	if m.historyIdx == len(m.history) {
		m.input.SetValue("")
	} else {
		m.input.SetValue(m.history[m.historyIdx])
		m.input.CursorEnd()
	}

	return m, nil
}
