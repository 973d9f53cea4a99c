package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/raglet/raglet/internal/convo"
)

// View implements tea.Model. Uses AltScreen with a viewport for the
// scrollable transcript.
func (m *Model) View() tea.View {
	m.viewBuf.Reset()

	switch m.view {
	case viewLogin:
		m.renderLogin(&m.viewBuf)
	case viewPicker:
		m.renderPicker(&m.viewBuf)
	default:
		m.renderChat(&m.viewBuf)
	}

	v := tea.NewView(m.viewBuf.String())
	v.AltScreen = true
	return v
}

func (m *Model) renderLogin(b *strings.Builder) {
	_, _ = b.WriteString(m.styles.RenderBanner())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.styles.Header.Render("Sign in"))
	_, _ = b.WriteString("\n\n")

	_, _ = b.WriteString("  Username: ")
	_, _ = b.WriteString(m.username.View())
	_, _ = b.WriteString("\n  Password: ")
	_, _ = b.WriteString(m.password.View())
	_, _ = b.WriteString("\n\n")

	if m.notice != "" {
		_, _ = b.WriteString(m.styles.Error.Render(m.notice))
		_, _ = b.WriteString("\n\n")
	}

	_, _ = b.WriteString(m.help.ShortHelpView([]key.Binding{
		m.keys.Submit, m.keys.Mode, m.keys.Quit,
	}))
}

func (m *Model) renderPicker(b *strings.Builder) {
	_, _ = b.WriteString(m.styles.RenderBanner())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.styles.Header.Render(fmt.Sprintf("Conversations — %s mode", m.mode)))
	_, _ = b.WriteString("\n\n")

	if m.dirLoading {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(" Loading...\n")
	}

	convs := m.directory.Conversations()
	if len(convs) == 0 && !m.dirLoading {
		_, _ = b.WriteString(m.styles.Dimmed.Render("  No conversations yet. Press n to start one."))
		_, _ = b.WriteString("\n")
	}

	for i, c := range convs {
		line := fmt.Sprintf("  %s  %s", c.DisplayTitle(), m.styles.Dimmed.Render(c.UpdatedAt.Format("2006-01-02 15:04")))
		if i == m.cursor {
			line = m.styles.Selected.Render("> " + c.DisplayTitle())
		}
		_, _ = b.WriteString(line)
		_, _ = b.WriteString("\n")
	}
	_, _ = b.WriteString("\n")

	if m.notice != "" {
		_, _ = b.WriteString(m.styles.System.Render(m.notice))
		_, _ = b.WriteString("\n\n")
	}

	_, _ = b.WriteString(m.help.ShortHelpView([]key.Binding{
		m.keys.Nav, m.keys.Select, m.keys.NewConv,
		m.keys.Refresh, m.keys.Mode, m.keys.Quit,
	}))
}

func (m *Model) renderChat(b *strings.Builder) {
	_, _ = b.WriteString(m.viewport.View())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.renderSeparator())
	_, _ = b.WriteString("\n")

	// Input prompt stays visible and usable while a send is pending.
	_, _ = b.WriteString(m.styles.Prompt.Render("> "))
	_, _ = b.WriteString(m.input.View())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.renderSeparator())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.renderStatusBar())
}

// rebuildViewportContent reconstructs the transcript from session
// state. Called when messages, send state, or dimensions change.
func (m *Model) rebuildViewportContent() {
	if m.view != viewChat {
		return
	}

	var b strings.Builder

	title := "New conversation"
	if id, ok := m.session.Active(); ok {
		title = fmt.Sprintf("Conversation %d", id)
		for _, c := range m.directory.Conversations() {
			if c.ID == id {
				title = c.DisplayTitle()
				break
			}
		}
	}
	_, _ = b.WriteString(m.styles.Header.Render(fmt.Sprintf("%s — %s mode", title, m.mode)))
	_, _ = b.WriteString("\n\n")

	for _, msg := range m.session.Transcript() {
		switch msg.Role {
		case convo.RoleUser:
			_, _ = b.WriteString(m.styles.User.Render("You> "))
			_, _ = b.WriteString(msg.Content)
		default:
			_, _ = b.WriteString(m.styles.Assistant.Render("Raglet> "))
			_, _ = b.WriteString(m.markdown.Answer(msg.Content, msg.Sources))
		}
		_, _ = b.WriteString("\n\n")
	}

	if m.session.State() == convo.StateSending {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(" Thinking...\n\n")
	}

	if m.notice != "" {
		_, _ = b.WriteString(m.styles.System.Render(m.notice))
		_, _ = b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
}

// renderSeparator returns a horizontal line separator.
func (m *Model) renderSeparator() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	return m.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar returns state-appropriate keyboard shortcut help.
func (m *Model) renderStatusBar() string {
	var bindings []key.Binding
	if m.session.State() == convo.StateSending {
		bindings = []key.Binding{
			m.keys.Back, m.keys.ScrollUp, m.keys.ScrollDown, m.keys.Quit,
		}
	} else {
		bindings = []key.Binding{
			m.keys.Submit, m.keys.NewLine, m.keys.History,
			m.keys.Back, m.keys.Quit, m.keys.ScrollUp,
		}
	}
	return m.help.ShortHelpView(bindings)
}
