package tui

import (
	tea "charm.land/bubbletea/v2"

	"github.com/raglet/raglet/internal/auth"
)

// Result messages delivered back into the event loop. Session and
// directory state live in the convo package; these messages only carry
// the outcome that decides the next view.
type loginResultMsg struct {
	cred auth.Credential
	err  error
}

type directoryLoadedMsg struct {
	err error
}

type historyLoadedMsg struct {
	id  int64
	err error
}

type conversationStartedMsg struct {
	err error
}

type sendResultMsg struct {
	text string
	err  error
}

// login exchanges the typed credentials for a token.
func (m *Model) login(username, password string) tea.Cmd {
	return func() tea.Msg {
		cred, err := m.deps.Client.Login(m.ctx, username, password)
		return loginResultMsg{cred: cred, err: err}
	}
}

// loadDirectory refreshes the conversation list for the current mode.
func (m *Model) loadDirectory() tea.Cmd {
	dir := m.directory
	return func() tea.Msg {
		_, err := dir.List(m.ctx)
		return directoryLoadedMsg{err: err}
	}
}

// selectConversation resumes a thread by loading its history.
func (m *Model) selectConversation(id int64) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		err := sess.Select(m.ctx, id)
		return historyLoadedMsg{id: id, err: err}
	}
}

// startConversation creates a fresh thread and makes it active.
func (m *Model) startConversation() tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		err := sess.StartNew(m.ctx)
		return conversationStartedMsg{err: err}
	}
}

// send submits the typed message through the session state machine.
// Failures other than Unauthorized surface inside the transcript.
func (m *Model) send(text string) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		err := sess.Send(m.ctx, text)
		return sendResultMsg{text: text, err: err}
	}
}
