// Package tui provides the Bubble Tea terminal interface for raglet:
// a login form, a conversation picker, and the chat transcript view.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/raglet/raglet/internal/auth"
	"github.com/raglet/raglet/internal/convo"
	"github.com/raglet/raglet/internal/log"
	"github.com/raglet/raglet/internal/ragsvc"
)

// view identifies which screen the model is rendering.
type view int

const (
	viewLogin view = iota
	viewPicker
	viewChat
)

// Memory bounds to prevent unbounded growth.
const maxHistory = 100 // Maximum input history entries

// Layout constants for viewport height calculation.
const (
	separatorLines = 2 // Two separator lines (above and below input)
	helpLines      = 1 // Help bar height
	promptLines    = 1 // Prompt prefix line
	minViewport    = 3 // Minimum viewport height
)

// Deps are the collaborators the TUI drives. All fields are required.
type Deps struct {
	Store  *auth.Store
	Guard  *auth.Guard
	Client *ragsvc.Client
	Mode   string // starting conversation mode
	Logger log.Logger
}

// Model is the Bubble Tea model for the raglet terminal interface.
type Model struct {
	deps Deps

	view   view
	mode   string
	notice string // transient system notice shown in picker/login

	// Login form
	username textinput.Model
	password textinput.Model
	focusIdx int // 0 = username, 1 = password

	// Conversation picker
	cursor     int
	dirLoading bool

	// Chat
	input      textarea.Model
	history    []string
	historyIdx int
	spinner    spinner.Model
	viewport   viewport.Model
	viewBuf    strings.Builder

	directory *convo.Directory
	session   *convo.Session

	// Help bar for keyboard shortcuts
	help help.Model
	keys keyMap

	ctx       context.Context
	ctxCancel context.CancelFunc

	// Dimensions
	width  int
	height int

	styles   Styles
	markdown *answerRenderer

	lastCtrlC time.Time
}

// New creates the TUI model. Returns an error if required dependencies
// are missing.
//
// ctx MUST be the same context passed to tea.WithContext() so
// cancellation behaves consistently.
func New(ctx context.Context, deps Deps) (*Model, error) {
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}
	if deps.Store == nil || deps.Guard == nil || deps.Client == nil {
		return nil, errors.New("tui.New: store, guard and client are required")
	}
	if deps.Logger == nil {
		deps.Logger = log.NewNop()
	}
	if deps.Mode == "" {
		deps.Mode = "public"
	}

	ctx, cancel := context.WithCancel(ctx)

	username := textinput.New()
	username.Placeholder = "username"
	username.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword

	ta := textarea.New()
	ta.Placeholder = "Ask anything..."
	ta.SetHeight(1)
	ta.SetWidth(120)
	ta.ShowLineNumbers = false

	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{
		Focused: cleanStyle,
		Blurred: cleanStyle,
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Viewport keyboard handling is routed explicitly in handleKey to
	// avoid conflicts with the textarea and history navigation.
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{}

	styles := DefaultStyles()
	m := &Model{
		deps:      deps,
		mode:      deps.Mode,
		username:  username,
		password:  password,
		input:     ta,
		spinner:   sp,
		viewport:  vp,
		help:      help.New(),
		keys:      newKeyMap(),
		styles:    styles,
		markdown:  newAnswerRenderer(80, styles.Sources),
		history:   make([]string, 0, maxHistory),
		ctx:       ctx,
		ctxCancel: cancel,
		width:     80, // Default width until WindowSizeMsg arrives
	}
	m.setMode(deps.Mode)

	// Land on the view the guard allows for the stored credential.
	decision := deps.Guard.Authorize(initialView(deps.Mode))
	m.applyDecision(decision, initialView(deps.Mode))

	return m, nil
}

func initialView(mode string) auth.View {
	if mode == "dual" {
		return auth.ViewDual
	}
	return auth.ViewPublic
}

// setMode rebuilds the directory and session for a conversation mode.
// The previous session, if any, is closed so late results are dropped.
func (m *Model) setMode(mode string) {
	if m.session != nil {
		m.session.Close()
	}
	m.mode = mode
	m.directory = convo.NewDirectory(m.deps.Client, mode, m.deps.Logger)
	m.session = convo.NewSession(m.deps.Client, m.directory, m.deps.Logger)
	m.cursor = 0
}

// applyDecision moves the model to whatever view the guard allows.
func (m *Model) applyDecision(d auth.Decision, requested auth.View) {
	target := requested
	if !d.Allowed {
		target = d.Redirect
	}
	switch target {
	case auth.ViewLogin:
		m.view = viewLogin
		m.username.Focus()
		m.password.Blur()
		m.focusIdx = 0
	case auth.ViewDual:
		if m.mode != "dual" {
			m.setMode("dual")
		}
		m.view = viewPicker
	default:
		if m.mode != "public" {
			m.setMode("public")
		}
		m.view = viewPicker
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.spinner.Tick}
	if m.view == viewPicker {
		m.dirLoading = true
		cmds = append(cmds, m.loadDirectory())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		inputHeight := m.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(vpHeight)
		m.input.SetWidth(msg.Width - 4) // Room for "> " prompt
		m.help.SetWidth(msg.Width)
		m.markdown.SetWidth(msg.Width)
		m.rebuildViewportContent()
		return m, nil

	case tea.MouseWheelMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.busy() {
			m.rebuildViewportContent()
		}
		return m, cmd

	case loginResultMsg:
		return m.handleLoginResult(msg)

	case directoryLoadedMsg:
		m.dirLoading = false
		if msg.err != nil {
			if errors.Is(msg.err, ragsvc.ErrUnauthorized) {
				return m.handleAuthFailure()
			}
			m.notice = ragsvc.Describe(msg.err)
			return m, nil
		}
		m.notice = ""
		if convs := m.directory.Conversations(); m.cursor >= len(convs) {
			m.cursor = max(len(convs)-1, 0)
		}
		return m, nil

	case historyLoadedMsg:
		if errors.Is(msg.err, ragsvc.ErrUnauthorized) {
			return m.handleAuthFailure()
		}
		m.view = viewChat
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, m.input.Focus()

	case conversationStartedMsg:
		if msg.err != nil {
			if errors.Is(msg.err, ragsvc.ErrUnauthorized) {
				return m.handleAuthFailure()
			}
			m.notice = ragsvc.Describe(msg.err)
			return m, nil
		}
		m.view = viewChat
		m.rebuildViewportContent()
		return m, m.input.Focus()

	case sendResultMsg:
		if errors.Is(msg.err, ragsvc.ErrUnauthorized) {
			return m.handleAuthFailure()
		}
		if errors.Is(msg.err, convo.ErrSendInFlight) {
			// Two rapid submits can both pass the synchronous state
			// check; give the losing one its text back.
			if strings.TrimSpace(m.input.Value()) == "" {
				m.input.SetValue(msg.text)
				m.input.CursorEnd()
			}
			m.notice = "Still waiting for the previous reply."
			m.rebuildViewportContent()
			return m, m.input.Focus()
		}
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, m.input.Focus()
	}

	return m.updateFocused(msg)
}

// updateFocused forwards a message to whichever input has focus.
func (m *Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case viewLogin:
		if m.focusIdx == 0 {
			m.username, cmd = m.username.Update(msg)
		} else {
			m.password, cmd = m.password.Update(msg)
		}
	case viewChat:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if errors.Is(msg.err, ragsvc.ErrInvalidCredentials) {
			m.notice = "Invalid username or password."
		} else {
			m.notice = ragsvc.Describe(msg.err)
		}
		m.password.SetValue("")
		return m, nil
	}

	if err := m.deps.Store.Set(msg.cred); err != nil {
		m.deps.Logger.Warn("persisting credential failed", "error", err)
	}
	m.notice = ""
	m.password.SetValue("")

	requested := initialView(m.mode)
	m.applyDecision(m.deps.Guard.Authorize(requested), requested)
	m.dirLoading = true
	return m, m.loadDirectory()
}

// handleAuthFailure clears the stored credential and returns to the
// login view. Rejected credentials are corrected by navigation, not by
// an error banner.
func (m *Model) handleAuthFailure() (tea.Model, tea.Cmd) {
	if err := m.deps.Store.Clear(); err != nil {
		m.deps.Logger.Warn("clearing credential failed", "error", err)
	}
	m.session.Reset()
	m.view = viewLogin
	m.notice = "Your session is no longer valid. Please log in again."
	m.username.Focus()
	m.password.Blur()
	m.focusIdx = 0
	return m, nil
}

// busy reports whether a spinner-worthy operation is in flight.
func (m *Model) busy() bool {
	if m.dirLoading {
		return true
	}
	state := m.session.State()
	return state == convo.StateSending || state == convo.StateResuming
}

// cleanup cancels outstanding work and returns the quit command.
func (m *Model) cleanup() tea.Cmd {
	m.session.Close()
	if m.ctxCancel != nil {
		m.ctxCancel()
		m.ctxCancel = nil
	}
	return tea.Quit
}
