package tui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"go.uber.org/goleak"

	"github.com/raglet/raglet/internal/auth"
	"github.com/raglet/raglet/internal/convo"
	"github.com/raglet/raglet/internal/log"
	"github.com/raglet/raglet/internal/ragsvc"
)

// goleakOptions returns standard goleak options for all TUI tests.
func goleakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	}
}

// newTestModel builds a model against a stub HTTP backend. The handler
// may be nil when the test never reaches the network.
func newTestModel(t *testing.T, handler http.Handler, cred *auth.Credential) *Model {
	t.Helper()

	if handler == nil {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"conversations":[]}`))
		})
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := auth.NewStore(filepath.Join(t.TempDir(), "credential.json"), log.NewNop())
	if cred != nil {
		if err := store.Set(*cred); err != nil {
			t.Fatalf("seeding credential: %v", err)
		}
	}

	client := ragsvc.New(srv.URL, store, log.NewNop(), ragsvc.Options{})
	m, err := New(context.Background(), Deps{
		Store:  store,
		Guard:  auth.NewGuard(store),
		Client: client,
		Mode:   "public",
		Logger: log.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = m.cleanup() })
	return m
}

func userCred() *auth.Credential {
	return &auth.Credential{Token: "tok", Role: auth.RoleUser, UserID: "2", DisplayName: "user"}
}

func restrictedCred() *auth.Credential {
	return &auth.Credential{Token: "tok", Role: auth.RoleRestricted, UserID: "3", DisplayName: "ruser"}
}

func TestNew_Errors(t *testing.T) {
	t.Run("nil context", func(t *testing.T) {
		//nolint:staticcheck // intentionally testing nil context handling
		if _, err := New(nil, Deps{}); err == nil {
			t.Error("expected error for nil context")
		}
	})

	t.Run("missing deps", func(t *testing.T) {
		if _, err := New(context.Background(), Deps{}); err == nil {
			t.Error("expected error for missing dependencies")
		}
	})
}

func TestInitialView(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("anonymous lands on login", func(t *testing.T) {
		m := newTestModel(t, nil, nil)
		if m.view != viewLogin {
			t.Errorf("view = %v, want login", m.view)
		}
	})

	t.Run("authenticated lands on picker", func(t *testing.T) {
		m := newTestModel(t, nil, userCred())
		if m.view != viewPicker {
			t.Errorf("view = %v, want picker", m.view)
		}
	})
}

func TestModeToggle(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("restricted stays on public with a notice", func(t *testing.T) {
		m := newTestModel(t, nil, restrictedCred())

		model, _ := m.toggleMode()
		result := model.(*Model)
		if result.mode != "public" {
			t.Errorf("mode = %q, want public (corrected by navigation)", result.mode)
		}
		if result.notice == "" {
			t.Error("expected a notice explaining the correction")
		}
		if result.view == viewLogin {
			t.Error("restricted toggle must not surface as an auth error")
		}
	})

	t.Run("regular user switches to dual", func(t *testing.T) {
		m := newTestModel(t, nil, userCred())

		model, cmd := m.toggleMode()
		result := model.(*Model)
		if result.mode != "dual" {
			t.Errorf("mode = %q, want dual", result.mode)
		}
		if cmd == nil {
			t.Error("expected a directory reload command")
		}
	})
}

func TestHandleSubmit(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("blank input is ignored", func(t *testing.T) {
		m := newTestModel(t, nil, userCred())
		m.view = viewChat
		m.input.SetValue("   ")

		_, cmd := m.handleSubmit()
		if cmd != nil {
			t.Error("blank submit must not produce a command")
		}
		if len(m.history) != 0 {
			t.Error("blank submit must not enter input history")
		}
	})

	t.Run("text is recorded in history and cleared", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.HasSuffix(r.URL.Path, "/send"):
				w.Write([]byte(`{"answer":"ok","sources":[]}`))
			case r.URL.Path == "/conversations" && r.Method == http.MethodPost:
				w.Write([]byte(`{"id":1,"mode":"public"}`))
			default:
				w.Write([]byte(`{"conversations":[]}`))
			}
		})
		m := newTestModel(t, handler, userCred())
		m.view = viewChat
		m.input.SetValue("hello there")

		_, cmd := m.handleSubmit()
		if cmd == nil {
			t.Fatal("expected a send command")
		}
		if len(m.history) != 1 || m.history[0] != "hello there" {
			t.Errorf("history = %v", m.history)
		}
		if m.input.Value() != "" {
			t.Error("input should be cleared after submit")
		}
	})
}

func TestSlashCommands(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	tests := []struct {
		name     string
		cmd      string
		wantExit bool
		wantNote bool
	}{
		{"help", "/help", false, true},
		{"exit", "/exit", true, false},
		{"quit", "/quit", true, false},
		{"unknown", "/nope", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, nil, userCred())
			m.view = viewChat

			_, cmd := m.handleSlashCommand(tt.cmd)
			if tt.wantExit && cmd == nil {
				t.Error("expected quit command")
			}
			if tt.wantNote && m.notice == "" {
				t.Error("expected a notice")
			}
		})
	}
}

func TestHistoryNavigation(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t, nil, userCred())
	m.history = []string{"first", "second", "third"}
	m.historyIdx = 3

	tests := []struct {
		delta    int
		expected string
	}{
		{-1, "third"},
		{-1, "second"},
		{-1, "first"},
		{-1, "first"}, // Should stay at first
		{1, "second"},
		{1, "third"},
		{1, ""}, // Past end = empty
	}

	for i, tt := range tests {
		model, _ := m.navigateHistory(tt.delta)
		m = model.(*Model)
		if m.input.Value() != tt.expected {
			t.Errorf("step %d: got %q, want %q", i, m.input.Value(), tt.expected)
		}
	}
}

func TestCtrlC(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("first press clears chat input", func(t *testing.T) {
		m := newTestModel(t, nil, userCred())
		m.view = viewChat
		m.input.SetValue("draft")

		model, _ := m.handleCtrlC()
		if model.(*Model).input.Value() != "" {
			t.Error("first Ctrl+C should clear input")
		}
	})

	t.Run("double press quits", func(t *testing.T) {
		m := newTestModel(t, nil, userCred())
		m.lastCtrlC = time.Now()

		_, cmd := m.handleCtrlC()
		if cmd == nil {
			t.Error("double Ctrl+C should return quit command")
		}
	})

	t.Run("routed through Update", func(t *testing.T) {
		m := newTestModel(t, nil, userCred())
		m.view = viewChat
		m.input.SetValue("draft")

		msg := tea.KeyPressMsg(tea.Key{Code: 'c', Mod: tea.ModCtrl})
		model, _ := m.Update(msg)
		if model.(*Model).input.Value() != "" {
			t.Error("Ctrl+C via Update should clear input")
		}
	})
}

func TestAuthFailureReturnsToLogin(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t, nil, userCred())
	m.view = viewChat

	model, _ := m.handleAuthFailure()
	result := model.(*Model)
	if result.view != viewLogin {
		t.Errorf("view = %v, want login", result.view)
	}
	if result.notice == "" {
		t.Error("expected a notice about the expired session")
	}
	if _, ok := result.deps.Store.Current(); ok {
		t.Error("credential should be cleared")
	}
}

func TestDirectoryLoadErrors(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("unauthorized redirects to login", func(t *testing.T) {
		m := newTestModel(t, nil, userCred())
		model, _ := m.Update(directoryLoadedMsg{err: ragsvc.ErrUnauthorized})
		if model.(*Model).view != viewLogin {
			t.Error("unauthorized directory load should land on login")
		}
	})

	t.Run("transient keeps picker with notice", func(t *testing.T) {
		m := newTestModel(t, nil, userCred())
		model, _ := m.Update(directoryLoadedMsg{err: &ragsvc.TransientError{Err: errors.New("refused")}})
		result := model.(*Model)
		if result.view != viewPicker {
			t.Errorf("view = %v, want picker", result.view)
		}
		if result.notice == "" {
			t.Error("expected an inline notice")
		}
	})
}

func TestAnswerRendering(t *testing.T) {
	r := newAnswerRenderer(80, DefaultStyles().Sources)

	t.Run("no sources renders body alone", func(t *testing.T) {
		got := r.Answer("plain answer", nil)
		if strings.Contains(got, "Sources:") {
			t.Errorf("unexpected citation footer in %q", got)
		}
	})

	t.Run("citations follow the body", func(t *testing.T) {
		got := r.Answer("answer", []string{"HR-Handbook.pdf", "Internal-Policies.pdf"})
		if !strings.Contains(got, "Sources:") {
			t.Errorf("missing Sources header in %q", got)
		}
		if !strings.Contains(got, "HR-Handbook.pdf") || !strings.Contains(got, "Internal-Policies.pdf") {
			t.Errorf("missing citation in %q", got)
		}
	})

	t.Run("nil renderer degrades to plain text", func(t *testing.T) {
		var degraded *answerRenderer
		if got := degraded.Markdown("**raw**"); got != "**raw**" {
			t.Errorf("Markdown on nil renderer = %q, want the raw text", got)
		}
	})
}

func TestSendRejectedInFlightRestoresInput(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("cleared input gets its text back", func(t *testing.T) {
		m := newTestModel(t, nil, userCred())
		m.view = viewChat
		m.input.Reset()

		model, _ := m.Update(sendResultMsg{text: "lost draft", err: convo.ErrSendInFlight})
		result := model.(*Model)
		if result.input.Value() != "lost draft" {
			t.Errorf("input = %q, want the rejected text restored", result.input.Value())
		}
		if result.notice == "" {
			t.Error("expected a notice about the pending reply")
		}
	})

	t.Run("fresh typing is not overwritten", func(t *testing.T) {
		m := newTestModel(t, nil, userCred())
		m.view = viewChat
		m.input.SetValue("newer draft")

		model, _ := m.Update(sendResultMsg{text: "older draft", err: convo.ErrSendInFlight})
		result := model.(*Model)
		if result.input.Value() != "newer draft" {
			t.Errorf("input = %q, want the newer draft kept", result.input.Value())
		}
	})
}

func TestLoginResult(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("invalid credentials show inline notice", func(t *testing.T) {
		m := newTestModel(t, nil, nil)
		m.password.SetValue("wrong")

		model, _ := m.handleLoginResult(loginResultMsg{err: ragsvc.ErrInvalidCredentials})
		result := model.(*Model)
		if result.view != viewLogin {
			t.Error("failed login should stay on login view")
		}
		if result.notice == "" {
			t.Error("expected a notice")
		}
		if result.password.Value() != "" {
			t.Error("password field should be cleared")
		}
	})

	t.Run("success persists credential and enters picker", func(t *testing.T) {
		m := newTestModel(t, nil, nil)

		model, cmd := m.handleLoginResult(loginResultMsg{cred: *userCred()})
		result := model.(*Model)
		if result.view != viewPicker {
			t.Errorf("view = %v, want picker", result.view)
		}
		if cmd == nil {
			t.Error("expected a directory load command")
		}
		if cred, ok := result.deps.Store.Current(); !ok || cred.Role != auth.RoleUser {
			t.Errorf("stored credential = %+v, %v", cred, ok)
		}
	})
}
