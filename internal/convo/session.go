package convo

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/raglet/raglet/internal/log"
	"github.com/raglet/raglet/internal/ragsvc"
)

// State of the active conversation session.
type State int

const (
	// StateEmpty means no conversation is active.
	StateEmpty State = iota
	// StateResuming means a history load is in flight.
	StateResuming
	// StateReady means the transcript is loaded and idle.
	StateReady
	// StateSending means a send is in flight.
	StateSending
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateResuming:
		return "resuming"
	case StateReady:
		return "ready"
	case StateSending:
		return "sending"
	default:
		return "unknown"
	}
}

var (
	// ErrBlankMessage rejects whitespace-only input before any
	// network call.
	ErrBlankMessage = errors.New("message is blank")
	// ErrSendInFlight rejects a second send while one is pending.
	ErrSendInFlight = errors.New("a send is already in flight")
	// ErrSessionClosed rejects operations after teardown.
	ErrSessionClosed = errors.New("session is closed")
)

// Session is the active conversation's transcript and its state
// machine. One instance per open chat view; Close discards any
// in-flight result that arrives after teardown.
//
// Methods that reach the network release the internal lock for the
// duration of the call, so observers stay responsive while a send or
// history load is pending. A generation counter ties each in-flight
// operation to the session shape it started against; results arriving
// after Close or a competing Select are dropped.
type Session struct {
	exchange  Exchange
	directory *Directory
	logger    log.Logger

	mu         sync.Mutex
	state      State
	activeID   int64
	transcript []Message
	gen        uint64
	closed     bool
}

func NewSession(exchange Exchange, directory *Directory, logger log.Logger) *Session {
	return &Session{
		exchange:  exchange,
		directory: directory,
		logger:    logger,
		state:     StateEmpty,
	}
}

// State reports the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active returns the active conversation id, if any.
func (s *Session) Active() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID, s.activeID != 0
}

// Transcript returns a snapshot of the transcript in append order.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Select makes the given conversation active and loads its history.
// On success the transcript is replaced wholesale; on failure it is
// cleared and the session still lands in Ready, never stuck in
// Resuming. Unauthorized propagates so the caller can redirect to
// login.
func (s *Session) Select(ctx context.Context, id int64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.activeID = id
	s.state = StateResuming
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	entries, err := s.exchange.History(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen != gen {
		return nil
	}
	s.state = StateReady
	if err != nil {
		s.transcript = nil
		if errors.Is(err, ragsvc.ErrUnauthorized) {
			return err
		}
		s.logger.Warn("history load failed", "conversation", id, "error", err)
		return err
	}
	s.transcript = fromHistory(entries)
	return nil
}

// StartNew creates a fresh conversation, makes it active with an empty
// transcript, and refreshes the directory. No history load is issued;
// a fresh conversation has none.
func (s *Session) StartNew(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	conv, err := s.directory.Create(ctx)
	if err != nil {
		// The gen bump told any superseded operation to drop its
		// result, so a failed create must settle the machine itself.
		s.mu.Lock()
		if !s.closed && s.gen == gen {
			if s.activeID != 0 {
				s.state = StateReady
			} else {
				s.state = StateEmpty
			}
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	s.activeID = conv.ID
	s.transcript = nil
	s.state = StateReady
	s.mu.Unlock()

	if err := s.directory.Refresh(ctx); err != nil {
		return err
	}
	return nil
}

// Reset returns the session to Empty with no active conversation.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.gen++
	s.activeID = 0
	s.transcript = nil
	s.state = StateEmpty
}

// Send appends the user's message optimistically, creates a
// conversation if none is active, and sends the text. On success the
// assistant reply and its sources are appended and the directory is
// refreshed. On failure a synthetic assistant message describing the
// error is appended so the exchange is never silently unanswered;
// only Unauthorized is returned to the caller instead, since the
// guard handles it by navigation.
func (s *Session) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrBlankMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state == StateSending {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	s.transcript = append(s.transcript, Message{Role: RoleUser, Content: trimmed, Sources: []string{}})
	s.state = StateSending
	s.gen++
	gen := s.gen
	id := s.activeID
	s.mu.Unlock()

	if id == 0 {
		conv, err := s.directory.Create(ctx)
		if err != nil {
			return s.finishSend(gen, ragsvc.Reply{}, err)
		}
		id = conv.ID
		s.mu.Lock()
		if s.closed || s.gen != gen {
			s.mu.Unlock()
			return nil
		}
		s.activeID = id
		s.mu.Unlock()
	}

	reply, err := s.exchange.Send(ctx, id, trimmed)
	if err := s.finishSend(gen, reply, err); err != nil {
		return err
	}
	if err == nil {
		if rerr := s.directory.Refresh(ctx); rerr != nil && !errors.Is(rerr, ragsvc.ErrUnauthorized) {
			s.logger.Warn("directory refresh after send failed", "error", rerr)
		}
	}
	return nil
}

// finishSend records a send outcome, unless the result is stale.
func (s *Session) finishSend(gen uint64, reply ragsvc.Reply, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen != gen {
		return nil
	}
	s.state = StateReady
	if err != nil {
		if errors.Is(err, ragsvc.ErrUnauthorized) {
			return err
		}
		s.transcript = append(s.transcript, Message{
			Role:    RoleAssistant,
			Content: ragsvc.Describe(err),
			Sources: []string{},
		})
		return nil
	}
	s.transcript = append(s.transcript, Message{
		Role:    RoleAssistant,
		Content: reply.Answer,
		Sources: reply.Sources,
	})
	return nil
}

// Close tears the session down. A send or history load still in
// flight completes in the background and its result is discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.gen++
	s.transcript = nil
	s.activeID = 0
	s.state = StateEmpty
}
