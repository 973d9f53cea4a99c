package devserver

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/raglet/raglet/internal/auth"
)

// Account is a demo login the dev server accepts.
type Account struct {
	Password string
	Role     auth.Role
	UserID   string
}

// DefaultAccounts returns one demo account per role. Passwords are
// intentionally trivial; this server exists to exercise the client
// locally, never to face a network.
func DefaultAccounts() map[string]Account {
	return map[string]Account{
		"admin": {Password: "admin", Role: auth.RoleAdmin, UserID: "1"},
		"user":  {Password: "user", Role: auth.RoleUser, UserID: "2"},
		"ruser": {Password: "ruser", Role: auth.RoleRestricted, UserID: "3"},
	}
}

// message is one stored transcript entry.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// conversation is one stored thread with its transcript.
type conversation struct {
	ID        int64     `json:"id"`
	Mode      string    `json:"mode"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	owner   string
	history []message
}

// store holds all conversations in memory, keyed by id. Everything is
// lost on restart, which is the point of a dev server.
type store struct {
	mu     sync.Mutex
	nextID int64
	convs  map[int64]*conversation
	now    func() time.Time
}

func newStore(now func() time.Time) *store {
	if now == nil {
		now = time.Now
	}
	return &store{nextID: 1, convs: make(map[int64]*conversation), now: now}
}

// list returns the owner's conversations in one mode, most recently
// updated first.
func (s *store) list(owner, mode string) []conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]conversation, 0)
	for _, c := range s.convs {
		if c.owner == owner && c.Mode == mode {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// create adds an empty conversation for the owner in the given mode.
func (s *store) create(owner, mode string) conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c := &conversation{
		ID:        s.nextID,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
		owner:     owner,
	}
	s.nextID++
	s.convs[c.ID] = c
	return *c
}

// get returns the conversation if the owner matches.
func (s *store) get(owner string, id int64) (conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok || c.owner != owner {
		return conversation{}, false
	}
	snapshot := *c
	snapshot.history = make([]message, len(c.history))
	copy(snapshot.history, c.history)
	return snapshot, true
}

// appendExchange records a user message and its reply, titling the
// conversation from the first message the way the real service does.
func (s *store) appendExchange(owner string, id int64, userText, answer string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok || c.owner != owner {
		return false
	}
	if c.Title == "" {
		c.Title = titleFrom(userText)
	}
	c.history = append(c.history,
		message{Role: "user", Content: userText},
		message{Role: "assistant", Content: answer},
	)
	c.UpdatedAt = s.now()
	return true
}

// titleFrom derives a short display title from the first message.
func titleFrom(text string) string {
	const maxTitle = 48
	title := strings.Join(strings.Fields(text), " ")
	if len(title) > maxTitle {
		title = strings.TrimSpace(title[:maxTitle]) + "…"
	}
	return title
}

// answerer produces canned replies with citation lists so the client
// can be exercised without a retrieval backend.
type answerer struct{}

// respond returns a deterministic answer and source list for the
// question. Dual mode consults the "secure" document set as well.
func (answerer) respond(question, mode string) (string, []string) {
	sources := []string{"HR-Handbook.pdf"}
	if mode == "dual" {
		sources = append(sources, "Internal-Policies.pdf")
	}

	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "leave") || strings.Contains(q, "vacation"):
		return "Employees accrue twenty days of paid leave per year, " +
			"requested through the HR portal at least two weeks in advance.", sources
	case strings.Contains(q, "expense"):
		return "Expenses are reimbursed within thirty days when submitted " +
			"with itemized receipts through the finance portal.", sources
	case strings.Contains(q, "hello") || strings.Contains(q, "hi"):
		return "Hello. Ask me anything covered by the document set and " +
			"I will answer with citations.", []string{}
	default:
		return fmt.Sprintf("Based on the available documents, here is what I found "+
			"about %q:\n\n- The relevant policy is described in the cited sources.\n"+
			"- Ask a follow-up question to narrow the answer down.", question), sources
	}
}
