// Package convo holds the conversation orchestration layer: the
// directory of a user's conversations and the active session's
// transcript state machine. It owns ordering and lifecycle rules;
// rendering and transport live elsewhere.
package convo

import (
	"context"

	"github.com/raglet/raglet/internal/ragsvc"
)

// Message roles as they appear in a transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one immutable transcript entry.
type Message struct {
	Role    string
	Content string
	Sources []string
}

// Exchange is the remote operations a session needs. *ragsvc.Client
// satisfies it.
type Exchange interface {
	Conversations(ctx context.Context, mode string) ([]ragsvc.Conversation, error)
	CreateConversation(ctx context.Context, mode string) (ragsvc.Conversation, error)
	History(ctx context.Context, id int64) ([]ragsvc.HistoryEntry, error)
	Send(ctx context.Context, id int64, text string) (ragsvc.Reply, error)
}

func fromHistory(entries []ragsvc.HistoryEntry) []Message {
	msgs := make([]Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, Message{Role: e.Role, Content: e.Content, Sources: []string{}})
	}
	return msgs
}
