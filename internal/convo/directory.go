package convo

import (
	"context"
	"errors"
	"sync"

	"github.com/raglet/raglet/internal/log"
	"github.com/raglet/raglet/internal/ragsvc"
)

// Directory fetches and caches the conversation list for one
// user+mode. List calls are idempotent; overlapping calls resolve in
// completion order and the last one wins.
type Directory struct {
	exchange Exchange
	mode     string
	logger   log.Logger

	mu     sync.Mutex
	cached []ragsvc.Conversation
}

func NewDirectory(exchange Exchange, mode string, logger log.Logger) *Directory {
	return &Directory{exchange: exchange, mode: mode, logger: logger}
}

// Mode reports the mode this directory is scoped to.
func (d *Directory) Mode() string { return d.mode }

// List fetches the server's conversation list and replaces the cache
// with it, preserving server order. On a transient failure the cache
// keeps its previous value and is returned alongside the error, so
// callers can keep rendering a stale list. Unauthorized propagates
// untouched.
func (d *Directory) List(ctx context.Context) ([]ragsvc.Conversation, error) {
	convs, err := d.exchange.Conversations(ctx, d.mode)
	if err != nil {
		var transient *ragsvc.TransientError
		if errors.As(err, &transient) {
			d.logger.Warn("conversation list refresh failed", "mode", d.mode, "error", err)
			return d.Conversations(), err
		}
		return nil, err
	}

	d.mu.Lock()
	d.cached = convs
	d.mu.Unlock()
	return d.Conversations(), nil
}

// Conversations returns a snapshot of the cached list.
func (d *Directory) Conversations() []ragsvc.Conversation {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ragsvc.Conversation, len(d.cached))
	copy(out, d.cached)
	return out
}

// Create asks the server for a new conversation. The cache is left
// untouched; callers refresh via List so the directory reflects server
// truth rather than a client-guessed insertion.
func (d *Directory) Create(ctx context.Context) (ragsvc.Conversation, error) {
	return d.exchange.CreateConversation(ctx, d.mode)
}

// Refresh re-lists in the background sense: transient failures are
// logged and swallowed, anything else is returned to the caller.
func (d *Directory) Refresh(ctx context.Context) error {
	_, err := d.List(ctx)
	var transient *ragsvc.TransientError
	if errors.As(err, &transient) {
		return nil
	}
	return err
}
