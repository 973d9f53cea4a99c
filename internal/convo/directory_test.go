package convo

import (
	"context"
	"errors"
	"testing"

	"github.com/raglet/raglet/internal/log"
	"github.com/raglet/raglet/internal/ragsvc"
)

func TestDirectoryList(t *testing.T) {
	t.Run("preserves server order", func(t *testing.T) {
		exchange := &fakeExchange{
			listFn: func(mode string) ([]ragsvc.Conversation, error) {
				if mode != "dual" {
					t.Errorf("mode = %q, want dual", mode)
				}
				return []ragsvc.Conversation{{ID: 7, Mode: "dual"}, {ID: 3, Mode: "dual"}}, nil
			},
		}
		dir := NewDirectory(exchange, "dual", log.NewNop())

		convs, err := dir.List(context.Background())
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(convs) != 2 || convs[0].ID != 7 || convs[1].ID != 3 {
			t.Errorf("convs = %+v, want server order [7 3]", convs)
		}
	})

	t.Run("transient failure keeps stale list", func(t *testing.T) {
		calls := 0
		exchange := &fakeExchange{
			listFn: func(string) ([]ragsvc.Conversation, error) {
				calls++
				if calls == 1 {
					return []ragsvc.Conversation{{ID: 1}}, nil
				}
				return nil, &ragsvc.TransientError{Err: errors.New("connection refused")}
			},
		}
		dir := NewDirectory(exchange, "public", log.NewNop())

		if _, err := dir.List(context.Background()); err != nil {
			t.Fatalf("first List() error = %v", err)
		}
		convs, err := dir.List(context.Background())
		if err == nil {
			t.Fatal("second List() error = nil, want transient failure")
		}
		if len(convs) != 1 || convs[0].ID != 1 {
			t.Errorf("convs = %+v, want the previous value kept", convs)
		}
		if cached := dir.Conversations(); len(cached) != 1 {
			t.Errorf("cached = %+v, want stale list preserved", cached)
		}
	})

	t.Run("unauthorized propagates and clears nothing", func(t *testing.T) {
		exchange := &fakeExchange{
			listFn: func(string) ([]ragsvc.Conversation, error) {
				return nil, ragsvc.ErrUnauthorized
			},
		}
		dir := NewDirectory(exchange, "public", log.NewNop())

		if _, err := dir.List(context.Background()); !errors.Is(err, ragsvc.ErrUnauthorized) {
			t.Errorf("List() error = %v, want ErrUnauthorized", err)
		}
	})
}

func TestDirectoryCreateLeavesCacheUntouched(t *testing.T) {
	exchange := &fakeExchange{
		createFn: func(mode string) (ragsvc.Conversation, error) {
			return ragsvc.Conversation{ID: 9, Mode: mode}, nil
		},
	}
	dir := NewDirectory(exchange, "public", log.NewNop())

	conv, err := dir.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if conv.ID != 9 {
		t.Errorf("conv.ID = %d, want 9", conv.ID)
	}
	if cached := dir.Conversations(); len(cached) != 0 {
		t.Errorf("cached = %+v, want untouched until the caller refreshes", cached)
	}
}

func TestDirectoryRefreshSwallowsTransient(t *testing.T) {
	exchange := &fakeExchange{
		listFn: func(string) ([]ragsvc.Conversation, error) {
			return nil, &ragsvc.TransientError{Err: errors.New("timeout")}
		},
	}
	dir := NewDirectory(exchange, "public", log.NewNop())

	if err := dir.Refresh(context.Background()); err != nil {
		t.Errorf("Refresh() error = %v, want transient swallowed", err)
	}

	exchange.mu.Lock()
	exchange.listFn = func(string) ([]ragsvc.Conversation, error) {
		return nil, ragsvc.ErrUnauthorized
	}
	exchange.mu.Unlock()

	if err := dir.Refresh(context.Background()); !errors.Is(err, ragsvc.ErrUnauthorized) {
		t.Errorf("Refresh() error = %v, want ErrUnauthorized surfaced", err)
	}
}
