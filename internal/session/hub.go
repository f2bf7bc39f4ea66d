package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Hub tracks live sessions so they can be saved on shutdown.
type Hub struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	register   chan *Session
	unregister chan *Session
	stopped    chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]*Session),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		stopped:    make(chan struct{}),
	}
}

// Run processes registrations until ctx ends.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.stopped)
	for {
		select {
		case s := <-h.register:
			h.mu.Lock()
			h.sessions[s.ID] = s
			h.mu.Unlock()
			slog.Info("session opened", "session", s.ID, "user", s.UserID, "document", s.DocumentID)

		case s := <-h.unregister:
			h.mu.Lock()
			delete(h.sessions, s.ID)
			h.mu.Unlock()
			slog.Info("session closed", "session", s.ID, "user", s.UserID)

		case <-ctx.Done():
			return nil
		}
	}
}

func (h *Hub) Register(s *Session) {
	select {
	case h.register <- s:
	case <-h.stopped:
	}
}

func (h *Hub) Unregister(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.stopped:
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) Sessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// SaveAll saves the document of every live session. Sessions that close
// while saving are skipped.
func (h *Hub) SaveAll(ctx context.Context) error {
	var errs []error
	for _, s := range h.Sessions() {
		err := s.Save(ctx)
		switch {
		case err == nil:
			slog.Info("session saved", "session", s.ID)
		case errors.Is(err, ErrClosed):
		default:
			errs = append(errs, fmt.Errorf("save session %s: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}
