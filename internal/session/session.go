// Package session runs viewer engines for WebSocket clients. Each connection
// gets its own engine, driven by a single event loop goroutine that also
// applies load completions and answers hub requests.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/engine"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/typeid"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 64 * 1024
)

var ErrClosed = errors.New("session closed")

type Session struct {
	ID         string
	UserID     string
	DocumentID string

	hub    *Hub
	conn   *websocket.Conn
	engine *engine.Engine

	send  chan []byte
	inbox chan *Message
	calls chan func()
	done  chan struct{}
	seq   int64
}

func NewSession(hub *Hub, conn *websocket.Conn, eng *engine.Engine, userID, documentID string) *Session {
	if documentID == "" {
		documentID = engine.DefaultDocumentID
	}
	return &Session{
		ID:         typeid.NewSessionID(),
		UserID:     userID,
		DocumentID: documentID,
		hub:        hub,
		conn:       conn,
		engine:     eng,
		send:       make(chan []byte, 256),
		inbox:      make(chan *Message, 64),
		calls:      make(chan func()),
		done:       make(chan struct{}),
	}
}

// Serve runs the session until the client disconnects or ctx ends.
func (s *Session) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.hub.Register(s)
	defer s.hub.Unregister(s)

	go s.WritePump(ctx)
	go s.ReadPump(ctx)
	s.Run(ctx)
}

func (s *Session) ReadPump(ctx context.Context) {
	defer close(s.inbox)

	s.conn.SetReadLimit(maxMsgSize)

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				slog.Debug("read error", "error", err, "session", s.ID)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid message", "error", err, "session", s.ID)
			continue
		}
		msg.SessionID = s.ID

		select {
		case s.inbox <- &msg:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-s.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := s.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				slog.Debug("write error", "error", err, "session", s.ID)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := s.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// Run is the event loop. It owns the engine: every engine call happens here.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	defer s.engine.Close()

	s.Send(TypeWelcome, WelcomePayload{SessionID: s.ID, UserID: s.UserID, DocumentID: s.DocumentID})
	s.engine.Open(ctx, s.DocumentID)
	s.publish()

	for {
		select {
		case msg, ok := <-s.inbox:
			if !ok {
				return
			}
			s.handle(ctx, msg)
			s.publish()

		case fn := <-s.engine.Pending():
			fn()
			s.publish()

		case fn := <-s.calls:
			fn()

		case <-ctx.Done():
			return
		}
	}
}

// Save saves the session's document from outside the event loop.
func (s *Session) Save(ctx context.Context) error {
	errCh := make(chan error, 1)
	call := func() { errCh <- s.engine.Save(ctx) }

	select {
	case s.calls <- call:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the event loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) handle(ctx context.Context, msg *Message) {
	if err := Apply(ctx, s.engine, msg); err != nil {
		slog.Warn("handle message", "type", msg.Type, "error", err, "session", s.ID)
		s.Send(TypeError, ErrorPayload{Message: err.Error()})
		return
	}
	switch msg.Type {
	case TypeOpen:
		s.DocumentID = s.engine.DocumentID()
	case TypeSave:
		s.Send(TypeSaved, s.engine.State())
	}
}

func (s *Session) publish() {
	s.Send(TypeRender, RenderPayload{Commands: s.engine.Commands()})
	s.Send(TypeState, s.engine.State())
}

// Send queues a message for the client. It drops the message when the
// client is not keeping up.
func (s *Session) Send(typ string, payload any) {
	msg, err := newMessage(typ, payload)
	if err != nil {
		slog.Error("marshal message", "error", err)
		return
	}
	s.seq++
	msg.Seq = s.seq
	msg.SessionID = s.ID

	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "error", err)
		return
	}

	select {
	case s.send <- data:
	default:
		slog.Warn("session send buffer full, dropping message", "session", s.ID)
	}
}
