package session

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/engine"
)

// TokenValidator turns a bearer token into a user id.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Handler upgrades /ws/documents/{documentId} requests and serves one
// session per connection.
type Handler struct {
	hub            *Hub
	newEngine      func() *engine.Engine
	tokens         TokenValidator
	tokenFrom      func(*http.Request) string
	originPatterns []string
}

// NewHandler builds the WebSocket handler. With a nil validator every
// connection is accepted under an anonymous user id.
func NewHandler(hub *Hub, newEngine func() *engine.Engine, tokens TokenValidator, tokenFrom func(*http.Request) string, originPatterns []string) *Handler {
	return &Handler{
		hub:            hub,
		newEngine:      newEngine,
		tokens:         tokens,
		tokenFrom:      tokenFrom,
		originPatterns: originPatterns,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentId"]

	var userID string
	if h.tokens == nil {
		userID = "anon-" + uuid.New().String()[:8]
	} else {
		token := h.tokenFrom(r)
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		var err error
		userID, err = h.tokens.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	s := NewSession(h.hub, conn, h.newEngine(), userID, documentID)
	s.Serve(r.Context())
}
