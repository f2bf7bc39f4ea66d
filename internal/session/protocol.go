package session

import (
	"encoding/json"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/engine"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/interact"
)

type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	// Client to server
	TypeOpen    = "open"
	TypePointer = "pointer"
	TypeZoom    = "zoom"
	TypeEdit    = "edit"
	TypeDelete  = "delete"
	TypeSave    = "save"

	// Server to client
	TypeWelcome = "welcome"
	TypeRender  = "render"
	TypeState   = "state"
	TypeSaved   = "saved"
	TypeError   = "error"
)

type OpenPayload struct {
	DocumentID string `json:"documentId"`
}

const (
	PhaseDown   = "down"
	PhaseMove   = "move"
	PhaseUp     = "up"
	PhaseCancel = "cancel"
	PhaseLost   = "lost"
)

type PointerPayload struct {
	Phase string `json:"phase"`
	interact.PointerEvent
}

const (
	ZoomIn    = "in"
	ZoomOut   = "out"
	ZoomReset = "reset"
	ZoomSet   = "set"
)

type ZoomPayload struct {
	Action string  `json:"action"`
	Value  float64 `json:"value,omitempty"`
}

const (
	EditBegin  = "begin"
	EditInput  = "input"
	EditCommit = "commit"
	EditCancel = "cancel"
)

type EditPayload struct {
	Action       string `json:"action"`
	AnnotationID string `json:"annotationId,omitempty"`
	Value        string `json:"value,omitempty"`
}

type DeletePayload struct {
	AnnotationID string `json:"annotationId"`
}

type WelcomePayload struct {
	SessionID  string `json:"sessionId"`
	UserID     string `json:"userId"`
	DocumentID string `json:"documentId"`
}

type RenderPayload struct {
	Commands []engine.DrawCommand `json:"commands"`
}

type StatePayload = engine.ViewState

type ErrorPayload struct {
	Message string `json:"message"`
}

func newMessage(typ string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: typ, Payload: data}, nil
}
