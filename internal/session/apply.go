package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/engine"
)

// Apply performs one client message against eng. It must run on the
// engine's goroutine.
func Apply(ctx context.Context, eng *engine.Engine, msg *Message) error {
	switch msg.Type {
	case TypeOpen:
		var p OpenPayload
		if err := decode(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode open: %w", err)
		}
		eng.Open(ctx, p.DocumentID)

	case TypePointer:
		var p PointerPayload
		if err := decode(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode pointer: %w", err)
		}
		return applyPointer(eng, p)

	case TypeZoom:
		var p ZoomPayload
		if err := decode(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode zoom: %w", err)
		}
		return applyZoom(eng, p)

	case TypeEdit:
		var p EditPayload
		if err := decode(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode edit: %w", err)
		}
		return applyEdit(eng, p)

	case TypeDelete:
		var p DeletePayload
		if err := decode(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode delete: %w", err)
		}
		eng.DeleteAnnotation(p.AnnotationID)

	case TypeSave:
		return eng.Save(ctx)

	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func applyPointer(eng *engine.Engine, p PointerPayload) error {
	switch p.Phase {
	case PhaseDown:
		eng.PointerDown(p.PointerEvent)
	case PhaseMove:
		eng.PointerMove(p.PointerEvent)
	case PhaseUp:
		eng.PointerUp(p.PointerEvent)
	case PhaseCancel:
		eng.PointerCancel(p.PointerEvent)
	case PhaseLost:
		eng.LostPointerCapture(p.PointerEvent)
	default:
		return fmt.Errorf("unknown pointer phase %q", p.Phase)
	}
	return nil
}

func applyZoom(eng *engine.Engine, p ZoomPayload) error {
	switch p.Action {
	case ZoomIn:
		eng.ZoomIn()
	case ZoomOut:
		eng.ZoomOut()
	case ZoomReset:
		eng.ResetZoom()
	case ZoomSet:
		eng.SetZoom(p.Value)
	default:
		return fmt.Errorf("unknown zoom action %q", p.Action)
	}
	return nil
}

func applyEdit(eng *engine.Engine, p EditPayload) error {
	switch p.Action {
	case EditBegin:
		eng.EditAnnotation(p.AnnotationID)
	case EditInput:
		eng.SetEditorValue(p.Value)
	case EditCommit:
		eng.CommitEdit()
	case EditCancel:
		eng.CancelEdit()
	default:
		return fmt.Errorf("unknown edit action %q", p.Action)
	}
	return nil
}
