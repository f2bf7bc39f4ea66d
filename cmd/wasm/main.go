//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/engine"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/interact"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/source"
)

var eng *engine.Engine

func main() {
	// The playground has no backend; the sample document is served from memory.
	src := source.Static{
		engine.DefaultDocumentID: document.NewSamplePayload(engine.DefaultDocumentID, 3),
	}
	eng = engine.New(src)

	viewer := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	viewer.Set("open", js.FuncOf(open))
	viewer.Set("pointerDown", js.FuncOf(pointer(eng.PointerDown)))
	viewer.Set("pointerMove", js.FuncOf(pointer(eng.PointerMove)))
	viewer.Set("pointerUp", js.FuncOf(pointer(eng.PointerUp)))
	viewer.Set("pointerCancel", js.FuncOf(pointer(eng.PointerCancel)))
	viewer.Set("lostPointerCapture", js.FuncOf(pointer(eng.LostPointerCapture)))
	viewer.Set("editAnnotation", js.FuncOf(editAnnotation))
	viewer.Set("setEditorValue", js.FuncOf(setEditorValue))
	viewer.Set("commitEdit", js.FuncOf(commitEdit))
	viewer.Set("cancelEdit", js.FuncOf(cancelEdit))
	viewer.Set("deleteAnnotation", js.FuncOf(deleteAnnotation))
	viewer.Set("zoomIn", js.FuncOf(zoomIn))
	viewer.Set("zoomOut", js.FuncOf(zoomOut))
	viewer.Set("resetZoom", js.FuncOf(resetZoom))
	viewer.Set("setZoom", js.FuncOf(setZoom))
	viewer.Set("save", js.FuncOf(save))
	viewer.Set("tick", js.FuncOf(tick))

	// --- Queries (frontend ← engine) ---
	viewer.Set("render", js.FuncOf(render))
	viewer.Set("hitTest", js.FuncOf(hitTest))
	viewer.Set("getState", js.FuncOf(getState))

	js.Global().Set("annotationViewer", viewer)
	js.Global().Set("annotationViewerReady", js.ValueOf(true))

	select {}
}

// --- Command Handlers ---

// open(documentId)
func open(this js.Value, args []js.Value) interface{} {
	id := engine.DefaultDocumentID
	if len(args) > 0 && args[0].Type() == js.TypeString {
		id = args[0].String()
	}
	eng.Open(context.Background(), id)
	return nil
}

// pointer wraps an engine input method taking a DOM PointerEvent-like object.
func pointer(fn func(interact.PointerEvent)) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if len(args) < 1 {
			return nil
		}
		eng.Drain()
		fn(pointerEvent(args[0]))
		return nil
	}
}

func pointerEvent(v js.Value) interact.PointerEvent {
	ev := interact.PointerEvent{
		PointerID:   intField(v, "pointerId"),
		PointerType: interact.PointerType(stringField(v, "pointerType", string(interact.PointerMouse))),
		Button:      intField(v, "button"),
		Buttons:     intField(v, "buttons"),
		X:           floatField(v, "clientX"),
		Y:           floatField(v, "clientY"),
	}
	return ev
}

func intField(v js.Value, name string) int {
	f := v.Get(name)
	if f.Type() != js.TypeNumber {
		return 0
	}
	return f.Int()
}

func floatField(v js.Value, name string) float64 {
	f := v.Get(name)
	if f.Type() != js.TypeNumber {
		return 0
	}
	return f.Float()
}

func stringField(v js.Value, name, fallback string) string {
	f := v.Get(name)
	if f.Type() != js.TypeString {
		return fallback
	}
	return f.String()
}

// editAnnotation(annotationId)
func editAnnotation(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.EditAnnotation(args[0].String())
	return nil
}

// setEditorValue(text)
func setEditorValue(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.SetEditorValue(args[0].String())
	return nil
}

func commitEdit(this js.Value, args []js.Value) interface{} {
	eng.CommitEdit()
	return nil
}

func cancelEdit(this js.Value, args []js.Value) interface{} {
	eng.CancelEdit()
	return nil
}

// deleteAnnotation(annotationId) -> bool
func deleteAnnotation(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return false
	}
	return eng.DeleteAnnotation(args[0].String())
}

func zoomIn(this js.Value, args []js.Value) interface{} {
	eng.ZoomIn()
	return nil
}

func zoomOut(this js.Value, args []js.Value) interface{} {
	eng.ZoomOut()
	return nil
}

func resetZoom(this js.Value, args []js.Value) interface{} {
	eng.ResetZoom()
	return nil
}

// setZoom(value)
func setZoom(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.SetZoom(args[0].Float())
	return nil
}

// save() -> error message or null. The playground sink prints to the console.
func save(this js.Value, args []js.Value) interface{} {
	if err := eng.Save(context.Background()); err != nil {
		return err.Error()
	}
	return nil
}

// tick() -> draw commands JSON. Called once per animation frame; applies
// finished loads before rendering.
func tick(this js.Value, args []js.Value) interface{} {
	eng.Drain()
	return eng.Render()
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return eng.Render()
}

// hitTest(x, y) -> hit JSON
func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return "{}"
	}
	data, _ := json.Marshal(eng.HitTest(args[0].Float(), args[1].Float()))
	return string(data)
}

func getState(this js.Value, args []js.Value) interface{} {
	eng.Drain()
	data, _ := json.Marshal(eng.State())
	return string(data)
}
