package interact

import (
	"log/slog"
	"unicode/utf8"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/geom"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/store"
)

// AnnotationStore is the part of the document store an Item works against.
type AnnotationStore interface {
	Annotation(id string) (document.Annotation, bool)
	UpdateAnnotation(id string, patch document.AnnotationPatch)
	DeleteAnnotation(id string)
	TargetAnnotation() store.Readable[string]
	ConsumeTargetAnnotation(id string) bool
}

type ItemState int

const (
	ItemIdle ItemState = iota
	ItemDraggingMove
	ItemDraggingResize
	ItemEditing
)

func (s ItemState) String() string {
	switch s {
	case ItemIdle:
		return "idle"
	case ItemDraggingMove:
		return "dragging-move"
	case ItemDraggingResize:
		return "dragging-resize"
	case ItemEditing:
		return "editing"
	default:
		return "unknown"
	}
}

// Item is the interaction controller of one rendered annotation.
type Item struct {
	id       string
	store    AnnotationStore
	layer    Box
	capturer Capturer
	sched    Scheduler
	editor   Editor

	state   ItemState
	capture Capture

	// Move re-baselines last after every sample; resize measures from origin
	// against the size the annotation had when the gesture started.
	last   geom.Point
	origin geom.Point
	baseW  float64
	baseH  float64

	hoverBox      bool
	hoverControls bool

	unsubscribe func()
	closed      bool
}

// NewItem creates the controller for annotation id and starts watching the
// store's edit target. If the target already names id the item enters edit
// mode immediately.
func NewItem(st AnnotationStore, id string, layer Box, capturer Capturer, sched Scheduler, editor Editor) *Item {
	it := &Item{
		id:       id,
		store:    st,
		layer:    layer,
		capturer: capturer,
		sched:    sched,
		editor:   editor,
	}
	it.unsubscribe = st.TargetAnnotation().Subscribe(it.onTarget)
	it.onTarget(st.TargetAnnotation().Get())
	return it
}

func (it *Item) ID() string       { return it.id }
func (it *Item) State() ItemState { return it.state }
func (it *Item) Editing() bool    { return it.state == ItemEditing }

func (it *Item) dragging() bool {
	return it.state == ItemDraggingMove || it.state == ItemDraggingResize
}

// Close stops watching the store and drops any held capture. The item must
// not be used afterwards.
func (it *Item) Close() {
	if it.closed {
		return
	}
	it.closed = true
	it.capture.Release()
	if it.unsubscribe != nil {
		it.unsubscribe()
	}
}

func (it *Item) onTarget(target string) {
	if it.closed || target != it.id || it.dragging() {
		return
	}
	if it.store.ConsumeTargetAnnotation(it.id) {
		it.EnableEdit()
	}
}

// --- Gestures ---

// DragStart begins moving the annotation on a primary press over its body.
func (it *Item) DragStart(ev PointerEvent) bool {
	if !it.canStartGesture(ev) {
		return false
	}
	it.capture = acquire(it.capturer, ev.PointerID)
	it.last = ev.Point()
	it.state = ItemDraggingMove
	return true
}

// ResizeStart begins resizing on a primary press over the resize handle.
func (it *Item) ResizeStart(ev PointerEvent) bool {
	if !it.canStartGesture(ev) {
		return false
	}
	a, _ := it.store.Annotation(it.id)
	it.capture = acquire(it.capturer, ev.PointerID)
	it.origin = ev.Point()
	it.baseW, it.baseH = a.W, a.H
	it.state = ItemDraggingResize
	return true
}

func (it *Item) canStartGesture(ev PointerEvent) bool {
	if it.closed || it.state != ItemIdle || !ev.IsPrimaryPress() {
		return false
	}
	_, ok := it.store.Annotation(it.id)
	return ok
}

// PointerMove applies a move or resize step for the captured pointer.
// Events for other pointers, or without a gesture, are ignored.
func (it *Item) PointerMove(ev PointerEvent) {
	if !it.dragging() || !it.capture.Owns(ev.PointerID) || !ev.PrimaryHeld() {
		return
	}

	a, ok := it.store.Annotation(it.id)
	if !ok {
		it.endGesture()
		return
	}

	box := it.layer.Bounds()
	if box.IsEmpty() {
		return
	}

	switch it.state {
	case ItemDraggingMove:
		dx, dy := geom.NormalizeDelta(ev.X-it.last.X, ev.Y-it.last.Y, box)
		x, y := geom.Move(a.X, a.Y, a.W, a.H, dx, dy)
		it.store.UpdateAnnotation(it.id, document.Position(x, y))
		it.last = ev.Point()

	case ItemDraggingResize:
		dx, dy := geom.NormalizeDelta(ev.X-it.origin.X, ev.Y-it.origin.Y, box)
		w, h := geom.Resize(a.X, a.Y, it.baseW, it.baseH, dx, dy)
		it.store.UpdateAnnotation(it.id, document.Size(w, h))
	}
}

// PointerUp ends the gesture of the captured pointer.
func (it *Item) PointerUp(ev PointerEvent) { it.finish(ev) }

// PointerCancel ends the gesture of the captured pointer without a final step.
func (it *Item) PointerCancel(ev PointerEvent) { it.finish(ev) }

// LostPointerCapture ends the gesture when capture was taken away.
func (it *Item) LostPointerCapture(ev PointerEvent) { it.finish(ev) }

func (it *Item) finish(ev PointerEvent) {
	if !it.dragging() || !it.capture.Owns(ev.PointerID) {
		return
	}
	it.endGesture()
}

func (it *Item) endGesture() {
	it.capture.Release()
	it.state = ItemIdle
	it.last = geom.Point{}
	it.origin = geom.Point{}
	it.baseW, it.baseH = 0, 0

	// An edit request that arrived mid-gesture is picked up now.
	it.onTarget(it.store.TargetAnnotation().Get())
}

// --- Editing ---

// EnableEdit switches to edit mode and, once rendered, loads the current text
// into the editor and focuses it with the cursor at the end.
func (it *Item) EnableEdit() bool {
	if it.closed || it.dragging() {
		return false
	}
	it.state = ItemEditing

	it.sched.AfterRender(func() {
		if it.closed || it.state != ItemEditing || it.editor == nil {
			return
		}
		a, ok := it.store.Annotation(it.id)
		if !ok {
			return
		}
		it.editor.SetValue(a.Text)
		it.editor.Focus(utf8.RuneCountInString(a.Text))
	})
	return true
}

// CommitEdit stores text and leaves edit mode.
func (it *Item) CommitEdit(text string) {
	if it.state != ItemEditing {
		return
	}
	it.store.UpdateAnnotation(it.id, document.Text(text))
	it.state = ItemIdle
}

// CancelEdit leaves edit mode without storing anything.
func (it *Item) CancelEdit() {
	if it.state == ItemEditing {
		it.state = ItemIdle
	}
}

// Delete removes the annotation from the store. It is refused while a drag
// or resize is running.
func (it *Item) Delete() bool {
	if it.closed || it.dragging() {
		return false
	}
	slog.Debug("deleting annotation", "annotation", it.id)
	it.store.DeleteAnnotation(it.id)
	return true
}

// --- Hover ---

func (it *Item) BoxEnter()      { it.hoverBox = true }
func (it *Item) BoxLeave()      { it.hoverBox = false }
func (it *Item) ControlsEnter() { it.hoverControls = true }
func (it *Item) ControlsLeave() { it.hoverControls = false }

// ShowControls reports whether the auxiliary controls should be visible.
func (it *Item) ShowControls() bool { return it.hoverBox || it.hoverControls }

// DocumentPointerDown observes every press in the document; presses outside
// this item hide its controls.
func (it *Item) DocumentPointerDown(inside bool) {
	if !inside {
		it.hoverBox = false
		it.hoverControls = false
	}
}
