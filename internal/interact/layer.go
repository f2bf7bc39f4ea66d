package interact

import (
	"log/slog"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/geom"
)

// LayerStore is the part of the document store a Layer works against.
type LayerStore interface {
	AddAnnotation(f document.AnnotationFields) (string, bool)
	SetTargetAnnotation(id string)
}

type LayerState int

const (
	LayerIdle LayerState = iota
	LayerDrawing
)

func (s LayerState) String() string {
	if s == LayerDrawing {
		return "drawing"
	}
	return "idle"
}

// Layer is the interaction controller of one page: a drag over empty page
// area draws a new annotation.
type Layer struct {
	store      LayerStore
	pageNumber int
	box        Box
	capturer   Capturer

	state   LayerState
	capture Capture
	start   geom.Point // normalized
	cur     geom.Point // normalized
}

func NewLayer(st LayerStore, pageNumber int, box Box, capturer Capturer) *Layer {
	return &Layer{
		store:      st,
		pageNumber: pageNumber,
		box:        box,
		capturer:   capturer,
	}
}

func (l *Layer) PageNumber() int   { return l.pageNumber }
func (l *Layer) State() LayerState { return l.state }

// Draft returns the in-progress rectangle in normalized page coordinates.
func (l *Layer) Draft() (geom.Rect, bool) {
	if l.state != LayerDrawing {
		return geom.Rect{}, false
	}
	return geom.RectFromCorners(l.start, l.cur), true
}

// PointerDown starts drawing. Callers only forward presses that did not land
// on an existing annotation.
func (l *Layer) PointerDown(ev PointerEvent) bool {
	if l.state == LayerDrawing || !ev.IsPrimaryPress() {
		return false
	}
	p, ok := l.normalize(ev)
	if !ok {
		return false
	}

	l.start, l.cur = p, p
	l.capture = acquire(l.capturer, ev.PointerID)
	l.state = LayerDrawing
	return true
}

func (l *Layer) PointerMove(ev PointerEvent) {
	if l.state != LayerDrawing || !l.capture.Owns(ev.PointerID) {
		return
	}
	if p, ok := l.normalize(ev); ok {
		l.cur = p
	}
}

// PointerUp finishes drawing. Unless the drag was smaller than MinDragSize
// on both axes, it creates the annotation, asks for it to be edited and
// returns its id.
func (l *Layer) PointerUp(ev PointerEvent) (string, bool) {
	if l.state != LayerDrawing || !l.capture.Owns(ev.PointerID) {
		return "", false
	}
	if p, ok := l.normalize(ev); ok {
		l.cur = p
	}
	rect := geom.RectFromCorners(l.start, l.cur)
	l.reset()

	if rect.W < geom.MinDragSize && rect.H < geom.MinDragSize {
		slog.Debug("draw gesture too small, ignoring", "page", l.pageNumber)
		return "", false
	}

	rect = geom.FitRect(rect)
	id, ok := l.store.AddAnnotation(document.AnnotationFields{
		PageNumber: l.pageNumber,
		X:          rect.X,
		Y:          rect.Y,
		W:          rect.W,
		H:          rect.H,
		Text:       "",
	})
	if !ok {
		return "", false
	}
	l.store.SetTargetAnnotation(id)
	return id, true
}

// PointerCancel abandons the drawing.
func (l *Layer) PointerCancel(ev PointerEvent) {
	if l.state == LayerDrawing && l.capture.Owns(ev.PointerID) {
		l.reset()
	}
}

// LostPointerCapture abandons the drawing.
func (l *Layer) LostPointerCapture(ev PointerEvent) { l.PointerCancel(ev) }

func (l *Layer) reset() {
	l.capture.Release()
	l.state = LayerIdle
	l.start, l.cur = geom.Point{}, geom.Point{}
}

func (l *Layer) normalize(ev PointerEvent) (geom.Point, bool) {
	box := l.box.Bounds()
	if box.IsEmpty() {
		return geom.Point{}, false
	}
	return geom.ClampPoint(geom.Normalize(ev.Point(), box)), true
}
