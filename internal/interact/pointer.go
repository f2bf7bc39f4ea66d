// Package interact implements the gesture state machines that turn raw
// pointer input into store mutations: Item moves, resizes, edits and deletes
// one annotation, Layer draws new annotations on one page.
package interact

import (
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/geom"
)

type PointerType string

const (
	PointerMouse PointerType = "mouse"
	PointerTouch PointerType = "touch"
	PointerPen   PointerType = "pen"
)

// PointerEvent is one pointer sample in screen pixels.
type PointerEvent struct {
	PointerID   int         `json:"pointerId"`
	PointerType PointerType `json:"pointerType"`
	Button      int         `json:"button"`  // button that changed state; 0 = primary
	Buttons     int         `json:"buttons"` // bitmask of held buttons; 1 = primary
	X           float64     `json:"clientX"`
	Y           float64     `json:"clientY"`
}

// IsPrimaryPress reports whether a press event came from the primary mouse
// button or from a touch/pen contact.
func (e PointerEvent) IsPrimaryPress() bool {
	return e.PointerType != PointerMouse || e.Button == 0
}

// PrimaryHeld reports whether the primary button is still down during a move.
// Touch and pen moves only arrive while in contact.
func (e PointerEvent) PrimaryHeld() bool {
	return e.PointerType != PointerMouse || e.Buttons&1 != 0
}

func (e PointerEvent) Point() geom.Point {
	return geom.Point{X: e.X, Y: e.Y}
}

// Capturer is an element that can take exclusive routing of a pointer.
type Capturer interface {
	SetPointerCapture(pointerID int)
	ReleasePointerCapture(pointerID int)
	HasPointerCapture(pointerID int) bool
}

// Capture is the token for one held pointer capture. The zero value holds
// nothing.
type Capture struct {
	target    Capturer
	pointerID int
	held      bool
}

func acquire(target Capturer, pointerID int) Capture {
	target.SetPointerCapture(pointerID)
	return Capture{target: target, pointerID: pointerID, held: true}
}

func (c *Capture) Held() bool { return c.held }

// Owns reports whether this token holds pointerID.
func (c *Capture) Owns(pointerID int) bool {
	return c.held && c.pointerID == pointerID
}

// Release gives the pointer back if the element still has it and resets the
// token. Safe to call more than once.
func (c *Capture) Release() {
	if !c.held {
		return
	}
	if c.target.HasPointerCapture(c.pointerID) {
		c.target.ReleasePointerCapture(c.pointerID)
	}
	*c = Capture{}
}

// Box reports the on-screen pixel rectangle of a page layer.
type Box interface {
	Bounds() geom.Rect
}

type BoxFunc func() geom.Rect

func (f BoxFunc) Bounds() geom.Rect { return f() }

// Scheduler runs continuations after the current update has been rendered.
type Scheduler interface {
	AfterRender(fn func())
}

type SchedulerFunc func(fn func())

func (f SchedulerFunc) AfterRender(fn func()) { f(fn) }

// Editor is the text field an item edits its annotation through.
type Editor interface {
	SetValue(text string)
	Value() string
	// Focus focuses the field and places the cursor at rune offset cursor.
	Focus(cursor int)
}
