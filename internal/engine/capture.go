package engine

import "github.com/arkonsolutions/clearway-test-ann-viewer/internal/interact"

// targetKey names an input target: a page layer when annotation is empty,
// otherwise an annotation item.
type targetKey struct {
	page       int
	annotation string
}

type lostCapture struct {
	pointerID int
	key       targetKey
}

// elementCapture is the Capturer handed to one controller. All of them share
// the engine's routing table, so capturing a pointer that another target
// holds takes it away from that target.
type elementCapture struct {
	e   *Engine
	key targetKey
}

func (c elementCapture) SetPointerCapture(pointerID int) {
	if prev, ok := c.e.captures[pointerID]; ok && prev != c.key {
		c.e.lost = append(c.e.lost, lostCapture{pointerID: pointerID, key: prev})
	}
	c.e.captures[pointerID] = c.key
}

func (c elementCapture) ReleasePointerCapture(pointerID int) {
	if c.e.captures[pointerID] == c.key {
		delete(c.e.captures, pointerID)
	}
}

func (c elementCapture) HasPointerCapture(pointerID int) bool {
	key, ok := c.e.captures[pointerID]
	return ok && key == c.key
}

func (e *Engine) capturerFor(key targetKey) interact.Capturer {
	return elementCapture{e: e, key: key}
}

// deliverLost notifies targets whose capture was taken over.
func (e *Engine) deliverLost() {
	for len(e.lost) > 0 {
		lc := e.lost[0]
		e.lost = e.lost[1:]
		ev := interact.PointerEvent{PointerID: lc.pointerID}
		if lc.key.annotation != "" {
			if it, ok := e.items[lc.key.annotation]; ok {
				it.LostPointerCapture(ev)
			}
		} else if l, ok := e.layers[lc.key.page]; ok {
			l.LostPointerCapture(ev)
		}
	}
}

// dropCaptures forgets every capture held by key.
func (e *Engine) dropCaptures(key targetKey) {
	for id, k := range e.captures {
		if k == key {
			delete(e.captures, id)
		}
	}
}
