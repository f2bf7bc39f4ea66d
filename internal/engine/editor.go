package engine

import "github.com/arkonsolutions/clearway-test-ann-viewer/internal/interact"

// editor is the single text field of the viewer. At most one annotation is
// edited at a time; the field belongs to whichever item last wrote to it.
type editor struct {
	owner   string
	value   string
	focused bool
	cursor  int
}

func (ed *editor) state(annotation string) *EditorState {
	if ed.owner != annotation {
		return &EditorState{}
	}
	return &EditorState{Value: ed.value, Focused: ed.focused, Cursor: ed.cursor}
}

func (ed *editor) reset() { *ed = editor{} }

func (ed *editor) release(annotation string) {
	if ed.owner == annotation {
		ed.reset()
	}
}

// editorHandle is the view of the field given to one item.
type editorHandle struct {
	ed         *editor
	annotation string
}

func (h editorHandle) SetValue(text string) {
	if h.ed.owner != h.annotation {
		h.ed.reset()
		h.ed.owner = h.annotation
	}
	h.ed.value = text
}

func (h editorHandle) Value() string {
	if h.ed.owner != h.annotation {
		return ""
	}
	return h.ed.value
}

func (h editorHandle) Focus(cursor int) {
	if h.ed.owner != h.annotation {
		h.ed.reset()
		h.ed.owner = h.annotation
	}
	h.ed.focused = true
	h.ed.cursor = min(max(cursor, 0), len([]rune(h.ed.value)))
}

func (e *Engine) editorFor(annotation string) interact.Editor {
	return editorHandle{ed: &e.editor, annotation: annotation}
}
