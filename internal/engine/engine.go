// Package engine is the headless viewer: it owns one document store, creates
// a layer controller per page and an item controller per annotation, routes
// raw pointer input to them by hit testing and compiles the result into draw
// commands for a front end.
//
// An Engine is not safe for concurrent use. All calls, including the
// functions received from Pending, must come from one goroutine.
package engine

import (
	"context"
	"log/slog"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/geom"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/interact"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/store"
)

// DefaultDocumentID is opened when a client does not name a document.
const DefaultDocumentID = document.SampleDocumentID

type Option func(*config)

type config struct {
	layout    Layout
	storeOpts []store.Option
	queueSize int
}

// WithLayout sets page size and gap. Invalid layouts are ignored.
func WithLayout(l Layout) Option {
	return func(c *config) {
		if l.valid() {
			c.layout = l
		}
	}
}

// WithStoreOptions passes options through to the document store.
func WithStoreOptions(opts ...store.Option) Option {
	return func(c *config) { c.storeOpts = append(c.storeOpts, opts...) }
}

type Engine struct {
	store  *store.Store
	layout Layout
	docID  string // last id passed to Open
	shown  string // id of the document the controllers were built for

	layers map[int]*interact.Layer
	items  map[string]*interact.Item
	editor editor

	captures    map[int]targetKey
	lost        []lostCapture
	afterRender []func()

	pending     chan func()
	unsubscribe []func()
}

func New(src store.Source, opts ...Option) *Engine {
	cfg := &config{layout: DefaultLayout(), queueSize: 64}
	for _, opt := range opts {
		opt(cfg)
	}

	e := &Engine{
		layout:   cfg.layout,
		layers:   make(map[int]*interact.Layer),
		items:    make(map[string]*interact.Item),
		captures: make(map[int]targetKey),
		pending:  make(chan func(), cfg.queueSize),
	}
	storeOpts := append(cfg.storeOpts, store.WithDispatcher(e.Dispatch))
	e.store = store.New(src, storeOpts...)
	e.unsubscribe = append(e.unsubscribe, e.store.Doc().Subscribe(e.reconcile))
	return e
}

func (e *Engine) Store() *store.Store { return e.store }

// DocumentID is the id most recently passed to Open.
func (e *Engine) DocumentID() string { return e.docID }

// Close detaches every controller from the store.
func (e *Engine) Close() {
	for _, unsub := range e.unsubscribe {
		unsub()
	}
	e.unsubscribe = nil
	e.closeControllers()
}

// --- Event queue ---

// Dispatch queues fn to run on the engine's goroutine. It may be called from
// any goroutine.
func (e *Engine) Dispatch(fn func()) {
	e.pending <- fn
}

// Pending delivers queued functions. The owner runs each one it receives.
func (e *Engine) Pending() <-chan func() {
	return e.pending
}

// Drain runs every queued function without blocking and returns how many ran.
func (e *Engine) Drain() int {
	n := 0
	for {
		select {
		case fn := <-e.pending:
			fn()
			n++
		default:
			return n
		}
	}
}

// AfterRender queues fn to run once the next frame has been compiled.
func (e *Engine) AfterRender(fn func()) {
	e.afterRender = append(e.afterRender, fn)
}

// --- Documents ---

// Open loads document id. Empty ids and the id already open are ignored and
// return a closed channel. The returned channel closes after the load result
// has been applied, which happens on the engine goroutine.
func (e *Engine) Open(ctx context.Context, id string) <-chan struct{} {
	if id == "" || id == e.docID {
		done := make(chan struct{})
		close(done)
		return done
	}
	e.docID = id
	slog.Debug("opening document", "document", id)
	return e.store.Load(ctx, id)
}

// Save sends the current document to the store's sink.
func (e *Engine) Save(ctx context.Context) error {
	return e.store.Save(ctx)
}

// reconcile keeps one layer per page and one item per annotation.
func (e *Engine) reconcile(doc *document.Document) {
	if doc == nil || doc.ID != e.shown {
		e.closeControllers()
	}
	if doc == nil {
		e.shown = ""
		return
	}
	e.shown = doc.ID

	pages := make(map[int]bool, len(doc.Pages))
	for _, p := range doc.Pages {
		pages[p.Number] = true
		if _, ok := e.layers[p.Number]; !ok {
			key := targetKey{page: p.Number}
			e.layers[p.Number] = interact.NewLayer(e.store, p.Number, e.pageBox(p.Number), e.capturerFor(key))
		}
	}
	for n := range e.layers {
		if !pages[n] {
			e.dropCaptures(targetKey{page: n})
			delete(e.layers, n)
		}
	}

	live := make(map[string]bool, len(doc.Annotations))
	for _, a := range doc.Annotations {
		live[a.ID] = true
		if _, ok := e.items[a.ID]; !ok {
			key := targetKey{page: a.PageNumber, annotation: a.ID}
			e.items[a.ID] = interact.NewItem(e.store, a.ID, e.pageBox(a.PageNumber), e.capturerFor(key), e, e.editorFor(a.ID))
		}
	}
	for id, it := range e.items {
		if !live[id] {
			e.removeItem(id, it)
		}
	}
}

func (e *Engine) removeItem(id string, it *interact.Item) {
	it.Close()
	for pid, k := range e.captures {
		if k.annotation == id {
			delete(e.captures, pid)
		}
	}
	e.editor.release(id)
	delete(e.items, id)
}

func (e *Engine) closeControllers() {
	for id, it := range e.items {
		e.removeItem(id, it)
	}
	clear(e.layers)
	clear(e.captures)
	e.lost = nil
	e.editor.reset()
}

func (e *Engine) pageBox(number int) interact.Box {
	return interact.BoxFunc(func() geom.Rect {
		r, _ := e.pageRect(number)
		return r
	})
}

func (e *Engine) pageRect(number int) (geom.Rect, bool) {
	doc := e.store.Doc().Get()
	if doc == nil {
		return geom.Rect{}, false
	}
	for _, pb := range e.layout.Pages(doc.Pages, e.store.Zoom().Get()) {
		if pb.Number == number {
			return pb.Bounds, true
		}
	}
	return geom.Rect{}, false
}

// --- Pointer input ---

// PointerDown routes a press to the element under it: the resize handle or
// delete control of an annotation, the annotation body, or the empty page.
// A press anywhere outside the annotation being edited commits the edit.
func (e *Engine) PointerDown(ev interact.PointerEvent) {
	defer e.deliverLost()

	hit := e.HitTest(ev.X, ev.Y)
	for id, it := range e.items {
		it.DocumentPointerDown(hit.AnnotationID == id)
	}
	if it := e.editingItem(); it != nil && it.ID() != hit.AnnotationID {
		e.commit(it)
	}

	switch hit.Kind {
	case HitHandle:
		if it, ok := e.items[hit.AnnotationID]; ok && !it.Editing() {
			it.ResizeStart(ev)
		}
	case HitDelete:
		if it, ok := e.items[hit.AnnotationID]; ok && ev.IsPrimaryPress() {
			it.Delete()
		}
	case HitAnnotation:
		if it, ok := e.items[hit.AnnotationID]; ok && !it.Editing() {
			it.DragStart(ev)
		}
	case HitPage:
		if l, ok := e.layers[hit.PageNumber]; ok {
			l.PointerDown(ev)
		}
	}
}

// PointerMove goes to the capturing element, or updates hover state when no
// element holds the pointer.
func (e *Engine) PointerMove(ev interact.PointerEvent) {
	defer e.deliverLost()

	key, ok := e.captures[ev.PointerID]
	if !ok {
		e.hover(ev)
		return
	}
	if key.annotation != "" {
		if it, ok := e.items[key.annotation]; ok {
			it.PointerMove(ev)
		}
		return
	}
	if l, ok := e.layers[key.page]; ok {
		l.PointerMove(ev)
	}
}

func (e *Engine) PointerUp(ev interact.PointerEvent) {
	defer e.deliverLost()

	key, ok := e.captures[ev.PointerID]
	if !ok {
		return
	}
	if key.annotation != "" {
		if it, ok := e.items[key.annotation]; ok {
			it.PointerUp(ev)
		}
		return
	}
	if l, ok := e.layers[key.page]; ok {
		if id, created := l.PointerUp(ev); created {
			slog.Debug("annotation drawn", "annotation", id, "page", key.page)
		}
	}
}

func (e *Engine) PointerCancel(ev interact.PointerEvent) {
	defer e.deliverLost()

	key, ok := e.captures[ev.PointerID]
	if !ok {
		return
	}
	if key.annotation != "" {
		if it, ok := e.items[key.annotation]; ok {
			it.PointerCancel(ev)
		}
		return
	}
	if l, ok := e.layers[key.page]; ok {
		l.PointerCancel(ev)
	}
}

// LostPointerCapture reports that the platform took the pointer away from
// whichever element held it.
func (e *Engine) LostPointerCapture(ev interact.PointerEvent) {
	key, ok := e.captures[ev.PointerID]
	if !ok {
		return
	}
	delete(e.captures, ev.PointerID)
	e.lost = append(e.lost, lostCapture{pointerID: ev.PointerID, key: key})
	e.deliverLost()
}

func (e *Engine) hover(ev interact.PointerEvent) {
	hit := e.HitTest(ev.X, ev.Y)
	for id, it := range e.items {
		if hit.AnnotationID != id {
			it.BoxLeave()
			it.ControlsLeave()
			continue
		}
		switch hit.Kind {
		case HitDelete:
			it.ControlsEnter()
		default:
			it.BoxEnter()
			it.ControlsLeave()
		}
	}
}

// --- Editing ---

// EditAnnotation asks the item of annotation id to enter edit mode.
func (e *Engine) EditAnnotation(id string) {
	if _, ok := e.items[id]; !ok {
		return
	}
	if cur := e.editingItem(); cur != nil && cur.ID() != id {
		e.commit(cur)
	}
	e.store.SetTargetAnnotation(id)
}

// SetEditorValue mirrors the text field while an annotation is being edited.
func (e *Engine) SetEditorValue(text string) {
	if it := e.editingItem(); it != nil {
		e.editorFor(it.ID()).SetValue(text)
	}
}

func (e *Engine) CommitEdit() {
	if it := e.editingItem(); it != nil {
		e.commit(it)
	}
}

func (e *Engine) CancelEdit() {
	if it := e.editingItem(); it != nil {
		it.CancelEdit()
		e.editor.release(it.ID())
	}
}

func (e *Engine) commit(it *interact.Item) {
	it.CommitEdit(e.editorFor(it.ID()).Value())
	e.editor.release(it.ID())
}

func (e *Engine) editingItem() *interact.Item {
	for _, it := range e.items {
		if it.Editing() {
			return it
		}
	}
	return nil
}

// DeleteAnnotation removes annotation id through its item.
func (e *Engine) DeleteAnnotation(id string) bool {
	it, ok := e.items[id]
	if !ok {
		return false
	}
	return it.Delete()
}

// --- Zoom ---

func (e *Engine) ZoomIn()           { e.store.ZoomIn() }
func (e *Engine) ZoomOut()          { e.store.ZoomOut() }
func (e *Engine) ResetZoom()        { e.store.ResetZoom() }
func (e *Engine) SetZoom(z float64) { e.store.SetZoom(z) }

// --- Queries ---

// Commands compiles the current frame and then runs the after-render
// queue. If the queue ran, the frame is compiled again so it reflects the
// work done there.
func (e *Engine) Commands() []DrawCommand {
	commands := CompileDrawCommands(e.buildScene())
	if len(e.afterRender) == 0 {
		return commands
	}
	for len(e.afterRender) > 0 {
		fn := e.afterRender[0]
		e.afterRender = e.afterRender[1:]
		fn()
	}
	return CompileDrawCommands(e.buildScene())
}

// Render returns the current frame as JSON draw commands.
func (e *Engine) Render() string {
	result, err := DrawCommandsToJSON(e.Commands())
	if err != nil {
		slog.Error("encode draw commands", "error", err)
	}
	return result
}

// HitTest returns the element under screen point (x, y).
func (e *Engine) HitTest(x, y float64) Hit {
	return HitTest(e.buildScene(), geom.Point{X: x, Y: y})
}

// ViewState is the non-geometric state a front end shows around the pages.
type ViewState struct {
	DocumentID  string  `json:"documentId"`
	Title       string  `json:"title"`
	Loading     bool    `json:"loading"`
	Error       string  `json:"error,omitempty"`
	Zoom        float64 `json:"zoom"`
	ZoomLabel   string  `json:"zoomLabel"`
	Pages       int     `json:"pages"`
	Annotations int     `json:"annotations"`
	Editing     string  `json:"editing,omitempty"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
}

func (e *Engine) State() ViewState {
	s := ViewState{
		Loading:   e.store.Loading().Get(),
		Error:     e.store.Err().Get(),
		Zoom:      e.store.Zoom().Get(),
		ZoomLabel: e.store.ZoomLabel(),
	}
	if doc := e.store.Doc().Get(); doc != nil {
		s.DocumentID = doc.ID
		s.Title = doc.Title
		s.Pages = len(doc.Pages)
		s.Annotations = len(doc.Annotations)
		s.Width, s.Height = e.layout.ContentSize(len(doc.Pages), s.Zoom)
	}
	if it := e.editingItem(); it != nil {
		s.Editing = it.ID()
	}
	return s
}
