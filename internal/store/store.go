// Package store owns the document, zoom, loading and error state of a viewer.
// It is the only mutation path for annotations: every change replaces the
// published *document.Document with a new value, so observers can detect
// changes by pointer identity.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/geom"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/persist"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/typeid"
)

const (
	ZoomStep    = 0.1
	ZoomMin     = 0.25
	ZoomMax     = 4
	DefaultZoom = 1
)

// Source returns document metadata by id.
type Source interface {
	Fetch(ctx context.Context, id string) (*document.Payload, error)
}

// Sink accepts full document snapshots.
type Sink interface {
	Save(ctx context.Context, doc *document.Document) error
}

type Option func(*Store)

// WithSink sets where Save sends snapshots. The default writes JSON to stdout.
func WithSink(sink Sink) Option {
	return func(s *Store) { s.sink = sink }
}

// WithDispatcher routes load completions through dispatch, letting a
// single-owner event loop install new documents on its own goroutine. By
// default completions run on the fetching goroutine.
func WithDispatcher(dispatch func(func())) Option {
	return func(s *Store) { s.dispatch = dispatch }
}

// WithSnapshots restores the annotations of the latest saved snapshot when a
// document loads.
func WithSnapshots(r persist.SnapshotReader) Option {
	return func(s *Store) { s.snapshots = r }
}

// WithIDGenerator replaces the annotation id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

type Store struct {
	source    Source
	sink      Sink
	snapshots persist.SnapshotReader
	dispatch  func(func())
	newID     func() string

	mu         sync.Mutex
	loadSeq    uint64
	cancelLoad context.CancelFunc

	doc     *Signal[*document.Document]
	zoom    *Signal[float64]
	loading *Signal[bool]
	err     *Signal[string]
	target  *Signal[string]

	pages       *Derived[*document.Document, []document.Page]
	annotations *Derived[*document.Document, []document.Annotation]
}

func New(source Source, opts ...Option) *Store {
	s := &Store{
		source:   source,
		sink:     persist.NewLog(os.Stdout),
		dispatch: func(fn func()) { fn() },
		newID:    typeid.NewAnnotationID,
		doc:      NewComparableSignal[*document.Document](nil),
		zoom:     NewComparableSignal[float64](DefaultZoom),
		loading:  NewComparableSignal(false),
		err:      NewComparableSignal(""),
		target:   NewComparableSignal(""),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.pages = Derive[*document.Document](s.doc, func(d *document.Document) []document.Page {
		if d == nil {
			return nil
		}
		return d.Pages
	})
	s.annotations = Derive[*document.Document](s.doc, func(d *document.Document) []document.Annotation {
		if d == nil {
			return nil
		}
		return d.Annotations
	})
	return s
}

// --- Queries ---

func (s *Store) Doc() Readable[*document.Document] { return s.doc.ReadOnly() }
func (s *Store) Zoom() Readable[float64]           { return s.zoom.ReadOnly() }
func (s *Store) Loading() Readable[bool]           { return s.loading.ReadOnly() }

// Err holds the last load failure message, or "" when the last load
// succeeded or is still running.
func (s *Store) Err() Readable[string] { return s.err.ReadOnly() }

// TargetAnnotation names the annotation that should enter edit mode next.
// Empty means no pending request.
func (s *Store) TargetAnnotation() Readable[string] { return s.target.ReadOnly() }

func (s *Store) Pages() Readable[[]document.Page]             { return s.pages }
func (s *Store) Annotations() Readable[[]document.Annotation] { return s.annotations }

// AnnotationsOnPage returns the annotations currently placed on page number.
func (s *Store) AnnotationsOnPage(number int) []document.Annotation {
	return s.doc.Get().AnnotationsOnPage(number)
}

// Annotation returns the current value of annotation id.
func (s *Store) Annotation(id string) (document.Annotation, bool) {
	return s.doc.Get().FindAnnotation(id)
}

// ZoomLabel renders the zoom factor as a rounded percentage, e.g. "120%".
func (s *Store) ZoomLabel() string {
	return fmt.Sprintf("%d%%", int(math.Round(s.zoom.Get()*100)))
}

// --- Loading ---

// Load fetches document id and, unless a later Load has started meanwhile,
// replaces the current document with it. Failures set the error message and
// keep the previous document. Starting a new load cancels the context of the
// one in flight. The returned channel closes once the result was applied or
// discarded.
func (s *Store) Load(ctx context.Context, id string) <-chan struct{} {
	done := make(chan struct{})

	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancelLoad = cancel
	s.mu.Unlock()

	s.loading.Set(true)
	s.err.Set("")
	slog.Debug("loading document", "document", id)

	go func() {
		var restored []document.Annotation
		payload, err := s.source.Fetch(ctx, id)
		if err == nil {
			restored = s.restore(ctx, id)
		}
		s.dispatch(func() {
			defer close(done)
			s.finishLoad(seq, id, payload, restored, err)
		})
	}()

	return done
}

// restore returns the annotations of the latest snapshot of id, or nil when
// there is none. Reader failures are logged and treated as no snapshot.
func (s *Store) restore(ctx context.Context, id string) []document.Annotation {
	if s.snapshots == nil {
		return nil
	}
	snap, err := s.snapshots.Latest(ctx, id)
	if err != nil {
		if !errors.Is(err, persist.ErrNotFound) {
			slog.Warn("read latest snapshot failed", "document", id, "error", err)
		}
		return nil
	}
	if snap.Document == nil {
		return nil
	}
	return snap.Document.Annotations
}

func (s *Store) finishLoad(seq uint64, id string, payload *document.Payload, restored []document.Annotation, err error) {
	s.mu.Lock()
	if seq != s.loadSeq {
		s.mu.Unlock()
		slog.Debug("discarding superseded load", "document", id)
		return
	}
	s.cancelLoad()
	s.cancelLoad = nil
	s.mu.Unlock()

	if err == nil {
		err = payload.Validate()
	}
	if err != nil {
		slog.Warn("load document failed", "document", id, "error", err)
		msg := err.Error()
		if msg == "" {
			msg = "failed to load document " + id
		}
		s.err.Update(func(cur string) (string, bool) { return msg, s.current(seq) })
		s.loading.Update(func(bool) (bool, bool) { return false, s.current(seq) })
		return
	}

	doc := document.FromPayload(id, payload)
	if len(restored) > 0 {
		doc.Annotations = restored
	}
	// Another Load may start once the lock above is released.
	installed := false
	s.doc.Update(func(cur *document.Document) (*document.Document, bool) {
		installed = s.current(seq)
		return doc, installed
	})
	if !installed {
		slog.Debug("discarding superseded load", "document", id)
		return
	}
	s.loading.Update(func(bool) (bool, bool) { return false, s.current(seq) })
	slog.Debug("document loaded", "document", id, "pages", len(payload.Pages), "annotations", len(doc.Annotations))
}

// current reports whether the load numbered seq is the latest one.
func (s *Store) current(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq == s.loadSeq
}

// --- Zoom ---

// SetZoom stores v clamped to [ZoomMin, ZoomMax]. NaN is ignored.
func (s *Store) SetZoom(v float64) {
	if math.IsNaN(v) {
		return
	}
	s.zoom.Set(geom.Clamp(v, ZoomMin, ZoomMax))
}

// ZoomBy adds delta to the current zoom and clamps the result.
func (s *Store) ZoomBy(delta float64) {
	if math.IsNaN(delta) {
		return
	}
	s.zoom.Update(func(z float64) (float64, bool) {
		return geom.Clamp(z+delta, ZoomMin, ZoomMax), true
	})
}

func (s *Store) ZoomIn()    { s.ZoomBy(ZoomStep) }
func (s *Store) ZoomOut()   { s.ZoomBy(-ZoomStep) }
func (s *Store) ResetZoom() { s.SetZoom(DefaultZoom) }

// --- Annotations ---

// AddAnnotation appends a new annotation with a fresh id and returns the id.
// It reports false and does nothing when no document is loaded. An empty
// DocumentID is filled in from the current document.
func (s *Store) AddAnnotation(f document.AnnotationFields) (string, bool) {
	var id string
	s.doc.Update(func(doc *document.Document) (*document.Document, bool) {
		if doc == nil {
			return doc, false
		}
		if f.DocumentID == "" {
			f.DocumentID = doc.ID
		}
		id = s.newID()

		anns := make([]document.Annotation, len(doc.Annotations), len(doc.Annotations)+1)
		copy(anns, doc.Annotations)
		anns = append(anns, document.NewAnnotation(id, f))

		next := *doc
		next.Annotations = anns
		return &next, true
	})
	return id, id != ""
}

// UpdateAnnotation merges patch over annotation id. Geometry is stored as
// given; callers clamp before calling. Unknown ids are ignored.
func (s *Store) UpdateAnnotation(id string, patch document.AnnotationPatch) {
	s.doc.Update(func(doc *document.Document) (*document.Document, bool) {
		if doc == nil {
			return doc, false
		}
		idx := indexOf(doc.Annotations, id)
		if idx < 0 {
			return doc, false
		}

		anns := make([]document.Annotation, len(doc.Annotations))
		copy(anns, doc.Annotations)
		anns[idx] = patch.Apply(anns[idx])

		next := *doc
		next.Annotations = anns
		return &next, true
	})
}

// DeleteAnnotation removes annotation id if present.
func (s *Store) DeleteAnnotation(id string) {
	s.doc.Update(func(doc *document.Document) (*document.Document, bool) {
		if doc == nil {
			return doc, false
		}
		idx := indexOf(doc.Annotations, id)
		if idx < 0 {
			return doc, false
		}

		anns := make([]document.Annotation, 0, len(doc.Annotations)-1)
		anns = append(anns, doc.Annotations[:idx]...)
		anns = append(anns, doc.Annotations[idx+1:]...)

		next := *doc
		next.Annotations = anns
		return &next, true
	})
}

func indexOf(anns []document.Annotation, id string) int {
	for i, a := range anns {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// --- Edit targeting ---

// SetTargetAnnotation asks the item showing annotation id to enter edit mode.
// A pending request for another annotation is replaced.
func (s *Store) SetTargetAnnotation(id string) { s.target.Set(id) }

func (s *Store) ClearTargetAnnotation() { s.target.Set("") }

// ConsumeTargetAnnotation clears the pending edit request and reports true
// if it named id. Requests for other annotations are left in place.
func (s *Store) ConsumeTargetAnnotation(id string) bool {
	consumed := false
	s.target.Update(func(cur string) (string, bool) {
		if cur == "" || cur != id {
			return cur, false
		}
		consumed = true
		return "", true
	})
	return consumed
}

// --- Persistence ---

// Save sends the current document to the sink. Without a loaded document it
// does nothing.
func (s *Store) Save(ctx context.Context) error {
	doc := s.doc.Get()
	if doc == nil {
		slog.Debug("save skipped, no document loaded")
		return nil
	}
	if err := s.sink.Save(ctx, doc); err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	return nil
}
