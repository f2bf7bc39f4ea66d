package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/geom"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/persist"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/source"
)

type recordingSink struct {
	saved []*document.Document
	err   error
}

func (r *recordingSink) Save(ctx context.Context, doc *document.Document) error {
	r.saved = append(r.saved, doc)
	return r.err
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("ann_%d", n)
	}
}

func newLoadedStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	src := source.Static{"1": {Name: "Doc", Pages: []document.PagePayload{{Number: 1, ImageURL: "/p1.png"}}}}
	opts = append([]Option{WithIDGenerator(sequentialIDs()), WithSink(&recordingSink{})}, opts...)
	s := New(src, opts...)
	waitLoad(t, s.Load(context.Background(), "1"))
	require.NotNil(t, s.Doc().Get())
	return s
}

func waitLoad(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("load did not finish")
	}
}

func TestStore_InitialState(t *testing.T) {
	s := New(source.Static{})

	assert.Nil(t, s.Doc().Get())
	assert.Equal(t, 1.0, s.Zoom().Get())
	assert.False(t, s.Loading().Get())
	assert.Empty(t, s.Err().Get())
	assert.Empty(t, s.Pages().Get())
	assert.Empty(t, s.Annotations().Get())
	assert.Equal(t, "100%", s.ZoomLabel())
}

func TestStore_Load(t *testing.T) {
	s := newLoadedStore(t)

	doc := s.Doc().Get()
	want := &document.Document{
		ID:          "1",
		Title:       "Doc",
		Pages:       []document.Page{{Number: 1, ImageURL: "/p1.png"}},
		Annotations: []document.Annotation{},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("loaded document mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, s.Loading().Get())
	assert.Empty(t, s.Err().Get())
	assert.Len(t, s.Pages().Get(), 1)
}

func TestStore_LoadFailureKeepsPreviousDocument(t *testing.T) {
	s := newLoadedStore(t)
	before := s.Doc().Get()

	waitLoad(t, s.Load(context.Background(), "missing-doc"))

	assert.NotEmpty(t, s.Err().Get())
	assert.False(t, s.Loading().Get())
	assert.Same(t, before, s.Doc().Get())
}

func TestStore_LoadSetsLoadingWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	src := source.Func(func(ctx context.Context, id string) (*document.Payload, error) {
		<-release
		return &document.Payload{Name: id}, nil
	})
	s := New(src)

	done := s.Load(context.Background(), "1")
	assert.True(t, s.Loading().Get())

	close(release)
	waitLoad(t, done)
	assert.False(t, s.Loading().Get())
	assert.Equal(t, "1", s.Doc().Get().Title)
}

func TestStore_LaterLoadWins(t *testing.T) {
	slowRelease := make(chan struct{})
	src := source.Func(func(ctx context.Context, id string) (*document.Payload, error) {
		if id == "slow" {
			select {
			case <-slowRelease:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &document.Payload{Name: id}, nil
	})
	s := New(src)

	slow := s.Load(context.Background(), "slow")
	fast := s.Load(context.Background(), "fast")

	waitLoad(t, fast)
	waitLoad(t, slow)
	close(slowRelease)

	assert.Equal(t, "fast", s.Doc().Get().ID)
	assert.Empty(t, s.Err().Get(), "superseded load must not surface its cancellation")
	assert.False(t, s.Loading().Get())
}

func TestStore_LoadThroughDispatcher(t *testing.T) {
	queue := make(chan func(), 1)
	s := New(source.Static{"1": {Name: "Doc"}}, WithDispatcher(func(fn func()) { queue <- fn }))

	done := s.Load(context.Background(), "1")
	fn := <-queue
	assert.Nil(t, s.Doc().Get(), "document must not be installed before the dispatcher runs")

	fn()
	waitLoad(t, done)
	assert.Equal(t, "Doc", s.Doc().Get().Title)
}

func TestStore_Zoom(t *testing.T) {
	s := New(source.Static{})

	s.ZoomIn()
	s.ZoomIn()
	s.ZoomIn()
	s.ZoomOut()
	assert.InDelta(t, 1.2, s.Zoom().Get(), 1e-9)
	assert.Equal(t, "120%", s.ZoomLabel())

	s.ResetZoom()
	for i := 0; i < 9; i++ {
		s.ZoomOut()
	}
	assert.Equal(t, ZoomMin, s.Zoom().Get())

	s.SetZoom(100)
	assert.Equal(t, float64(ZoomMax), s.Zoom().Get())

	s.ResetZoom()
	assert.Equal(t, 1.0, s.Zoom().Get())
}

func TestStore_SetZoomIdempotent(t *testing.T) {
	for _, v := range []float64{-5, 0, 0.25, 0.7, 1, 3.99, 4, 17} {
		s := New(source.Static{})
		s.SetZoom(v)
		once := s.Zoom().Get()
		s.SetZoom(once)
		assert.Equal(t, once, s.Zoom().Get(), "v=%v", v)
		assert.GreaterOrEqual(t, once, ZoomMin)
		assert.LessOrEqual(t, once, float64(ZoomMax))
	}
}

func TestStore_SetZoomIgnoresNaN(t *testing.T) {
	s := New(source.Static{})
	s.SetZoom(2)
	s.SetZoom(nan())
	assert.Equal(t, 2.0, s.Zoom().Get())
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}

func TestStore_AddAnnotationWithoutDocument(t *testing.T) {
	s := New(source.Static{})

	id, ok := s.AddAnnotation(document.AnnotationFields{PageNumber: 1, W: 0.1, H: 0.1})
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.Nil(t, s.Doc().Get())
}

func TestStore_AddAnnotation(t *testing.T) {
	s := newLoadedStore(t)
	before := s.Doc().Get()

	id, ok := s.AddAnnotation(document.AnnotationFields{PageNumber: 1, X: 0.1, Y: 0.2, W: 0.3, H: 0.4})
	require.True(t, ok)
	assert.Equal(t, "ann_1", id)

	after := s.Doc().Get()
	assert.NotSame(t, before, after, "document must be replaced, not mutated")
	assert.Empty(t, before.Annotations)

	a, found := s.Annotation(id)
	require.True(t, found)
	assert.Equal(t, "1", a.DocumentID)
	assert.Equal(t, 0.3, a.W)
}

func TestStore_AddThenDeleteRestoresAnnotations(t *testing.T) {
	s := newLoadedStore(t)
	s.AddAnnotation(document.AnnotationFields{PageNumber: 1, W: 0.1, H: 0.1, Text: "keep"})
	before := s.Annotations().Get()

	id, ok := s.AddAnnotation(document.AnnotationFields{PageNumber: 1, W: 0.2, H: 0.2})
	require.True(t, ok)
	s.DeleteAnnotation(id)

	assert.Equal(t, before, s.Annotations().Get())
}

func TestStore_UpdateAnnotationMergesPatch(t *testing.T) {
	s := newLoadedStore(t)
	id, _ := s.AddAnnotation(document.AnnotationFields{PageNumber: 1, X: 0.1, Y: 0.1, W: 0.2, H: 0.2, Text: "note"})

	s.UpdateAnnotation(id, document.Position(0.5, 0.6))

	a, _ := s.Annotation(id)
	assert.Equal(t, 0.5, a.X)
	assert.Equal(t, 0.6, a.Y)
	assert.Equal(t, 0.2, a.W)
	assert.Equal(t, "note", a.Text)
}

func TestStore_MissingTargetsAreNoOps(t *testing.T) {
	s := newLoadedStore(t)
	s.AddAnnotation(document.AnnotationFields{PageNumber: 1, W: 0.1, H: 0.1})
	before := s.Doc().Get()

	notified := 0
	s.Doc().Subscribe(func(*document.Document) { notified++ })

	s.UpdateAnnotation("nope", document.Text("x"))
	s.DeleteAnnotation("nope")

	assert.Same(t, before, s.Doc().Get())
	assert.Zero(t, notified)

	empty := New(source.Static{})
	empty.UpdateAnnotation("x", document.Text("x"))
	empty.DeleteAnnotation("x")
	assert.Nil(t, empty.Doc().Get())
}

func TestStore_DragSequencesStayInBounds(t *testing.T) {
	s := newLoadedStore(t)
	id, _ := s.AddAnnotation(document.AnnotationFields{PageNumber: 1, X: 0.4, Y: 0.4, W: 0.25, H: 0.1})
	r := rand.New(rand.NewSource(3))

	for i := 0; i < 300; i++ {
		a, _ := s.Annotation(id)
		x, y := geom.Move(a.X, a.Y, a.W, a.H, r.Float64()*0.8-0.4, r.Float64()*0.8-0.4)
		s.UpdateAnnotation(id, document.Position(x, y))

		a, _ = s.Annotation(id)
		assert.GreaterOrEqual(t, a.X, 0.0)
		assert.GreaterOrEqual(t, a.Y, 0.0)
		assert.LessOrEqual(t, a.X+a.W, 1.0+1e-12)
		assert.LessOrEqual(t, a.Y+a.H, 1.0+1e-12)
	}
}

func TestStore_DerivedViewsFollowDocument(t *testing.T) {
	s := newLoadedStore(t)

	var seen [][]document.Annotation
	s.Annotations().Subscribe(func(a []document.Annotation) { seen = append(seen, a) })

	id, _ := s.AddAnnotation(document.AnnotationFields{PageNumber: 1, W: 0.1, H: 0.1})
	s.AddAnnotation(document.AnnotationFields{PageNumber: 2, W: 0.1, H: 0.1})

	require.Len(t, seen, 2)
	assert.Len(t, seen[1], 2)
	onFirst := s.AnnotationsOnPage(1)
	require.Len(t, onFirst, 1)
	assert.Equal(t, id, onFirst[0].ID)
}

func TestStore_TargetAnnotationMailbox(t *testing.T) {
	s := New(source.Static{})

	s.SetTargetAnnotation("a")
	assert.Equal(t, "a", s.TargetAnnotation().Get())

	assert.False(t, s.ConsumeTargetAnnotation("b"))
	assert.Equal(t, "a", s.TargetAnnotation().Get())

	assert.True(t, s.ConsumeTargetAnnotation("a"))
	assert.Empty(t, s.TargetAnnotation().Get())
	assert.False(t, s.ConsumeTargetAnnotation("a"), "a request is delivered at most once")

	s.SetTargetAnnotation("c")
	s.SetTargetAnnotation("d")
	s.ClearTargetAnnotation()
	assert.Empty(t, s.TargetAnnotation().Get())
}

func TestStore_TargetObserverSeesConsumedRequest(t *testing.T) {
	for range 50 {
		s := New(source.Static{})
		s.TargetAnnotation().Subscribe(func(id string) {
			if id != "" {
				s.ConsumeTargetAnnotation(id)
			}
		})
		pending := "unset"
		s.TargetAnnotation().Subscribe(func(id string) { pending = id })

		s.SetTargetAnnotation("ann_1")
		require.Empty(t, s.TargetAnnotation().Get())
		require.Empty(t, pending)
	}
}

func TestStore_LoadRejectsDuplicatePages(t *testing.T) {
	s := newLoadedStore(t)
	before := s.Doc().Get()

	dup := source.Func(func(ctx context.Context, id string) (*document.Payload, error) {
		return &document.Payload{Pages: []document.PagePayload{
			{Number: 1, ImageURL: "/a.png"},
			{Number: 1, ImageURL: "/b.png"},
		}}, nil
	})
	s.source = dup
	waitLoad(t, s.Load(context.Background(), "dup"))

	assert.Same(t, before, s.Doc().Get())
	assert.Contains(t, s.Err().Get(), "duplicate page number 1")
	assert.False(t, s.Loading().Get())
}

func TestStore_LoadStartedByObserverKeepsLoading(t *testing.T) {
	release := make(chan struct{})
	src := source.Func(func(ctx context.Context, id string) (*document.Payload, error) {
		if id == "next" {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &document.Payload{Name: id}, nil
	})
	s := New(src)

	var next <-chan struct{}
	s.Doc().Subscribe(func(doc *document.Document) {
		if doc != nil && doc.ID == "first" {
			next = s.Load(context.Background(), "next")
		}
	})

	waitLoad(t, s.Load(context.Background(), "first"))
	require.NotNil(t, next)
	assert.True(t, s.Loading().Get(), "the newer load is still in flight")

	close(release)
	waitLoad(t, next)
	assert.Equal(t, "next", s.Doc().Get().ID)
	assert.False(t, s.Loading().Get())
}

func TestStore_Save(t *testing.T) {
	sink := &recordingSink{}
	s := newLoadedStore(t, WithSink(sink))
	s.AddAnnotation(document.AnnotationFields{PageNumber: 1, W: 0.1, H: 0.1})

	require.NoError(t, s.Save(context.Background()))
	require.Len(t, sink.saved, 1)
	assert.Same(t, s.Doc().Get(), sink.saved[0])

	sink.err = errors.New("disk full")
	err := s.Save(context.Background())
	assert.ErrorIs(t, err, sink.err)
}

func TestStore_SaveWithoutDocument(t *testing.T) {
	sink := &recordingSink{}
	s := New(source.Static{}, WithSink(sink))

	require.NoError(t, s.Save(context.Background()))
	assert.Empty(t, sink.saved)
}

type fakeSnapshots struct {
	snap *persist.Snapshot
	err  error
}

func (f fakeSnapshots) Latest(ctx context.Context, documentID string) (*persist.Snapshot, error) {
	return f.snap, f.err
}

func TestStore_LoadRestoresLatestSnapshot(t *testing.T) {
	saved := &document.Document{ID: "1", Annotations: []document.Annotation{
		{ID: "ann_saved", DocumentID: "1", PageNumber: 1, X: 0.1, Y: 0.1, W: 0.2, H: 0.2, Text: "kept"},
	}}
	src := source.Static{"1": {Name: "Doc", Pages: []document.PagePayload{{Number: 1, ImageURL: "/p1.png"}}}}

	s := New(src, WithSnapshots(fakeSnapshots{snap: &persist.Snapshot{DocumentID: "1", Version: 3, Document: saved}}))
	waitLoad(t, s.Load(context.Background(), "1"))

	a, ok := s.Annotation("ann_saved")
	require.True(t, ok)
	assert.Equal(t, "kept", a.Text)
	assert.Equal(t, "Doc", s.Doc().Get().Title)
}

func TestStore_LoadWithoutSnapshotStartsEmpty(t *testing.T) {
	src := source.Static{"1": {Name: "Doc", Pages: []document.PagePayload{{Number: 1, ImageURL: "/p1.png"}}}}

	for _, reader := range []fakeSnapshots{
		{err: persist.ErrNotFound},
		{err: errors.New("db down")},
	} {
		s := New(src, WithSnapshots(reader))
		waitLoad(t, s.Load(context.Background(), "1"))

		require.NotNil(t, s.Doc().Get())
		assert.Empty(t, s.Annotations().Get())
		assert.Equal(t, "", s.Err().Get())
	}
}
