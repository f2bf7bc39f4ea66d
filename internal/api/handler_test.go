package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/persist"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/source"
)

func newTestRouter(t *testing.T, snapshots persist.SnapshotReader) *mux.Router {
	t.Helper()
	docs := source.Static{"1": document.NewSamplePayload("1", 3)}
	r := mux.NewRouter()
	NewHandler(NewService(docs, snapshots)).Register(r.PathPrefix("/api").Subrouter())
	return r
}

func seededSQLite(t *testing.T) *persist.SQLite {
	t.Helper()
	db, err := persist.NewSQLite(t.TempDir() + "/snapshots.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	doc := &document.Document{ID: "1", Title: "Sample", Annotations: []document.Annotation{
		{ID: "ann_1", DocumentID: "1", PageNumber: 2, X: 0.1, Y: 0.1, W: 0.2, H: 0.2, Text: "saved"},
	}}
	require.NoError(t, db.Save(context.Background(), doc))
	return db
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGetLatestSnapshot(t *testing.T) {
	r := newTestRouter(t, seededSQLite(t))

	rec := get(r, "/api/documents/1/snapshots/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap persist.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "1", snap.DocumentID)
	assert.Equal(t, 1, snap.Version)
	require.Len(t, snap.Document.Annotations, 1)
	assert.Equal(t, "saved", snap.Document.Annotations[0].Text)
}

func TestGetDocumentMergesSnapshot(t *testing.T) {
	r := newTestRouter(t, seededSQLite(t))

	rec := get(r, "/api/documents/1")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc document.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Len(t, doc.Pages, 3)
	require.Len(t, doc.Annotations, 1)
	assert.Equal(t, 2, doc.Annotations[0].PageNumber)
}

type failingReader struct{}

func (failingReader) Latest(ctx context.Context, documentID string) (*persist.Snapshot, error) {
	return nil, errors.New("db down")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		snapshots persist.SnapshotReader
		path      string
		status    int
	}{
		{"no history sink", nil, "/api/documents/1/snapshots/latest", http.StatusNotFound},
		{"no snapshot yet", nil, "/api/documents/1", http.StatusOK},
		{"unknown document", nil, "/api/documents/9", http.StatusNotFound},
		{"invalid id", nil, "/api/documents/a..b/snapshots/latest", http.StatusBadRequest},
		{"reader failure", failingReader{}, "/api/documents/1/snapshots/latest", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(newTestRouter(t, tt.snapshots), tt.path)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
