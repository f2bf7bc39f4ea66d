package persist

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
)

func testDocument() *document.Document {
	return &document.Document{
		ID:    "1",
		Title: "Contract",
		Pages: []document.Page{{Number: 1, ImageURL: "/p1.png"}},
		Annotations: []document.Annotation{
			{ID: "ann_1", DocumentID: "1", PageNumber: 1, X: 0.1, Y: 0.1, W: 0.2, H: 0.2, Text: "sign here"},
		},
	}
}

func setupSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func TestLog_Save(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewLog(&buf).Save(context.Background(), testDocument()))

	out := buf.String()
	assert.Contains(t, out, "Document state:")
	assert.Contains(t, out, `"text": "sign here"`)
}

func TestSQLite_SaveAndLatest(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	doc := testDocument()
	require.NoError(t, s.Save(ctx, doc))

	doc2 := testDocument()
	doc2.Annotations[0].Text = "signed"
	require.NoError(t, s.Save(ctx, doc2))

	snap, err := s.Latest(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Version)
	assert.Equal(t, "1", snap.DocumentID)
	assert.False(t, snap.CreatedAt.IsZero())
	if diff := cmp.Diff(doc2, snap.Document); diff != "" {
		t.Errorf("latest snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLite_LatestNotFound(t *testing.T) {
	s := setupSQLite(t)

	_, err := s.Latest(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
