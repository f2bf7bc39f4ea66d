package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
)

const samplePayload = `{"name":"Contract","pages":[{"number":1,"imageUrl":"/p1.png"},{"number":2,"imageUrl":"/p2.png"}]}`

func TestHTTP_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/docs/42.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	src := NewHTTP(srv.URL+"/docs/", nil)

	p, err := src.Fetch(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Contract", p.Name)
	require.Len(t, p.Pages, 2)
	assert.Equal(t, document.PagePayload{Number: 2, ImageURL: "/p2.png"}, p.Pages[1])

	_, err = src.Fetch(context.Background(), "missing-doc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTP_FetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, nil).Fetch(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestDir_Fetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.json"), []byte(samplePayload), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"pages":[{"number":0}]}`), 0o644))

	src := NewDir(dir)

	p, err := src.Fetch(context.Background(), "1")
	require.NoError(t, err)
	assert.Len(t, p.Pages, 2)

	_, err = src.Fetch(context.Background(), "2")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.Fetch(context.Background(), "bad")
	assert.Error(t, err)

	_, err = src.Fetch(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestStatic_Fetch(t *testing.T) {
	src := Static{"1": document.NewSamplePayload("1", 1)}

	p, err := src.Fetch(context.Background(), "1")
	require.NoError(t, err)
	assert.Len(t, p.Pages, 1)

	_, err = src.Fetch(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Fetch(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecode_RejectsBadPageNumbers(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"duplicate", `{"pages":[{"number":1,"imageUrl":"/a.png"},{"number":1,"imageUrl":"/b.png"}]}`, "duplicate page number 1"},
		{"zero", `{"pages":[{"number":0,"imageUrl":"/a.png"}]}`, "page number 0 is not positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := decode(strings.NewReader(tt.body))
			assert.Nil(t, p)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestStatic_FetchRejectsDuplicatePages(t *testing.T) {
	src := Static{"dup": {Pages: []document.PagePayload{
		{Number: 2, ImageURL: "/a.png"},
		{Number: 2, ImageURL: "/b.png"},
	}}}

	_, err := src.Fetch(context.Background(), "dup")
	assert.ErrorContains(t, err, "duplicate page number 2")
}
