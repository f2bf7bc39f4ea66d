package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/engine"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/persist"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/source"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/store"
)

const drawScript = `[
	{"type": "pointer", "payload": {"phase": "down", "pointerId": 1, "pointerType": "mouse", "button": 0, "buttons": 1, "clientX": 100, "clientY": 100}},
	{"type": "pointer", "payload": {"phase": "move", "pointerId": 1, "pointerType": "mouse", "button": -1, "buttons": 1, "clientX": 300, "clientY": 300}},
	{"type": "pointer", "payload": {"phase": "up", "pointerId": 1, "pointerType": "mouse", "button": 0, "buttons": 0, "clientX": 300, "clientY": 300}},
	{"type": "edit", "payload": {"action": "input", "value": "from script"}},
	{"type": "edit", "payload": {"action": "commit"}},
	{"type": "zoom", "payload": {"action": "in"}},
	{"type": "save"}
]`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newReplayEngine(t *testing.T, opts ...store.Option) *engine.Engine {
	t.Helper()
	src := source.Static{"1": document.NewSamplePayload("1", 2)}
	eng := engine.New(src,
		engine.WithLayout(engine.Layout{PageWidth: 1000, PageHeight: 1000, Gap: 0}),
		engine.WithStoreOptions(opts...),
	)
	t.Cleanup(eng.Close)
	return eng
}

func TestReplay_DrawEditSave(t *testing.T) {
	script, err := readScript(writeScript(t, drawScript))
	require.NoError(t, err)
	require.Len(t, script, 7)

	db, err := persist.NewSQLite(filepath.Join(t.TempDir(), "snap.db"))
	require.NoError(t, err)
	defer db.Close()

	eng := newReplayEngine(t, store.WithSink(db))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, replay(ctx, eng, "1", script, &out))

	var res replayResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "110%", res.State.ZoomLabel)
	require.Len(t, res.Document.Annotations, 1)
	a := res.Document.Annotations[0]
	assert.Equal(t, "from script", a.Text)
	assert.InDelta(t, 0.1, a.X, 1e-9)
	assert.InDelta(t, 0.2, a.W, 1e-9)

	snap, err := db.Latest(ctx, "1")
	require.NoError(t, err)
	require.Len(t, snap.Document.Annotations, 1)
	assert.Equal(t, "from script", snap.Document.Annotations[0].Text)
}

func TestReplay_Errors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("missing document", func(t *testing.T) {
		err := replay(ctx, newReplayEngine(t), "nope", nil, &bytes.Buffer{})
		assert.ErrorContains(t, err, "open document nope")
	})

	t.Run("bad step", func(t *testing.T) {
		script, err := readScript(writeScript(t, `[{"type": "zoom", "payload": {"action": "sideways"}}]`))
		require.NoError(t, err)
		err = replay(ctx, newReplayEngine(t), "1", script, &bytes.Buffer{})
		assert.ErrorContains(t, err, "step 1 (zoom)")
	})

	t.Run("bad script", func(t *testing.T) {
		_, err := readScript(writeScript(t, `{"type": "zoom"}`))
		assert.Error(t, err)
	})
}
