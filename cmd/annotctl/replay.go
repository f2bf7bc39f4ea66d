package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/engine"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/session"
)

// replayResult is printed after a replay.
type replayResult struct {
	State    engine.ViewState   `json:"state"`
	Document *document.Document `json:"document"`
}

func readScript(path string) ([]session.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var msgs []session.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	return msgs, nil
}

// replay opens documentID, applies script in order and writes the final
// state and document as JSON to w. Loads are awaited before the next step.
func replay(ctx context.Context, eng *engine.Engine, documentID string, script []session.Message, w io.Writer) error {
	if err := wait(ctx, eng, eng.Open(ctx, documentID)); err != nil {
		return err
	}
	if msg := eng.State().Error; msg != "" {
		return fmt.Errorf("open document %s: %s", documentID, msg)
	}

	for i := range script {
		msg := &script[i]
		if err := session.Apply(ctx, eng, msg); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, msg.Type, err)
		}
		if err := settle(ctx, eng); err != nil {
			return err
		}
		// One frame per step, so deferred work such as editor focus runs.
		eng.Commands()
		slog.Debug("applied step", "step", i+1, "type", msg.Type)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(replayResult{State: eng.State(), Document: eng.Store().Doc().Get()})
}

func wait(ctx context.Context, eng *engine.Engine, done <-chan struct{}) error {
	for {
		select {
		case <-done:
			return nil
		case fn := <-eng.Pending():
			fn()
		case <-ctx.Done():
			return fmt.Errorf("wait for document: %w", ctx.Err())
		}
	}
}

// settle applies queued load results until no load is in flight.
func settle(ctx context.Context, eng *engine.Engine) error {
	for eng.State().Loading {
		select {
		case fn := <-eng.Pending():
			fn()
		case <-ctx.Done():
			return fmt.Errorf("wait for document: %w", ctx.Err())
		}
	}
	return nil
}
