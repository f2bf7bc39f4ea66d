// Package persist holds the snapshot sinks a document store saves into and
// the readers that hand the latest snapshot back.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
)

var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one saved version of a document.
type Snapshot struct {
	ID         string             `json:"id"`
	DocumentID string             `json:"documentId"`
	Version    int                `json:"version"`
	Document   *document.Document `json:"document"`
	CreatedAt  time.Time          `json:"createdAt"`
}

// SnapshotReader returns the most recent snapshot saved for a document.
type SnapshotReader interface {
	Latest(ctx context.Context, documentID string) (*Snapshot, error)
}

// Log writes every saved document as indented JSON to a writer and logs a
// summary line.
type Log struct {
	w io.Writer
}

func NewLog(w io.Writer) *Log {
	return &Log{w: w}
}

func (l *Log) Save(ctx context.Context, doc *document.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if l.w != nil {
		if _, err := fmt.Fprintf(l.w, "Document state: %s\n", data); err != nil {
			return fmt.Errorf("write document: %w", err)
		}
	}
	slog.Info("document saved", "document", doc.ID, "annotations", len(doc.Annotations))
	return nil
}

func decodeDocument(data []byte) (*document.Document, error) {
	var doc document.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &doc, nil
}
