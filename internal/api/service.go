// Package api serves read-only REST views of documents and their saved
// snapshots.
package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/persist"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/source"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/store"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid id")
)

type Service struct {
	documents store.Source
	snapshots persist.SnapshotReader // nil when the sink keeps no history
}

func NewService(documents store.Source, snapshots persist.SnapshotReader) *Service {
	return &Service{documents: documents, snapshots: snapshots}
}

// Document returns document id with the annotations of its latest snapshot.
func (s *Service) Document(ctx context.Context, id string) (*document.Document, error) {
	if err := source.CheckID(id); err != nil {
		return nil, ErrInvalidID
	}
	payload, err := s.documents.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch document: %w", err)
	}

	doc := document.FromPayload(id, payload)
	snap, err := s.LatestSnapshot(ctx, id)
	switch {
	case err == nil:
		if snap.Document != nil {
			doc.Annotations = snap.Document.Annotations
		}
	case errors.Is(err, ErrNotFound):
	default:
		return nil, err
	}
	return doc, nil
}

func (s *Service) LatestSnapshot(ctx context.Context, documentID string) (*persist.Snapshot, error) {
	if err := source.CheckID(documentID); err != nil {
		return nil, ErrInvalidID
	}
	if s.snapshots == nil {
		return nil, ErrNotFound
	}
	snap, err := s.snapshots.Latest(ctx, documentID)
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return snap, nil
}
