package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/typeid"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS document_snapshots (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	version     INTEGER NOT NULL,
	document    JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (document_id, version)
)`

// Postgres stores snapshots in a document_snapshots table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and ensures the snapshot table exists.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Save(ctx context.Context, doc *document.Document) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Get current version to increment
	var version int32
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM document_snapshots WHERE document_id = $1", doc.ID,
	).Scan(&version)
	if err != nil {
		return fmt.Errorf("get version: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO document_snapshots (id, document_id, version, document) VALUES ($1, $2, $3, $4)",
		typeid.NewSnapshotID(), doc.ID, version+1, docJSON,
	)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	return tx.Commit(ctx)
}

func (p *Postgres) Latest(ctx context.Context, documentID string) (*Snapshot, error) {
	var (
		snap    Snapshot
		version int32
		data    []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, document_id, version, document, created_at
		FROM document_snapshots WHERE document_id = $1
		ORDER BY version DESC LIMIT 1
	`, documentID).Scan(&snap.ID, &snap.DocumentID, &version, &data, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	snap.Version = int(version)

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	snap.Document = doc
	return &snap, nil
}
