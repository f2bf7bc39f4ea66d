package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/typeid"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	version     INTEGER NOT NULL,
	document    TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	UNIQUE (document_id, version)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_document ON snapshots (document_id, version DESC);
`

// SQLite stores snapshots in a local SQLite database file.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (and creates if needed) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) Save(ctx context.Context, doc *document.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var version int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM snapshots WHERE document_id = ?", doc.ID,
	).Scan(&version)
	if err != nil {
		return fmt.Errorf("querying version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, document_id, version, document, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, typeid.NewSnapshotID(), doc.ID, version+1, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	return tx.Commit()
}

func (s *SQLite) Latest(ctx context.Context, documentID string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, version, document, created_at
		FROM snapshots WHERE document_id = ?
		ORDER BY version DESC LIMIT 1
	`, documentID)

	var (
		snap      Snapshot
		data      string
		createdAt string
	)
	if err := row.Scan(&snap.ID, &snap.DocumentID, &snap.Version, &data, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}

	doc, err := decodeDocument([]byte(data))
	if err != nil {
		return nil, err
	}
	snap.Document = doc

	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		snap.CreatedAt = t
	}
	return &snap, nil
}
