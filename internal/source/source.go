// Package source provides document sources: given a document id they return
// the document's title and ordered page list.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrInvalidID = errors.New("invalid document id")
)

const maxPayloadSize = 4 << 20 // 4MB

// HTTP fetches <BaseURL>/<id>.json.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP creates an HTTP source rooted at baseURL. A nil client gets a
// client with a 30s timeout.
func NewHTTP(baseURL string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTP{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *HTTP) Fetch(ctx context.Context, id string) (*document.Payload, error) {
	if err := CheckID(id); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/%s.json", s.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("fetch document %s: %w", id, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("fetch document %s: unexpected status %s", id, resp.Status)
	}

	return decode(io.LimitReader(resp.Body, maxPayloadSize))
}

// Dir reads <dir>/<id>.json from the local filesystem.
type Dir struct {
	dir string
}

func NewDir(dir string) *Dir {
	return &Dir{dir: dir}
}

func (s *Dir) Fetch(ctx context.Context, id string) (*document.Payload, error) {
	if err := CheckID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read document %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read document %s: %w", id, err)
	}
	defer f.Close()

	return decode(io.LimitReader(f, maxPayloadSize))
}

// Static serves payloads from memory. Used by the wasm playground and tests.
type Static map[string]*document.Payload

func (s Static) Fetch(ctx context.Context, id string) (*document.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	return p, nil
}

// Func adapts a function to a source.
type Func func(ctx context.Context, id string) (*document.Payload, error)

func (f Func) Fetch(ctx context.Context, id string) (*document.Payload, error) {
	return f(ctx, id)
}

func decode(r io.Reader) (*document.Payload, error) {
	var p document.Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &p, nil
}

// CheckID rejects ids that are empty or could escape a base path or URL.
func CheckID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
