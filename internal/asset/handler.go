// Package asset serves document metadata and page images from a directory
// laid out as <dir>/<id>.json plus <dir>/<id>/page-N.png, and accepts new
// page uploads into it.
package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/source"
)

const maxUploadSize = 10 << 20 // 10MB

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	DocumentID string `json:"documentId"`
	Page       int    `json:"page"`
	URL        string `json:"url"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// Handler serves document files and page uploads.
type Handler struct {
	dir       string
	urlPrefix string // public path the directory is served under

	mu sync.Mutex // serializes metadata rewrites
}

// NewHandler creates a handler over dir. Files are served under urlPrefix,
// for example "/documents".
func NewHandler(dir, urlPrefix string) *Handler {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create document dir", "error", err, "dir", dir)
	}
	return &Handler{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}
}

// UploadPage handles POST /documents/{documentId}/pages (multipart form with
// a "file" field). The image is stored as the next page of the document,
// creating the document if it does not exist yet.
func (h *Handler) UploadPage(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentId"]
	if err := source.CheckID(documentID); err != nil {
		http.Error(w, "invalid document id", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 10MB)", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/png") && !strings.HasPrefix(contentType, "image/jpeg") {
		http.Error(w, "only PNG and JPEG images are supported", http.StatusBadRequest)
		return
	}

	img, _, err := image.Decode(file)
	if err != nil {
		http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.addPage(documentID, header.Filename, img)
	if err != nil {
		slog.Error("add page", "error", err, "document", documentID)
		http.Error(w, "failed to save page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) addPage(documentID, filename string, img image.Image) (*UploadResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	payload, err := h.readPayload(documentID)
	if err != nil {
		return nil, err
	}
	if payload.Name == "" {
		payload.Name = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	number := 1
	for _, p := range payload.Pages {
		number = max(number, p.Number+1)
	}

	pageDir := filepath.Join(h.dir, documentID)
	if err := os.MkdirAll(pageDir, 0755); err != nil {
		return nil, fmt.Errorf("create page dir: %w", err)
	}
	name := fmt.Sprintf("page-%d.png", number)
	path := filepath.Join(pageDir, name)

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create page file: %w", err)
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		os.Remove(path)
		return nil, fmt.Errorf("encode png: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close page file: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", h.urlPrefix, documentID, name)
	payload.Pages = append(payload.Pages, document.PagePayload{Number: number, ImageURL: url})
	if err := h.writePayload(documentID, payload); err != nil {
		os.Remove(path)
		return nil, err
	}

	bounds := img.Bounds()
	return &UploadResponse{
		DocumentID: documentID,
		Page:       number,
		URL:        url,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
	}, nil
}

func (h *Handler) readPayload(documentID string) (*document.Payload, error) {
	data, err := os.ReadFile(filepath.Join(h.dir, documentID+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return &document.Payload{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	var p document.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &p, nil
}

// writePayload replaces the metadata file atomically.
func (h *Handler) writePayload(documentID string, p *document.Payload) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	tmp, err := os.CreateTemp(h.dir, documentID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(h.dir, documentID+".json")); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// Serve returns an http.Handler for the directory under urlPrefix. Metadata
// is revalidated on every request because uploads append pages; page images
// never change once written.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix(h.urlPrefix+"/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".json") {
			w.Header().Set("Cache-Control", "no-cache")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		fs.ServeHTTP(w, r)
	}))
}
