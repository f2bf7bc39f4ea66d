package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the handler's routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/documents/{documentId}", h.GetDocument).Methods("GET")
	r.HandleFunc("/documents/{documentId}/snapshots/latest", h.GetLatestSnapshot).Methods("GET")
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentId"]

	doc, err := h.service.Document(r.Context(), documentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentId"]

	snap, err := h.service.LatestSnapshot(r.Context(), documentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrInvalidID):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document id"})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
