// Path: internal/delivery/rest/handlers.go
package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"top-loras/internal/domain"
)

// dataService defines the interface required by the handlers from the core service.
// This keeps the delivery layer decoupled from the full service implementation.
type dataService interface {
	LoadResults(ctx context.Context, task string) ([]domain.ModelRecord, bool)
	GetModelByID(ctx context.Context, id string) (*domain.ModelRecord, error)
	Refresh(ctx context.Context, task string) ([]domain.ModelRecord, error)
	Statuses(ctx context.Context) ([]domain.StatusDocument, error)
}

// listResponse is the body of list endpoints.
type listResponse struct {
	Task    string               `json:"task,omitempty"`
	Count   int                  `json:"count"`
	Results []domain.ModelRecord `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ModelHandlers holds dependencies for model-related HTTP handlers.
type ModelHandlers struct {
	service dataService
}

// NewModelHandlers creates a new handler struct.
func NewModelHandlers(s dataService) *ModelHandlers {
	return &ModelHandlers{service: s}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// limitParam parses an optional positive ?limit=.
func limitParam(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func truncate(records []domain.ModelRecord, limit int) []domain.ModelRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

// ListLoras serves the cached ranking for a task.
// Path: GET /loras?task={task}&limit={n}
func (h *ModelHandlers) ListLoras(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	task := r.URL.Query().Get("task")

	records, found := h.service.LoadResults(r.Context(), task)
	if !found {
		writeError(w, http.StatusNotFound, "no cached results for this task yet; POST /refresh to fetch them")
		return
	}
	records = truncate(records, limit)
	writeJSON(w, http.StatusOK, listResponse{Task: task, Count: len(records), Results: records})
}

// GetModelByID handles the request for a single model.
// Path: GET /models/{org}/{name}
func (h *ModelHandlers) GetModelByID(w http.ResponseWriter, r *http.Request) {
	org, name := r.PathValue("org"), r.PathValue("name")
	if org == "" || name == "" {
		writeError(w, http.StatusBadRequest, "invalid model id, expected {org}/{name}")
		return
	}
	modelID := org + "/" + name

	model, err := h.service.GetModelByID(r.Context(), modelID)
	if err != nil {
		log.WithField("id", modelID).Errorf("Model lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if model == nil {
		writeError(w, http.StatusNotFound, "model not found")
		return
	}
	writeJSON(w, http.StatusOK, model)
}

// Refresh force-refreshes one task and returns the new ranking.
// Path: POST /refresh?task={task}
func (h *ModelHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	task := r.URL.Query().Get("task")
	records, err := h.service.Refresh(r.Context(), task)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Task: task, Count: len(records), Results: records})
}

// Status lists the last fetch outcome per cache key.
// Path: GET /status
func (h *ModelHandlers) Status(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.Statuses(r.Context())
	if err != nil {
		log.Errorf("Status lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if docs == nil {
		docs = []domain.StatusDocument{}
	}
	writeJSON(w, http.StatusOK, docs)
}
