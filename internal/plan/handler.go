package plan

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/plantrace/plantrace/backend-go/internal/auth"
	"github.com/plantrace/plantrace/backend-go/internal/document"
)

const maxSaveSize = 8 << 20 // 8MB

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name string `json:"name"`
	Src  string `json:"src"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	p, err := h.service.Create(r.Context(), req.Name, req.Src, userID)
	if err != nil {
		slog.Error("create plan failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	planID := mux.Vars(r)["planId"]

	p, err := h.service.Get(r.Context(), planID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	plans, err := h.service.List(r.Context(), userID)
	if err != nil {
		slog.Error("list plans failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, plans)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	planID := mux.Vars(r)["planId"]

	if err := h.service.Delete(r.Context(), planID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	planID := mux.Vars(r)["planId"]

	versions, err := h.service.Versions(r.Context(), planID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, versions)
}

// LoadData handles GET /api/plans/{planId}/data. Failures are reported in
// the payload's Code and Message as well as the HTTP status, since the
// editor only looks at the payload.
func (h *Handler) LoadData(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["planId"]

	resp, err := h.service.Load(r.Context(), planID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNotFound) {
			status = http.StatusNotFound
		} else {
			slog.Error("load plan failed", "planId", planID, "error", err)
		}
		writeJSON(w, status, &document.LoadResponse{Code: status, Message: document.DefaultLoadFailure})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// SaveData handles POST /api/plans/{planId}/data.
func (h *Handler) SaveData(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	planID := mux.Vars(r)["planId"]

	r.Body = http.MaxBytesReader(w, r.Body, maxSaveSize)
	var req document.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.service.Save(r.Context(), planID, userID, &req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, ErrInvalidSave):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
