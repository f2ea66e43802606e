package jobshandler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"transparencia/internal/platform/jobs"
	"transparencia/internal/transport/http/api"
	"transparencia/internal/transport/http/middleware"
	"transparencia/internal/transport/http/shared"
)

type Handler struct {
	Jobs *jobs.Service
}

func NewHandler(jobsSvc *jobs.Service) *Handler {
	return &Handler{Jobs: jobsSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleStatus)
		r.Post("/{id}/cancel", h.handleCancel)
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	job, err := h.Jobs.Status(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, jobs.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "job not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "job lookup failed", reqID)
		return
	}
	api.Success(w, job, reqID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)
	list, err := h.Jobs.List(r.Context(), r.URL.Query().Get("kind"), page.Limit)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "job listing failed", reqID)
		return
	}
	api.Success(w, list, reqID)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	err := h.Jobs.Cancel(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, jobs.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "job not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "job cancel failed", reqID)
		return
	}
	api.Success(w, map[string]string{"id": chi.URLParam(r, "id"), "status": "cancellation requested"}, reqID)
}
