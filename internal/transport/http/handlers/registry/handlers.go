package registryhandler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"transparencia/internal/domain/registry"
	"transparencia/internal/transport/http/api"
	"transparencia/internal/transport/http/middleware"
	"transparencia/internal/transport/http/shared"
)

// Handler exposes read access to the normalized store: employees, their
// history, and the role catalog. All writes go through the import pipeline.
type Handler struct {
	Store registry.Store
}

func NewHandler(store registry.Store) *Handler {
	return &Handler{Store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleEmployee)
		r.Get("/{id}/remunerations", h.handleRemunerations)
		r.Get("/{id}/leaves", h.handleLeaves)
	})
	r.Get("/roles", h.handleRoles)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	if document := r.URL.Query().Get("document"); document != "" {
		emp, err := h.Store.EmployeeByDocument(r.Context(), document)
		switch {
		case errors.Is(err, registry.ErrNotFound):
			api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
		case errors.Is(err, registry.ErrAmbiguous):
			api.Fail(w, http.StatusConflict, "ambiguous", "document matches more than one employee", reqID)
		case err != nil:
			api.Fail(w, http.StatusInternalServerError, "storage_error", "employee lookup failed", reqID)
		default:
			api.Success(w, []registry.Employee{emp}, reqID)
		}
		return
	}

	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "employee listing failed", reqID)
		return
	}
	page := shared.ParsePagination(r, 100, 1000)
	if page.Offset >= len(employees) {
		employees = nil
	} else {
		employees = employees[page.Offset:]
	}
	if len(employees) > page.Limit {
		employees = employees[:page.Limit]
	}
	if employees == nil {
		employees = []registry.Employee{}
	}
	api.Success(w, employees, reqID)
}

func (h *Handler) handleEmployee(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, err := h.Store.EmployeeByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, registry.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "employee lookup failed", reqID)
		return
	}
	api.Success(w, emp, reqID)
}

func (h *Handler) handleRemunerations(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")
	if _, err := h.Store.EmployeeByID(r.Context(), id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "storage_error", "employee lookup failed", reqID)
		return
	}

	scope, err := shared.ParseScope(r.URL.Query().Get)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_scope", err.Error(), reqID)
		return
	}
	recs, err := h.Store.ListRemunerations(r.Context(), scope)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "remuneration listing failed", reqID)
		return
	}
	out := make([]registry.Remuneration, 0, len(recs))
	for _, rec := range recs {
		if rec.EmployeeID == id {
			out = append(out, rec)
		}
	}
	api.Success(w, out, reqID)
}

func (h *Handler) handleLeaves(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")
	leaves, err := h.Store.LeavesForEmployee(r.Context(), id)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "leave listing failed", reqID)
		return
	}
	if leaves == nil {
		leaves = []registry.Leave{}
	}
	api.Success(w, leaves, reqID)
}

func (h *Handler) handleRoles(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	roles, err := h.Store.ListRoles(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "role listing failed", reqID)
		return
	}
	if roles == nil {
		roles = []registry.Role{}
	}
	api.Success(w, roles, reqID)
}
