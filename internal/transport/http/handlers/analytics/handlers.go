package analyticshandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"transparencia/internal/domain/analytics"
	"transparencia/internal/domain/export"
	"transparencia/internal/platform/jobs"
	"transparencia/internal/transport/http/api"
	"transparencia/internal/transport/http/middleware"
	"transparencia/internal/transport/http/shared"
)

// Handler serves the synchronous analytical queries and the asynchronous
// full-report flow. Small bounded queries answer inline; a full report runs
// as a job and leaves its artifacts in ExportDir.
type Handler struct {
	Analytics *analytics.Service
	Jobs      *jobs.Service
	ExportDir string
}

func NewHandler(svc *analytics.Service, jobsSvc *jobs.Service, exportDir string) *Handler {
	return &Handler{Analytics: svc, Jobs: jobsSvc, ExportDir: exportDir}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/summary", h.handleSummary)
		r.Get("/compare", h.handleCompare)
		r.Get("/years", h.handleYears)
		r.Get("/insights", h.handleInsights)
	})
	r.Route("/reports", func(r chi.Router) {
		r.Post("/", h.handleCreateReport)
		r.Get("/{id}/download", h.handleDownload)
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	scope, err := shared.ParseScope(r.URL.Query().Get)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_scope", err.Error(), reqID)
		return
	}
	summary, err := h.Analytics.Summary(r.Context(), scope)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "summary query failed", reqID)
		return
	}
	api.Success(w, summary, reqID)
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()
	periodA, errA := shared.ParsePeriod(q.Get("periodA"))
	periodB, errB := shared.ParsePeriod(q.Get("periodB"))
	if errA != nil || errB != nil || periodA.IsZero() || periodB.IsZero() {
		api.Fail(w, http.StatusBadRequest, "invalid_period", "periodA and periodB are required as YYYY-MM", reqID)
		return
	}
	cmp, err := h.Analytics.ComparePeriods(r.Context(), periodA, periodB, q.Get("org"), q.Get("roleId"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "comparison query failed", reqID)
		return
	}
	api.Success(w, cmp, reqID)
}

func (h *Handler) handleYears(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	yearA, errA := strconv.Atoi(r.URL.Query().Get("yearA"))
	yearB, errB := strconv.Atoi(r.URL.Query().Get("yearB"))
	if errA != nil || errB != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "yearA and yearB are required", reqID)
		return
	}
	cmp, err := h.Analytics.CompareYears(r.Context(), yearA, yearB)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "year comparison failed", reqID)
		return
	}
	api.Success(w, cmp, reqID)
}

func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "year is required", reqID)
		return
	}
	report, err := h.Analytics.Insights(r.Context(), year)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "insights query failed", reqID)
		return
	}
	api.Success(w, report, reqID)
}

type createReportRequest struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	Org     string   `json:"org"`
	RoleID  string   `json:"roleId"`
	Formats []string `json:"formats"`
}

func (h *Handler) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_body", "invalid JSON body", reqID)
		return
	}
	params := map[string]string{"from": req.From, "to": req.To, "org": req.Org, "roleId": req.RoleID}
	scope, err := shared.ParseScope(func(key string) string { return params[key] })
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_scope", err.Error(), reqID)
		return
	}
	formats := req.Formats
	if len(formats) == 0 {
		formats = []string{export.FormatCSV}
	}
	for _, format := range formats {
		switch format {
		case export.FormatCSV, export.FormatXLSX, export.FormatPDF:
		default:
			api.Fail(w, http.StatusBadRequest, "invalid_format", "unsupported format "+format, reqID)
			return
		}
	}

	exportDir := h.ExportDir
	baseName := "report-" + uuid.NewString()
	jobID, err := h.Jobs.Submit(r.Context(), jobs.KindReport, func(ctx context.Context) (any, error) {
		report, err := h.Analytics.FullReport(ctx, scope)
		if err != nil {
			return nil, err
		}
		files := map[string]string{}
		for _, format := range formats {
			path, err := export.WriteFile(exportDir, baseName, format, report)
			if err != nil {
				return map[string]any{"files": files}, err
			}
			files[format] = path
		}
		return map[string]any{
			"files":   files,
			"periods": len(report.Summary.Periods),
		}, nil
	})
	if err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			api.Fail(w, http.StatusServiceUnavailable, "queue_full", "report queue is full, retry later", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "job_submit_failed", "could not schedule the report", reqID)
		return
	}
	api.WriteJSON(w, http.StatusAccepted, api.Envelope{Success: true, Data: map[string]string{"jobId": jobID}, RequestID: reqID})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	job, err := h.Jobs.Status(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, jobs.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "report job not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "job lookup failed", reqID)
		return
	}
	if job.State != jobs.StateCompleted && job.State != jobs.StateCompletedWithErrors {
		api.Fail(w, http.StatusConflict, "not_ready", "report is not finished", reqID)
		return
	}

	var details struct {
		Files map[string]string `json:"files"`
	}
	if err := json.Unmarshal(job.Details, &details); err != nil || len(details.Files) == 0 {
		api.Fail(w, http.StatusNotFound, "no_artifact", "report produced no downloadable file", reqID)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatCSV
	}
	path, ok := details.Files[format]
	if !ok {
		api.Fail(w, http.StatusNotFound, "no_artifact", "no artifact for format "+format, reqID)
		return
	}
	w.Header().Set("Content-Type", export.ContentType(format))
	http.ServeFile(w, r, path)
}
