package importshandler

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"transparencia/internal/domain/ingest"
	"transparencia/internal/domain/registry"
	"transparencia/internal/platform/jobs"
	"transparencia/internal/platform/metrics"
	"transparencia/internal/transport/http/api"
	"transparencia/internal/transport/http/middleware"
)

// Handler accepts file uploads and exposes batch status. The upload request
// only stores the file and registers a job; all parsing happens in the
// background worker.
type Handler struct {
	Store     registry.Store
	Importer  *ingest.Importer
	Jobs      *jobs.Service
	Metrics   *metrics.Collector
	Layouts   map[ingest.Kind]ingest.Layout
	UploadDir string
}

func NewHandler(store registry.Store, importer *ingest.Importer, jobsSvc *jobs.Service, collector *metrics.Collector, uploadDir string) *Handler {
	return &Handler{
		Store:     store,
		Importer:  importer,
		Jobs:      jobsSvc,
		Metrics:   collector,
		Layouts:   ingest.DefaultLayouts(),
		UploadDir: uploadDir,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/imports", func(r chi.Router) {
		r.Post("/", h.handleUpload)
		r.Get("/{id}", h.handleBatch)
		r.Get("/{id}/errors", h.handleBatchErrors)
	})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_upload", "multipart field 'file' is required", reqID)
		return
	}
	defer file.Close()

	kind := ingest.Kind(r.FormValue("kind"))
	if kind == "" {
		kind = ingest.KindRemuneration
	}
	layout, ok := h.Layouts[kind]
	if !ok {
		api.Fail(w, http.StatusBadRequest, "unknown_kind", fmt.Sprintf("unknown import kind %q", kind), reqID)
		return
	}

	path, checksum, err := h.saveUpload(file)
	if err != nil {
		slog.Error("upload save failed", "file", header.Filename, "err", err)
		api.Fail(w, http.StatusInternalServerError, "upload_failed", "could not store the uploaded file", reqID)
		return
	}

	duplicate := false
	if previous, err := h.Store.BatchByChecksum(r.Context(), checksum); err == nil {
		duplicate = true
		slog.Warn("duplicate file uploaded",
			"file", header.Filename,
			"checksum", checksum,
			"previousBatchId", previous.ID,
			"previousState", previous.State)
	} else if !errors.Is(err, registry.ErrNotFound) {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "batch lookup failed", reqID)
		return
	}

	batch := registry.Batch{
		ID:        uuid.NewString(),
		FileName:  header.Filename,
		Checksum:  checksum,
		State:     registry.BatchPending,
		CreatedAt: time.Now().UTC(),
	}
	// Registered before the job is queued, so the batch is visible as
	// pending while it waits for a worker.
	if err := h.Store.CreateBatch(r.Context(), batch); err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "could not register the batch", reqID)
		return
	}

	jobID, err := h.Jobs.Submit(r.Context(), jobs.KindImport, func(ctx context.Context) (any, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		result, runErr := h.Importer.Run(ctx, batch, f, layout)
		if h.Metrics != nil {
			h.Metrics.RecordImport(result.Accepted, result.Updated, result.Duplicates, result.Rejected)
		}
		details := map[string]any{
			"batchId":    result.ID,
			"state":      result.State,
			"accepted":   result.Accepted,
			"updated":    result.Updated,
			"duplicates": result.Duplicates,
			"rejected":   result.Rejected,
		}
		if runErr != nil {
			return details, runErr
		}
		if result.State == registry.BatchCompletedWithErrors {
			return details, fmt.Errorf("%w: %d rows rejected", jobs.ErrCompletedWithErrors, result.Rejected)
		}
		return details, nil
	})
	if err != nil {
		h.abandonBatch(r.Context(), batch, err)
		if errors.Is(err, jobs.ErrQueueFull) {
			api.Fail(w, http.StatusServiceUnavailable, "queue_full", "import queue is full, retry later", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "job_submit_failed", "could not schedule the import", reqID)
		return
	}

	api.WriteJSON(w, http.StatusAccepted, api.Envelope{Success: true, Data: map[string]any{
		"jobId":         jobID,
		"batchId":       batch.ID,
		"checksum":      checksum,
		"duplicateFile": duplicate,
	}, RequestID: reqID})
}

// abandonBatch finalizes a batch whose job never got queued, so it does not
// linger as pending.
func (h *Handler) abandonBatch(ctx context.Context, batch registry.Batch, cause error) {
	now := time.Now().UTC()
	batch.State = registry.BatchFailed
	batch.FailReason = cause.Error()
	batch.FinalizedAt = &now
	if err := h.Store.FinalizeBatch(ctx, batch); err != nil {
		slog.Warn("batch finalize failed", "batchId", batch.ID, "err", err)
	}
}

// saveUpload streams the body to disk while hashing it, so large files never
// live in memory.
func (h *Handler) saveUpload(file io.Reader) (path, checksum string, err error) {
	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return "", "", err
	}
	path = filepath.Join(h.UploadDir, uuid.NewString()+".csv")
	out, err := os.Create(path)
	if err != nil {
		return "", "", err
	}
	hasher, err := blake2b.New256(nil)
	if err != nil {
		out.Close()
		return "", "", err
	}
	if _, err := io.Copy(io.MultiWriter(out, hasher), file); err != nil {
		out.Close()
		return "", "", err
	}
	if err := out.Close(); err != nil {
		return "", "", err
	}
	return path, hex.EncodeToString(hasher.Sum(nil)), nil
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	batch, err := h.Store.BatchByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, registry.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "batch not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "batch lookup failed", reqID)
		return
	}
	api.Success(w, batch, reqID)
}

func (h *Handler) handleBatchErrors(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	batch, err := h.Store.BatchByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, registry.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "batch not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "storage_error", "batch lookup failed", reqID)
		return
	}
	errorsOut := batch.Errors
	if errorsOut == nil {
		errorsOut = []registry.RowError{}
	}
	api.Success(w, map[string]any{"batchId": batch.ID, "errors": errorsOut}, reqID)
}
