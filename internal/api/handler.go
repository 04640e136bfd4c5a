package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-issuance/internal/auth"
	"ms-issuance/internal/batch"
	"ms-issuance/internal/errs"
	"ms-issuance/internal/ledger"
	"ms-issuance/internal/logger"
	"ms-issuance/internal/models"
	"ms-issuance/internal/utils"
)

// IssuanceScheduler is the batch surface the handlers need.
type IssuanceScheduler interface {
	IssueBatch(ctx context.Context, req batch.Request) (string, error)
	Progress(ctx context.Context, jobID string) (*models.BatchJob, error)
	Archive(ctx context.Context, jobID string) ([]byte, error)
	Cancel(jobID string) error
}

// VerificationLedger is the scan/analytics surface the handlers need.
type VerificationLedger interface {
	Scan(ctx context.Context, code string) (*ledger.ScanResult, error)
	Void(ctx context.Context, code string) error
	GetAnalytics(ctx context.Context, f ledger.Filter) (*ledger.Analytics, error)
}

type Handler struct {
	Scheduler IssuanceScheduler
	Ledger    VerificationLedger
	Logger    *logger.Logger
}

func NewHandler(scheduler IssuanceScheduler, ledger VerificationLedger, log *logger.Logger) *Handler {
	return &Handler{Scheduler: scheduler, Ledger: ledger, Logger: log}
}

// RegisterRoutes mounts the issuance and verification API under r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/issuance", func(r chi.Router) {
		r.Post("/jobs", h.CreateJob)
		r.Get("/jobs/{jobID}", h.GetJobProgress)
		r.Get("/jobs/{jobID}/archive", h.DownloadArchive)
		r.Delete("/jobs/{jobID}", h.CancelJob)
	})
	r.Get("/api/analytics", h.GetAnalytics)
}

// RegisterScanRoutes mounts the routes that require an authenticated scanner.
func (h *Handler) RegisterScanRoutes(r chi.Router) {
	r.Post("/api/scan", h.ScanTicket)
	r.Post("/api/tickets/{code}/void", h.VoidTicket)
}

func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req batch.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	jobID, err := h.Scheduler.IssueBatch(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, utils.SuccessResponse("job accepted", map[string]string{"job_id": jobID}))
}

func (h *Handler) GetJobProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.Scheduler.Progress(r.Context(), jobID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("job progress", map[string]interface{}{
		"job_id":          job.ID,
		"status":          job.Status,
		"completed_count": job.CompletedCount,
		"failed_count":    job.FailedCount,
		"requested":       job.RequestedQuantity,
	}))
}

func (h *Handler) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	data, err := h.Scheduler.Archive(r.Context(), jobID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="tickets-%s.zip"`, jobID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil && h.Logger != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to stream archive for %s: %v", jobID, err))
	}
}

func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := h.Scheduler.Cancel(jobID); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("job cancelled", nil))
}

func (h *Handler) ScanTicket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	result, err := h.Ledger.Scan(r.Context(), req.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.Logger != nil {
		scanner := auth.ScannerID(r.Context())
		h.Logger.LogScan(result.Outcome, req.Code, fmt.Sprintf("scanner=%s", scanner))
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("scan processed", result))
}

func (h *Handler) VoidTicket(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.Ledger.Void(r.Context(), code); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("ticket voided", nil))
}

func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	filter := ledger.Filter{
		EventID: r.URL.Query().Get("event_id"),
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid from parameter", err.Error()))
			return
		}
		filter.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid to parameter", err.Error()))
			return
		}
		filter.To = t
	}

	analytics, err := h.Ledger.GetAnalytics(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("ledger analytics", analytics))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && h.Logger != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to encode response: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *errs.ValidationError
	var terr *errs.TemplateError
	var serr *errs.StorageError

	switch {
	case errors.As(err, &verr):
		status := http.StatusBadRequest
		if strings.Contains(verr.Reason, "not found") {
			status = http.StatusNotFound
		}
		h.writeJSON(w, status, utils.ErrorResponse("request rejected", verr.Error()))
	case errors.As(err, &terr):
		h.writeJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("template rejected", terr.Error()))
	case errors.As(err, &serr):
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("storage failure", serr.Error()))
	default:
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", err.Error()))
	}
}
