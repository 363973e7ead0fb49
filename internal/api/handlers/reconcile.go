package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/stripe-ledger-recon/internal/api/dto"
	"github.com/eshaffer321/stripe-ledger-recon/internal/application/service"
)

// ReconcileHandler starts and tracks background reconciliation jobs.
type ReconcileHandler struct {
	*Base
	service *service.ReconcileService
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(svc *service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{
		Base:    &Base{},
		service: svc,
	}
}

// Start handles POST /api/reconcile - starts a reconciliation job.
// An empty body runs both reconciliations.
func (h *ReconcileHandler) Start(c *gin.Context) {
	var req dto.StartReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	kind, err := service.ParseJobKind(req.Kind)
	if err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	jobID, err := h.service.StartJob(c.Request.Context(), kind)
	if errors.Is(err, service.ErrJobConflict) {
		h.WriteError(c, http.StatusConflict, dto.NewAPIError(dto.ErrCodeConflict, err.Error()))
		return
	}
	if err != nil {
		h.WriteError(c, http.StatusServiceUnavailable, dto.NewAPIError(dto.ErrCodeUnavailable, err.Error()))
		return
	}

	c.JSON(http.StatusAccepted, dto.StartReconcileResponse{
		JobID:  jobID,
		Kind:   string(kind),
		Status: string(service.StatusPending),
	})
}

// Get handles GET /api/reconcile/:jobId - gets job status.
func (h *ReconcileHandler) Get(c *gin.Context) {
	job, err := h.service.GetJob(c.Param("jobId"))
	if err != nil {
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("reconcile job"))
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

// ListActive handles GET /api/reconcile/active.
func (h *ReconcileHandler) ListActive(c *gin.Context) {
	c.JSON(http.StatusOK, toJobsResponse(h.service.ListActiveJobs()))
}

// ListAll handles GET /api/reconcile.
func (h *ReconcileHandler) ListAll(c *gin.Context) {
	c.JSON(http.StatusOK, toJobsResponse(h.service.ListAllJobs()))
}

// Cancel handles DELETE /api/reconcile/:jobId.
func (h *ReconcileHandler) Cancel(c *gin.Context) {
	err := h.service.CancelJob(c.Param("jobId"))
	if errors.Is(err, service.ErrJobNotFound) {
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("reconcile job"))
		return
	}
	if err != nil {
		h.WriteError(c, http.StatusConflict, dto.NewAPIError(dto.ErrCodeCancelFailed, err.Error()))
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{
		Message: "Reconcile job cancelled successfully",
	})
}

func toJobsResponse(jobs []*service.Job) dto.ReconcileJobsResponse {
	response := dto.ReconcileJobsResponse{
		Jobs:  make([]dto.ReconcileJobResponse, 0, len(jobs)),
		Count: len(jobs),
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, toJobResponse(job))
	}
	return response
}

// toJobResponse converts a service job to an API response.
func toJobResponse(job *service.Job) dto.ReconcileJobResponse {
	response := dto.ReconcileJobResponse{
		JobID:      job.ID,
		Kind:       string(job.Kind),
		Status:     string(job.Status),
		Phase:      job.Progress.Phase,
		StartedAt:  job.StartedAt.Format(time.RFC3339),
		LastUpdate: job.Progress.LastUpdate.Format(time.RFC3339),
		Result:     job.Result,
	}

	if job.CompletedAt != nil {
		completedAt := job.CompletedAt.Format(time.RFC3339)
		response.CompletedAt = &completedAt
	}

	if job.Error != nil {
		errMsg := job.Error.Error()
		response.Error = &errMsg
	}

	return response
}
