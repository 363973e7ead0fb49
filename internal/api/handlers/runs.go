package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/stripe-ledger-recon/internal/api/dto"
	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/storage"
)

// RunsHandler handles reconciliation run history requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs - returns the most recent runs.
func (h *RunsHandler) List(c *gin.Context) {
	limit := ParseIntParam(c, "limit", 20)

	runs, err := h.repo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunListResponse{
		Runs:  make([]dto.RunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/runs/:id - returns a single run by ID.
func (h *RunsHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	run, err := h.repo.GetRun(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, toRunResponse(*run))
}

// toRunResponse converts a storage Run to an API response.
func toRunResponse(run storage.Run) dto.RunResponse {
	response := dto.RunResponse{
		ID:        run.ID,
		Kind:      string(run.Kind),
		Status:    string(run.Status),
		StartedAt: run.StartedAt.UTC().Format(time.RFC3339),
		Error:     run.Error,
	}
	if run.CompletedAt != nil {
		response.CompletedAt = run.CompletedAt.UTC().Format(time.RFC3339)
	}
	if run.Summary != "" && json.Valid([]byte(run.Summary)) {
		response.Summary = json.RawMessage(run.Summary)
	}
	return response
}
