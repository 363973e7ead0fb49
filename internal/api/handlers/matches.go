package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/stripe-ledger-recon/internal/api/dto"
	"github.com/eshaffer321/stripe-ledger-recon/internal/application/report"
	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/storage"
)

// MatchesHandler serves stored match records.
type MatchesHandler struct {
	*Base
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(repo storage.Repository) *MatchesHandler {
	return &MatchesHandler{Base: NewBase(repo)}
}

// List handles GET /api/matches.
//
// Query: match_type (started|succeeded), classification, date_from, date_to
// (YYYY-MM-DD, inclusive), limit, offset, format (json|csv), detail.
func (h *MatchesHandler) List(c *gin.Context) {
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	params := report.FilterParams{
		Pass:           c.Query("match_type"),
		Classification: c.Query("classification"),
		DateFrom:       c.Query("date_from"),
		DateTo:         c.Query("date_to"),
	}
	if params.Limit, err = report.ParseLimit(c.Query("limit"), 0); err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid limit"))
		return
	}
	if params.Offset, err = report.ParseLimit(c.Query("offset"), 0); err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid offset"))
		return
	}
	filters, err := params.MatchFilters()
	if err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	result, err := h.repo.ListMatches(c.Request.Context(), filters)
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	if format == report.FormatCSV {
		c.Header("Content-Disposition", `attachment; filename="matches.csv"`)
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)
		if err := report.WriteMatchesCSV(c.Writer, result.Records); err != nil {
			_ = c.Error(err)
		}
		return
	}

	response := dto.MatchListResponse{
		Matches:    report.ToMatchRows(result.Records),
		Count:      len(result.Records),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	}
	if ParseBoolParam(c, "detail", false) {
		response.Records = result.Records
	}
	c.JSON(http.StatusOK, response)
}
