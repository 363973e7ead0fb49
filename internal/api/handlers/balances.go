package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/stripe-ledger-recon/internal/api/dto"
	"github.com/eshaffer321/stripe-ledger-recon/internal/application/report"
	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/storage"
)

// BalancesHandler serves the balance summary table.
type BalancesHandler struct {
	*Base
}

// NewBalancesHandler creates a new balances handler.
func NewBalancesHandler(repo storage.Repository) *BalancesHandler {
	return &BalancesHandler{Base: NewBase(repo)}
}

// List handles GET /api/balances?status=match|mismatch&format=json|csv.
func (h *BalancesHandler) List(c *gin.Context) {
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	status := records.BalanceStatus(c.Query("status"))
	switch status {
	case "", records.BalanceMatch, records.BalanceMismatch:
	default:
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError("status must be match or mismatch"))
		return
	}

	rows, err := h.repo.ListBalanceSummaries(c.Request.Context(), status)
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	if format == report.FormatCSV {
		c.Header("Content-Disposition", `attachment; filename="balances.csv"`)
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)
		if err := report.WriteBalancesCSV(c.Writer, rows); err != nil {
			_ = c.Error(err)
		}
		return
	}

	if rows == nil {
		rows = []records.BalanceSummary{}
	}
	response := dto.BalanceListResponse{Balances: rows, Count: len(rows)}
	for _, r := range rows {
		if r.Status == records.BalanceMismatch {
			response.Mismatched++
		}
	}
	c.JSON(http.StatusOK, response)
}
