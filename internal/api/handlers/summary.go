package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/stripe-ledger-recon/internal/api/dto"
	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/storage"
)

// SummaryHandler serves the dashboard overview.
type SummaryHandler struct {
	*Base
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(repo storage.Repository) *SummaryHandler {
	return &SummaryHandler{Base: NewBase(repo)}
}

// Get handles GET /api/summary.
func (h *SummaryHandler) Get(c *gin.Context) {
	sum, err := h.repo.GetDashboardSummary(c.Request.Context())
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.SummaryResponse{
		StripeTransactions: sum.StripeTransactions,
		LedgerTransactions: sum.LedgerTransactions,
		LinkedToBalance:    sum.LinkedToBalance,
		PendingBalanceLink: sum.PendingBalanceLink,
		StartedMatches:     sum.PassStats[records.PassStarted],
		SucceededMatches:   sum.PassStats[records.PassSucceeded],
		BalanceRows:        sum.BalanceRows,
		BalanceMismatches:  sum.BalanceMismatches,
	}
	if sum.LastRun != nil {
		run := toRunResponse(*sum.LastRun)
		response.LastRun = &run
	}
	c.JSON(http.StatusOK, response)
}
