package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/stripe-ledger-recon/internal/api/dto"
	"github.com/eshaffer321/stripe-ledger-recon/internal/api/handlers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealthHandler_Get(t *testing.T) {
	t.Run("returns 200 OK with health status", func(t *testing.T) {
		router := gin.New()
		router.GET("/health", handlers.NewHealthHandler().Get)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

		var response dto.HealthResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, "ok", response.Status)
		assert.NotEmpty(t, response.Timestamp)
	})
}
