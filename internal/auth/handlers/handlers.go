package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/brizzai/idverify/internal/auth/middleware"
	"github.com/brizzai/idverify/internal/auth/models"
	"github.com/brizzai/idverify/internal/auth/providers"
	"github.com/brizzai/idverify/internal/logger"
	"github.com/brizzai/idverify/internal/utils"
	"go.uber.org/zap"
)

// maxPayloadBytes bounds the verify request body
const maxPayloadBytes = 64 << 10

// Handler handles verification HTTP requests
type Handler struct {
	provider providers.Provider
}

// NewHandler creates a new Handler instance
func NewHandler(provider providers.Provider) *Handler {
	return &Handler{
		provider: provider,
	}
}

// HandleVerify handles POST /api/v1/verify
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var payload models.RequestPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes)).Decode(&payload); err != nil {
		utils.WriteError(w, "invalid_request", "Failed to decode request payload", http.StatusBadRequest)
		return
	}

	result := h.provider.Verify(r.Context(), &payload)
	if result == nil {
		result = models.Invalid()
	}

	logger.Info("Verification finished",
		zap.String("provider", h.provider.Type()),
		zap.Bool("valid", result.Valid),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
	)

	utils.WriteJSON(w, http.StatusOK, result)
}

// HandleHealth handles GET /healthz
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": h.provider.Type(),
	})
}
