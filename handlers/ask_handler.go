package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/rag-chatbot/middleware"
	"github.com/upb/rag-chatbot/models"
	"github.com/upb/rag-chatbot/services/rag"
	"github.com/upb/rag-chatbot/utils"
)

// AskService defines the question answering operation the handler depends on
type AskService interface {
	Ask(ctx context.Context, req rag.AskRequest) (*models.AnswerResult, error)
}

// AskHandler handles question answering requests
type AskHandler struct {
	service AskService
	logger  *zap.Logger
}

// NewAskHandler creates a new AskHandler
func NewAskHandler(service AskService, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		service: service,
		logger:  logger,
	}
}

// HandleAsk handles POST /ask
func (h *AskHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req rag.AskRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	h.logger.Debug("answering question",
		zap.String("request_id", requestID),
		zap.Int("top_k", req.TopK))

	result, err := h.service.Ask(ctx, req)
	if err != nil {
		h.logger.Warn("failed to answer question",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("failed to write answer", zap.String("request_id", requestID), zap.Error(err))
	}
}
