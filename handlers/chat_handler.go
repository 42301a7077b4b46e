package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/middleware"
	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/utils"
)

// ChatService is the conversation side of the RAG pipeline
type ChatService interface {
	NewChat(ctx context.Context) ([]models.ChatMessage, error)
	Query(ctx context.Context, question string, history []models.ChatMessage) ([]models.ChatMessage, error)
	ExtractBooking(messages []models.ChatMessage) (map[string]any, bool)
	Generate(ctx context.Context, text string) (string, error)
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Query       string               `json:"query" validate:"required"`
	MessageList []models.ChatMessage `json:"message_list" validate:"dive"`
}

// ChatResponse carries the updated conversation and, once the assistant has
// confirmed a booking, the extracted booking summary
type ChatResponse struct {
	MessageList []models.ChatMessage `json:"message_list"`
	Booking     map[string]any       `json:"booking,omitempty"`
}

// GenerateRequest is the body of POST /generate
type GenerateRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// GenerateResponse is the reply of POST /generate
type GenerateResponse struct {
	GeneratedText string `json:"generated_text"`
}

// ChatHandler handles the conversation endpoints
type ChatHandler struct {
	service ChatService
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// HandleNewChat handles POST /chat/new
func (h *ChatHandler) HandleNewChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	messages, err := h.service.NewChat(ctx)
	if err != nil {
		h.logger.Warn("failed to start chat",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, ChatResponse{MessageList: messages})
}

// HandleChat handles POST /chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req ChatRequest
	if err := utils.DecodeJSON(r.Body, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	messages, err := h.service.Query(ctx, req.Query, req.MessageList)
	if err != nil {
		h.logger.Warn("chat turn failed",
			zap.String("request_id", requestID),
			zap.Int("history", len(req.MessageList)),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	resp := ChatResponse{MessageList: messages}
	if booking, ok := h.service.ExtractBooking(messages); ok {
		resp.Booking = booking
		h.logger.Info("booking summary extracted",
			zap.String("request_id", requestID),
			zap.Any("event_id", booking["event_id"]))
	}

	_ = utils.WriteJSON(w, http.StatusOK, resp)
}

// HandleGenerate handles POST /generate
func (h *ChatHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := utils.DecodeJSON(r.Body, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	text, err := h.service.Generate(r.Context(), req.Prompt)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, GenerateResponse{GeneratedText: text})
}
