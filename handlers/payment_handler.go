package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/middleware"
	"github.com/sangrahalaya/ticketbot/services/payment"
	"github.com/sangrahalaya/ticketbot/utils"
)

// PaymentGateway creates and confirms payment intents
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount int64) (*payment.Intent, error)
	ConfirmIntent(ctx context.Context, id string) (*payment.Intent, error)
}

// CreateIntentRequest is the body of POST /create-payment-intent. Amount is
// in the currency's minor unit.
type CreateIntentRequest struct {
	Amount int64 `json:"amount" validate:"gt=0"`
}

// CreateIntentResponse carries the secret the client confirms the card with
type CreateIntentResponse struct {
	ClientSecret string `json:"client_secret"`
}

// ConfirmIntentRequest is the body of POST /confirm-payment-intent
type ConfirmIntentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

// ConfirmIntentResponse reports the intent status after confirmation
type ConfirmIntentResponse struct {
	Status string `json:"status"`
}

// PaymentHandler handles the payment intent endpoints
type PaymentHandler struct {
	gateway PaymentGateway
	logger  *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(gateway PaymentGateway, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		gateway: gateway,
		logger:  logger,
	}
}

// HandleCreateIntent handles POST /create-payment-intent. The amount may be
// sent as a JSON body or as the amount query parameter.
func (h *PaymentHandler) HandleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req CreateIntentRequest
	if raw := r.URL.Query().Get("amount"); raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			_ = utils.WriteBadRequest(w, "amount must be an integer", nil)
			return
		}
		req.Amount = amount
	} else if err := utils.DecodeJSON(r.Body, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	intent, err := h.gateway.CreateIntent(r.Context(), req.Amount)
	if err != nil {
		h.logger.Warn("failed to create payment intent",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Int64("amount", req.Amount),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, CreateIntentResponse{ClientSecret: intent.ClientSecret})
}

// HandleConfirmIntent handles POST /confirm-payment-intent. The id may be
// sent as a JSON body or as the payment_intent_id query parameter.
func (h *PaymentHandler) HandleConfirmIntent(w http.ResponseWriter, r *http.Request) {
	var req ConfirmIntentRequest
	if id := strings.TrimSpace(r.URL.Query().Get("payment_intent_id")); id != "" {
		req.PaymentIntentID = id
	} else if err := utils.DecodeJSON(r.Body, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	intent, err := h.gateway.ConfirmIntent(r.Context(), req.PaymentIntentID)
	if err != nil {
		h.logger.Warn("failed to confirm payment intent",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.String("payment_intent_id", req.PaymentIntentID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, ConfirmIntentResponse{Status: intent.Status})
}
