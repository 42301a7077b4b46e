package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/middleware"
	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/services/audit"
	"github.com/sangrahalaya/ticketbot/services/booking"
	"github.com/sangrahalaya/ticketbot/utils"
)

// BookingService looks up events and stores paid bookings
type BookingService interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	CreateBooking(ctx context.Context, req booking.CreateRequest) (*models.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

// BookingAuditor records stored bookings in the audit trail
type BookingAuditor interface {
	LogBooking(info audit.RequestInfo, booking *models.Booking) error
}

// CreateBookingRequest is the booking summary the assistant produced plus
// the payment intent that paid for it
type CreateBookingRequest struct {
	models.BookingSummary
	PaymentIntentID string `json:"payment_intent_id"`
}

// BookingHandler handles event lookup and booking endpoints
type BookingHandler struct {
	service BookingService
	auditor BookingAuditor
	logger  *zap.Logger
}

// NewBookingHandler creates a new BookingHandler. auditor may be nil.
func NewBookingHandler(service BookingService, auditor BookingAuditor, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		auditor: auditor,
		logger:  logger,
	}
}

// HandleGetEvent handles GET /events/{id}
func (h *BookingHandler) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, event)
}

// HandleCreateBooking handles POST /bookings
func (h *BookingHandler) HandleCreateBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateBookingRequest
	if err := utils.DecodeJSON(r.Body, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	created, err := h.service.CreateBooking(ctx, booking.CreateRequest{
		Summary:         req.BookingSummary,
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if h.auditor != nil {
		info := audit.RequestInfo{
			RequestID: middleware.GetRequestIDFromContext(ctx),
			IPAddress: middleware.GetClientIPFromContext(ctx),
			UserAgent: middleware.GetUserAgentFromContext(ctx),
		}
		if err := h.auditor.LogBooking(info, created); err != nil {
			h.logger.Warn("failed to audit booking",
				zap.String("booking_id", created.ID.String()),
				zap.Error(err))
		}
	}

	_ = utils.WriteCreated(w, created)
}

// HandleGetBooking handles GET /bookings/{id}
func (h *BookingHandler) HandleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid booking ID", nil)
		return
	}

	found, err := h.service.GetBooking(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, found)
}
