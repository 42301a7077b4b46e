package booking

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/repositories"
	"github.com/sangrahalaya/ticketbot/services"
	"github.com/sangrahalaya/ticketbot/services/payment"
)

// paidStatus is the payment intent status that allows a booking
const paidStatus = "succeeded"

// CreateRequest is a confirmed booking summary plus the intent that paid for it
type CreateRequest struct {
	Summary         models.BookingSummary
	PaymentIntentID string
}

// Service looks up events and stores paid bookings
type Service struct {
	events   repositories.EventRepository
	bookings repositories.BookingRepository
	txMgr    repositories.TransactionManager
	payments payment.Gateway
	logger   *zap.Logger
}

// NewService creates a booking service. payments may be nil, in which case
// bookings are stored without checking a payment intent.
func NewService(repos *repositories.Repositories, payments payment.Gateway, logger *zap.Logger) *Service {
	return &Service{
		events:   repos.Events,
		bookings: repos.Bookings,
		txMgr:    repos.Transactions,
		payments: payments,
		logger:   logger,
	}
}

// GetEvent returns an event by ID
func (s *Service) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	if id == "" {
		return nil, services.ErrInvalidInput.Wrap(errors.New("event id is required"))
	}

	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrEventNotFound.Wrap(err).WithDetail("event_id", id)
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	return event, nil
}

// CreateBooking stores a booking once its event exists and its payment
// intent has succeeded for the booking amount
func (s *Service) CreateBooking(ctx context.Context, req CreateRequest) (*models.Booking, error) {
	summary := req.Summary
	if summary.TotalTickets() <= 0 {
		return nil, services.ErrInvalidInput.Wrap(errors.New("a booking needs at least one ticket"))
	}

	if _, err := s.GetEvent(ctx, summary.EventID); err != nil {
		return nil, err
	}

	if s.payments != nil {
		if err := s.verifyPayment(ctx, req.PaymentIntentID, summary.BookingAmount); err != nil {
			return nil, err
		}
	}

	booking := models.NewBookingFromSummary(summary).WithPaymentIntent(req.PaymentIntentID)

	err := services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		return s.bookings.WithTx(tx).Create(ctx, booking)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrDuplicateBooking.Wrap(err).WithDetail("payment_intent_id", req.PaymentIntentID)
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("event_id", booking.EventID),
		zap.Int("tickets", booking.NumberOfTickets))

	return booking, nil
}

// GetBooking returns a booking by ID
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrBookingNotFound.Wrap(err)
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	return booking, nil
}

func (s *Service) verifyPayment(ctx context.Context, intentID string, amount float64) error {
	if intentID == "" {
		return services.ErrInvalidInput.Wrap(errors.New("payment_intent_id is required"))
	}

	intent, err := s.payments.GetIntent(ctx, intentID)
	if err != nil {
		return err
	}
	if intent.Status != paidStatus {
		return services.ErrPaymentFailed.Wrap(fmt.Errorf("payment intent is %s", intent.Status)).
			WithDetail("status", intent.Status)
	}
	if want := MinorUnits(amount); intent.Amount != want {
		return services.ErrPaymentFailed.Wrap(fmt.Errorf("paid %d, booking costs %d", intent.Amount, want)).
			WithDetail("amount", intent.Amount)
	}
	return nil
}

// MinorUnits converts a booking amount to the currency's smallest unit
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
