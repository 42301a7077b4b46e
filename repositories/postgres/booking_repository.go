package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/repositories"
)

// uniqueViolation is the PostgreSQL error code for a duplicate key
const uniqueViolation = "23505"

const bookingColumns = `id, event_id, customer_name, phone_number, adult_tickets, child_tickets,
		sr_citizen_tickets, student_tickets, foreigner_tickets, number_of_tickets, amount,
		booking_date, booking_time, interests, payment_intent_id, created_at`

// BookingRepository implements repositories.BookingRepository
type BookingRepository struct {
	db     *DB
	tx     *sql.Tx
	logger *zap.Logger
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *DB, logger *zap.Logger) repositories.BookingRepository {
	return &BookingRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new booking
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	interests := booking.Interests
	if interests == nil {
		interests = []string{}
	}
	interestsJSON, err := json.Marshal(interests)
	if err != nil {
		return fmt.Errorf("failed to encode interests: %w", err)
	}

	_, err = GetExecutor(ctx, r.db, r.tx).ExecContext(ctx, query,
		booking.ID,
		booking.EventID,
		booking.CustomerName,
		booking.PhoneNumber,
		booking.AdultTickets,
		booking.ChildTickets,
		booking.SeniorCitizenTickets,
		booking.StudentTickets,
		booking.ForeignerTickets,
		booking.NumberOfTickets,
		booking.Amount,
		booking.BookingDate,
		booking.BookingTime,
		interestsJSON,
		booking.PaymentIntentID,
		booking.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("booking for payment intent: %w", repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	r.logger.Debug("booking created",
		zap.String("id", booking.ID.String()),
		zap.String("event_id", booking.EventID))
	return nil
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByPaymentIntentID retrieves the booking paid by a payment intent
func (r *BookingRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_intent_id = $1`
	return r.getOne(ctx, query, paymentIntentID)
}

// WithTx returns a new repository instance bound to the transaction
func (r *BookingRepository) WithTx(tx repositories.Transaction) repositories.BookingRepository {
	return &BookingRepository{
		db:     r.db,
		tx:     sqlTx(tx),
		logger: r.logger,
	}
}

func (r *BookingRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Booking, error) {
	booking := &models.Booking{}
	var interests []byte
	var paymentIntentID sql.NullString

	err := GetExecutor(ctx, r.db, r.tx).QueryRowContext(ctx, query, arg).Scan(
		&booking.ID,
		&booking.EventID,
		&booking.CustomerName,
		&booking.PhoneNumber,
		&booking.AdultTickets,
		&booking.ChildTickets,
		&booking.SeniorCitizenTickets,
		&booking.StudentTickets,
		&booking.ForeignerTickets,
		&booking.NumberOfTickets,
		&booking.Amount,
		&booking.BookingDate,
		&booking.BookingTime,
		&interests,
		&paymentIntentID,
		&booking.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %v: %w", arg, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	booking.Interests = []string{}
	if len(interests) > 0 {
		if err := json.Unmarshal(interests, &booking.Interests); err != nil {
			return nil, fmt.Errorf("failed to decode booking interests: %w", err)
		}
	}
	if paymentIntentID.Valid {
		booking.PaymentIntentID = &paymentIntentID.String
	}
	return booking, nil
}
