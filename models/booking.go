package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingSummary is the confirmation object the assistant emits inside its
// reply once every booking detail has been collected.
type BookingSummary struct {
	Name                 string   `json:"name" jsonschema:"required" validate:"required"`
	PhoneNumber          string   `json:"phone_number" jsonschema:"required" validate:"required"`
	EventID              string   `json:"event_id" jsonschema:"required" validate:"required"`
	AdultTickets         int      `json:"no_of_adult_tickets,omitempty" jsonschema:"minimum=0" validate:"gte=0"`
	ChildTickets         int      `json:"no_of_child_tickets,omitempty" jsonschema:"minimum=0" validate:"gte=0"`
	SeniorCitizenTickets int      `json:"no_of_sr_citizen_tickets,omitempty" jsonschema:"minimum=0" validate:"gte=0"`
	StudentTickets       int      `json:"no_of_student_tickets,omitempty" jsonschema:"minimum=0" validate:"gte=0"`
	ForeignerTickets     int      `json:"no_of_foreigner_tickets,omitempty" jsonschema:"minimum=0" validate:"gte=0"`
	BookingAmount        float64  `json:"booking_amount" jsonschema:"required,minimum=0" validate:"gte=0"`
	BookingDate          string   `json:"booking_date" jsonschema:"required" validate:"required"`
	BookingTime          string   `json:"booking_time,omitempty"`
	Interests            []string `json:"interests,omitempty"`
}

// TotalTickets sums the tickets of every category
func (s BookingSummary) TotalTickets() int {
	return s.AdultTickets + s.ChildTickets + s.SeniorCitizenTickets + s.StudentTickets + s.ForeignerTickets
}

// Booking is a confirmed ticket booking persisted in the bookings table
type Booking struct {
	ID                   uuid.UUID `json:"id" db:"id"`
	EventID              string    `json:"event_id" db:"event_id"`
	CustomerName         string    `json:"name" db:"customer_name"`
	PhoneNumber          string    `json:"phone_number" db:"phone_number"`
	AdultTickets         int       `json:"no_of_adult_tickets" db:"adult_tickets"`
	ChildTickets         int       `json:"no_of_child_tickets" db:"child_tickets"`
	SeniorCitizenTickets int       `json:"no_of_sr_citizen_tickets" db:"sr_citizen_tickets"`
	StudentTickets       int       `json:"no_of_student_tickets" db:"student_tickets"`
	ForeignerTickets     int       `json:"no_of_foreigner_tickets" db:"foreigner_tickets"`
	NumberOfTickets      int       `json:"number_of_tickets" db:"number_of_tickets"`
	Amount               float64   `json:"booking_amount" db:"amount"`
	BookingDate          string    `json:"booking_date" db:"booking_date"`
	BookingTime          string    `json:"booking_time" db:"booking_time"`
	Interests            []string  `json:"interests" db:"interests"`
	PaymentIntentID      *string   `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Booking model
func (Booking) TableName() string {
	return "bookings"
}

// NewBookingFromSummary creates a Booking from a confirmed summary.
// A general admission booking without a time is stored as "0000".
func NewBookingFromSummary(s BookingSummary) *Booking {
	bookingTime := s.BookingTime
	if bookingTime == "" {
		bookingTime = "0000"
	}
	interests := s.Interests
	if interests == nil {
		interests = []string{}
	}
	return &Booking{
		ID:                   uuid.New(),
		EventID:              s.EventID,
		CustomerName:         s.Name,
		PhoneNumber:          s.PhoneNumber,
		AdultTickets:         s.AdultTickets,
		ChildTickets:         s.ChildTickets,
		SeniorCitizenTickets: s.SeniorCitizenTickets,
		StudentTickets:       s.StudentTickets,
		ForeignerTickets:     s.ForeignerTickets,
		NumberOfTickets:      s.TotalTickets(),
		Amount:               s.BookingAmount,
		BookingDate:          s.BookingDate,
		BookingTime:          bookingTime,
		Interests:            interests,
		CreatedAt:            time.Now(),
	}
}

// WithPaymentIntent records the payment intent that paid for the booking
func (b *Booking) WithPaymentIntent(id string) *Booking {
	if id != "" {
		b.PaymentIntentID = &id
	}
	return b
}
