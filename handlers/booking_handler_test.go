package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/middleware"
	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/services"
	"github.com/sangrahalaya/ticketbot/services/audit"
	"github.com/sangrahalaya/ticketbot/services/booking"
)

// MockBookingService is a mock implementation of BookingService
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockBookingService) CreateBooking(ctx context.Context, req booking.CreateRequest) (*models.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingService) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

// MockBookingAuditor is a mock implementation of BookingAuditor
type MockBookingAuditor struct {
	mock.Mock
}

func (m *MockBookingAuditor) LogBooking(info audit.RequestInfo, b *models.Booking) error {
	return m.Called(info, b).Error(0)
}

func newBookingRouter(h *BookingHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/events/{id}", h.HandleGetEvent)
	r.Post("/bookings", h.HandleCreateBooking)
	r.Get("/bookings/{id}", h.HandleGetBooking)
	return r
}

func sampleSummary() models.BookingSummary {
	return models.BookingSummary{
		Name:          "Asha Rao",
		PhoneNumber:   "9876543210",
		EventID:       "EV01",
		AdultTickets:  2,
		BookingAmount: 500,
		BookingDate:   "2024-08-15",
		BookingTime:   "1000",
		Interests:     []string{"sculpture"},
	}
}

func TestBookingHandler_GetEvent(t *testing.T) {
	svc := new(MockBookingService)
	svc.On("GetEvent", mock.Anything, "EV01").Return(&models.Event{
		ID:     "EV01",
		Fields: map[string]any{"name": "Chola Bronzes", "price": float64(250)},
	}, nil)
	svc.On("GetEvent", mock.Anything, "EV99").Return(nil, services.ErrEventNotFound)

	router := newBookingRouter(NewBookingHandler(svc, nil, zap.NewNop()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/EV01", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var event map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&event))
	assert.Equal(t, "EV01", event["id"])
	assert.Equal(t, "Chola Bronzes", event["name"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/EV99", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookingHandler_CreateBooking(t *testing.T) {
	t.Run("stores and audits the booking", func(t *testing.T) {
		svc := new(MockBookingService)
		auditor := new(MockBookingAuditor)

		created := models.NewBookingFromSummary(sampleSummary()).WithPaymentIntent("pi_1")
		svc.On("CreateBooking", mock.Anything, booking.CreateRequest{
			Summary:         sampleSummary(),
			PaymentIntentID: "pi_1",
		}).Return(created, nil)
		auditor.On("LogBooking", audit.RequestInfo{RequestID: "req-1", IPAddress: "10.0.0.1"}, created).Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/bookings", jsonBody(t, CreateBookingRequest{
			BookingSummary:  sampleSummary(),
			PaymentIntentID: "pi_1",
		}))
		ctx := middleware.WithClientIP(middleware.WithRequestID(req.Context(), "req-1"), "10.0.0.1")

		w := httptest.NewRecorder()
		newBookingRouter(NewBookingHandler(svc, auditor, zap.NewNop())).ServeHTTP(w, req.WithContext(ctx))

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Data models.Booking `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, created.ID, resp.Data.ID)
		assert.Equal(t, 2, resp.Data.NumberOfTickets)
		svc.AssertExpectations(t)
		auditor.AssertExpectations(t)
	})

	t.Run("missing required fields", func(t *testing.T) {
		svc := new(MockBookingService)
		summary := sampleSummary()
		summary.PhoneNumber = ""

		w := httptest.NewRecorder()
		newBookingRouter(NewBookingHandler(svc, nil, zap.NewNop())).ServeHTTP(w,
			httptest.NewRequest(http.MethodPost, "/bookings", jsonBody(t, CreateBookingRequest{BookingSummary: summary})))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	})

	t.Run("unpaid intent", func(t *testing.T) {
		svc := new(MockBookingService)
		svc.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, services.ErrPaymentFailed)

		w := httptest.NewRecorder()
		newBookingRouter(NewBookingHandler(svc, nil, zap.NewNop())).ServeHTTP(w,
			httptest.NewRequest(http.MethodPost, "/bookings", jsonBody(t, CreateBookingRequest{BookingSummary: sampleSummary(), PaymentIntentID: "pi_open"})))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate payment intent", func(t *testing.T) {
		svc := new(MockBookingService)
		svc.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, services.ErrDuplicateBooking)

		w := httptest.NewRecorder()
		newBookingRouter(NewBookingHandler(svc, nil, zap.NewNop())).ServeHTTP(w,
			httptest.NewRequest(http.MethodPost, "/bookings", jsonBody(t, CreateBookingRequest{BookingSummary: sampleSummary(), PaymentIntentID: "pi_1"})))

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestBookingHandler_GetBooking(t *testing.T) {
	svc := new(MockBookingService)
	id := uuid.New()
	found := models.NewBookingFromSummary(sampleSummary())
	found.ID = id
	svc.On("GetBooking", mock.Anything, id).Return(found, nil)
	svc.On("GetBooking", mock.Anything, mock.Anything).Return(nil, services.ErrBookingNotFound)

	router := newBookingRouter(NewBookingHandler(svc, nil, zap.NewNop()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/"+id.String(), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/"+uuid.New().String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
