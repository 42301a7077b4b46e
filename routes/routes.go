package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sangrahalaya/ticketbot/app"
	"github.com/sangrahalaya/ticketbot/handlers"
	"github.com/sangrahalaya/ticketbot/middleware"
	"github.com/sangrahalaya/ticketbot/repositories"
	"github.com/sangrahalaya/ticketbot/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestContext)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(deps.Config.Server.RequestTimeout))

	// The chat widget is embedded on arbitrary museum pages
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	health := handlers.NewHealthHandler(healthChecks(deps), deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	// Chat
	chat := handlers.NewChatHandler(deps.Chat, deps.Logger)
	r.Post("/chat/new", chat.HandleNewChat)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimitMiddleware.Limit)
		r.Post("/chat", chat.HandleChat)
		r.Post("/generate", chat.HandleGenerate)
	})

	// Documents
	var events repositories.EventSource
	if deps.Repositories != nil {
		events = deps.Repositories.Events
	}
	docs := handlers.NewDocumentHandler(deps.Chat, events, deps.Logger)
	r.Get("/documents", docs.HandleList)
	r.Group(func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAdmin)
		r.Post("/documents", docs.HandleAdd)
		r.Delete("/documents", docs.HandleDelete)
		r.Post("/refresh", docs.HandleRefresh)
	})

	// Payments
	if deps.Payments != nil {
		payments := handlers.NewPaymentHandler(deps.Payments, deps.Logger)
		r.Post("/create-payment-intent", payments.HandleCreateIntent)
		r.Post("/confirm-payment-intent", payments.HandleConfirmIntent)
	}

	// Events and bookings
	if deps.Bookings != nil {
		var auditor handlers.BookingAuditor
		if deps.Audit != nil {
			auditor = deps.Audit
		}
		bookings := handlers.NewBookingHandler(deps.Bookings, auditor, deps.Logger)
		r.Get("/events/{id}", bookings.HandleGetEvent)
		r.Post("/bookings", bookings.HandleCreateBooking)
		r.Get("/bookings/{id}", bookings.HandleGetBooking)
	}

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}

// healthChecks lists the readiness probes of the configured components
func healthChecks(deps *app.Dependencies) map[string]handlers.Check {
	checks := map[string]handlers.Check{
		"document_store": deps.DocumentStore.Ping,
		"generator":      handlers.AvailabilityCheck("generator", deps.Chat.GeneratorAvailable),
	}
	if deps.DB != nil {
		checks["database"] = handlers.DatabaseCheck(deps.DB.DB)
	}
	if deps.EmbeddingCache != nil {
		checks["cache"] = deps.EmbeddingCache.Ping
	}
	return checks
}
