// Package payment creates and confirms Stripe payment intents for ticket
// bookings.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/services"
)

// DefaultCurrency is used when no currency is configured
const DefaultCurrency = "inr"

// Intent is the part of a payment intent the chatbot front end needs
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Gateway creates and confirms payment intents
type Gateway interface {
	CreateIntent(ctx context.Context, amount int64) (*Intent, error)
	ConfirmIntent(ctx context.Context, id string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
}

// Config configures the Stripe gateway
type Config struct {
	APIKey             string
	Currency           string
	PaymentMethodTypes []string

	// Backends overrides the Stripe API backends; tests point it at a local server
	Backends *stripe.Backends
}

// StripeGateway implements Gateway with the Stripe client API
type StripeGateway struct {
	api                *client.API
	currency           string
	paymentMethodTypes []string
	logger             *zap.Logger
}

// NewStripeGateway creates a gateway with its own client; the global
// stripe.Key is never touched
func NewStripeGateway(cfg Config, logger *zap.Logger) *StripeGateway {
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if len(cfg.PaymentMethodTypes) == 0 {
		cfg.PaymentMethodTypes = []string{"card"}
	}

	return &StripeGateway{
		api:                client.New(cfg.APIKey, cfg.Backends),
		currency:           cfg.Currency,
		paymentMethodTypes: cfg.PaymentMethodTypes,
		logger:             logger,
	}
}

// CreateIntent creates a payment intent for amount, in the currency's
// smallest unit
func (g *StripeGateway) CreateIntent(ctx context.Context, amount int64) (*Intent, error) {
	if amount <= 0 {
		return nil, services.ErrInvalidInput.Wrap(errors.New("amount must be positive"))
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(g.currency),
		PaymentMethodTypes: stripe.StringSlice(g.paymentMethodTypes),
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, g.fail("create", err)
	}

	g.logger.Info("payment intent created",
		zap.String("payment_intent_id", pi.ID),
		zap.Int64("amount", amount),
		zap.String("currency", g.currency))

	return toIntent(pi), nil
}

// ConfirmIntent confirms a payment intent
func (g *StripeGateway) ConfirmIntent(ctx context.Context, id string) (*Intent, error) {
	if id == "" {
		return nil, services.ErrInvalidInput.Wrap(errors.New("payment intent id is required"))
	}

	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Confirm(id, params)
	if err != nil {
		return nil, g.fail("confirm", err)
	}

	g.logger.Info("payment intent confirmed",
		zap.String("payment_intent_id", pi.ID),
		zap.String("status", string(pi.Status)))

	return toIntent(pi), nil
}

// GetIntent retrieves a payment intent
func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	if id == "" {
		return nil, services.ErrInvalidInput.Wrap(errors.New("payment intent id is required"))
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, g.fail("retrieve", err)
	}
	return toIntent(pi), nil
}

// fail maps a Stripe error to ErrPaymentFailed carrying the processor's message
func (g *StripeGateway) fail(op string, err error) error {
	message := err.Error()
	domainErr := services.ErrPaymentFailed.Wrap(err)

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		message = stripeErr.Msg
		domainErr.WithDetail("code", string(stripeErr.Code))
		domainErr.WithDetail("decline_code", string(stripeErr.DeclineCode))
	}
	domainErr.WithDetail("processor_message", message)

	g.logger.Warn(fmt.Sprintf("failed to %s payment intent", op), zap.Error(err))
	return domainErr
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
}
