package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of chatbot action being audited
type AuditAction string

const (
	AuditActionChatStarted      AuditAction = "chat_started"
	AuditActionChatTurn         AuditAction = "chat_turn"
	AuditActionGenerate         AuditAction = "generate"
	AuditActionBookingDetected  AuditAction = "booking_detected"
	AuditActionDocumentsAdded   AuditAction = "documents_added"
	AuditActionDocumentsDeleted AuditAction = "documents_deleted"
	AuditActionStoreRefreshed   AuditAction = "store_refreshed"
	AuditActionPaymentCreated   AuditAction = "payment_created"
	AuditActionPaymentConfirmed AuditAction = "payment_confirmed"
)

// AuditLog is one entry of the chatbot audit trail
type AuditLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Action    AuditAction     `json:"action" db:"action"`
	Details   json.RawMessage `json:"details" db:"details"`
	IPAddress string          `json:"ip_address" db:"ip_address"`
	UserAgent string          `json:"user_agent" db:"user_agent"`
	RequestID string          `json:"request_id" db:"request_id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`

	// Generation fields
	Model        *string `json:"model,omitempty" db:"model"`
	Provider     *string `json:"provider,omitempty" db:"provider"`
	Attempts     *int    `json:"attempts,omitempty" db:"attempts"`
	TokensUsed   *int    `json:"tokens_used,omitempty" db:"tokens_used"`
	LatencyMs    *int    `json:"latency_ms,omitempty" db:"latency_ms"`
	StatusCode   *int    `json:"status_code,omitempty" db:"status_code"`
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "chat_audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Details:   json.RawMessage(`{}`),
		Timestamp: time.Now(),
	}
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}

// WithGeneration records the generator that served the turn
func (a *AuditLog) WithGeneration(model, provider string, attempts, tokensUsed int, latency time.Duration) *AuditLog {
	latencyMs := int(latency.Milliseconds())
	a.Model = &model
	a.Provider = &provider
	a.Attempts = &attempts
	a.TokensUsed = &tokensUsed
	a.LatencyMs = &latencyMs
	return a
}

// WithError sets error information
func (a *AuditLog) WithError(statusCode int, errorMessage string) *AuditLog {
	a.StatusCode = &statusCode
	a.ErrorMessage = &errorMessage
	return a
}
