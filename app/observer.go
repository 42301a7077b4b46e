package app

import (
	"context"

	"go.uber.org/zap"

	intprompt "github.com/sangrahalaya/ticketbot/internal/prompt"
	"github.com/sangrahalaya/ticketbot/middleware"
	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/services/audit"
	"github.com/sangrahalaya/ticketbot/services/rag"
)

// actionLogger is the part of the audit service the chat observer needs
type actionLogger interface {
	LogAction(action models.AuditAction, info audit.RequestInfo, gen *audit.Generation, details map[string]interface{}, opErr error) error
}

// chatAuditObserver records every chat pipeline operation in the audit trail.
// Visitor questions are stored with personal data redacted.
type chatAuditObserver struct {
	auditor actionLogger
	logger  *zap.Logger
}

func newChatAuditObserver(auditor actionLogger, logger *zap.Logger) *chatAuditObserver {
	return &chatAuditObserver{auditor: auditor, logger: logger}
}

// Observe implements rag.Observer
func (o *chatAuditObserver) Observe(ctx context.Context, action models.AuditAction, stats rag.Stats, err error) {
	info := audit.RequestInfo{
		RequestID: middleware.GetRequestIDFromContext(ctx),
		IPAddress: middleware.GetClientIPFromContext(ctx),
		UserAgent: middleware.GetUserAgentFromContext(ctx),
	}

	var gen *audit.Generation
	if stats.Model != "" || stats.Attempts > 0 {
		gen = &audit.Generation{
			Model:    stats.Model,
			Provider: stats.Provider,
			Attempts: stats.Attempts,
			Tokens:   stats.Tokens,
			Latency:  stats.Latency,
		}
	}

	details := map[string]interface{}{}
	if len(stats.Documents) > 0 {
		details["documents"] = stats.Documents
	}
	if stats.Query != "" {
		details["query"] = intprompt.RedactPII(stats.Query)
	}

	if logErr := o.auditor.LogAction(action, info, gen, details, err); logErr != nil {
		o.logger.Warn("failed to queue chat audit event",
			zap.String("action", string(action)),
			zap.Error(logErr))
	}
}
