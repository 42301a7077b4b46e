package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/repositories"
	"github.com/sangrahalaya/ticketbot/services"
	"github.com/sangrahalaya/ticketbot/utils"
)

var errNoEventSource = errors.New("event database is not configured")

// DocumentService manages the document store behind the chat pipeline
type DocumentService interface {
	AddDocuments(ctx context.Context, docs []models.Document) (int, error)
	DeleteDocuments(ctx context.Context, ids []string) error
	ViewDocuments(ctx context.Context) ([]models.Document, error)
	RefreshDocumentStore(ctx context.Context, source repositories.EventSource) (int, error)
}

// AddDocumentsRequest is the body of POST /documents
type AddDocumentsRequest struct {
	Docs []models.Document `json:"docs" validate:"required,dive"`
}

// DeleteDocumentsRequest is the body of DELETE /documents
type DeleteDocumentsRequest struct {
	IDs []string `json:"ids" validate:"required,dive,required"`
}

// DocumentHandler handles document store administration
type DocumentHandler struct {
	service DocumentService
	events  repositories.EventSource
	logger  *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler. events may be nil when
// no event database is configured, which disables refresh.
func NewDocumentHandler(service DocumentService, events repositories.EventSource, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		events:  events,
		logger:  logger,
	}
}

// HandleList handles GET /documents
func (h *DocumentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.ViewDocuments(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, docs)
}

// HandleAdd handles POST /documents
func (h *DocumentHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req AddDocumentsRequest
	if err := utils.DecodeJSON(r.Body, &req); err != nil {
		HandleValidationError(w, textEmbedderHint(err), h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	count, err := h.service.AddDocuments(r.Context(), req.Docs)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteMessage(w, "Documents added successfully", &count)
}

// HandleDelete handles DELETE /documents
func (h *DocumentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var req DeleteDocumentsRequest
	if err := utils.DecodeJSON(r.Body, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.service.DeleteDocuments(r.Context(), req.IDs); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteMessage(w, "Documents deleted successfully", nil)
}

// HandleRefresh handles POST /refresh
func (h *DocumentHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		HandleServiceError(w, services.ErrDatabaseError.Wrap(errNoEventSource), h.logger)
		return
	}

	count, err := h.service.RefreshDocumentStore(r.Context(), h.events)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteMessage(w, "RAG service refreshed successfully", &count)
}

// textEmbedderHint points callers that post a bare string as docs at the
// query text embedder, which is the component that embeds plain strings
func textEmbedderHint(err error) error {
	var validationErr *utils.ValidationError
	if !errors.As(err, &validationErr) {
		return err
	}
	if _, ok := validationErr.Fields["docs"]; !ok || !strings.HasSuffix(validationErr.Message, "got string") {
		return err
	}
	return &utils.ValidationError{
		Message: validationErr.Message + "; the document embedder expects a list of documents, use the query text embedder to embed a string",
		Fields:  validationErr.Fields,
	}
}
