package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	intrag "github.com/sangrahalaya/ticketbot/internal/rag"
	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/repositories"
	"github.com/sangrahalaya/ticketbot/services"
	"github.com/sangrahalaya/ticketbot/services/embedding"
	"github.com/sangrahalaya/ticketbot/services/prompt"
	"github.com/sangrahalaya/ticketbot/services/providers"
)

const tracerName = "github.com/sangrahalaya/ticketbot/services/rag"

// Dependencies are the collaborators of the chat pipeline
type Dependencies struct {
	Generator        providers.Generator
	Store            repositories.DocumentStore
	DocumentEmbedder embedding.DocumentEmbedder
	QueryEmbedder    embedding.TextEmbedder
	Templates        *prompt.Templates
	Screener         *prompt.Screener
	Observer         Observer
	Logger           *zap.Logger
}

// Service orchestrates retrieval, prompting, generation and validation for
// the ticketing conversation. It keeps no conversation state: callers pass the
// full message history on every turn.
type Service struct {
	generator providers.Generator
	store     repositories.DocumentStore
	embedder  embedding.DocumentEmbedder
	retriever *intrag.Retriever
	templates *prompt.Templates
	screener  *prompt.Screener
	joiner    *Joiner
	extractor *Extractor
	observer  Observer
	config    Config
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewService creates the chat pipeline
func NewService(deps Dependencies, config Config) (*Service, error) {
	if deps.Generator == nil {
		return nil, errors.New("rag service requires a generator")
	}
	if deps.Store == nil {
		return nil, errors.New("rag service requires a document store")
	}
	if deps.DocumentEmbedder == nil {
		return nil, errors.New("rag service requires a document embedder")
	}
	if config.QueryTopK > 0 && deps.QueryEmbedder == nil {
		return nil, errors.New("retrieval is enabled but no query embedder is configured")
	}
	if deps.Templates == nil {
		templates, err := prompt.NewTemplates("", "")
		if err != nil {
			return nil, err
		}
		deps.Templates = templates
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Service{
		generator: deps.Generator,
		store:     deps.Store,
		embedder:  deps.DocumentEmbedder,
		templates: deps.Templates,
		screener:  deps.Screener,
		joiner:    NewJoiner(deps.Generator, ReplySchema, config.Generation, config.MaxRetries, deps.Logger),
		extractor: NewExtractor(nil),
		observer:  deps.Observer,
		config:    config,
		tracer:    otel.Tracer(tracerName),
		logger:    deps.Logger,
	}
	if deps.QueryEmbedder != nil {
		s.retriever = intrag.NewRetriever(deps.QueryEmbedder, deps.Store)
	}
	return s, nil
}

// NewChat starts a conversation: the system prompt rendered with every
// stored document, followed by the assistant's greeting
func (s *Service) NewChat(ctx context.Context) (_ []models.ChatMessage, err error) {
	ctx, span := s.tracer.Start(ctx, "rag.NewChat")
	defer func() { finishSpan(span, err) }()

	var stats Stats
	defer func() { s.observer.Observe(ctx, models.AuditActionChatStarted, stats, err) }()

	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, services.ErrDocumentStore.Wrap(err)
	}
	stats.Documents = models.DocumentIDs(docs)
	span.SetAttributes(attribute.Int("rag.documents", len(docs)))

	system, err := s.templates.System.Render(map[string]any{"documents": docs})
	if err != nil {
		return nil, services.ErrTemplateRender.Wrap(err)
	}

	messages, err := AssembleMessages(system, nil, models.RoleSystem)
	if err != nil {
		return nil, err
	}

	result, err := s.runTurn(ctx, span, messages, &stats)
	if err != nil {
		return nil, err
	}

	s.logger.Info("chat started",
		zap.Int("documents", len(docs)),
		zap.Int("attempts", result.Attempts))
	return result.History, nil
}

// Query answers the visitor's question in the context of history and returns
// the history extended by the user turn and the assistant reply
func (s *Service) Query(ctx context.Context, question string, history []models.ChatMessage) (_ []models.ChatMessage, err error) {
	ctx, span := s.tracer.Start(ctx, "rag.Query")
	defer func() { finishSpan(span, err) }()

	stats := Stats{Query: question}
	defer func() { s.observer.Observe(ctx, models.AuditActionChatTurn, stats, err) }()

	// Step 1: validate input
	if err := models.ValidateHistory(history); err != nil {
		return nil, services.ErrInvalidHistory.Wrap(err)
	}
	if strings.TrimSpace(question) == "" {
		return nil, services.ErrEmptyQuery
	}
	span.SetAttributes(attribute.Int("rag.history_length", len(history)))

	// Step 2: screen the question
	if err := s.screen(ctx, question); err != nil {
		return nil, err
	}

	// Step 3: retrieve related documents
	docs, err := s.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	stats.Documents = models.DocumentIDs(docs)
	span.SetAttributes(attribute.Int("rag.retrieved", len(docs)))

	// Step 4: render the user turn
	userPrompt, err := s.templates.User.Render(map[string]any{
		"query":     question,
		"documents": docs,
	})
	if err != nil {
		return nil, services.ErrTemplateRender.Wrap(err)
	}

	messages, err := AssembleMessages(userPrompt, history, models.RoleUser)
	if err != nil {
		return nil, err
	}

	// Step 5: generate and validate
	result, err := s.runTurn(ctx, span, messages, &stats)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("chat turn completed",
		zap.Int("history_length", len(result.History)),
		zap.Int("retrieved", len(docs)),
		zap.Int("attempts", result.Attempts))
	return result.History, nil
}

// AddDocuments embeds the documents and upserts them into the store
func (s *Service) AddDocuments(ctx context.Context, docs []models.Document) (_ int, err error) {
	ctx, span := s.tracer.Start(ctx, "rag.AddDocuments")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(attribute.Int("rag.documents", len(docs)))

	stats := Stats{Documents: models.DocumentIDs(docs)}
	defer func() { s.observer.Observe(ctx, models.AuditActionDocumentsAdded, stats, err) }()

	return s.indexDocuments(ctx, docs)
}

// DeleteDocuments removes documents by ID; unknown IDs are ignored
func (s *Service) DeleteDocuments(ctx context.Context, ids []string) (err error) {
	ctx, span := s.tracer.Start(ctx, "rag.DeleteDocuments")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(attribute.Int("rag.documents", len(ids)))

	defer func() {
		s.observer.Observe(ctx, models.AuditActionDocumentsDeleted, Stats{Documents: ids}, err)
	}()

	if len(ids) == 0 {
		return nil
	}
	if err := s.store.DeleteDocuments(ctx, ids); err != nil {
		return services.ErrDocumentStore.Wrap(err)
	}
	s.logger.Info("documents deleted", zap.Int("count", len(ids)))
	return nil
}

// ViewDocuments lists every stored document ordered by ID
func (s *Service) ViewDocuments(ctx context.Context) (_ []models.Document, err error) {
	ctx, span := s.tracer.Start(ctx, "rag.ViewDocuments")
	defer func() { finishSpan(span, err) }()

	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, services.ErrDocumentStore.Wrap(err)
	}
	return docs, nil
}

// CountDocuments returns the number of stored documents
func (s *Service) CountDocuments(ctx context.Context) (int, error) {
	count, err := s.store.CountDocuments(ctx)
	if err != nil {
		return 0, services.ErrDocumentStore.Wrap(err)
	}
	return count, nil
}

// RefreshDocumentStore re-indexes every event of source. Existing documents
// with the same ID are overwritten; documents of removed events stay.
func (s *Service) RefreshDocumentStore(ctx context.Context, source repositories.EventSource) (_ int, err error) {
	ctx, span := s.tracer.Start(ctx, "rag.RefreshDocumentStore")
	defer func() { finishSpan(span, err) }()

	var stats Stats
	defer func() { s.observer.Observe(ctx, models.AuditActionStoreRefreshed, stats, err) }()

	events, err := source.List(ctx)
	if err != nil {
		if services.GetErrorType(err) != "" {
			return 0, err
		}
		return 0, services.ErrDatabaseError.Wrap(err)
	}

	docs := make([]models.Document, 0, len(events))
	for _, event := range events {
		if event == nil {
			continue
		}
		doc, err := event.ToDocument()
		if err != nil {
			return 0, services.ErrInvalidDocuments.Wrap(err)
		}
		docs = append(docs, doc)
	}
	stats.Documents = models.DocumentIDs(docs)
	span.SetAttributes(attribute.Int("rag.documents", len(docs)))

	count, err := s.indexDocuments(ctx, docs)
	if err != nil {
		return 0, err
	}
	s.logger.Info("document store refreshed", zap.Int("events", count))
	return count, nil
}

// Generate runs a single prompt through the generator without JSON mode or
// validation
func (s *Service) Generate(ctx context.Context, text string) (_ string, err error) {
	ctx, span := s.tracer.Start(ctx, "rag.Generate")
	defer func() { finishSpan(span, err) }()

	var stats Stats
	defer func() { s.observer.Observe(ctx, models.AuditActionGenerate, stats, err) }()

	if strings.TrimSpace(text) == "" {
		return "", services.ErrEmptyPrompt
	}

	start := time.Now()
	resp, err := s.generator.Generate(ctx, &providers.GenerateRequest{
		Messages: []models.ChatMessage{models.NewUserMessage(text)},
		Model:    s.config.GenerateModel,
	})
	stats.Attempts = 1
	stats.Provider = s.generator.Name()
	if err != nil {
		return "", services.ErrProviderError.Wrap(err).WithDetail("provider", s.generator.Name())
	}
	stats.Model = resp.Model
	stats.Tokens = resp.Usage.Total()
	stats.Latency = time.Since(start)

	reply, ok := models.LastMessage(resp.Replies)
	if !ok {
		return "", services.ErrProviderError.Wrap(errors.New("generator returned no replies"))
	}
	return reply.Content, nil
}

// ExtractBooking looks for a booking summary in the last assistant message
func (s *Service) ExtractBooking(messages []models.ChatMessage) (map[string]any, bool) {
	return s.extractor.ExtractFromConversation(messages)
}

// GeneratorAvailable reports whether the chat generator answers
func (s *Service) GeneratorAvailable(ctx context.Context) bool {
	return s.generator.IsAvailable(ctx)
}

func (s *Service) screen(ctx context.Context, question string) error {
	if s.screener == nil {
		return nil
	}

	result, err := s.screener.Screen(ctx, question)
	if err != nil {
		return err
	}
	if result.Valid {
		if len(result.Warnings) > 0 {
			s.logger.Warn("query screening warnings", zap.Strings("warnings", result.Warnings))
		}
		return nil
	}

	if result.InjectionDetected {
		return services.ErrInjectionDetected.Wrap(errors.New(strings.Join(result.Errors, "; "))).
			WithDetail("risk_score", result.InjectionRiskScore)
	}
	return services.ErrInvalidInput.Wrap(errors.New(strings.Join(result.Errors, "; "))).
		WithDetail("errors", result.Errors)
}

func (s *Service) retrieve(ctx context.Context, question string) ([]models.Document, error) {
	if s.config.QueryTopK <= 0 || s.retriever == nil {
		return []models.Document{}, nil
	}

	docs, err := s.retriever.Retrieve(ctx, question, intrag.RetrievalOptions{
		TopK:      s.config.QueryTopK,
		Threshold: s.config.RetrievalThreshold,
	})
	if err != nil {
		if services.GetErrorType(err) != "" {
			return nil, err
		}
		return nil, services.ErrDocumentStore.Wrap(err)
	}
	return docs, nil
}

func (s *Service) runTurn(ctx context.Context, span trace.Span, messages []models.ChatMessage, stats *Stats) (*TurnResult, error) {
	stats.Provider = s.generator.Name()
	result, err := s.joiner.Run(ctx, messages)
	if err != nil {
		if attempts, ok := services.GetErrorDetails(err)["attempts"].(int); ok {
			stats.Attempts = attempts
		}
		return nil, err
	}

	stats.Model = result.Model
	stats.Attempts = result.Attempts
	stats.Tokens = result.Usage.Total()
	stats.Latency = result.Latency
	span.SetAttributes(
		attribute.String("llm.provider", result.Provider),
		attribute.String("llm.model", result.Model),
		attribute.Int("llm.attempts", result.Attempts),
		attribute.Int("llm.tokens", stats.Tokens),
	)
	return result, nil
}

func (s *Service) indexDocuments(ctx context.Context, docs []models.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	for i, doc := range docs {
		if strings.TrimSpace(doc.ID) == "" {
			return 0, services.ErrInvalidDocuments.Wrap(errors.New("document has no id")).WithDetail("index", i)
		}
	}

	embedded, err := s.embedder.EmbedDocuments(ctx, docs)
	if err != nil {
		return 0, err
	}
	if err := s.store.WriteDocuments(ctx, embedded); err != nil {
		return 0, services.ErrDocumentStore.Wrap(err)
	}

	s.logger.Info("documents indexed", zap.Int("count", len(embedded)))
	return len(embedded), nil
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
