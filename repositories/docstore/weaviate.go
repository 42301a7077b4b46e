package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	wmodels "github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/models"
)

const (
	// weaviateListPageSize bounds each cursor page when listing
	weaviateListPageSize = 100

	propDocID   = "doc_id"
	propContent = "content"
	propMeta    = "meta"
)

// documentNamespace seeds the deterministic object UUIDs derived from document IDs
var documentNamespace = uuid.MustParse("6f1c2a4e-8d0b-5b7e-9a3f-1c2d3e4f5a6b")

// WeaviateConfig configures the Weaviate backend
type WeaviateConfig struct {
	URL     string
	APIKey  string
	Class   string
	Timeout time.Duration
}

// WeaviateStore keeps documents in a Weaviate class with client-supplied vectors
type WeaviateStore struct {
	client *weaviate.Client
	class  string
	logger *zap.Logger
}

// NewWeaviateStore connects to Weaviate and creates the class when missing
func NewWeaviateStore(ctx context.Context, cfg WeaviateConfig, logger *zap.Logger) (*WeaviateStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Class == "" {
		cfg.Class = "Document"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid weaviate url %q", cfg.URL)
	}

	clientCfg := weaviate.Config{
		Host:             parsed.Host,
		Scheme:           parsed.Scheme,
		ConnectionClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.APIKey != "" {
		clientCfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	client, err := weaviate.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	store := &WeaviateStore{
		client: client,
		class:  cfg.Class,
		logger: logger,
	}
	if err := store.ensureClass(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *WeaviateStore) ensureClass(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(s.class).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check weaviate class: %w", err)
	}
	if exists {
		return nil
	}

	class := &wmodels.Class{
		Class:      s.class,
		Vectorizer: "none",
		Properties: []*wmodels.Property{
			{Name: propDocID, DataType: []string{"text"}},
			{Name: propContent, DataType: []string{"text"}},
			{Name: propMeta, DataType: []string{"text"}},
		},
	}
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create weaviate class %s: %w", s.class, err)
	}
	s.logger.Info("created weaviate class", zap.String("class", s.class))
	return nil
}

// ObjectID maps a document ID to its deterministic Weaviate UUID
func ObjectID(docID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(documentNamespace, []byte(docID)).String())
}

// WriteDocuments upserts documents through the batch API. Objects with the
// same UUID are replaced.
func (s *WeaviateStore) WriteDocuments(ctx context.Context, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}

	objects := make([]*wmodels.Object, 0, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document %d has no id", i)
		}
		obj, err := s.toObject(doc)
		if err != nil {
			return err
		}
		objects = append(objects, obj)
	}

	results, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate batch write failed: %w", err)
	}
	return batchErrors(results)
}

// DeleteDocuments removes documents by ID; missing objects are ignored
func (s *WeaviateStore) DeleteDocuments(ctx context.Context, ids []string) error {
	for _, id := range ids {
		err := s.client.Data().Deleter().
			WithClassName(s.class).
			WithID(ObjectID(id).String()).
			Do(ctx)
		if err == nil || isNotFound(err) {
			continue
		}
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// ListDocuments pages through the class with a cursor and returns the
// documents ordered by ID
func (s *WeaviateStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	docs := []models.Document{}
	after := ""
	for {
		query := s.client.GraphQL().Get().
			WithClassName(s.class).
			WithFields(s.fields("id", "vector")...).
			WithLimit(weaviateListPageSize)
		if after != "" {
			query = query.WithAfter(after)
		}

		resp, err := query.Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("weaviate list failed: %w", err)
		}
		page, lastID, err := decodeGetResponse(resp, s.class)
		if err != nil {
			return nil, err
		}
		docs = append(docs, page...)

		if len(page) < weaviateListPageSize || lastID == "" {
			break
		}
		after = lastID
	}

	sortByID(docs)
	return docs, nil
}

// QueryByEmbedding runs a nearVector search; the score is 1 - cosine distance
func (s *WeaviateStore) QueryByEmbedding(ctx context.Context, embedding []float32, topK int) ([]models.Document, error) {
	if topK <= 0 {
		topK = 10
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(embedding)
	resp, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(s.fields("id", "vector", "distance")...).
		WithNearVector(nearVector).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate query failed: %w", err)
	}

	docs, _, err := decodeGetResponse(resp, s.class)
	return docs, err
}

// CountDocuments aggregates the object count of the class
func (s *WeaviateStore) CountDocuments(ctx context.Context) (int, error) {
	resp, err := s.client.GraphQL().Aggregate().
		WithClassName(s.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("weaviate count failed: %w", err)
	}
	return decodeCountResponse(resp, s.class)
}

// Ping checks the readiness endpoint
func (s *WeaviateStore) Ping(ctx context.Context) error {
	ready, err := s.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate readiness check failed: %w", err)
	}
	if !ready {
		return errors.New("weaviate is not ready")
	}
	return nil
}

func (s *WeaviateStore) fields(additional ...string) []graphql.Field {
	extra := make([]graphql.Field, len(additional))
	for i, name := range additional {
		extra[i] = graphql.Field{Name: name}
	}
	return []graphql.Field{
		{Name: propDocID},
		{Name: propContent},
		{Name: propMeta},
		{Name: "_additional", Fields: extra},
	}
}

func (s *WeaviateStore) toObject(doc models.Document) (*wmodels.Object, error) {
	meta := doc.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("document %s: failed to encode meta: %w", doc.ID, err)
	}

	return &wmodels.Object{
		Class: s.class,
		ID:    ObjectID(doc.ID),
		Properties: map[string]any{
			propDocID:   doc.ID,
			propContent: doc.Content,
			propMeta:    string(metaJSON),
		},
		Vector: doc.Embedding,
	}, nil
}

func batchErrors(results []wmodels.ObjectsGetResponse) error {
	var messages []string
	for _, res := range results {
		if res.Result == nil || res.Result.Errors == nil {
			continue
		}
		for _, item := range res.Result.Errors.Error {
			if item != nil {
				messages = append(messages, item.Message)
			}
		}
	}
	if len(messages) > 0 {
		return fmt.Errorf("weaviate batch write rejected objects: %s", strings.Join(messages, "; "))
	}
	return nil
}

func isNotFound(err error) bool {
	var clientErr *fault.WeaviateClientError
	return errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusNotFound
}

func graphQLError(resp *wmodels.GraphQLResponse) error {
	if resp == nil {
		return errors.New("empty weaviate response")
	}
	if len(resp.Errors) == 0 {
		return nil
	}
	messages := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		if e != nil {
			messages = append(messages, e.Message)
		}
	}
	return fmt.Errorf("weaviate graphql error: %s", strings.Join(messages, "; "))
}

// decodeGetResponse converts a GraphQL Get result into documents and returns
// the Weaviate id of the last object for cursor paging
func decodeGetResponse(resp *wmodels.GraphQLResponse, class string) ([]models.Document, string, error) {
	if err := graphQLError(resp); err != nil {
		return nil, "", err
	}

	get, ok := resp.Data["Get"].(map[string]any)
	if !ok {
		return nil, "", errors.New("weaviate response has no Get section")
	}
	items, _ := get[class].([]any)

	docs := make([]models.Document, 0, len(items))
	lastID := ""
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		doc := models.Document{
			ID:      stringProp(obj, propDocID),
			Content: stringProp(obj, propContent),
		}
		if raw := stringProp(obj, propMeta); raw != "" && raw != "{}" {
			if err := json.Unmarshal([]byte(raw), &doc.Meta); err != nil {
				return nil, "", fmt.Errorf("document %s: failed to decode meta: %w", doc.ID, err)
			}
		}

		if additional, ok := obj["_additional"].(map[string]any); ok {
			if id, ok := additional["id"].(string); ok {
				lastID = id
			}
			if vector, ok := additional["vector"].([]any); ok {
				doc.Embedding = toFloat32s(vector)
			}
			if distance, ok := additional["distance"].(float64); ok {
				score := 1 - distance
				doc.Score = &score
			}
		}
		docs = append(docs, doc)
	}
	return docs, lastID, nil
}

func decodeCountResponse(resp *wmodels.GraphQLResponse, class string) (int, error) {
	if err := graphQLError(resp); err != nil {
		return 0, err
	}

	aggregate, ok := resp.Data["Aggregate"].(map[string]any)
	if !ok {
		return 0, errors.New("weaviate response has no Aggregate section")
	}
	groups, _ := aggregate[class].([]any)
	if len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]any)
	meta, _ := group["meta"].(map[string]any)
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func stringProp(obj map[string]any, key string) string {
	v, _ := obj[key].(string)
	return v
}

func toFloat32s(values []any) []float32 {
	out := make([]float32, 0, len(values))
	for _, v := range values {
		if f, ok := v.(float64); ok {
			out = append(out, float32(f))
		}
	}
	return out
}
