package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/repositories"
	"github.com/sangrahalaya/ticketbot/services"
	"github.com/sangrahalaya/ticketbot/utils"
)

// MockDocumentService is a mock implementation of DocumentService
type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) AddDocuments(ctx context.Context, docs []models.Document) (int, error) {
	args := m.Called(ctx, docs)
	return args.Int(0), args.Error(1)
}

func (m *MockDocumentService) DeleteDocuments(ctx context.Context, ids []string) error {
	return m.Called(ctx, ids).Error(0)
}

func (m *MockDocumentService) ViewDocuments(ctx context.Context) ([]models.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Document), args.Error(1)
}

func (m *MockDocumentService) RefreshDocumentStore(ctx context.Context, source repositories.EventSource) (int, error) {
	args := m.Called(ctx, source)
	return args.Int(0), args.Error(1)
}

type staticEvents []*models.Event

func (s staticEvents) List(ctx context.Context) ([]*models.Event, error) {
	return s, nil
}

func TestDocumentHandler_List(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("ViewDocuments", mock.Anything).Return([]models.Document{
		{ID: "EV01", Content: "Chola Bronzes", Meta: map[string]any{"price": float64(200)}},
	}, nil)

	w := httptest.NewRecorder()
	NewDocumentHandler(svc, nil, zap.NewNop()).HandleList(w, httptest.NewRequest(http.MethodGet, "/documents", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var docs []models.Document
	require.NoError(t, json.NewDecoder(w.Body).Decode(&docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "EV01", docs[0].ID)
}

func TestDocumentHandler_Add(t *testing.T) {
	t.Run("adds documents", func(t *testing.T) {
		svc := new(MockDocumentService)
		docs := []models.Document{{ID: "EV01", Content: "Chola Bronzes"}, {ID: "EV02", Content: "Miniature Paintings"}}
		svc.On("AddDocuments", mock.Anything, docs).Return(2, nil)

		req := httptest.NewRequest(http.MethodPost, "/documents", jsonBody(t, AddDocumentsRequest{Docs: docs}))
		w := httptest.NewRecorder()
		NewDocumentHandler(svc, nil, zap.NewNop()).HandleAdd(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp utils.MessageResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "Documents added successfully", resp.Message)
		require.NotNil(t, resp.Count)
		assert.Equal(t, 2, *resp.Count)
	})

	t.Run("docs that are not a list of objects are rejected", func(t *testing.T) {
		svc := new(MockDocumentService)
		req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader([]byte(`{"docs":"EV01"}`)))
		w := httptest.NewRecorder()
		NewDocumentHandler(svc, nil, zap.NewNop()).HandleAdd(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Contains(t, resp.Message, "docs must be")
		assert.Contains(t, resp.Message, "use the query text embedder to embed a string")
		svc.AssertNotCalled(t, "AddDocuments", mock.Anything, mock.Anything)
	})

	t.Run("docs as a number get no embedder hint", func(t *testing.T) {
		svc := new(MockDocumentService)
		req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader([]byte(`{"docs":42}`)))
		w := httptest.NewRecorder()
		NewDocumentHandler(svc, nil, zap.NewNop()).HandleAdd(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Contains(t, resp.Message, "docs must be")
		assert.NotContains(t, resp.Message, "text embedder")
	})

	t.Run("document without id is rejected", func(t *testing.T) {
		svc := new(MockDocumentService)
		req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader([]byte(`{"docs":[{"content":"orphan"}]}`)))
		w := httptest.NewRecorder()
		NewDocumentHandler(svc, nil, zap.NewNop()).HandleAdd(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("embedding failure maps to 502", func(t *testing.T) {
		svc := new(MockDocumentService)
		docs := []models.Document{{ID: "EV01", Content: "Chola Bronzes"}}
		svc.On("AddDocuments", mock.Anything, docs).Return(0, services.ErrEmbeddingFailed.Wrap(errors.New("quota")))

		req := httptest.NewRequest(http.MethodPost, "/documents", jsonBody(t, AddDocumentsRequest{Docs: docs}))
		w := httptest.NewRecorder()
		NewDocumentHandler(svc, nil, zap.NewNop()).HandleAdd(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestDocumentHandler_Delete(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("DeleteDocuments", mock.Anything, []string{"EV01", "missing"}).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/documents", jsonBody(t, DeleteDocumentsRequest{IDs: []string{"EV01", "missing"}}))
	w := httptest.NewRecorder()
	NewDocumentHandler(svc, nil, zap.NewNop()).HandleDelete(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)

	w = httptest.NewRecorder()
	NewDocumentHandler(svc, nil, zap.NewNop()).HandleDelete(w, httptest.NewRequest(http.MethodDelete, "/documents", jsonBody(t, map[string]interface{}{})))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandler_Refresh(t *testing.T) {
	t.Run("refreshes from the event source", func(t *testing.T) {
		svc := new(MockDocumentService)
		events := staticEvents{{ID: "EV01"}}
		svc.On("RefreshDocumentStore", mock.Anything, events).Return(1, nil)

		w := httptest.NewRecorder()
		NewDocumentHandler(svc, events, zap.NewNop()).HandleRefresh(w, httptest.NewRequest(http.MethodPost, "/refresh", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var resp utils.MessageResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "RAG service refreshed successfully", resp.Message)
		assert.Equal(t, 1, *resp.Count)
	})

	t.Run("no event database", func(t *testing.T) {
		svc := new(MockDocumentService)
		w := httptest.NewRecorder()
		NewDocumentHandler(svc, nil, zap.NewNop()).HandleRefresh(w, httptest.NewRequest(http.MethodPost, "/refresh", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		svc.AssertNotCalled(t, "RefreshDocumentStore", mock.Anything, mock.Anything)
	})
}
