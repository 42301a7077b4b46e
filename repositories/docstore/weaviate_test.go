package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wmodels "github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/models"
)

func TestObjectID(t *testing.T) {
	assert.Equal(t, ObjectID("evt-1"), ObjectID("evt-1"))
	assert.NotEqual(t, ObjectID("evt-1"), ObjectID("evt-2"))
	assert.Len(t, ObjectID("evt-1").String(), 36)
}

func TestWeaviateStore_ToObject(t *testing.T) {
	store := &WeaviateStore{class: "Document", logger: zap.NewNop()}

	obj, err := store.toObject(models.Document{
		ID:        "evt-1",
		Content:   "walk",
		Meta:      map[string]any{"name": "Paintings"},
		Embedding: []float32{0.1, 0.2},
	})
	require.NoError(t, err)

	assert.Equal(t, "Document", obj.Class)
	assert.Equal(t, ObjectID("evt-1"), obj.ID)
	props := obj.Properties.(map[string]any)
	assert.Equal(t, "evt-1", props[propDocID])
	assert.Equal(t, `{"name":"Paintings"}`, props[propMeta])
	assert.Equal(t, []float32{0.1, 0.2}, []float32(obj.Vector))
}

func TestDecodeGetResponse(t *testing.T) {
	resp := &wmodels.GraphQLResponse{
		Data: map[string]wmodels.JSONObject{
			"Get": map[string]any{
				"Document": []any{
					map[string]any{
						"doc_id":  "evt-1",
						"content": "walk",
						"meta":    `{"name":"Paintings"}`,
						"_additional": map[string]any{
							"id":       "0c4e0f5e-0000-5000-8000-000000000001",
							"vector":   []any{0.5, 0.25},
							"distance": 0.25,
						},
					},
					map[string]any{
						"doc_id":  "evt-2",
						"content": "talk",
						"meta":    "{}",
						"_additional": map[string]any{
							"id": "0c4e0f5e-0000-5000-8000-000000000002",
						},
					},
				},
			},
		},
	}

	docs, lastID, err := decodeGetResponse(resp, "Document")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "evt-1", docs[0].ID)
	assert.Equal(t, "Paintings", docs[0].Meta["name"])
	assert.Equal(t, []float32{0.5, 0.25}, docs[0].Embedding)
	require.NotNil(t, docs[0].Score)
	assert.InDelta(t, 0.75, *docs[0].Score, 1e-9)

	assert.Nil(t, docs[1].Meta)
	assert.Nil(t, docs[1].Score)
	assert.Equal(t, "0c4e0f5e-0000-5000-8000-000000000002", lastID)
}

func TestDecodeGetResponse_Errors(t *testing.T) {
	_, _, err := decodeGetResponse(&wmodels.GraphQLResponse{
		Errors: []*wmodels.GraphQLError{{Message: "class not found"}},
	}, "Document")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "class not found")

	_, _, err = decodeGetResponse(&wmodels.GraphQLResponse{Data: map[string]wmodels.JSONObject{}}, "Document")
	assert.Error(t, err)

	_, _, err = decodeGetResponse(nil, "Document")
	assert.Error(t, err)
}

func TestDecodeCountResponse(t *testing.T) {
	resp := &wmodels.GraphQLResponse{
		Data: map[string]wmodels.JSONObject{
			"Aggregate": map[string]any{
				"Document": []any{
					map[string]any{"meta": map[string]any{"count": float64(7)}},
				},
			},
		},
	}

	count, err := decodeCountResponse(resp, "Document")
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	empty := &wmodels.GraphQLResponse{Data: map[string]wmodels.JSONObject{"Aggregate": map[string]any{}}}
	count, err = decodeCountResponse(empty, "Document")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBatchErrors(t *testing.T) {
	assert.NoError(t, batchErrors(nil))

	results := []wmodels.ObjectsGetResponse{
		{Result: &wmodels.ObjectsGetResponseAO2Result{
			Errors: &wmodels.ErrorResponse{Error: []*wmodels.ErrorResponseErrorItems0{{Message: "vector length mismatch"}}},
		}},
	}
	err := batchErrors(results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector length mismatch")
}

func TestNewWeaviateStore_InvalidURL(t *testing.T) {
	_, err := NewWeaviateStore(context.Background(), WeaviateConfig{URL: "not a url"}, nil)
	assert.Error(t, err)
}
