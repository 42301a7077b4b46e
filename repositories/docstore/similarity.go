package docstore

import (
	"math"
	"sort"

	"github.com/sangrahalaya/ticketbot/models"
)

// CosineSimilarity returns the cosine similarity of two vectors. It reports
// false when the dimensions differ or either vector has zero length.
func CosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

// rankByEmbedding scores every document against the query and returns the
// topK best as scored copies. Documents of another dimensionality are skipped.
func rankByEmbedding(docs []models.Document, query []float32, topK int) []models.Document {
	type scored struct {
		doc   models.Document
		score float64
	}

	candidates := make([]scored, 0, len(docs))
	for _, doc := range docs {
		score, ok := CosineSimilarity(doc.Embedding, query)
		if !ok {
			continue
		}
		candidates = append(candidates, scored{doc: doc, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score == candidates[j].score {
			return candidates[i].doc.ID < candidates[j].doc.ID
		}
		return candidates[i].score > candidates[j].score
	})

	if topK > 0 && topK < len(candidates) {
		candidates = candidates[:topK]
	}

	out := make([]models.Document, len(candidates))
	for i, c := range candidates {
		out[i] = c.doc.WithScore(c.score)
	}
	return out
}

func sortByID(docs []models.Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}
