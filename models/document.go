package models

// Document is a unit of retrievable content stored with its embedding.
// Identity is the ID: writing a document with an existing ID replaces it.
type Document struct {
	ID        string         `json:"id" validate:"required"`
	Content   string         `json:"content"`
	Meta      map[string]any `json:"meta,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
	Score     *float64       `json:"score,omitempty"`
}

// Clone returns a deep copy of the document
func (d Document) Clone() Document {
	out := Document{
		ID:      d.ID,
		Content: d.Content,
	}
	if d.Meta != nil {
		out.Meta = make(map[string]any, len(d.Meta))
		for k, v := range d.Meta {
			out.Meta[k] = v
		}
	}
	if d.Embedding != nil {
		out.Embedding = make([]float32, len(d.Embedding))
		copy(out.Embedding, d.Embedding)
	}
	if d.Score != nil {
		score := *d.Score
		out.Score = &score
	}
	return out
}

// WithScore returns a copy of the document carrying a similarity score
func (d Document) WithScore(score float64) Document {
	out := d.Clone()
	out.Score = &score
	return out
}

// DocumentIDs returns the IDs of the given documents in order
func DocumentIDs(docs []Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}
