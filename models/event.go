package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is a museum event, exhibit or performance record from the events table.
// Fields holds the free-form attributes of the event (name, dates, prices, seats).
type Event struct {
	ID        string         `json:"id" db:"id"`
	Fields    map[string]any `json:"fields" db:"data"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Event model
func (Event) TableName() string {
	return "events"
}

// Name returns the event's display name, if any
func (e Event) Name() string {
	v, ok := e.Fields["name"]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// ToDocument converts the event into a retrievable document.
// The content is the JSON encoding of every field except the id.
func (e Event) ToDocument() (Document, error) {
	fields := make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		if k == "id" || k == "_id" {
			continue
		}
		fields[k] = v
	}

	content, err := json.Marshal(fields)
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode event %s: %w", e.ID, err)
	}

	return Document{
		ID:      e.ID,
		Content: string(content),
		Meta:    map[string]any{"name": e.Name()},
	}, nil
}

// MarshalJSON flattens the event into its fields plus the id
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["id"] = e.ID
	return json.Marshal(out)
}
