package rag

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/sangrahalaya/ticketbot/models"
)

// BookingSchema validates booking summaries found in assistant replies
var BookingSchema = MustSchema("booking_summary", &models.BookingSummary{})

// ScanJSONObjects returns every outermost brace-balanced object in text that
// parses as JSON, in order of appearance. Braces inside string literals do not
// count; string state is tracked from the outermost open brace. When a balanced
// span does not parse, the objects nested inside it are tried instead. The
// text is scanned once, so stray braces cost linear time.
func ScanJSONObjects(text string) []string {
	type span struct{ start, end int }

	var (
		spans            []span
		open             []int
		inString, escape bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = len(open) > 0
		case '{':
			open = append(open, i)
		case '}':
			if len(open) > 0 {
				spans = append(spans, span{open[len(open)-1], i})
				open = open[:len(open)-1]
			}
		}
	}

	// Spans close innermost first; visit them by opening position
	sort.Slice(spans, func(a, b int) bool { return spans[a].start < spans[b].start })

	var found []string
	next := 0
	for _, sp := range spans {
		if sp.start < next {
			continue
		}
		candidate := text[sp.start : sp.end+1]
		if json.Valid([]byte(candidate)) {
			found = append(found, candidate)
			next = sp.end + 1
		}
	}
	return found
}

// Extractor finds a booking summary inside assistant text
type Extractor struct {
	schema *Schema
}

// NewExtractor creates an extractor validating against schema; nil uses
// BookingSchema
func NewExtractor(schema *Schema) *Extractor {
	if schema == nil {
		schema = BookingSchema
	}
	return &Extractor{schema: schema}
}

// Extract returns the first object in text that validates as a booking summary
func (e *Extractor) Extract(text string) (map[string]any, bool) {
	for _, candidate := range ScanJSONObjects(text) {
		if err := e.schema.Validate([]byte(candidate)); err != nil {
			continue
		}
		var booking map[string]any
		if err := json.Unmarshal([]byte(candidate), &booking); err != nil {
			continue
		}
		return booking, true
	}
	return nil, false
}

// ExtractFromConversation looks at the last assistant message. Its response
// field is scanned when it is a valid reply, the raw content otherwise.
func (e *Extractor) ExtractFromConversation(messages []models.ChatMessage) (map[string]any, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != models.RoleAssistant {
			continue
		}

		content := strings.TrimSpace(messages[i].Content)
		var reply Reply
		if ReplySchema.Validate([]byte(content)) == nil && json.Unmarshal([]byte(content), &reply) == nil {
			return e.Extract(reply.Response)
		}
		return e.Extract(content)
	}
	return nil, false
}
