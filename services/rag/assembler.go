package rag

import (
	"fmt"

	"github.com/sangrahalaya/ticketbot/models"
)

// AssembleMessages returns a new conversation made of history followed by one
// message carrying prompt. The history slice is never modified or aliased.
func AssembleMessages(prompt string, history []models.ChatMessage, role models.Role) ([]models.ChatMessage, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("cannot assemble message with unknown role %q", role)
	}

	out := make([]models.ChatMessage, len(history), len(history)+1)
	copy(out, history)
	return append(out, models.ChatMessage{Role: role, Content: prompt}), nil
}
