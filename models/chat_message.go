package models

import (
	"fmt"
)

// Role identifies the author of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether the role is one of the known chat roles
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ChatMessage is a single role-tagged entry of a conversation
type ChatMessage struct {
	Role    Role   `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// NewSystemMessage creates a system message
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// Validate checks the message role
func (m ChatMessage) Validate() error {
	if !m.Role.IsValid() {
		return fmt.Errorf("invalid message role %q", m.Role)
	}
	return nil
}

// ValidateHistory checks every message of a conversation
func ValidateHistory(history []ChatMessage) error {
	for i, msg := range history {
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

// LastMessage returns the final message of a conversation
func LastMessage(history []ChatMessage) (ChatMessage, bool) {
	if len(history) == 0 {
		return ChatMessage{}, false
	}
	return history[len(history)-1], true
}
