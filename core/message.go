package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversational message.
type Role string

const (
	// RoleUser marks a message authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a message authored by the engine.
	RoleAssistant Role = "assistant"
	// RoleSystem marks instruction content never shown to the user.
	RoleSystem Role = "system"
)

// Message is a single conversational record. Messages are immutable once
// appended to a session; insertion order is conversational order and is never
// changed afterwards.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage creates a user-authored message stamped with the current UTC time.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now().UTC()}
}

// NewAssistantMessage creates an assistant-authored message stamped with the current UTC time.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: time.Now().UTC()}
}

// NewSystemMessage creates a system instruction message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now().UTC()}
}

// NewID generates a new unique identifier for turns and audit records.
func NewID() string { return uuid.NewString() }
