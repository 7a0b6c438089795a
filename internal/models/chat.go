package models

import (
	"strings"
	"time"
)

// Conversation groups the exchanges a single user had with the assistant under one context. The server
// keeps one per conversation id so requests that arrive without history can be answered with it.
type Conversation struct {
	ID        string
	UserID    string
	Context   string
	CreatedAt time.Time
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message written by the user.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the assistant, live or synthesized offline.
	RoleAssistant Role = "assistant"
	// RoleSystem represents the instruction message prepended by the server before calling a backend.
	RoleSystem Role = "system"
)

// ParseRole maps the wire spelling of a history entry type to a Role. Anything that is not the
// assistant is treated as the user, which is how the history is produced on the client.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleAssistant):
		return RoleAssistant
	case string(RoleSystem):
		return RoleSystem
	default:
		return RoleUser
	}
}
