// Package chat holds the conversation domain model shared by the streaming
// client, the backend client, and the development backend: messages, chats,
// feedback, the optimistic/persisted entry union, and the error taxonomy.
package chat

import (
	"fmt"
	"time"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// optimisticIDPrefix marks client-issued temporary ids. Matching never relies
// on it; see EntryKind.
const optimisticIDPrefix = "temp-"

// Citation points at a source document backing an assistant answer.
type Citation struct {
	Filename string `json:"filename"`
	Page     int    `json:"page"`
}

// Message is a single turn in a conversation.
type Message struct {
	ID        string     `json:"id"`
	ChatID    string     `json:"chat_id"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	ClerkID   string     `json:"clerk_id"`
	Citations []Citation `json:"citations,omitempty"`
}

// NewOptimisticID returns a temporary message id for the given instant.
func NewOptimisticID(now time.Time) string {
	return fmt.Sprintf("%s%d", optimisticIDPrefix, now.UnixMilli())
}

// NewOptimisticMessage builds the locally-created user message shown while a
// send is in flight.
func NewOptimisticMessage(chatID, clerkID, content string, now time.Time) Message {
	return Message{
		ID:        NewOptimisticID(now),
		ChatID:    chatID,
		Role:      RoleUser,
		Content:   content,
		CreatedAt: now.UTC(),
		ClerkID:   clerkID,
	}
}

// EntryKind tags an Entry as optimistic or persisted.
type EntryKind int

const (
	// KindPersisted is a message carrying a server-issued id.
	KindPersisted EntryKind = iota

	// KindOptimistic is a client-issued message awaiting the server's answer.
	KindOptimistic
)

func (k EntryKind) String() string {
	switch k {
	case KindPersisted:
		return "persisted"
	case KindOptimistic:
		return "optimistic"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// Entry is one position in a conversation transcript. Optimistic and persisted
// messages live in distinct id spaces: an optimistic entry is only ever matched
// by an optimistic lookup, so a server id can never be mistaken for one.
type Entry struct {
	Kind    EntryKind `json:"kind"`
	Message Message   `json:"message"`
}

// Optimistic reports whether the entry is still awaiting server confirmation.
func (e Entry) Optimistic() bool {
	return e.Kind == KindOptimistic
}
