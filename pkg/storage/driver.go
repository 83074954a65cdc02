// Package storage persists chats, messages, and feedback for the development
// backend.
package storage

import (
	"context"

	"github.com/papercomputeco/chatstream/pkg/chat"
)

// Driver defines the interface for persisting and retrieving chats in a
// storage backend. Implementations assign server ids to chats and messages.
type Driver interface {
	// CreateChat creates an empty chat owned by clerkID in projectID.
	CreateChat(ctx context.Context, projectID, clerkID, title string) (*chat.ChatWithMessages, error)

	// GetChat retrieves a chat and its messages in insertion order.
	GetChat(ctx context.Context, chatID string) (*chat.ChatWithMessages, error)

	// AppendMessages appends messages to a chat atomically and returns them
	// as stored. Empty ids and zero timestamps are filled in.
	AppendMessages(ctx context.Context, chatID string, msgs ...chat.Message) ([]chat.Message, error)

	// SaveFeedback records a rating on an existing message.
	SaveFeedback(ctx context.Context, fb chat.Feedback) error

	// ListFeedback returns the feedback recorded for a message, oldest first.
	ListFeedback(ctx context.Context, messageID string) ([]chat.Feedback, error)

	// Close closes the store and releases any resources.
	Close() error
}
