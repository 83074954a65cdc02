package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatstream/pkg/chat"
)

// NewID returns a new server-issued id.
func NewID() string {
	return uuid.NewString()
}

// Timestamp normalizes t to the precision every driver stores.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// PrepareMessage fills in the server-owned fields of msg before it is stored.
func PrepareMessage(chatID string, msg chat.Message, now time.Time) chat.Message {
	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.CreatedAt = Timestamp(msg.CreatedAt)
	msg.ChatID = chatID
	return msg
}
