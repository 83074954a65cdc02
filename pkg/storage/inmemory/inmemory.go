// Package inmemory provides a map-backed storage driver.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex for locking the maps below
	mu sync.RWMutex

	// chats is keyed by chat id
	chats map[string]*chat.ChatWithMessages

	// messageChat maps a message id to the id of the chat holding it
	messageChat map[string]string

	// feedback is keyed by message id
	feedback map[string][]chat.Feedback

	now func() time.Time
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		chats:       make(map[string]*chat.ChatWithMessages),
		messageChat: make(map[string]string),
		feedback:    make(map[string][]chat.Feedback),
		now:         time.Now,
	}
}

// CreateChat creates an empty chat.
func (s *Driver) CreateChat(_ context.Context, projectID, clerkID, title string) (*chat.ChatWithMessages, error) {
	if projectID == "" {
		return nil, errors.New("project id is required")
	}

	now := storage.Timestamp(s.now())
	c := &chat.ChatWithMessages{
		ID:        storage.NewID(),
		ProjectID: projectID,
		Title:     title,
		ClerkID:   clerkID,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []chat.Message{},
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.chats[c.ID] = c
	return clone(c), nil
}

// GetChat retrieves a chat by id.
func (s *Driver) GetChat(_ context.Context, chatID string) (*chat.ChatWithMessages, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[chatID]
	if !ok {
		return nil, storage.NotFoundError{Kind: "chat", ID: chatID}
	}

	return clone(c), nil
}

// AppendMessages appends msgs to the chat. Either every message is stored or
// none is.
func (s *Driver) AppendMessages(_ context.Context, chatID string, msgs ...chat.Message) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return nil, storage.NotFoundError{Kind: "chat", ID: chatID}
	}

	now := s.now()
	stored := make([]chat.Message, 0, len(msgs))
	seen := make(map[string]bool, len(msgs))
	for _, msg := range msgs {
		if !msg.Role.Valid() {
			return nil, fmt.Errorf("invalid message role %q", msg.Role)
		}
		msg = storage.PrepareMessage(chatID, msg, now)
		if _, exists := s.messageChat[msg.ID]; exists || seen[msg.ID] {
			return nil, fmt.Errorf("message %s already exists", msg.ID)
		}
		seen[msg.ID] = true
		stored = append(stored, msg)
	}

	for _, msg := range stored {
		c.Messages = append(c.Messages, msg)
		s.messageChat[msg.ID] = chatID
	}
	c.UpdatedAt = storage.Timestamp(now)

	return slices.Clone(stored), nil
}

// SaveFeedback records fb against an existing message.
func (s *Driver) SaveFeedback(_ context.Context, fb chat.Feedback) error {
	if err := fb.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messageChat[fb.MessageID]; !ok {
		return storage.NotFoundError{Kind: "message", ID: fb.MessageID}
	}

	s.feedback[fb.MessageID] = append(s.feedback[fb.MessageID], fb)
	return nil
}

// ListFeedback returns the feedback recorded for a message.
func (s *Driver) ListFeedback(_ context.Context, messageID string) ([]chat.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.messageChat[messageID]; !ok {
		return nil, storage.NotFoundError{Kind: "message", ID: messageID}
	}

	return slices.Clone(s.feedback[messageID]), nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

func clone(c *chat.ChatWithMessages) *chat.ChatWithMessages {
	out := *c
	out.Messages = make([]chat.Message, len(c.Messages))
	for i, m := range c.Messages {
		m.Citations = slices.Clone(m.Citations)
		out.Messages[i] = m
	}
	return &out
}
