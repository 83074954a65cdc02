package chat

import (
	"sync"
)

// Conversation is the in-memory transcript of one chat. It applies the
// optimistic-append, finalize, and rollback operations atomically: concurrent
// readers never observe a finalize that has removed the optimistic entry
// without inserting the persisted pair, or the reverse.
type Conversation struct {
	// mu guards entries
	mu sync.RWMutex

	chat    ChatWithMessages
	entries []Entry
}

// NewConversation seeds a conversation from a loaded chat snapshot. Every
// snapshot message is treated as persisted.
func NewConversation(snapshot ChatWithMessages) *Conversation {
	entries := make([]Entry, 0, len(snapshot.Messages)+2)
	for _, msg := range snapshot.Messages {
		entries = append(entries, Entry{Kind: KindPersisted, Message: msg})
	}

	snapshot.Messages = nil

	return &Conversation{
		chat:    snapshot,
		entries: entries,
	}
}

// ChatID returns the id of the chat this conversation belongs to.
func (c *Conversation) ChatID() string {
	return c.chat.ID
}

// ProjectID returns the project the chat belongs to.
func (c *Conversation) ProjectID() string {
	return c.chat.ProjectID
}

// AppendOptimistic inserts msg at the end of the transcript as a pending entry.
// At most one optimistic entry may exist at a time.
func (c *Conversation) AppendOptimistic(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.Optimistic() {
			return ErrOptimisticPending
		}
		if e.Message.ID == msg.ID {
			return ErrDuplicateMessage
		}
	}

	c.entries = append(c.entries, Entry{Kind: KindOptimistic, Message: msg})
	return nil
}

// Finalize replaces the optimistic entry identified by optimisticID with the
// persisted user and assistant messages, user first. It returns false and
// leaves the transcript untouched when no such optimistic entry exists, which
// makes repeated calls safe no-ops.
func (c *Conversation) Finalize(optimisticID string, user, ai Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.optimisticIndexLocked(optimisticID)
	if idx < 0 {
		return false
	}

	next := make([]Entry, 0, len(c.entries)+1)
	next = append(next, c.entries[:idx]...)
	next = append(next, c.entries[idx+1:]...)

	for _, msg := range []Message{user, ai} {
		if indexOfPersisted(next, msg.ID) >= 0 {
			continue
		}
		next = append(next, Entry{Kind: KindPersisted, Message: msg})
	}

	c.entries = next
	return true
}

// Rollback removes the optimistic entry identified by optimisticID. It returns
// false when the entry is already gone (finalized or rolled back).
func (c *Conversation) Rollback(optimisticID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.optimisticIndexLocked(optimisticID)
	if idx < 0 {
		return false
	}

	c.entries = append(c.entries[:idx:idx], c.entries[idx+1:]...)
	return true
}

// Pending returns the optimistic entry awaiting resolution, if any.
func (c *Conversation) Pending() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.entries {
		if e.Optimistic() {
			return e.Message, true
		}
	}
	return Message{}, false
}

// Entries returns a copy of the transcript in insertion order.
func (c *Conversation) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Messages returns a copy of the transcript messages, optimistic included.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Message, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Message
	}
	return out
}

// Len returns the number of entries.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LastAssistant returns the most recent persisted assistant message.
func (c *Conversation) LastAssistant() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		if !e.Optimistic() && e.Message.Role == RoleAssistant {
			return e.Message, true
		}
	}
	return Message{}, false
}

// Snapshot returns the chat with its persisted messages only.
func (c *Conversation) Snapshot() ChatWithMessages {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := c.chat
	snap.Messages = make([]Message, 0, len(c.entries))
	for _, e := range c.entries {
		if !e.Optimistic() {
			snap.Messages = append(snap.Messages, e.Message)
		}
	}
	return snap
}

func (c *Conversation) optimisticIndexLocked(id string) int {
	for i, e := range c.entries {
		if e.Optimistic() && e.Message.ID == id {
			return i
		}
	}
	return -1
}

func indexOfPersisted(entries []Entry, id string) int {
	for i, e := range entries {
		if !e.Optimistic() && e.Message.ID == id {
			return i
		}
	}
	return -1
}
