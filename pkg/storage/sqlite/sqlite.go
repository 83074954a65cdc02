// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	clerk_id   TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	clerk_id   TEXT NOT NULL DEFAULT '',
	citations  TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS messages_chat_id ON messages(chat_id, seq);

CREATE TABLE IF NOT EXISTS feedback (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	rating     TEXT NOT NULL,
	comment    TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT ''
);
`

// Driver implements storage.Driver using SQLite.
type Driver struct {
	db  *sql.DB
	now func() time.Time
}

// NewDriver creates a new SQLite-backed driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is its own database, and SQLite only
	// allows a single writer anyway.
	db.SetMaxOpenConns(1)

	// SQLite-specific pragmas
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db, now: time.Now}, nil
}

// CreateChat creates an empty chat.
func (d *Driver) CreateChat(ctx context.Context, projectID, clerkID, title string) (*chat.ChatWithMessages, error) {
	if projectID == "" {
		return nil, errors.New("project id is required")
	}

	now := storage.Timestamp(d.now())
	c := &chat.ChatWithMessages{
		ID:        storage.NewID(),
		ProjectID: projectID,
		Title:     title,
		ClerkID:   clerkID,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []chat.Message{},
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO chats (id, project_id, title, clerk_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.Title, c.ClerkID, now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting chat: %w", err)
	}

	return c, nil
}

// GetChat retrieves a chat and its messages.
func (d *Driver) GetChat(ctx context.Context, chatID string) (*chat.ChatWithMessages, error) {
	var (
		c                  chat.ChatWithMessages
		created, updatedAt int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, project_id, title, clerk_id, created_at, updated_at FROM chats WHERE id = ?`, chatID,
	).Scan(&c.ID, &c.ProjectID, &c.Title, &c.ClerkID, &created, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{Kind: "chat", ID: chatID}
	}
	if err != nil {
		return nil, fmt.Errorf("querying chat: %w", err)
	}
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updatedAt)

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, role, content, clerk_id, citations, created_at FROM messages WHERE chat_id = ? ORDER BY seq`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	c.Messages = []chat.Message{}
	for rows.Next() {
		var (
			m         chat.Message
			role      string
			citations string
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.ClerkID, &citations, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.ChatID = chatID
		m.Role = chat.Role(role)
		m.CreatedAt = fromMillis(createdAt)
		if err := json.Unmarshal([]byte(citations), &m.Citations); err != nil {
			return nil, fmt.Errorf("decoding citations for message %s: %w", m.ID, err)
		}
		if len(m.Citations) == 0 {
			m.Citations = nil
		}
		c.Messages = append(c.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return &c, nil
}

// AppendMessages appends msgs to the chat in a single transaction.
func (d *Driver) AppendMessages(ctx context.Context, chatID string, msgs ...chat.Message) ([]chat.Message, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := d.now()
	res, err := tx.ExecContext(ctx, `UPDATE chats SET updated_at = ? WHERE id = ?`, storage.Timestamp(now).UnixMilli(), chatID)
	if err != nil {
		return nil, fmt.Errorf("touching chat: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, storage.NotFoundError{Kind: "chat", ID: chatID}
	}

	stored := make([]chat.Message, 0, len(msgs))
	for _, msg := range msgs {
		if !msg.Role.Valid() {
			return nil, fmt.Errorf("invalid message role %q", msg.Role)
		}
		msg = storage.PrepareMessage(chatID, msg, now)

		citations, err := json.Marshal(msg.Citations)
		if err != nil {
			return nil, fmt.Errorf("encoding citations: %w", err)
		}
		if msg.Citations == nil {
			citations = []byte("[]")
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages (id, chat_id, role, content, clerk_id, citations, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, chatID, string(msg.Role), msg.Content, msg.ClerkID, string(citations), msg.CreatedAt.UnixMilli(),
		)
		if err != nil {
			return nil, fmt.Errorf("inserting message %s: %w", msg.ID, err)
		}
		stored = append(stored, msg)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing messages: %w", err)
	}

	return stored, nil
}

// SaveFeedback records fb against an existing message.
func (d *Driver) SaveFeedback(ctx context.Context, fb chat.Feedback) error {
	if err := fb.Validate(); err != nil {
		return err
	}

	if err := d.requireMessage(ctx, fb.MessageID); err != nil {
		return err
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO feedback (message_id, rating, comment, category) VALUES (?, ?, ?, ?)`,
		fb.MessageID, string(fb.Rating), fb.Comment, fb.Category,
	)
	if err != nil {
		return fmt.Errorf("inserting feedback: %w", err)
	}
	return nil
}

// ListFeedback returns the feedback recorded for a message, oldest first.
func (d *Driver) ListFeedback(ctx context.Context, messageID string) ([]chat.Feedback, error) {
	if err := d.requireMessage(ctx, messageID); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT rating, comment, category FROM feedback WHERE message_id = ? ORDER BY seq`, messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()

	var out []chat.Feedback
	for rows.Next() {
		fb := chat.Feedback{MessageID: messageID}
		var rating string
		if err := rows.Scan(&rating, &fb.Comment, &fb.Category); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		fb.Rating = chat.Rating(rating)
		out = append(out, fb)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (d *Driver) Close() error {
	return d.db.Close()
}

func (d *Driver) requireMessage(ctx context.Context, messageID string) error {
	var one int
	err := d.db.QueryRowContext(ctx, `SELECT 1 FROM messages WHERE id = ?`, messageID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.NotFoundError{Kind: "message", ID: messageID}
	}
	if err != nil {
		return fmt.Errorf("querying message: %w", err)
	}
	return nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
