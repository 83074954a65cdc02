package chat

import (
	"errors"
	"fmt"
	"time"
)

// ChatWithMessages is the snapshot returned by the chat load endpoint.
type ChatWithMessages struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	ClerkID   string    `json:"clerk_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Rating is the verdict carried by a feedback submission.
type Rating string

const (
	RatingLike    Rating = "like"
	RatingDislike Rating = "dislike"
)

// ParseRating converts user input into a Rating.
func ParseRating(s string) (Rating, error) {
	switch r := Rating(s); r {
	case RatingLike, RatingDislike:
		return r, nil
	default:
		return "", fmt.Errorf("invalid rating %q (expected %q or %q)", s, RatingLike, RatingDislike)
	}
}

// Feedback is a rating on a single assistant message.
type Feedback struct {
	MessageID string `json:"message_id"`
	Rating    Rating `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	Category  string `json:"category,omitempty"`
}

// Validate checks the fields the feedback endpoint requires.
func (f Feedback) Validate() error {
	if f.MessageID == "" {
		return errors.New("feedback message_id is required")
	}
	if _, err := ParseRating(string(f.Rating)); err != nil {
		return err
	}
	return nil
}
