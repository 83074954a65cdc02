// Package responder produces assistant replies for the development backend.
package responder

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/papercomputeco/chatstream/pkg/chat"
)

// ErrorPrefix makes Echo refuse the prompt with the remainder as the message.
const ErrorPrefix = "!error "

// Reply is a complete assistant answer.
type Reply struct {
	Content   string
	Citations []chat.Citation
}

// RefusalError is returned when a responder declines a prompt. Its message is
// delivered to the client in an error event.
type RefusalError struct {
	Message string
}

func (e *RefusalError) Error() string {
	return e.Message
}

// Responder generates a reply to prompt, calling token for each piece of the
// reply as it is produced. Returning an error from token aborts the reply.
type Responder interface {
	Respond(ctx context.Context, history []chat.Message, prompt string, token func(string) error) (Reply, error)
}

// Echo answers by repeating the prompt back one word at a time.
type Echo struct {
	// Delay is the pause before each token.
	Delay time.Duration
}

// Respond implements Responder.
func (e Echo) Respond(ctx context.Context, history []chat.Message, prompt string, token func(string) error) (Reply, error) {
	if msg, ok := strings.CutPrefix(prompt, ErrorPrefix); ok {
		return Reply{}, &RefusalError{Message: strings.TrimSpace(msg)}
	}

	text := "You said: " + strings.TrimSpace(prompt)
	if turns := countUserTurns(history); turns > 0 {
		text += " (message " + strconv.Itoa(turns+1) + ")"
	}

	for _, tok := range Tokenize(text) {
		if err := sleep(ctx, e.Delay); err != nil {
			return Reply{}, err
		}
		if err := token(tok); err != nil {
			return Reply{}, err
		}
	}

	return Reply{Content: text}, nil
}

// Tokenize splits s into word tokens, each carrying the whitespace that
// precedes it, so that joining the tokens yields s.
func Tokenize(s string) []string {
	var (
		tokens []string
		start  int
		inWord bool
	)
	for i, r := range s {
		space := unicode.IsSpace(r)
		if space && inWord && i > start {
			tokens = append(tokens, s[start:i])
			start = i
		}
		inWord = !space
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

func countUserTurns(history []chat.Message) int {
	n := 0
	for _, m := range history {
		if m.Role == chat.RoleUser {
			n++
		}
	}
	return n
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
