// Package stream drives one chat send over the server-sent-event endpoint:
// decoding frames into typed events and applying them to a conversation.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/sse"
)

// Event type names as they appear on the wire.
const (
	TypeToken  = "token"
	TypeStatus = "status"
	TypeError  = "error"
	TypeDone   = "done"
)

// Event is one typed stream event. The set of implementations is closed:
// *TokenEvent, *StatusEvent, *ErrorEvent and *DoneEvent.
type Event interface {
	Type() string
	isEvent()
}

// TokenEvent carries an incremental piece of the assistant answer.
type TokenEvent struct {
	Content string `json:"content"`
}

// StatusEvent carries a progress indicator such as "thinking".
type StatusEvent struct {
	Status string `json:"status"`
}

// ErrorEvent is a server-side failure. It terminates the stream.
type ErrorEvent struct {
	Message string `json:"message"`
}

// DoneEvent carries the persisted user and assistant messages. It terminates
// the stream.
type DoneEvent struct {
	UserMessage chat.Message `json:"userMessage"`
	AIMessage   chat.Message `json:"aiMessage"`
}

func (*TokenEvent) Type() string  { return TypeToken }
func (*StatusEvent) Type() string { return TypeStatus }
func (*ErrorEvent) Type() string  { return TypeError }
func (*DoneEvent) Type() string   { return TypeDone }

func (*TokenEvent) isEvent()  {}
func (*StatusEvent) isEvent() {}
func (*ErrorEvent) isEvent()  {}
func (*DoneEvent) isEvent()   {}

// UnknownEventError is returned by Decode for an event type outside the
// closed set.
type UnknownEventError struct {
	Type string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}

var errMissingMessageID = errors.New("done event is missing a message id")

// Decode converts a raw SSE event into its typed form. A malformed payload is
// reported as *chat.DecodeError and an unrecognized type as
// *UnknownEventError.
func Decode(raw sse.Event) (Event, error) {
	var ev Event
	switch raw.Type {
	case TypeToken:
		ev = &TokenEvent{}
	case TypeStatus:
		ev = &StatusEvent{}
	case TypeError:
		ev = &ErrorEvent{}
	case TypeDone:
		ev = &DoneEvent{}
	default:
		return nil, &UnknownEventError{Type: raw.Type}
	}

	if err := json.Unmarshal([]byte(raw.Data), ev); err != nil {
		return nil, &chat.DecodeError{EventType: raw.Type, Err: err}
	}

	if done, ok := ev.(*DoneEvent); ok {
		if done.UserMessage.ID == "" || done.AIMessage.ID == "" {
			return nil, &chat.DecodeError{EventType: raw.Type, Err: errMissingMessageID}
		}
	}

	return ev, nil
}

// Encode renders ev as a single SSE frame, terminated by a blank line.
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", ev.Type(), err)
	}

	frame := make([]byte, 0, len(ev.Type())+len(data)+16)
	frame = append(frame, "event: "...)
	frame = append(frame, ev.Type()...)
	frame = append(frame, "\ndata: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}
