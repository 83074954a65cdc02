// Package sse decodes the server-sent-event framing used by the chat stream
// endpoint. Bytes arrive in arbitrary chunks; the Decoder reassembles them into
// complete blank-line separated blocks and ParseBlock pulls the event type and
// payload out of each block.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "strings"

const (
	fieldEvent = "event:"
	fieldData  = "data:"
)

// Event is the raw type and payload of a single SSE block.
type Event struct {
	// Type is the value of the first "event:" line in the block.
	Type string

	// Data is the value of the first "data:" line in the block.
	Data string
}

// ParseBlock scans the lines of one block for the event type and data lines.
// One optional space after the colon is stripped. Only the first line of each
// kind is honored; the stream is expected to carry one event per block.
//
// ok is false when the block is missing either line.
func ParseBlock(block string) (ev Event, ok bool) {
	var hasType, hasData bool

	for line := range strings.SplitSeq(block, "\n") {
		switch {
		case !hasType && strings.HasPrefix(line, fieldEvent):
			ev.Type = fieldValue(line, fieldEvent)
			hasType = true
		case !hasData && strings.HasPrefix(line, fieldData):
			ev.Data = fieldValue(line, fieldData)
			hasData = true
		}

		if hasType && hasData {
			break
		}
	}

	return ev, hasType && hasData
}

func fieldValue(line, field string) string {
	return strings.TrimPrefix(strings.TrimPrefix(line, field), " ")
}
