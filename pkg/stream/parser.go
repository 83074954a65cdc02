package stream

import (
	"errors"
	"log/slog"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/sse"
)

// Parser turns SSE blocks into typed events. Every failure is logged and
// swallowed so a bad block never ends the stream.
type Parser struct {
	logger *slog.Logger
}

// NewParser returns a Parser that logs dropped blocks to l. A nil l discards.
func NewParser(l *slog.Logger) *Parser {
	return &Parser{logger: logger.OrNop(l)}
}

// Parse returns the typed event for block, or nil if the block carries no
// usable event.
func (p *Parser) Parse(block string) Event {
	raw, ok := sse.ParseBlock(block)
	if !ok {
		p.logger.Debug("ignoring block without event and data lines", "bytes", len(block))
		return nil
	}

	ev, err := Decode(raw)
	if err == nil {
		return ev
	}

	var (
		decodeErr  *chat.DecodeError
		unknownErr *UnknownEventError
	)
	switch {
	case errors.As(err, &decodeErr):
		p.logger.Warn("dropping malformed event",
			"event", raw.Type,
			"error", err,
		)
	case errors.As(err, &unknownErr):
		p.logger.Debug("ignoring unknown event type", "event", raw.Type)
	default:
		p.logger.Warn("dropping event", "event", raw.Type, "error", err)
	}
	return nil
}
