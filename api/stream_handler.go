package api

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/responder"
	"github.com/papercomputeco/chatstream/pkg/stream"
)

type streamRequest struct {
	Content string `json:"content"`
}

// handleStream stores the user message and streams the assistant reply as
// server-sent events: a thinking status, tokens, then done or error.
func (s *Server) handleStream(c *fiber.Ctx) error {
	// Params and body are only valid for the lifetime of the handler, and the
	// stream outlives it.
	projectID := strings.Clone(c.Params("projectId"))
	chatID := strings.Clone(c.Params("chatId"))

	var req streamRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	content := strings.Clone(req.Content)
	if strings.TrimSpace(content) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "content is required"})
	}

	snapshot, err := s.storer.GetChat(c.Context(), chatID)
	if err != nil {
		return s.storageError(c, err, "failed to load chat")
	}
	if snapshot.ProjectID != projectID {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "chat not found in project"})
	}

	stored, err := s.storer.AppendMessages(c.Context(), chatID, chat.Message{
		Role:    chat.RoleUser,
		Content: content,
		ClerkID: s.config.UserID,
	})
	if err != nil {
		return s.storageError(c, err, "failed to store message")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// io.Pipe gives backpressure and per-frame flushing; fasthttp closes the
	// reader when the client goes away, which fails the next write.
	pr, pw := io.Pipe()
	go s.streamReply(pw, snapshot.Messages, stored[0])

	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// streamReply writes the reply frames to pw and closes it.
func (s *Server) streamReply(pw *io.PipeWriter, history []chat.Message, user chat.Message) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := s.logger.With("chat_id", user.ChatID, "user_message_id", user.ID)

	write := func(ev stream.Event) error {
		frame, err := stream.Encode(ev)
		if err != nil {
			return err
		}
		_, err = pw.Write(frame)
		return err
	}

	var streamErr error
	defer func() { pw.CloseWithError(streamErr) }()

	if streamErr = write(&stream.StatusEvent{Status: "thinking"}); streamErr != nil {
		l.Debug("client went away before the reply", "error", streamErr)
		return
	}

	reply, err := s.responder.Respond(ctx, history, user.Content, func(token string) error {
		return write(&stream.TokenEvent{Content: token})
	})

	var refusal *responder.RefusalError
	switch {
	case errors.As(err, &refusal):
		l.Info("responder refused prompt", "message", refusal.Message)
		streamErr = write(&stream.ErrorEvent{Message: refusal.Message})
		return
	case errors.Is(err, io.ErrClosedPipe):
		l.Debug("client went away mid-reply")
		return
	case err != nil:
		l.Error("responder failed", "error", err)
		streamErr = write(&stream.ErrorEvent{Message: "failed to generate a reply"})
		return
	}

	stored, err := s.storer.AppendMessages(ctx, user.ChatID, chat.Message{
		Role:      chat.RoleAssistant,
		Content:   reply.Content,
		ClerkID:   s.config.UserID,
		Citations: reply.Citations,
	})
	if err != nil {
		l.Error("failed to store reply", "error", err)
		streamErr = write(&stream.ErrorEvent{Message: "failed to save the reply"})
		return
	}

	l.Debug("reply streamed", "ai_message_id", stored[0].ID)
	streamErr = write(&stream.DoneEvent{UserMessage: user, AIMessage: stored[0]})
}
