package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/storage"
)

type createChatRequest struct {
	Title string `json:"title"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleGetChat returns a chat and its messages.
func (s *Server) handleGetChat(c *fiber.Ctx) error {
	chatID := c.Params("chatId")
	if chatID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "chat id parameter required"})
	}

	snapshot, err := s.storer.GetChat(c.Context(), chatID)
	if err != nil {
		return s.storageError(c, err, "failed to load chat")
	}

	return c.JSON(snapshot)
}

// handleCreateChat creates an empty chat in the project.
func (s *Server) handleCreateChat(c *fiber.Ctx) error {
	projectID := c.Params("projectId")

	var req createChatRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
		}
	}

	created, err := s.storer.CreateChat(c.Context(), projectID, s.config.UserID, req.Title)
	if err != nil {
		return s.storageError(c, err, "failed to create chat")
	}

	s.logger.Info("chat created", "chat_id", created.ID, "project_id", projectID)

	return c.Status(fiber.StatusCreated).JSON(created)
}

// handleFeedback records a rating on an assistant message.
func (s *Server) handleFeedback(c *fiber.Ctx) error {
	var fb chat.Feedback
	if err := c.BodyParser(&fb); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if err := fb.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	if err := s.storer.SaveFeedback(c.Context(), fb); err != nil {
		return s.storageError(c, err, "failed to save feedback")
	}

	s.logger.Info("feedback recorded", "message_id", fb.MessageID, "rating", string(fb.Rating))

	return c.Status(fiber.StatusCreated).JSON(map[string]string{"status": "ok"})
}

// storageError maps a storage failure onto a response.
func (s *Server) storageError(c *fiber.Ctx, err error, msg string) error {
	var notFound storage.NotFoundError
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: notFound.Error()})
	}

	s.logger.Error(msg, "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msg})
}
