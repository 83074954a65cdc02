// Package storagetest holds the behavior every storage.Driver must share,
// expressed as ginkgo specs.
package storagetest

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/storage"
)

// DescribeDriver registers the shared driver specs. newDriver is called once
// per spec and the driver is closed afterwards.
func DescribeDriver(name string, newDriver func() storage.Driver) bool {
	return Describe(name+" driver behavior", func() {
		var (
			driver storage.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver()
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		Describe("CreateChat", func() {
			It("assigns an id and starts empty", func() {
				c, err := driver.CreateChat(ctx, "proj-1", "clerk-1", "first")
				Expect(err).NotTo(HaveOccurred())
				Expect(c.ID).NotTo(BeEmpty())
				Expect(c.ProjectID).To(Equal("proj-1"))
				Expect(c.Messages).To(BeEmpty())

				got, err := driver.GetChat(ctx, c.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Title).To(Equal("first"))
				Expect(got.ClerkID).To(Equal("clerk-1"))
			})

			It("requires a project", func() {
				_, err := driver.CreateChat(ctx, "", "clerk-1", "")
				Expect(err).To(HaveOccurred())
			})
		})

		Describe("GetChat", func() {
			It("returns NotFoundError for unknown chats", func() {
				_, err := driver.GetChat(ctx, "missing")
				var notFound storage.NotFoundError
				Expect(err).To(BeAssignableToTypeOf(notFound))
				Expect(err.Error()).To(Equal("chat not found: missing"))
			})
		})

		Describe("AppendMessages", func() {
			var chatID string

			BeforeEach(func() {
				c, err := driver.CreateChat(ctx, "proj-1", "clerk-1", "")
				Expect(err).NotTo(HaveOccurred())
				chatID = c.ID
			})

			It("stores messages in order with server ids", func() {
				stored, err := driver.AppendMessages(ctx, chatID,
					chat.Message{Role: chat.RoleUser, Content: "Hello", ClerkID: "clerk-1"},
					chat.Message{Role: chat.RoleAssistant, Content: "Hi there", Citations: []chat.Citation{{Filename: "doc.pdf", Page: 2}}},
				)
				Expect(err).NotTo(HaveOccurred())
				Expect(stored).To(HaveLen(2))
				Expect(stored[0].ID).NotTo(BeEmpty())
				Expect(stored[0].ID).NotTo(Equal(stored[1].ID))
				Expect(stored[0].CreatedAt.IsZero()).To(BeFalse())

				got, err := driver.GetChat(ctx, chatID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Messages).To(HaveLen(2))
				Expect(got.Messages[0].Content).To(Equal("Hello"))
				Expect(got.Messages[0].ChatID).To(Equal(chatID))
				Expect(got.Messages[1].ID).To(Equal(stored[1].ID))
				Expect(got.Messages[1].Citations).To(Equal([]chat.Citation{{Filename: "doc.pdf", Page: 2}}))
			})

			It("keeps ids supplied by the caller", func() {
				stored, err := driver.AppendMessages(ctx, chatID, chat.Message{ID: "u1", Role: chat.RoleUser, Content: "x"})
				Expect(err).NotTo(HaveOccurred())
				Expect(stored[0].ID).To(Equal("u1"))
			})

			It("rejects an unknown chat", func() {
				_, err := driver.AppendMessages(ctx, "missing", chat.Message{Role: chat.RoleUser, Content: "x"})
				Expect(err).To(MatchError(storage.NotFoundError{Kind: "chat", ID: "missing"}))
			})

			It("stores nothing when one message is invalid", func() {
				_, err := driver.AppendMessages(ctx, chatID,
					chat.Message{Role: chat.RoleUser, Content: "ok"},
					chat.Message{Role: "system", Content: "nope"},
				)
				Expect(err).To(HaveOccurred())

				got, err := driver.GetChat(ctx, chatID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Messages).To(BeEmpty())
			})

			It("rejects a duplicate id", func() {
				_, err := driver.AppendMessages(ctx, chatID, chat.Message{ID: "u1", Role: chat.RoleUser, Content: "x"})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.AppendMessages(ctx, chatID, chat.Message{ID: "u1", Role: chat.RoleUser, Content: "y"})
				Expect(err).To(HaveOccurred())
			})
		})

		Describe("feedback", func() {
			var messageID string

			BeforeEach(func() {
				c, err := driver.CreateChat(ctx, "proj-1", "clerk-1", "")
				Expect(err).NotTo(HaveOccurred())
				stored, err := driver.AppendMessages(ctx, c.ID, chat.Message{Role: chat.RoleAssistant, Content: "answer"})
				Expect(err).NotTo(HaveOccurred())
				messageID = stored[0].ID
			})

			It("saves and lists feedback in order", func() {
				Expect(driver.SaveFeedback(ctx, chat.Feedback{MessageID: messageID, Rating: chat.RatingLike})).To(Succeed())
				Expect(driver.SaveFeedback(ctx, chat.Feedback{
					MessageID: messageID, Rating: chat.RatingDislike, Comment: "wrong page", Category: "citation",
				})).To(Succeed())

				list, err := driver.ListFeedback(ctx, messageID)
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(Equal([]chat.Feedback{
					{MessageID: messageID, Rating: chat.RatingLike},
					{MessageID: messageID, Rating: chat.RatingDislike, Comment: "wrong page", Category: "citation"},
				}))
			})

			It("rejects feedback on an unknown message", func() {
				err := driver.SaveFeedback(ctx, chat.Feedback{MessageID: "missing", Rating: chat.RatingLike})
				Expect(err).To(MatchError(storage.NotFoundError{Kind: "message", ID: "missing"}))
			})

			It("rejects an invalid rating", func() {
				err := driver.SaveFeedback(ctx, chat.Feedback{MessageID: messageID, Rating: "meh"})
				Expect(err).To(HaveOccurred())
			})
		})
	})
}
