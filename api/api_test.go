package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/api"
	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/client"
	"github.com/papercomputeco/chatstream/pkg/credentials"
	"github.com/papercomputeco/chatstream/pkg/sse"
	"github.com/papercomputeco/chatstream/pkg/storage/inmemory"
	"github.com/papercomputeco/chatstream/pkg/stream"
)

const testToken = "secret"

// decodeFrames parses a complete SSE body into typed events.
func decodeFrames(body []byte) []stream.Event {
	var dec sse.Decoder
	var events []stream.Event
	for _, block := range dec.Feed(body) {
		raw, ok := sse.ParseBlock(block)
		Expect(ok).To(BeTrue())
		ev, err := stream.Decode(raw)
		Expect(err).NotTo(HaveOccurred())
		events = append(events, ev)
	}
	Expect(dec.Buffered()).To(BeZero())
	return events
}

var _ = Describe("Server", func() {
	var (
		ts     *httptest.Server
		driver *inmemory.Driver
		ctx    context.Context
	)

	request := func(method, path, token string, body any) *http.Response {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, ts.URL+path, reader)
		Expect(err).NotTo(HaveOccurred())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	createChat := func() *chat.ChatWithMessages {
		resp := request(http.MethodPost, "/api/chat/proj-1/chats", testToken, map[string]string{"title": "t"})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		out := &chat.ChatWithMessages{}
		Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
		return out
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()

		server, err := api.NewServer(api.Config{
			ListenAddr: ":0",
			Token:      testToken,
			UserID:     "dev-user",
		}, driver, nil)
		Expect(err).NotTo(HaveOccurred())

		ts = httptest.NewServer(server.Handler())
		DeferCleanup(ts.Close)
	})

	It("requires a storage driver and user", func() {
		_, err := api.NewServer(api.Config{UserID: "u"}, nil, nil)
		Expect(err).To(HaveOccurred())
		_, err = api.NewServer(api.Config{}, driver, nil)
		Expect(err).To(HaveOccurred())
	})

	It("answers ping without auth", func() {
		resp := request(http.MethodGet, "/ping", "", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	Describe("bearer auth", func() {
		It("rejects a missing token", func() {
			resp := request(http.MethodGet, "/api/chat/x", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("rejects the wrong token", func() {
			resp := request(http.MethodGet, "/api/chat/x", "nope", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

			var body api.ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Error).To(Equal("invalid bearer token"))
		})

		It("accepts any token when none is configured", func() {
			open, err := api.NewServer(api.Config{UserID: "dev-user"}, driver, nil)
			Expect(err).NotTo(HaveOccurred())
			openTS := httptest.NewServer(open.Handler())
			defer openTS.Close()

			req, err := http.NewRequest(http.MethodGet, openTS.URL+"/api/chat/missing", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Bearer anything")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("chats", func() {
		It("creates and loads a chat", func() {
			created := createChat()
			Expect(created.ProjectID).To(Equal("proj-1"))
			Expect(created.ClerkID).To(Equal("dev-user"))

			resp := request(http.MethodGet, "/api/chat/"+created.ID, testToken, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			loaded := &chat.ChatWithMessages{}
			Expect(json.NewDecoder(resp.Body).Decode(loaded)).To(Succeed())
			Expect(loaded.ID).To(Equal(created.ID))
			Expect(loaded.Title).To(Equal("t"))
		})

		It("returns 404 for an unknown chat", func() {
			resp := request(http.MethodGet, "/api/chat/missing", testToken, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("message stream", func() {
		var created *chat.ChatWithMessages

		BeforeEach(func() {
			created = createChat()
		})

		streamPath := func(projectID string) string {
			return "/api/chat/" + projectID + "/chats/" + created.ID + "/messages/stream"
		}

		It("streams status, tokens and done", func() {
			resp := request(http.MethodPost, streamPath("proj-1"), testToken, map[string]string{"content": "Hello"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			events := decodeFrames(body)

			Expect(events[0]).To(Equal(&stream.StatusEvent{Status: "thinking"}))

			var text string
			for _, ev := range events[1 : len(events)-1] {
				tok, ok := ev.(*stream.TokenEvent)
				Expect(ok).To(BeTrue())
				text += tok.Content
			}
			Expect(text).To(Equal("You said: Hello"))

			done, ok := events[len(events)-1].(*stream.DoneEvent)
			Expect(ok).To(BeTrue())
			Expect(done.UserMessage.Content).To(Equal("Hello"))
			Expect(done.AIMessage.Content).To(Equal("You said: Hello"))

			stored, err := driver.GetChat(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Messages).To(HaveLen(2))
			Expect(stored.Messages[1].ID).To(Equal(done.AIMessage.ID))
		})

		It("emits an error event for a refused prompt", func() {
			resp := request(http.MethodPost, streamPath("proj-1"), testToken, map[string]string{"content": "!error rate limited"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			events := decodeFrames(body)
			Expect(events).To(Equal([]stream.Event{
				&stream.StatusEvent{Status: "thinking"},
				&stream.ErrorEvent{Message: "rate limited"},
			}))
		})

		It("rejects empty content", func() {
			resp := request(http.MethodPost, streamPath("proj-1"), testToken, map[string]string{"content": "  "})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects a chat from another project", func() {
			resp := request(http.MethodPost, streamPath("other"), testToken, map[string]string{"content": "Hello"})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("feedback", func() {
		var messageID string

		BeforeEach(func() {
			created := createChat()
			stored, err := driver.AppendMessages(ctx, created.ID, chat.Message{Role: chat.RoleAssistant, Content: "answer"})
			Expect(err).NotTo(HaveOccurred())
			messageID = stored[0].ID
		})

		It("records feedback", func() {
			resp := request(http.MethodPost, "/api/feedback", testToken, chat.Feedback{MessageID: messageID, Rating: chat.RatingLike, Comment: "great"})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			list, err := driver.ListFeedback(ctx, messageID)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(Equal([]chat.Feedback{{MessageID: messageID, Rating: chat.RatingLike, Comment: "great"}}))
		})

		It("rejects an invalid rating", func() {
			resp := request(http.MethodPost, "/api/feedback", testToken, map[string]string{"message_id": messageID, "rating": "meh"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for an unknown message", func() {
			resp := request(http.MethodPost, "/api/feedback", testToken, chat.Feedback{MessageID: "missing", Rating: chat.RatingLike})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("with the streaming client", func() {
		var (
			c    *client.Client
			conv *chat.Conversation
			sess *stream.Session
		)

		BeforeEach(func() {
			var err error
			c, err = client.New(client.Config{BaseURL: ts.URL, Tokens: credentials.StaticSource(testToken)})
			Expect(err).NotTo(HaveOccurred())

			created, err := c.CreateChat(ctx, "proj-1", "")
			Expect(err).NotTo(HaveOccurred())
			loaded, err := c.LoadChat(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())

			conv = chat.NewConversation(*loaded)
			sess = stream.NewSession(stream.Config{Conversation: conv, UserID: "dev-user", Opener: c})
		})

		It("completes a send and reconciles the transcript", func() {
			out, err := sess.Send(ctx, "Hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.State).To(Equal(stream.StateCompleted))
			Expect(out.AIMessage.Content).To(Equal("You said: Hello"))

			msgs := conv.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].ID).To(Equal(out.UserMessage.ID))
			Expect(msgs[1].ID).To(Equal(out.AIMessage.ID))

			reloaded, err := c.LoadChat(ctx, conv.ChatID())
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Messages).To(HaveLen(2))

			Expect(c.SubmitFeedback(ctx, chat.Feedback{MessageID: out.AIMessage.ID, Rating: chat.RatingDislike})).To(Succeed())
		})

		It("fails with the server's message and rolls back", func() {
			out, err := sess.Send(ctx, "!error rate limited")

			var protocolErr *chat.ProtocolError
			Expect(errors.As(err, &protocolErr)).To(BeTrue())
			Expect(protocolErr.Error()).To(Equal("rate limited"))
			Expect(out.State).To(Equal(stream.StateFailed))
			Expect(conv.Messages()).To(BeEmpty())
		})

		It("surfaces an auth failure as a transport error", func() {
			bad, err := client.New(client.Config{BaseURL: ts.URL, Tokens: credentials.StaticSource("wrong")})
			Expect(err).NotTo(HaveOccurred())
			sess = stream.NewSession(stream.Config{Conversation: conv, UserID: "dev-user", Opener: bad})

			out, err := sess.Send(ctx, "Hello")
			var transportErr *chat.TransportError
			Expect(errors.As(err, &transportErr)).To(BeTrue())
			Expect(transportErr.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(transportErr.Body).To(Equal("invalid bearer token"))
			Expect(out.State).To(Equal(stream.StateFailed))
			Expect(conv.Messages()).To(BeEmpty())
		})
	})
})
