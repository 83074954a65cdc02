package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/client"
	"github.com/papercomputeco/chatstream/pkg/credentials"
	"github.com/papercomputeco/chatstream/pkg/stream"
)

type captured struct {
	method string
	path   string
	auth   string
	accept string
	ctype  string
	agent  string
	body   []byte
}

var _ = Describe("Client", func() {
	var (
		srv     *httptest.Server
		handler http.HandlerFunc
		mu      sync.Mutex
		last    captured
		c       *client.Client
	)

	BeforeEach(func() {
		last = captured{}
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			last = captured{
				method: r.Method,
				path:   r.URL.EscapedPath(),
				auth:   r.Header.Get("Authorization"),
				accept: r.Header.Get("Accept"),
				ctype:  r.Header.Get("Content-Type"),
				agent:  r.Header.Get("User-Agent"),
				body:   body,
			}
			mu.Unlock()
			handler(w, r)
		}))
		DeferCleanup(srv.Close)

		var err error
		c, err = client.New(client.Config{
			BaseURL: srv.URL + "/",
			Tokens:  credentials.StaticSource("tok-123"),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	lastRequest := func() captured {
		mu.Lock()
		defer mu.Unlock()
		return last
	}

	It("satisfies the stream opener", func() {
		var _ stream.Opener = c
	})

	Describe("New", func() {
		It("requires a base URL and token source", func() {
			_, err := client.New(client.Config{Tokens: credentials.StaticSource("x")})
			Expect(err).To(HaveOccurred())

			_, err = client.New(client.Config{BaseURL: "http://localhost"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("OpenStream", func() {
		It("posts the content with bearer auth and returns the body", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = io.WriteString(w, "event: token\ndata: {\"content\":\"hi\"}\n\n")
			}

			body, err := c.OpenStream(context.Background(), "proj-1", "chat-1", "Hello")
			Expect(err).NotTo(HaveOccurred())
			defer body.Close()

			raw, err := io.ReadAll(body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(Equal("event: token\ndata: {\"content\":\"hi\"}\n\n"))

			req := lastRequest()
			Expect(req.method).To(Equal(http.MethodPost))
			Expect(req.path).To(Equal("/api/chat/proj-1/chats/chat-1/messages/stream"))
			Expect(req.auth).To(Equal("Bearer tok-123"))
			Expect(req.accept).To(Equal("text/event-stream"))
			Expect(req.ctype).To(Equal("application/json"))
			Expect(req.agent).To(Equal("chatstream/dev (HEAD)"))
			Expect(req.body).To(MatchJSON(`{"content":"Hello"}`))
		})

		It("returns a transport error carrying the status and backend message", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = io.WriteString(w, `{"error":"slow down"}`)
			}

			_, err := c.OpenStream(context.Background(), "proj-1", "chat-1", "Hello")
			var transportErr *chat.TransportError
			Expect(errors.As(err, &transportErr)).To(BeTrue())
			Expect(transportErr.StatusCode).To(Equal(http.StatusTooManyRequests))
			Expect(transportErr.Body).To(Equal("slow down"))
		})

		It("caps the error body", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, strings.Repeat("x", 10_000))
			}

			_, err := c.OpenStream(context.Background(), "proj-1", "chat-1", "Hello")
			var transportErr *chat.TransportError
			Expect(errors.As(err, &transportErr)).To(BeTrue())
			Expect(transportErr.Body).To(HaveLen(4096))
		})

		It("reports a missing token as a precondition without calling the backend", func() {
			noTok, err := client.New(client.Config{BaseURL: srv.URL, Tokens: credentials.StaticSource("")})
			Expect(err).NotTo(HaveOccurred())

			_, err = noTok.OpenStream(context.Background(), "proj-1", "chat-1", "Hello")
			var preErr *chat.PreconditionError
			Expect(errors.As(err, &preErr)).To(BeTrue())
			Expect(errors.Is(err, credentials.ErrNoToken)).To(BeTrue())
			Expect(lastRequest().method).To(BeEmpty())
		})

		It("maps a cancelled context to cancellation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := c.OpenStream(ctx, "proj-1", "chat-1", "Hello")
			Expect(err).To(MatchError(chat.ErrCancelled))
		})

		It("reports an unreachable backend as a transport error", func() {
			dead := httptest.NewServer(http.NotFoundHandler())
			dead.Close()

			cl, err := client.New(client.Config{BaseURL: dead.URL, Tokens: credentials.StaticSource("t")})
			Expect(err).NotTo(HaveOccurred())

			_, err = cl.OpenStream(context.Background(), "p", "c", "Hello")
			var transportErr *chat.TransportError
			Expect(errors.As(err, &transportErr)).To(BeTrue())
			Expect(transportErr.StatusCode).To(BeZero())
		})
	})

	Describe("LoadChat", func() {
		It("decodes the chat snapshot", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(chat.ChatWithMessages{
					ID:        "chat-1",
					ProjectID: "proj-1",
					Title:     "Greetings",
					Messages: []chat.Message{
						{ID: "u1", Role: chat.RoleUser, Content: "Hello"},
						{ID: "a1", Role: chat.RoleAssistant, Content: "Hi there"},
					},
				})
			}

			got, err := c.LoadChat(context.Background(), "chat-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("Greetings"))
			Expect(got.Messages).To(HaveLen(2))
			Expect(got.Messages[1].Content).To(Equal("Hi there"))

			req := lastRequest()
			Expect(req.method).To(Equal(http.MethodGet))
			Expect(req.path).To(Equal("/api/chat/chat-1"))
			Expect(req.auth).To(Equal("Bearer tok-123"))
		})

		It("returns a transport error for a missing chat", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"error":"chat not found"}`)
			}

			_, err := c.LoadChat(context.Background(), "nope")
			Expect(err).To(MatchError("backend returned status 404: chat not found"))
		})
	})

	Describe("CreateChat", func() {
		It("posts the title", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, `{"id":"chat-9","project_id":"proj-1","title":"New","messages":[]}`)
			}

			got, err := c.CreateChat(context.Background(), "proj-1", "New")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("chat-9"))

			req := lastRequest()
			Expect(req.path).To(Equal("/api/chat/proj-1/chats"))
			Expect(req.body).To(MatchJSON(`{"title":"New"}`))
		})
	})

	Describe("SubmitFeedback", func() {
		It("posts the feedback", func() {
			err := c.SubmitFeedback(context.Background(), chat.Feedback{
				MessageID: "a1",
				Rating:    chat.RatingDislike,
				Comment:   "too short",
			})
			Expect(err).NotTo(HaveOccurred())

			req := lastRequest()
			Expect(req.method).To(Equal(http.MethodPost))
			Expect(req.path).To(Equal("/api/feedback"))
			Expect(req.body).To(MatchJSON(`{"message_id":"a1","rating":"dislike","comment":"too short"}`))
		})

		It("validates before sending", func() {
			err := c.SubmitFeedback(context.Background(), chat.Feedback{MessageID: "a1", Rating: "meh"})
			Expect(err).To(HaveOccurred())
			Expect(lastRequest().method).To(BeEmpty())
		})
	})
})
