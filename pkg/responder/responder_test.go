package responder_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/responder"
)

var _ = Describe("Tokenize", func() {
	DescribeTable("keeps the text intact",
		func(in string, want []string) {
			got := responder.Tokenize(in)
			Expect(got).To(Equal(want))
			Expect(strings.Join(got, "")).To(Equal(in))
		},
		Entry("two words", "Hi there", []string{"Hi", " there"}),
		Entry("repeated spaces", "a  b", []string{"a", "  b"}),
		Entry("leading space", " a", []string{" a"}),
		Entry("trailing space", "a ", []string{"a", " "}),
		Entry("multibyte", "héllo wörld", []string{"héllo", " wörld"}),
	)

	It("returns nothing for empty input", func() {
		Expect(responder.Tokenize("")).To(BeEmpty())
	})
})

var _ = Describe("Echo", func() {
	var (
		ctx     context.Context
		tokens  []string
		collect func(string) error
	)

	BeforeEach(func() {
		ctx = context.Background()
		tokens = nil
		collect = func(t string) error {
			tokens = append(tokens, t)
			return nil
		}
	})

	It("streams the prompt back", func() {
		reply, err := responder.Echo{}.Respond(ctx, nil, "Hello", collect)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Content).To(Equal("You said: Hello"))
		Expect(strings.Join(tokens, "")).To(Equal(reply.Content))
		Expect(tokens).To(HaveLen(3))
	})

	It("counts earlier user turns", func() {
		history := []chat.Message{{Role: chat.RoleUser}, {Role: chat.RoleAssistant}}
		reply, err := responder.Echo{}.Respond(ctx, history, "again", collect)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Content).To(Equal("You said: again (message 2)"))
	})

	It("refuses prompts with the error prefix", func() {
		_, err := responder.Echo{}.Respond(ctx, nil, "!error rate limited", collect)

		var refusal *responder.RefusalError
		Expect(errors.As(err, &refusal)).To(BeTrue())
		Expect(refusal.Message).To(Equal("rate limited"))
		Expect(tokens).To(BeEmpty())
	})

	It("stops when the token callback fails", func() {
		boom := errors.New("client gone")
		_, err := responder.Echo{}.Respond(ctx, nil, "one two three", func(string) error { return boom })
		Expect(err).To(MatchError(boom))
	})

	It("stops when the context is cancelled during a delay", func() {
		ctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := responder.Echo{Delay: time.Hour}.Respond(ctx, nil, "Hello", collect)
		Expect(err).To(MatchError(context.Canceled))
		Expect(tokens).To(BeEmpty())
	})
})
