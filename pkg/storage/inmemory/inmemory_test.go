package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/storage"
	"github.com/papercomputeco/chatstream/pkg/storage/inmemory"
	"github.com/papercomputeco/chatstream/pkg/storage/storagetest"
)

var _ = storagetest.DescribeDriver("inmemory", func() storage.Driver {
	return inmemory.NewDriver()
})

var _ = Describe("Driver", func() {
	It("returns copies that callers cannot mutate", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()

		c, err := d.CreateChat(ctx, "proj-1", "clerk-1", "")
		Expect(err).NotTo(HaveOccurred())
		_, err = d.AppendMessages(ctx, c.ID, chat.Message{Role: chat.RoleUser, Content: "Hello"})
		Expect(err).NotTo(HaveOccurred())

		got, err := d.GetChat(ctx, c.ID)
		Expect(err).NotTo(HaveOccurred())
		got.Messages[0].Content = "changed"

		again, err := d.GetChat(ctx, c.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Messages[0].Content).To(Equal("Hello"))
	})
})
