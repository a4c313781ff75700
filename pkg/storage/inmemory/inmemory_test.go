package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/storage"
	"github.com/papercomputeco/mnemo/pkg/storage/inmemory"
	"github.com/papercomputeco/mnemo/pkg/storage/storagetest"
)

var _ = storagetest.DescribeDriver("InMemory", func() storage.Driver {
	return inmemory.NewDriver()
})

var _ = Describe("Driver", func() {
	It("returns copies that callers cannot mutate", func() {
		ctx := context.Background()
		driver := inmemory.NewDriver()

		_, err := driver.CreateSession(ctx, "s1", "T1")
		Expect(err).NotTo(HaveOccurred())
		turn, err := driver.AppendTurn(ctx, storagetest.NewTurn("s1", "t", "A", 1))
		Expect(err).NotTo(HaveOccurred())

		turn.Payload = "mutated"
		session, err := driver.GetSession(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		session.Title = "mutated"

		turns, err := driver.ListTurns(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(turns[0].Payload).To(Equal("A"))

		again, err := driver.GetSession(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Title).To(Equal("T1"))
	})
})
