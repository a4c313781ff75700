package worker

import (
	"context"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/eventstream"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
)

// gatedPublisher blocks every publish until release is closed.
type gatedPublisher struct {
	started chan struct{}
	release chan struct{}
	inner   *testutils.RecordingPublisher
}

func (g *gatedPublisher) Publish(ctx context.Context, event *eventstream.Event) error {
	g.started <- struct{}{}
	<-g.release
	return g.inner.Publish(ctx, event)
}

func (g *gatedPublisher) Close() error {
	return g.inner.Close()
}

func newEvent(eventType, sessionID string) *eventstream.Event {
	return eventstream.NewEvent(eventType, sessionID, nil, time.Now())
}

var _ = Describe("Event Worker Pool", func() {
	var (
		logger *slog.Logger
		ctx    context.Context
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx = context.Background()
	})

	Describe("NewPool", func() {
		It("requires a publisher and a logger", func() {
			_, err := NewPool(&Config{Logger: logger})
			Expect(err).To(HaveOccurred())

			_, err = NewPool(&Config{Publisher: testutils.NewRecordingPublisher()})
			Expect(err).To(HaveOccurred())
		})

		It("applies defaults", func() {
			wp, err := NewPool(&Config{Publisher: testutils.NewRecordingPublisher(), Logger: logger})
			Expect(err).NotTo(HaveOccurred())
			defer wp.Close()

			Expect(wp.config.NumWorkers).To(Equal(defaultNumWorkers))
			Expect(wp.config.QueueSize).To(Equal(defaultJobQueueSize))
			Expect(wp.config.PublishTimeout).To(Equal(defaultPublishTimeout))
		})
	})

	Describe("Publish", func() {
		It("delivers every event in order once drained", func() {
			inner := testutils.NewRecordingPublisher()
			wp, err := NewPool(&Config{Publisher: inner, Logger: logger})
			Expect(err).NotTo(HaveOccurred())

			Expect(wp.Publish(ctx, newEvent(eventstream.EventTypeTurnStored, "s1"))).To(Succeed())
			Expect(wp.Publish(ctx, newEvent(eventstream.EventTypeTurnReabsorbed, "s1"))).To(Succeed())
			Expect(wp.Publish(ctx, newEvent(eventstream.EventTypeSessionDeleted, "s1"))).To(Succeed())

			Expect(wp.Close()).To(Succeed())
			Expect(inner.EventTypes()).To(Equal([]string{
				eventstream.EventTypeTurnStored,
				eventstream.EventTypeTurnReabsorbed,
				eventstream.EventTypeSessionDeleted,
			}))
			Expect(inner.Closed()).To(BeTrue())
		})

		It("rejects nil events", func() {
			wp, err := NewPool(&Config{Publisher: testutils.NewRecordingPublisher(), Logger: logger})
			Expect(err).NotTo(HaveOccurred())
			defer wp.Close()

			Expect(wp.Publish(ctx, nil)).To(MatchError(eventstream.ErrNilEvent))
		})

		It("drops events when the queue is full", func() {
			gated := &gatedPublisher{
				started: make(chan struct{}, 2),
				release: make(chan struct{}),
				inner:   testutils.NewRecordingPublisher(),
			}
			wp, err := NewPool(&Config{Publisher: gated, Logger: logger, QueueSize: 1})
			Expect(err).NotTo(HaveOccurred())

			Expect(wp.Publish(ctx, newEvent(eventstream.EventTypeTurnStored, "s1"))).To(Succeed())
			Eventually(gated.started).Should(Receive())

			Expect(wp.Publish(ctx, newEvent(eventstream.EventTypeTurnStored, "s2"))).To(Succeed())
			Expect(wp.Publish(ctx, newEvent(eventstream.EventTypeTurnStored, "s3"))).To(MatchError(ErrQueueFull))

			close(gated.release)
			Expect(wp.Close()).To(Succeed())
			Expect(gated.inner.Events()).To(HaveLen(2))
		})

		It("swallows failures from the wrapped publisher", func() {
			inner := testutils.NewRecordingPublisher()
			inner.Fail = true
			wp, err := NewPool(&Config{Publisher: inner, Logger: logger})
			Expect(err).NotTo(HaveOccurred())

			Expect(wp.Publish(ctx, newEvent(eventstream.EventTypeTurnStored, "s1"))).To(Succeed())
			Expect(wp.Close()).To(Succeed())
			Expect(inner.Events()).To(BeEmpty())
		})
	})

	Describe("Close", func() {
		It("rejects publishes after close and is idempotent", func() {
			wp, err := NewPool(&Config{Publisher: testutils.NewRecordingPublisher(), Logger: logger})
			Expect(err).NotTo(HaveOccurred())

			Expect(wp.Close()).To(Succeed())
			Expect(wp.Close()).To(Succeed())
			Expect(wp.Publish(ctx, newEvent(eventstream.EventTypeTurnStored, "s1"))).To(MatchError(ErrClosed))
		})
	})
})
