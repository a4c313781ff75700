package eviction_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/eviction"
)

var _ = Describe("ShouldReabsorb", func() {
	It("follows the limit 100, interval 3 scenario", func() {
		Expect(eviction.ShouldReabsorb(40, 100, 1, 3)).To(BeFalse())
		Expect(eviction.ShouldReabsorb(90, 100, 2, 3)).To(BeTrue())
		Expect(eviction.ShouldReabsorb(10, 100, 3, 3)).To(BeTrue())
	})

	It("does not fire at exactly the high watermark", func() {
		Expect(eviction.ShouldReabsorb(80, 100, 1, 3)).To(BeFalse())
		Expect(eviction.ShouldReabsorb(81, 100, 1, 3)).To(BeTrue())
	})

	It("disables the periodic trigger for non-positive intervals", func() {
		Expect(eviction.ShouldReabsorb(0, 100, 0, 0)).To(BeFalse())
		Expect(eviction.ShouldReabsorb(0, 100, 6, -3)).To(BeFalse())
		Expect(eviction.ShouldReabsorb(99, 100, 6, 0)).To(BeTrue())
	})
})

var _ = Describe("Policy", func() {
	It("uses the defaults", func() {
		p := eviction.NewPolicy()
		Expect(p.TokenLimit).To(Equal(8000))
		Expect(p.Interval).To(Equal(3))
		Expect(p.HighWatermark).To(Equal(0.8))
	})

	DescribeTable("reports the trigger",
		func(current, counter int, want eviction.Trigger) {
			p := eviction.Policy{TokenLimit: 100, Interval: 3, HighWatermark: 0.8}
			d := p.Check(current, counter)
			Expect(d.Trigger).To(Equal(want))
			Expect(d.Reabsorb).To(Equal(want != eviction.TriggerNone))
		},
		Entry("nothing fires", 10, 1, eviction.TriggerNone),
		Entry("high usage", 95, 1, eviction.TriggerHighUsage),
		Entry("interval", 10, 6, eviction.TriggerInterval),
		Entry("high usage wins over interval", 95, 3, eviction.TriggerHighUsage),
	)

	It("names triggers", func() {
		Expect(eviction.TriggerHighUsage.String()).To(Equal("high-usage"))
		Expect(eviction.TriggerInterval.String()).To(Equal("interval"))
		Expect(eviction.TriggerNone.String()).To(Equal("none"))
	})
})
