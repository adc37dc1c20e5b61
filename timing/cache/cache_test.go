package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rsim/timing/cache"
)

func smallConfig() cache.Config {
	return cache.Config{
		Size:          4 * 1024,
		Associativity: 4,
		BlockSize:     64,
		HitLatency:    1,
		MissLatency:   10,
		NumMSHRs:      4,
	}
}

var _ = Describe("Cache", func() {
	var c *cache.Cache

	BeforeEach(func() {
		c = cache.New(smallConfig())
		c.BeginCycle()
	})

	It("reports a miss-primary on a cold line and allocates an MSHR", func() {
		res := c.Lookup(0x1000, 8, false, 0)
		Expect(res.Status).To(Equal(cache.StatusMissPrimary))
		Expect(res.Latency).To(Equal(uint64(10)))
	})

	It("coalesces a second miss to the same line as miss-secondary", func() {
		c.Lookup(0x1000, 8, false, 0)
		c.BeginCycle()
		res := c.Lookup(0x1008, 4, false, 0) // same 64B line, different word
		Expect(res.Status).To(Equal(cache.StatusMissSecondary))
		Expect(c.Stats().SecondaryHits).To(Equal(uint64(1)))
	})

	It("hits after FillMSHR installs the line", func() {
		first := c.Lookup(0x1000, 8, false, 0)
		Expect(first.Status).To(Equal(cache.StatusMissPrimary))

		line := make([]byte, 64)
		line[0] = 0xEF
		evicted, _, waiters := c.FillMSHR(first.MSHRIdx, line, cache.Shared)
		Expect(evicted).To(BeFalse())
		Expect(waiters).To(BeEmpty())

		c.BeginCycle()
		second := c.Lookup(0x1000, 1, false, 0)
		Expect(second.Status).To(Equal(cache.StatusHit))
		Expect(second.Data).To(Equal(uint64(0xEF)))
	})

	It("marks a written-back line Modified after a write hit", func() {
		first := c.Lookup(0x2000, 4, true, 0x1234)
		line := make([]byte, 64)
		c.FillMSHR(first.MSHRIdx, line, cache.Shared)

		c.BeginCycle()
		hit := c.Lookup(0x2000, 4, true, 0xABCD)
		Expect(hit.Status).To(Equal(cache.StatusHit))
		Expect(c.SpecState(0x2000)).To(Equal(cache.Modified))
	})

	It("enforces one read port and one write port per cycle", func() {
		first := c.Lookup(0x1000, 4, false, 0)
		Expect(first.Status).NotTo(Equal(cache.StatusPortFull))
		second := c.Lookup(0x3000, 4, false, 0)
		Expect(second.Status).To(Equal(cache.StatusPortFull))
	})

	It("forwards a write-buffer entry to a matching load without touching the array", func() {
		c.WriteBuffer().Push(0x4000, 4, 0x99)
		res := c.Lookup(0x4000, 4, false, 0)
		Expect(res.Status).To(Equal(cache.StatusHit))
		Expect(res.Data).To(Equal(uint64(0x99)))
		Expect(c.Stats().WriteBufferForwards).To(Equal(uint64(1)))
	})

	It("calls BackInvalidate with the evicted line's address on a capacity eviction", func() {
		var evicted []uint64
		c.BackInvalidate = func(addr uint64) { evicted = append(evicted, addr) }

		// smallConfig is 4-way associative; four distinct lines in the
		// same set fill every way, and a fifth forces an LRU eviction.
		addrs := []uint64{0x0000, 0x1000, 0x2000, 0x3000, 0x4000}
		for _, a := range addrs {
			c.BeginCycle()
			res := c.Lookup(a, 4, false, 0)
			Expect(res.Status).To(Equal(cache.StatusMissPrimary))
			line := make([]byte, 64)
			c.FillMSHR(res.MSHRIdx, line, cache.Shared)
		}

		Expect(evicted).To(ConsistOf(uint64(0x0000)))
	})
})

var _ = Describe("Cache StatsLevel gating", func() {
	It("skips the latency histogram below stats_level 2", func() {
		cfg := smallConfig()
		cfg.StatsLevel = 1
		c := cache.New(cfg)
		c.BeginCycle()

		res := c.Lookup(0x1000, 8, false, 0)
		Expect(res.Status).To(Equal(cache.StatusMissPrimary))
		Expect(c.LatencyStats().Count()).To(Equal(int64(0)))

		c.BeginCycle()
		c.Lookup(0x1000, 8, false, 0) // secondary hit, no latency sample either

		line := make([]byte, 64)
		c.FillMSHR(0, line, cache.Shared)
		c.BeginCycle()
		hit := c.Lookup(0x1000, 8, false, 0)
		Expect(hit.Status).To(Equal(cache.StatusHit))
		Expect(c.LatencyStats().Count()).To(Equal(int64(0)))
	})

	It("records the latency histogram at stats_level 2 and above", func() {
		cfg := smallConfig()
		cfg.StatsLevel = 2
		c := cache.New(cfg)
		c.BeginCycle()

		c.Lookup(0x1000, 8, false, 0)
		Expect(c.LatencyStats().Count()).To(Equal(int64(1)))
	})
})

var _ = Describe("WriteBuffer", func() {
	It("coalesces repeated writes to the same address", func() {
		wb := cache.NewWriteBuffer(2)
		Expect(wb.Push(0x100, 4, 1)).To(BeTrue())
		Expect(wb.Push(0x100, 4, 2)).To(BeTrue())
		Expect(wb.Len()).To(Equal(1))
		v, ok := wb.Forward(0x100, 4)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(uint64(2)))
	})

	It("rejects a new address once full", func() {
		wb := cache.NewWriteBuffer(1)
		Expect(wb.Push(0x100, 4, 1)).To(BeTrue())
		Expect(wb.Push(0x200, 4, 1)).To(BeFalse())
	})
})
