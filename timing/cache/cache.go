// Package cache implements the L1 and L2 cache components (spec.md §4.5):
// non-blocking lookup backed by an MSHR table for outstanding misses, and
// a coalescing write buffer with read-bypass forwarding. Tag/LRU state is
// delegated to akita's cache directory exactly as the teacher's
// timing/cache/cache.go did; RSIM adds the MSI-with-upgrade coherence
// state and the MSHR/write-buffer discipline spec.md's coherent hierarchy
// needs on top of it.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/rsim/stats"
)

// Config holds one cache level's geometry and latency.
type Config struct {
	Size          int
	Associativity int
	BlockSize     int
	HitLatency    uint64
	MissLatency   uint64
	NumMSHRs      int

	// StatsLevel gates the per-access latency histogram (spec.md §6
	// "stats_level"): below 2, hit/miss counters are still kept but the
	// sampled distribution is skipped.
	StatsLevel int
}

// CohState is a cache line's MSI-with-upgrade coherence state (spec.md
// §4.6 "Directory").
type CohState uint8

const (
	Invalid CohState = iota
	Shared
	Modified
)

// LookupStatus classifies a Lookup call's outcome (spec.md §4.5: hit,
// miss-primary, miss-secondary, mshr-full, port-full).
type LookupStatus uint8

const (
	StatusHit LookupStatus = iota
	StatusMissPrimary
	StatusMissSecondary
	StatusMSHRFull
	StatusPortFull
)

// LookupResult is what a non-blocking Lookup reports to the caller
// (processor pipeline or L1, for an L2 lookup).
type LookupResult struct {
	Status   LookupStatus
	Data     uint64
	Latency  uint64
	MSHRIdx  int
	Evicted     bool
	EvictedAddr uint64
	EvictedLine []byte
}

// Statistics mirrors the teacher's cache Statistics, extended with the
// MSHR/write-buffer counters spec.md's hierarchy needs.
type Statistics struct {
	Reads, Writes               uint64
	Hits, Misses                uint64
	Evictions, Writebacks       uint64
	SecondaryHits                uint64
	WriteBufferForwards          uint64

	// PrefetchedLate counts MSHRs that were still servicing a prefetch
	// when a demand request coalesced onto them (spec.md §4.5 "Prefetch":
	// the MSHR is marked prefetched-late and the instance's LatePrefetch
	// flag is set).
	PrefetchedLate uint64
}

// Cache is one level of the hierarchy: L1 (per-processor, non-blocking,
// one read port and one write port per cycle) or L2 (inclusive of L1,
// back-invalidates on eviction). Both use the same machinery; the caller
// distinguishes by Config and by whether BackInvalidate is wired.
type Cache struct {
	config Config

	directory *akitacache.DirectoryImpl
	dataStore [][]byte
	cohState  []CohState

	mshr *MSHRTable
	wb   *WriteBuffer

	stats Statistics

	// latencyHist records every serviced access's latency (spec.md §6
	// Outputs "per cache: hit rate, miss latency, utilization").
	latencyHist *stats.StatRec

	readPortUsed, writePortUsed bool

	// BackInvalidate, when non-nil, is called with a block-aligned address
	// evicted from this cache so an inclusive upper level can invalidate
	// its own copy (spec.md §4.5 "L2 ... back-invalidates L1 on eviction").
	BackInvalidate func(blockAddr uint64)
}

// New creates a Cache with the given geometry, MSHR table, and write
// buffer.
func New(cfg Config) *Cache {
	numSets := cfg.Size / (cfg.Associativity * cfg.BlockSize)
	totalBlocks := numSets * cfg.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, cfg.BlockSize)
	}

	return &Cache{
		config: cfg,
		directory: akitacache.NewDirectory(
			numSets, cfg.Associativity, cfg.BlockSize, akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		cohState:  make([]CohState, totalBlocks),
		mshr:        NewMSHRTable(cfg.NumMSHRs),
		wb:          NewWriteBuffer(8),
		latencyHist: stats.New("access-latency", stats.Sampled, 32, 4),
	}
}

// LatencyStats returns the distribution of this cache's serviced access
// latencies (hits at HitLatency, misses at MissLatency).
func (c *Cache) LatencyStats() *stats.StatRec { return c.latencyHist }

// recordLatency samples the access-latency histogram, skipped below
// stats_level 2.
func (c *Cache) recordLatency(cycles uint64) {
	if c.config.StatsLevel >= 2 {
		c.latencyHist.RecordSample(float64(cycles))
	}
}

func (c *Cache) Config() Config        { return c.config }
func (c *Cache) Stats() Statistics     { return c.stats }
func (c *Cache) ResetStats()           { c.stats = Statistics{} }

// MarkPrefetchedLate records that a live prefetch MSHR was caught by a
// coalescing demand request before it filled (spec.md §4.5 "Prefetch").
func (c *Cache) MarkPrefetchedLate() { c.stats.PrefetchedLate++ }
func (c *Cache) blockAddr(addr uint64) uint64 {
	return (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
}
func (c *Cache) blockIndex(b *akitacache.Block) int {
	return b.SetID*c.config.Associativity + b.WayID
}

// BeginCycle clears the per-cycle port-usage flags; call once per cycle
// before issuing Lookup calls (spec.md §4.5 "one read and one write port
// per cycle").
func (c *Cache) BeginCycle() {
	c.readPortUsed = false
	c.writePortUsed = false
}

// Lookup performs a non-blocking read or write lookup against addr. A hit
// returns data (for reads) immediately. A miss either allocates a new
// MSHR entry (miss-primary), coalesces onto an existing one for the same
// line (miss-secondary), or reports MSHRFull/PortFull if no resource is
// available, in which case the caller must retry the cycle.
func (c *Cache) Lookup(addr uint64, size int, isWrite bool, writeData uint64) LookupResult {
	if isWrite {
		if c.writePortUsed {
			return LookupResult{Status: StatusPortFull}
		}
	} else if c.readPortUsed {
		return LookupResult{Status: StatusPortFull}
	}

	// A pending store in the write buffer to this exact address forwards
	// directly to a load without touching the cache array (spec.md §4.5
	// "read-bypass forwarding").
	if !isWrite {
		if v, ok := c.wb.Forward(addr, size); ok {
			c.readPortUsed = true
			c.stats.Reads++
			c.stats.WriteBufferForwards++
			c.recordLatency(c.config.HitLatency)
			return LookupResult{Status: StatusHit, Data: v, Latency: c.config.HitLatency}
		}
	}

	blk := c.blockAddr(addr)
	block := c.directory.Lookup(0, blk)

	if block != nil && block.IsValid {
		if isWrite {
			c.writePortUsed = true
			c.stats.Writes++
		} else {
			c.readPortUsed = true
			c.stats.Reads++
		}
		c.stats.Hits++
		c.directory.Visit(block)

		offset := addr % uint64(c.config.BlockSize)
		data := c.dataStore[c.blockIndex(block)]
		if isWrite {
			storeData(data, offset, size, writeData)
			block.IsDirty = true
			c.cohState[c.blockIndex(block)] = Modified
		}
		c.recordLatency(c.config.HitLatency)
		return LookupResult{
			Status:  StatusHit,
			Data:    extractData(data, offset, size),
			Latency: c.config.HitLatency,
		}
	}

	// Miss: coalesce onto an outstanding MSHR for the same line if one
	// exists, else allocate a new one.
	if idx, ok := c.mshr.FindByLine(blk); ok {
		if !c.mshr.AddWaiter(idx) {
			return LookupResult{Status: StatusMSHRFull}
		}
		c.stats.SecondaryHits++
		if isWrite {
			c.writePortUsed = true
			c.stats.Writes++
		} else {
			c.readPortUsed = true
			c.stats.Reads++
		}
		return LookupResult{Status: StatusMissSecondary, MSHRIdx: idx}
	}

	idx, ok := c.mshr.Allocate(blk, isWrite)
	if !ok {
		return LookupResult{Status: StatusMSHRFull}
	}
	if isWrite {
		c.writePortUsed = true
		c.stats.Writes++
	} else {
		c.readPortUsed = true
		c.stats.Reads++
	}
	c.stats.Misses++
	c.recordLatency(c.config.MissLatency)
	return LookupResult{Status: StatusMissPrimary, MSHRIdx: idx, Latency: c.config.MissLatency}
}

// FillMSHR completes a primary miss once the lower level returns data for
// mshrIdx's line: it installs the line (evicting an LRU victim if
// needed), applies any write this MSHR was opened for, and returns the
// eviction outcome (for write-back / back-invalidation) plus every
// waiter's MSHR index so the caller can wake them up.
func (c *Cache) FillMSHR(mshrIdx int, line []byte, state CohState) (evicted bool, evictedAddr uint64, waiters []int) {
	e := c.mshr.entries[mshrIdx]
	blk := e.lineTag

	victim := c.directory.FindVictim(blk)
	vi := c.blockIndex(victim)
	if victim.IsValid {
		evicted = true
		evictedAddr = victim.Tag
		if victim.IsDirty {
			c.stats.Writebacks++
		}
		if c.BackInvalidate != nil {
			c.BackInvalidate(victim.Tag)
		}
		c.stats.Evictions++
	}

	copy(c.dataStore[vi], line)
	victim.Tag = blk
	victim.IsValid = true
	victim.IsDirty = e.isWrite
	c.cohState[vi] = state
	if e.isWrite {
		c.cohState[vi] = Modified
	}
	c.directory.Visit(victim)

	waiters = c.mshr.Release(mshrIdx)
	return
}

// SpecState returns the coherence state currently recorded for addr's
// line, Invalid if not present.
func (c *Cache) SpecState(addr uint64) CohState {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block == nil || !block.IsValid {
		return Invalid
	}
	return c.cohState[c.blockIndex(block)]
}

// Invalidate drops addr's line (a remote coherence request, spec.md
// §4.6), writing back first if dirty and reporting whether a writeback is
// owed to the caller.
func (c *Cache) Invalidate(addr uint64) (wasDirty bool) {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block == nil || !block.IsValid {
		return false
	}
	wasDirty = block.IsDirty
	block.IsValid = false
	block.IsDirty = false
	c.cohState[c.blockIndex(block)] = Invalid
	return wasDirty
}

// WriteBuffer exposes the cache's write buffer for the pipeline's store
// retirement path.
func (c *Cache) WriteBuffer() *WriteBuffer { return c.wb }

func extractData(data []byte, offset uint64, size int) uint64 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}
	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

func storeData(data []byte, offset uint64, size int, value uint64) {
	if data == nil || int(offset)+size > len(data) {
		return
	}
	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
