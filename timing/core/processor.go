// Package core implements the ProcessorPipeline component (spec.md §4.2,
// §4.3): an out-of-order SPARC-V9 core with fetch, rename, issue,
// execute, and retire stages, driven one cycle at a time and walked in
// reverse stage order so a later stage never sees a value its earlier
// stage produced this same cycle (the teacher's timing/pipeline.go
// 5-stage model updates stages via "next" shadow registers for the same
// reason; RSIM's OoO core instead walks retire-before-fetch each Tick,
// which gives the identical same-cycle isolation without needing shadow
// copies of the larger OoO state).
package core

import (
	"github.com/sarchlab/rsim/emu"
	"github.com/sarchlab/rsim/insts"
	"github.com/sarchlab/rsim/loader"
	"github.com/sarchlab/rsim/respool"
	"github.com/sarchlab/rsim/rsimerr"
	"github.com/sarchlab/rsim/timing/cache"
	"github.com/sarchlab/rsim/timing/directory"
	"github.com/sarchlab/rsim/timing/membus"
	"github.com/sarchlab/rsim/timing/memqueue"
)

// Statistics mirrors the teacher's per-pipeline counters, extended with
// the OoO-specific events spec.md §6 Outputs asks for.
type Statistics struct {
	CyclesElapsed     uint64
	InstructionsRetired uint64
	BranchMispredicts uint64
	Squashes          uint64
	WindowOverflows   uint64
	Exceptions        uint64
}

// ProcessorOption is a functional option configuring a Processor, in the
// teacher's PipelineOption idiom.
type ProcessorOption func(*Processor)

// WithFetchRate overrides the default fetch width.
func WithFetchRate(n int) ProcessorOption { return func(p *Processor) { p.fetchRate = n } }

// WithRetireRate overrides the default retire width.
func WithRetireRate(n int) ProcessorOption { return func(p *Processor) { p.retireRate = n } }

// WithIssueRate overrides the default issue width.
func WithIssueRate(n int) ProcessorOption { return func(p *Processor) { p.issueRate = n } }

// WithNumPhysRegs overrides the default physical integer register count.
func WithNumPhysRegs(n int) ProcessorOption {
	return func(p *Processor) { p.phys = NewPhysRegFile(n) }
}

// WithActiveListSize overrides the default ActiveList capacity.
func WithActiveListSize(n int) ProcessorOption {
	return func(p *Processor) { p.al = NewActiveList(n) }
}

// WithBranchPredictor overrides the default branch predictor table size
// and return-address-stack depth.
func WithBranchPredictor(size, rasDepth int) ProcessorOption {
	return func(p *Processor) { p.bp = NewBranchPredictor(size, rasDepth) }
}

// Processor is one out-of-order SPARC-V9 node (spec.md §4.2/§4.3).
type Processor struct {
	ID int

	Reg *emu.RegFile
	Mem *emu.Memory
	FE  *emu.FunctionalExecutor

	Program *loader.Program

	phys   *PhysRegFile
	rename *RenameMap
	al     *ActiveList
	bp     *BranchPredictor

	MemQ *memqueue.Queue
	L1   *cache.Cache

	// L2 is the inclusive second-level cache behind L1 (spec.md §4.5).
	// Nil skips the level entirely: an L1 miss goes straight to the bus
	// and directory, matching a single-level configuration.
	L2 *cache.Cache

	// Directory is the home-node coherence directory backing this
	// processor's L1 misses (spec.md §4.6). Nil runs a single-node
	// configuration where every miss simply fills Shared/Modified from
	// memory latency alone.
	Directory *directory.Directory

	// RemoteInvalidate, when set, invalidates another node's L1 copy of
	// lineTag — wired by the top-level system to send a one-flit
	// invalidation packet through the mesh, whose delivery calls the
	// target processor's InvalidateL1, since a Processor has no reference
	// to its peers.
	RemoteInvalidate func(procID int, lineTag uint64)

	// MemBus, when set, arbitrates L1 misses onto shared bus lanes before
	// the backing memory bank services them (spec.md §4.6 "Bus"). Nil
	// skips arbitration and uses the cache's own miss latency alone, for
	// single-node configurations with no bus contention to model.
	MemBus *membus.Bus

	pendingAccess []pendingAccess
	fills         map[int]*pendingFill

	// l2Fills tracks outstanding L2 misses, keyed by L2 MSHR index.
	// l2Waiters maps that same index to every L1 fill blocked on it, so
	// one resolved directory action fans out to every coalesced L1 miss
	// for the same line (spec.md §4.5 "L2 ... same MSHR discipline").
	l2Fills   map[int]*pendingFill
	l2Waiters map[int][]*pendingFill

	// instPool and reqPool supply every Instance and REQ descriptor this
	// processor uses (spec.md §3, §2 "drawn from the pool"): fetch draws
	// an Instance per slot, retire/squash return it; the memory path
	// draws a REQ per issued access or prefetch and returns it once
	// handled or dropped.
	instPool *respool.Pool[*insts.Instance]
	reqPool  *respool.Pool[*insts.REQ]

	// nextTag is the monotonically increasing per-processor counter
	// stamped into every fetched Instance (spec.md §3 "its tag is a
	// monotonically increasing per-processor counter").
	nextTag uint64

	pc  uint64
	npc uint64

	renameQueue []*insts.Instance // fetched instructions awaiting rename, oldest first

	issueQueue   []int // ActiveList slot indices waiting to issue, oldest first
	executeQueue []int // ActiveList slot indices issued this cycle, awaiting execute

	fetchRate  int
	retireRate int
	issueRate  int

	halted   bool
	exitCode int

	stats Statistics

	// lastException records the fault that halted this processor, for
	// diagnostics and the final statistics report.
	lastException *rsimerr.Exception
}

// LastException returns the exception that halted this processor, or
// nil if it has not halted on a fault.
func (p *Processor) LastException() *rsimerr.Exception { return p.lastException }

// InvalidateL1 drops this processor's L1 copy of lineTag in response to
// an incoming external coherence message or an L2 replacement, and
// reports the hit to the MemoryQueue so any speculatively-completed load
// against that line is flagged for a soft squash at retire (spec.md §4.4
// "the L1 calls it on every incoming external coherence message and on
// every L2→L1 replacement").
func (p *Processor) InvalidateL1(lineTag uint64, kind rsimerr.Code) {
	p.L1.Invalidate(lineTag)
	p.MemQ.SpecLoadBufCohe(lineTag, kind)
}

// New creates a Processor with the given identity and architectural
// state, wired to a memory queue and L1 cache, applying any options over
// the defaults.
func New(id int, reg *emu.RegFile, mem *emu.Memory, memq *memqueue.Queue, l1 *cache.Cache, opts ...ProcessorOption) *Processor {
	p := &Processor{
		ID:         id,
		Reg:        reg,
		Mem:        mem,
		FE:         emu.NewFunctionalExecutor(reg, mem),
		phys:       NewPhysRegFile(96),
		rename:     NewRenameMap(),
		al:         NewActiveList(64),
		bp:         NewBranchPredictor(1024, 8),
		MemQ:       memq,
		L1:         l1,
		fills:      make(map[int]*pendingFill),
		l2Fills:    make(map[int]*pendingFill),
		l2Waiters:  make(map[int][]*pendingFill),
		instPool:   respool.New("instance", 64, func() *insts.Instance { return &insts.Instance{} }),
		reqPool:    respool.New("req", 64, func() *insts.REQ { return &insts.REQ{ForwardTo: -1} }),
		fetchRate:  4,
		retireRate: 4,
		issueRate:  4,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// LoadProgram installs the predecoded program this processor executes,
// setting its initial PC to the program's entry point.
func (p *Processor) LoadProgram(prog *loader.Program) {
	p.Program = prog
	p.pc = prog.EntryPC
	p.npc = prog.EntryPC + 4
	p.Reg.PC = p.pc
	p.Reg.NPC = p.npc
}

// Halted reports whether this processor has retired a halting condition:
// an exception that retire cannot recover from. No other path halts a
// processor.
func (p *Processor) Halted() bool { return p.halted }

// ExitCode returns the program's exit code once Halted is true.
func (p *Processor) ExitCode() int { return p.exitCode }

// Stats returns a snapshot of this processor's statistics.
func (p *Processor) Stats() Statistics { return p.stats }

// Tick advances the processor by one cycle, running retire, execute,
// issue, rename, and fetch in that order so each stage sees only
// already-committed cross-stage state from this cycle (spec.md §4.3:
// "Stages run in reverse order within a cycle").
func (p *Processor) Tick() {
	if p.halted {
		return
	}
	p.stats.CyclesElapsed++

	p.retireStep()
	if p.halted {
		return
	}
	p.executeStep()
	p.issueStep()
	p.memStep()
	p.renameStep()
	p.fetchStep()
}
