// Package system wires the per-node components (spec.md §4.2-§4.6) into
// the multi-node machine spec.md §1 describes: NumProcs out-of-order
// cores sharing one coherent memory image, a home-node directory, a
// node-local bus, and a wormhole-routed mesh carrying coherence
// invalidations between nodes.
//
// There is no teacher analogue for multi-node orchestration (the teacher
// simulates exactly one core); this package is grounded on
// cmd/m2sim/main.go's wiring style — construct the architectural state,
// construct the timing components around it, hand everything to the
// driver — generalized from "one core" to "N cores plus the fabric
// between them".
package system

import (
	"fmt"

	"github.com/sarchlab/rsim/config"
	"github.com/sarchlab/rsim/emu"
	"github.com/sarchlab/rsim/eventsim"
	"github.com/sarchlab/rsim/loader"
	"github.com/sarchlab/rsim/rsimerr"
	"github.com/sarchlab/rsim/timing/cache"
	"github.com/sarchlab/rsim/timing/core"
	"github.com/sarchlab/rsim/timing/directory"
	"github.com/sarchlab/rsim/timing/membus"
	"github.com/sarchlab/rsim/timing/memqueue"
	"github.com/sarchlab/rsim/timing/network"
)

// System is the whole simulated machine: every processor node, the
// shared memory image and coherence directory, the node-local bus, and
// the mesh interconnect carrying remote invalidations.
type System struct {
	cfg *config.Config

	Procs []*core.Processor
	Mem   *emu.Memory
	Dir   *directory.Directory
	Bus   *membus.Bus
	Mesh  *network.Mesh

	driver *eventsim.Driver

	// pendingInvalidate tracks a mesh-carried invalidation's target line
	// until its packet is delivered, keyed by the packet's id.
	pendingInvalidate map[string]invalidatePayload
}

type invalidatePayload struct {
	targetProc int
	lineTag    uint64
}

// l2HitLatency is L2's fixed hit latency in cycles: larger and slower
// than L1's single-cycle hit, but still far cheaper than a directory
// round trip (spec.md §4.5 "larger capacity and higher latency").
const l2HitLatency = 10

// New builds a System of cfg.NumProcs identical SPARC-V9 nodes, all
// running prog against the shared image mem, coherent through a single
// directory and connected by a single-row mesh (width NumProcs, height 1;
// spec.md §4.6 "rectangular mesh").
func New(cfg *config.Config, prog *loader.Program, mem *emu.Memory) (*System, error) {
	if cfg.NumProcs < 1 {
		return nil, fmt.Errorf("system: num_procs must be >= 1, got %d", cfg.NumProcs)
	}

	listType := eventsim.Calendar
	if cfg.EventListType == config.Linear {
		listType = eventsim.Linear
	}

	s := &System{
		cfg:               cfg,
		Mem:               mem,
		Dir:               directory.New(cfg.DirectoryEntries),
		Bus:               membus.New(membus.Config{Width: cfg.BusWidth, BusLatency: cfg.BusLatency, MemLatency: cfg.MemLatency, StatsLevel: cfg.StatsLevel}),
		driver:            eventsim.New(listType),
		pendingInvalidate: make(map[string]invalidatePayload),
	}

	width := cfg.NumProcs
	height := 1
	s.Mesh = network.New(network.Config{
		Width: width, Height: height,
		BufferSize:      cfg.BufferSize,
		BufferThreshold: cfg.BufferThreshold,
		PortSize:        cfg.PortSize,
		WFT:             cfg.WFT,
		StatsLevel:      cfg.StatsLevel,
	})

	queueCap := cfg.WriteBufferSize
	if queueCap < 1 {
		queueCap = 8
	}

	for id := 0; id < cfg.NumProcs; id++ {
		reg := emu.NewRegFile(emu.DefaultNumWindows)
		l1 := cache.New(cache.Config{
			Size: cfg.L1Size, Associativity: cfg.L1Assoc, BlockSize: cfg.LineSize(),
			HitLatency: 1, MissLatency: cfg.MemLatency, NumMSHRs: cfg.MSHRsL1,
			StatsLevel: cfg.StatsLevel,
		})
		memq := memqueue.New(cfg.ConsistencyModel, queueCap, cfg.SpeculativeLoads)

		p := core.New(id, reg, mem, memq, l1,
			core.WithFetchRate(cfg.FetchRate),
			core.WithRetireRate(cfg.RetireRate),
			core.WithIssueRate(cfg.IssueRate),
			core.WithNumPhysRegs(cfg.NumPhysInt),
			core.WithActiveListSize(cfg.ActiveListSize),
			core.WithBranchPredictor(cfg.BranchPredSize, cfg.RASSize),
		)
		if cfg.L2Size > 0 {
			l2 := cache.New(cache.Config{
				Size: cfg.L2Size, Associativity: cfg.L2Assoc, BlockSize: cfg.LineSize(),
				HitLatency: l2HitLatency, MissLatency: cfg.MemLatency, NumMSHRs: cfg.MSHRsL2,
				StatsLevel: cfg.StatsLevel,
			})
			l2.BackInvalidate = func(addr uint64) { p.InvalidateL1(addr, rsimerr.SoftSpecLoadRepl) }
			p.L2 = l2
		}
		p.Directory = s.Dir
		p.MemBus = s.Bus
		p.LoadProgram(prog)
		s.Procs = append(s.Procs, p)
	}

	for _, p := range s.Procs {
		src := p.ID
		p.RemoteInvalidate = func(procID int, lineTag uint64) { s.sendInvalidate(src, procID, lineTag) }
	}

	return s, nil
}

// sendInvalidate admits a one-flit invalidation packet to the mesh
// instead of applying it instantaneously, so a remote coherence action
// pays the modeled network transit delay (spec.md §4.6) before the
// target's L1 actually drops the line.
func (s *System) sendInvalidate(srcProc, targetProc int, lineTag uint64) {
	pkt := &network.Packet{Src: srcProc, Dst: targetProc, NumFlits: 1, Net: network.ReplyNet}
	s.Mesh.Send(pkt)
	s.pendingInvalidate[pkt.ID] = invalidatePayload{targetProc: targetProc, lineTag: lineTag}
}

// Run drives every processor and the mesh one cycle at a time until
// every processor has halted or maxCycles is reached, whichever comes
// first, by scheduling a single self-rescheduling Activity that ticks
// every processor and the mesh once per cycle (spec.md §4.1 "Each processor node is a periodic activity that
// executes one simulated clock cycle per invocation and re-schedules
// itself").
func (s *System) Run(maxCycles uint64) error {
	var cycle uint64

	tick := s.driver.NewActivity("system-tick", func(d *eventsim.Driver, a *eventsim.Activity, _ int) int {
		cycle++
		allHalted := true
		for _, p := range s.Procs {
			p.Tick()
			if !p.Halted() {
				allHalted = false
			}
		}
		for _, pkt := range s.Mesh.Tick() {
			if payload, ok := s.pendingInvalidate[pkt.ID]; ok {
				if payload.targetProc < len(s.Procs) {
					s.Procs[payload.targetProc].InvalidateL1(payload.lineTag, rsimerr.SoftSpecLoadCohe)
				}
				delete(s.pendingInvalidate, pkt.ID)
			}
		}

		if allHalted || cycle >= maxCycles {
			d.Interrupt()
			return 0
		}
		if err := d.Schedule(a, 1, eventsim.Independent); err != nil {
			return 0
		}
		return 0
	})

	if err := s.driver.Schedule(tick, 0, eventsim.Independent); err != nil {
		return err
	}
	return s.driver.Run(float64(maxCycles) + 1)
}

// Cycles returns the number of simulated cycles the driver has advanced
// through.
func (s *System) Cycles() float64 { return s.driver.Now() }
