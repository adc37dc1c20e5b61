// Package network implements the Network component (spec.md §4.6): a
// rectangular wormhole-routed mesh whose packets are labelled with one of
// two logical networks (request and reply; both share one set of
// buffers), with dimension-ordered routing, per-hop buffer back-pressure, and a selectable
// wait-for-tail (WFT) mode that degrades worm-hole into store-and-
// forward.
//
// There is no teacher file for a mesh interconnect — timing/pipeline.go
// is the closest analogue in spirit: a plain Go component advanced one
// Tick at a time, holding its own hazard-style occupancy state rather
// than routing through Akita's messaging layer (see DESIGN.md for why
// this package does not import akita/v4/sim).
package network

import (
	"github.com/rs/xid"

	"github.com/sarchlab/rsim/stats"
)

// Logical labels which of the two logical networks (request or reply) a
// packet belongs to. The mesh does not give the two separate buffers.
type Logical uint8

const (
	RequestNet Logical = iota
	ReplyNet
)

// Direction is the port a flit enters a node's buffer from.
type Direction uint8

const (
	DirNorth Direction = iota
	DirSouth
	DirEast
	DirWest
	DirLocal
	numDirections
)

// HeadState names the head flit's position in the packet lifecycle
// state machine (spec.md §4.6 "Packet lifecycle state machine (head)").
type HeadState uint8

const (
	HeadStart HeadState = iota
	HeadNextModule
	HeadWaitMux
	HeadMove
	HeadArrived
)

// TailState names the tail flit's position in the packet lifecycle
// state machine (spec.md §4.6 "Packet lifecycle (tail)").
type TailState uint8

const (
	TailIdle TailState = iota
	TailMove
	TailDone
)

// Packet is one wormhole-routed message (spec.md §3 "Packet").
type Packet struct {
	ID       string
	Src, Dst int
	NumFlits int
	Net      Logical
	Payload  interface{}
}

// Config holds the mesh's geometry and per-hop timing parameters, all
// expressed as multiples of the network cycle time (spec.md §4.6
// "Timing parameters").
type Config struct {
	Width, Height   int
	BufferSize      int
	BufferThreshold int
	PortSize        int
	WFT             bool

	// StatsLevel gates SizeHist/HopHist recording (spec.md §6
	// "stats_level"): below 2, packets still route and deliver correctly
	// but the per-packet histograms are skipped.
	StatsLevel int
}

type buffer struct {
	free        int
	waitingHead *inFlight
}

// inFlight tracks one packet's progress along its precomputed path.
type inFlight struct {
	pkt     *Packet
	path    []int
	dirs    []Direction // dirs[i] is the direction flits enter path[i+1] from
	headHop int
	tailHop int

	headState HeadState
	tailState TailState

	headFlitsInHop int // flits the head has pushed into the buffer at path[headHop]
	tailFlitsLeft  int // flits still to drain from the buffer at path[tailHop]

	muxHeld []bool // indexed like path; true once acquired, released when tail passes
	done    bool
}

// Mesh is a rectangular wormhole-routed interconnect. Request and reply
// packets travel through the same per-node buffers: Packet.Net is carried
// with each packet but does not select a separate buffer set.
type Mesh struct {
	cfg Config

	buffers [][numDirections]*buffer // indexed by node id

	inflight []*inFlight // FIFO: ties at equal timestamp fire in enqueue order (spec.md §5)

	HopsTraveled uint64
	Delivered    uint64

	// SizeHist and HopHist record, per delivered packet, its flit count and
	// hop count (spec.md §6 Outputs "per network: per-packet size and
	// hop-count histograms").
	SizeHist *stats.StatRec
	HopHist  *stats.StatRec
}

// New creates an empty mesh of the given geometry, one buffer per node
// per direction.
func New(cfg Config) *Mesh {
	n := cfg.Width * cfg.Height
	m := &Mesh{
		cfg:      cfg,
		buffers:  make([][numDirections]*buffer, n),
		SizeHist: stats.New("packet-size", stats.Sampled, 16, 1),
		HopHist:  stats.New("packet-hops", stats.Sampled, 16, 1),
	}
	for i := range m.buffers {
		for d := Direction(0); d < numDirections; d++ {
			size := cfg.BufferSize
			if d == DirLocal && cfg.PortSize > 0 {
				size = cfg.PortSize
			}
			m.buffers[i][d] = &buffer{free: size}
		}
	}
	return m
}

func (m *Mesh) coords(node int) (x, y int) {
	return node % m.cfg.Width, node / m.cfg.Width
}

func (m *Mesh) nodeAt(x, y int) int { return y*m.cfg.Width + x }

// route computes the dimension-ordered (X then Y) path from src to dst
// and the entry direction a flit uses at each hop (spec.md §4.6
// "Routing. Dimension-ordered (highest dimension first), deterministic").
func (m *Mesh) route(src, dst int) ([]int, []Direction) {
	x, y := m.coords(src)
	dx, dy := m.coords(dst)

	path := []int{src}
	var dirs []Direction

	for x != dx {
		step := 1
		dir := DirWest
		if dx < x {
			step = -1
			dir = DirEast
		}
		x += step
		path = append(path, m.nodeAt(x, y))
		dirs = append(dirs, dir)
	}
	for y != dy {
		step := 1
		dir := DirNorth
		if dy < y {
			step = -1
			dir = DirSouth
		}
		y += step
		path = append(path, m.nodeAt(x, y))
		dirs = append(dirs, dir)
	}

	if len(path) == 1 {
		// Same-node packet: still one hop, delivered straight through the
		// destination's local port.
		path = append(path, src)
	}
	if len(dirs) > 0 {
		// The last hop always enters the destination's local port, not
		// whichever dimension direction the arithmetic above produced for
		// it (spec.md §4.6: "an input port and output port to the local
		// processor" is distinct from the per-dimension mux/demux ports).
		dirs[len(dirs)-1] = DirLocal
	} else {
		dirs = []Direction{DirLocal}
	}
	return path, dirs
}

// Send admits pkt to the mesh, computing its route up front (spec.md
// §4.6 "Head_Start").
func (m *Mesh) Send(pkt *Packet) {
	if pkt.ID == "" {
		pkt.ID = xid.New().String()
	}
	path, dirs := m.route(pkt.Src, pkt.Dst)
	fl := &inFlight{
		pkt:     pkt,
		path:    path,
		dirs:    dirs,
		muxHeld: make([]bool, len(path)),
	}
	m.inflight = append(m.inflight, fl)
}

func (m *Mesh) bufAt(hop int, fl *inFlight) *buffer {
	return m.buffers[fl.path[hop]][fl.dirs[hop-1]]
}

// Tick advances every in-flight packet by one network cycle, oldest-
// enqueued first, and returns every packet whose tail has reached its
// destination this cycle.
func (m *Mesh) Tick() []*Packet {
	var arrived []*Packet
	remaining := m.inflight[:0]

	for _, fl := range m.inflight {
		m.advanceHead(fl)
		m.advanceTail(fl)

		if fl.done {
			arrived = append(arrived, fl.pkt)
			m.Delivered++
			if m.cfg.StatsLevel >= 2 {
				m.SizeHist.RecordSample(float64(fl.pkt.NumFlits))
				m.HopHist.RecordSample(float64(len(fl.path) - 1))
			}
			continue
		}
		remaining = append(remaining, fl)
	}
	m.inflight = remaining
	return arrived
}

// advanceHead moves fl's head one flit per cycle, gated by buffer
// back-pressure and worm-hole's one-mux-per-hop-until-tail-passes rule
// (spec.md §4.6 "Flit control").
func (m *Mesh) advanceHead(fl *inFlight) {
	if fl.headState == HeadArrived {
		return
	}
	if fl.headState == HeadStart {
		fl.headState = HeadNextModule
	}

	if fl.headState == HeadNextModule || fl.headState == HeadWaitMux {
		nextHop := fl.headHop + 1
		buf := m.bufAt(nextHop, fl)
		if buf.free < m.threshold(nextHop, fl) {
			buf.waitingHead = fl
			fl.headState = HeadWaitMux
			return // back-pressure: suspended until a tail departure wakes it
		}
		if buf.waitingHead == fl {
			buf.waitingHead = nil
		}
		if !fl.muxHeld[nextHop] {
			fl.muxHeld[nextHop] = true
		}
		fl.headState = HeadMove
	}

	if fl.headState == HeadMove {
		if fl.waitingForTail(m) {
			return
		}
		nextHop := fl.headHop + 1
		buf := m.bufAt(nextHop, fl)
		buf.free--
		fl.headFlitsInHop++
		m.HopsTraveled++
		if fl.headFlitsInHop >= fl.pkt.NumFlits {
			fl.headHop = nextHop
			fl.headFlitsInHop = 0
			if fl.headHop == len(fl.path)-1 {
				fl.headState = HeadArrived
			} else {
				fl.headState = HeadNextModule
			}
		}
	}
}

// waitingForTail reports whether WFT mode should hold the head at its
// current hop until the tail has caught up to the previous one (spec.md
// §4.6 "A WFT ... mode forces the head to stall until the tail has
// caught up ... this converts worm-hole into store-and-forward").
func (fl *inFlight) waitingForTail(m *Mesh) bool {
	if !m.cfg.WFT {
		return false
	}
	return fl.tailHop < fl.headHop
}

// threshold returns the free-flit count a buffer must have before the
// head may enter it: the destination hop needs only one free flit slot,
// interior hops use the configured worm-hole threshold (spec.md §4.6 "the
// head advances as soon as bufthresh flits fit in the next buffer"),
// clamped to BufferSize so a threshold above capacity means waiting for
// the buffer to empty.
func (m *Mesh) threshold(hop int, fl *inFlight) int {
	if hop == len(fl.path)-1 {
		return 1
	}
	if t := m.cfg.BufferThreshold; t > 0 {
		if m.cfg.BufferSize > 0 && t > m.cfg.BufferSize {
			return m.cfg.BufferSize
		}
		return t
	}
	return 1
}

// advanceTail drains fl's tail from the hop behind the head, releasing
// buffer occupancy and the hop's mux as it departs, and waking any
// buffer's waiting head once enough space frees up (spec.md §4.6
// "Back-pressure").
func (m *Mesh) advanceTail(fl *inFlight) {
	if fl.tailHop >= fl.headHop && fl.headState != HeadArrived {
		return // tail never overtakes the head
	}
	if fl.tailHop == len(fl.path)-1 {
		fl.done = true
		return
	}

	nextHop := fl.tailHop + 1
	buf := m.bufAt(nextHop, fl)
	if fl.tailFlitsLeft == 0 {
		fl.tailFlitsLeft = fl.pkt.NumFlits
	}
	fl.tailState = TailMove

	buf.free++
	fl.tailFlitsLeft--
	if fl.tailFlitsLeft > 0 {
		return
	}

	fl.muxHeld[nextHop] = false
	if buf.waitingHead != nil && buf.free >= m.threshold(nextHop, buf.waitingHead) {
		buf.waitingHead.headState = HeadNextModule
		buf.waitingHead = nil
	}
	fl.tailHop = nextHop
	if fl.tailHop == len(fl.path)-1 && fl.headState == HeadArrived {
		fl.tailState = TailDone
		fl.done = true
	}
}

// InFlightCount reports how many packets are still traversing the mesh,
// for diagnostics and tests.
func (m *Mesh) InFlightCount() int { return len(m.inflight) }
