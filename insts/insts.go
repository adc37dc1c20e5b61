// Package insts defines the predecoded SPARC-V9 instruction record format
// (spec.md §6 "Input binary"), the dynamic Instance wrapper created at
// fetch, and the REQ memory-request descriptor exchanged between the
// processor pipeline and the memory subsystem (spec.md §3).
//
// The predecoder that produces StaticInstr records from a SPARC-V9 binary
// is out of scope (spec.md §1); this package only defines the record
// layout the core reads and the opcode classification it needs.
package insts

import "github.com/sarchlab/rsim/rsimerr"

// Op is the opcode tag carried by a predecoded instruction record. The
// core does not need full per-opcode functional semantics (that table is
// out of scope, spec.md §1); it needs each opcode's class
// (load/store/rmw/branch/serializing/privileged) plus the small set of
// opcodes spec.md calls out by name for retire-time special handling.
type Op uint16

const (
	OpNOP Op = iota
	OpADD
	OpADDcc
	OpSUB
	OpSUBcc
	OpAND
	OpANDcc
	OpOR
	OpORcc
	OpXOR
	OpXORcc
	OpSLL
	OpSRL
	OpSRA
	OpSDIVcc
	OpUDIVcc
	OpUMULcc
	OpSMULcc
	OpMULScc
	OpLD
	OpLDD
	OpLDSB
	OpLDSH
	OpLDUB
	OpLDUH
	OpST
	OpSTD
	OpSTB
	OpSTH
	OpLDSTUB // RMW: load-store-unsigned-byte
	OpSWAP   // RMW
	OpCAS    // RMW: compare-and-swap
	OpBA     // unconditional branch
	OpBN     // always-not-taken branch (bypasses predictor)
	OpBcc    // conditional integer branch
	OpFBcc   // conditional float branch
	OpCALL
	OpJMPL // return / indirect call, also used for RET via rs1=%o7
	OpSAVE
	OpRESTORE
	OpFLUSHW
	OpRDY // read Y register (ordinary class: only the state-register write WRY is serializing)
	OpWRY
	OpMEMBAR // memory-barrier
	OpTcc    // software trap / syscall gateway
	OpFPop1  // FP arithmetic, host-executed
	OpFPop2
	OpRETRY // privileged
	OpDONE  // privileged
	OpPREFETCH // software prefetch; Aux1 carries the SPARC-V9 fcn field
	OpIllegalOp
)

// Class classifies an opcode the way the core's control logic needs:
// ordinary, or one of the special handling categories named in spec.md.
type Class uint8

const (
	ClassOrdinary Class = iota
	ClassLoad
	ClassStore
	ClassRMW
	ClassBranch
	ClassSerializing
	ClassPrivileged
)

// classTable is the opcode -> class mapping. Every opcode not listed is
// ClassOrdinary.
var classTable = map[Op]Class{
	OpLD: ClassLoad, OpLDD: ClassLoad, OpLDSB: ClassLoad, OpLDSH: ClassLoad,
	OpLDUB: ClassLoad, OpLDUH: ClassLoad,

	OpST: ClassStore, OpSTD: ClassStore, OpSTB: ClassStore, OpSTH: ClassStore,

	OpLDSTUB: ClassRMW, OpSWAP: ClassRMW, OpCAS: ClassRMW,

	OpBA: ClassBranch, OpBN: ClassBranch, OpBcc: ClassBranch, OpFBcc: ClassBranch,
	OpCALL: ClassBranch, OpJMPL: ClassBranch,

	OpSAVE: ClassSerializing, OpRESTORE: ClassSerializing, OpFLUSHW: ClassSerializing,
	OpWRY: ClassSerializing, OpMEMBAR: ClassSerializing,
	OpUMULcc: ClassSerializing, OpSMULcc: ClassSerializing, OpMULScc: ClassSerializing,

	OpRETRY: ClassPrivileged, OpDONE: ClassPrivileged,
}

// ClassOf returns op's class, defaulting to ClassOrdinary.
func ClassOf(op Op) Class {
	if c, ok := classTable[op]; ok {
		return c
	}
	return ClassOrdinary
}

// IsAnnulAlways reports whether op is the always-not-taken branch form
// that bypasses the branch predictor (spec.md §3 BranchPredictor).
func IsAnnulAlways(op Op) bool { return op == OpBN }

// RegType flags which operand slots a static instruction actually uses;
// carried in the predecoded record per spec.md §6.
type RegType uint8

const (
	RegNone RegType = 0
	RegRd   RegType = 1 << iota
	RegRs1
	RegRs2
	RegRscc
	RegPair // LDD/STD: rd and rd+1
)

// WindowDelta is the register-window pointer delta a predecoded
// instruction carries (spec.md §6): SAVE is -1 (grows the window stack by
// convention "allocate"), RESTORE is +1, everything else is 0. The sign
// convention matches spec.md's literal "{-1, 0, +1}" set.
type WindowDelta int8

// StaticInstr is one fixed-size predecoded instruction record, as decoded
// by the loader from the input binary and treated as read-only (spec.md §6).
type StaticInstr struct {
	PC      uint64
	Op      Op
	Rd      uint8
	Rcc     uint8
	Rs1     uint8
	Rs2     uint8
	Rscc    uint8
	Aux1    uint32
	Aux2    uint32
	Imm     int64
	RegFlags RegType
	TakenHint  bool
	Annul      bool
	CondBranch bool
	UncondBranch bool
	WinDelta   WindowDelta
}

// IsLoad, IsStore, IsRMW, IsBranch, IsSerializing, IsPrivileged are the
// convenience predicates the pipeline, memory queue, and retire logic use
// instead of switching on Class directly.
func (s *StaticInstr) IsLoad() bool         { return ClassOf(s.Op) == ClassLoad }
func (s *StaticInstr) IsStore() bool        { return ClassOf(s.Op) == ClassStore }
func (s *StaticInstr) IsRMW() bool          { return ClassOf(s.Op) == ClassRMW }
func (s *StaticInstr) IsBranch() bool       { return ClassOf(s.Op) == ClassBranch }
func (s *StaticInstr) IsSerializing() bool  { return ClassOf(s.Op) == ClassSerializing }
func (s *StaticInstr) IsPrivileged() bool   { return ClassOf(s.Op) == ClassPrivileged }
func (s *StaticInstr) IsMemOp() bool        { return s.IsLoad() || s.IsStore() || s.IsRMW() }

// IsPrefetchOp reports whether this is the software PREFETCH instruction.
// It behaves like a load for address computation but never touches a
// destination register and never occupies the MemoryQueue (spec.md §4.5
// "Prefetch"): the core dispatches it straight to issuePrefetch instead of
// IsMemOp's queueCacheAccess path.
func (s *StaticInstr) IsPrefetchOp() bool { return s.Op == OpPREFETCH }

// MemProgress marks how far a memory instruction has gotten through the
// memory system (spec.md §3 Instance "memprogress").
type MemProgress uint8

const (
	MemNotIssued MemProgress = iota
	MemIssuedToL1
	MemForwardedFromWriteBuffer
	MemCompleted
)

// Handled names the level of the hierarchy that satisfied a REQ (spec.md
// §3 REQ "handled").
type Handled uint8

const (
	HandledNone Handled = iota
	HandledL1Hit
	HandledL2Hit
	HandledMemHit
	HandledRemoteHit
	HandledWriteBufferForward
)

// ReqType enumerates prcr_req_type (spec.md §3 REQ).
type ReqType uint8

const (
	ReqRead ReqType = iota
	ReqWrite
	ReqRMW
	ReqL1ReadPrefetch
	ReqL1WritePrefetch
	ReqL2ReadPrefetch
	ReqL2WritePrefetch
)

func (t ReqType) IsPrefetch() bool {
	switch t {
	case ReqL1ReadPrefetch, ReqL1WritePrefetch, ReqL2ReadPrefetch, ReqL2WritePrefetch:
		return true
	default:
		return false
	}
}

// REQ is the memory-request descriptor (spec.md §3 "REQ"). REQ
// descriptors are pool-recycled; InUse guards against the double-free bug
// spec.md calls out explicitly (P2).
type REQ struct {
	Type ReqType

	PhysAddr uint64
	LineTag  uint64

	Proc int // issuing-processor id

	Inst    *Instance
	InstTag uint64 // snapshot of Inst's tag at issue, to detect reuse after squash

	IssueTime       float64
	MemStartTime    float64
	ActiveStartTime float64

	Handled Handled

	ForwardTo int // routing override for three-hop transactions; -1 if none

	InUse bool
}

// Reset implements respool.Resettable. It asserts the pool's invariant
// that a REQ returned to the pool must already have InUse == false (spec.md
// §3 REQ invariant); putting an in-use REQ is the pool-double-free bug
// class from spec.md §7.
func (r *REQ) Reset() {
	if r.InUse {
		panic("REQ: put into pool while still in-use")
	}
	*r = REQ{ForwardTo: -1}
}

// MarkInUse claims the REQ for a new request, asserting it was not already
// claimed (spec.md §3 REQ invariant, checked the other direction from
// Reset).
func (r *REQ) MarkInUse() {
	if r.InUse {
		panic("REQ: get of already in-use descriptor")
	}
	r.InUse = true
}

// MarkFree releases the REQ's in-use flag without returning it to a pool
// (used when a REQ is reused in place rather than pool-recycled).
func (r *REQ) MarkFree() { r.InUse = false }

// Instance is a dynamic instruction, created at fetch and committed or
// squashed at retire (spec.md §3 "Instance"). Its Tag is a monotonically
// increasing per-processor counter; any external reference to an Instance
// carries Tag so staleness after reuse is detectable.
type Instance struct {
	Tag    uint64
	Static *StaticInstr

	// Renamed physical register numbers.
	PhysRd   int
	PhysRs1  int
	PhysRs2  int
	PhysRscc int
	PhysRdHi int // for RegPair destinations (LDD/STD)

	// Prior physical mapping of the logical destination, recorded for
	// squash rollback (ActiveList entry "old physical mapping").
	OldPhysRd int

	// Source and destination values.
	SrcVal1, SrcVal2 uint64
	IntResult        uint64
	IntPairResult    uint64
	FloatResult      uint32
	DoubleResult     uint64

	EffectiveAddr uint64

	PredictedTaken bool
	ActualTaken    bool
	ResolvedTarget uint64

	ExceptionCode rsimerr.Code
	FaultAddr     uint64

	MemProgress MemProgress
	LatePrefetch bool

	// Squash/staleness bookkeeping: the REQ that the memory system is
	// processing for this instance carries InstTag == Tag at issue time;
	// if the instance has since been reused (tag incremented and the slot
	// recycled), a returning REQ's stale tag fails the check and the
	// result is dropped (spec.md §5 "Cancellation").
	SquashPending bool
}

// Reset implements respool.Resettable for Instance pool recycling.
func (in *Instance) Reset() {
	tag := in.Tag
	*in = Instance{Tag: tag}
}

// StaleAgainst reports whether a REQ's snapshot instance tag no longer
// matches this instance's current tag — i.e. the instance slot was reused
// by a squash before the REQ returned.
func (in *Instance) StaleAgainst(reqInstTag uint64) bool {
	return in.Tag != reqInstTag
}
