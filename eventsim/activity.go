// Package eventsim implements the EventDriver component: a priority/
// calendar queue of pending Activities that advances global simulated
// time, grounded on original_source's src/MemSys/evlst.c and
// incl/MemSys/tr.evlst.h, and on how sarchlab-zeonica/test/testbench's
// main.go files drive a tick-based engine with self-rescheduling
// TickEvents. RSIM keeps its own calendar queue (spec.md §3 "Event list"
// names Brown's calendar-queue algorithm as a testable property, P6) and
// uses one self-rescheduling Activity per simulated cycle to drive every
// timing/core.Processor and the timing/network/timing/membus components,
// which are plain Go types ticked directly rather than wrapped Akita
// components (see DESIGN.md).
package eventsim

// State is the activity lifecycle state named in spec.md §3.
type State int

const (
	Limbo State = iota
	Ready
	Delayed
	Waiting
	Running
)

func (s State) String() string {
	switch s {
	case Limbo:
		return "limbo"
	case Ready:
		return "ready"
	case Delayed:
		return "delayed"
	case Waiting:
		return "waiting"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Body is the procedure invoked when an Activity fires. It receives the
// driver so it can reschedule itself or other activities, and returns the
// carry-over "return state" used so a self-suspending activity resumes in
// the right place next time it fires.
type Body func(d *Driver, a *Activity, resumeAt int) (nextResumeAt int)

// Activity is the scheduling primitive (spec.md §3 "Activity").
type Activity struct {
	Tag       uint64
	Name      string
	WakeAt    float64
	State     State
	Body      Body
	ResumeAt  int // carry-over "return state"
	Delete    bool
	seq       uint64 // FIFO tie-break sequence, assigned at insertion
	bucket    int    // calendar-queue bucket index, maintained by Driver
}

// Reset clears an Activity's body bytes except for pool link words, as
// respool.Resettable requires. Activities are pool-recycled like every
// other descriptor in the simulator (spec.md §3 Activity "Lifetime").
func (a *Activity) Reset() {
	a.Name = ""
	a.WakeAt = 0
	a.State = Limbo
	a.Body = nil
	a.ResumeAt = 0
	a.Delete = false
	a.bucket = -1
}
