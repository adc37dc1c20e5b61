package eventsim

import (
	"fmt"

	"github.com/sarchlab/rsim/respool"
	"github.com/sarchlab/rsim/rsimerr"
)

// eventList is the common interface both queue implementations satisfy;
// ListType selects between them via configuration (spec.md §6
// event_list_type).
type eventList interface {
	Insert(a *Activity)
	Delete(a *Activity) bool
	PeekMin() *Activity
	PopMin() *Activity
	Size() int
}

// ListType selects the event-list backing implementation.
type ListType int

const (
	Calendar ListType = iota
	Linear
)

// Mode is the scheduling mode passed to Schedule. The core only ever uses
// Independent (spec.md §4.1); Blocking/Forking are named for interface
// completeness with the original activity model and are rejected with a
// fatal error if requested, since nothing in the core constructs them.
type Mode int

const (
	Independent Mode = iota
	Blocking
	Forking
)

// Driver is the EventDriver component (spec.md §4.1): it owns the event
// list, the simulated clock, and the activity pool.
type Driver struct {
	list        eventList
	currentTime float64
	activeEvent *Activity
	interrupted bool
	pool        *respool.Pool[*Activity]
	nextTag     uint64
}

// New creates an EventDriver backed by the requested list implementation.
func New(listType ListType) *Driver {
	d := &Driver{}
	switch listType {
	case Linear:
		d.list = newLinearQueue()
	default:
		d.list = newCalendarQueue()
	}
	d.pool = respool.New[*Activity]("activity", 64, func() *Activity { return &Activity{} })
	return d
}

// Now returns the current simulated time.
func (d *Driver) Now() float64 { return d.currentTime }

// ActiveEvent returns the activity currently being invoked, for tracing.
func (d *Driver) ActiveEvent() *Activity { return d.activeEvent }

// NewActivity allocates a pool-backed Activity with the given name and
// body, ready to be scheduled.
func (d *Driver) NewActivity(name string, body Body) *Activity {
	a := d.pool.Get()
	d.nextTag++
	a.Tag = d.nextTag
	a.Name = name
	a.Body = body
	a.State = Limbo
	return a
}

// Schedule inserts activity a to fire delta simulated-time units from now,
// using the given scheduling mode. delta must be >= 0: scheduling into the
// past is a fatal simulator error (spec.md §4.1 "Failure"). Only
// Independent scheduling is implemented; any other mode is also fatal,
// since no component in the core ever constructs one.
func (d *Driver) Schedule(a *Activity, delta float64, mode Mode) error {
	if delta < 0 {
		return rsimerr.NewFatal("EventDriver", d.currentTime,
			fmt.Sprintf("negative delta %g scheduling activity %q", delta, a.Name), nil)
	}
	if mode != Independent {
		return rsimerr.NewFatal("EventDriver", d.currentTime,
			fmt.Sprintf("unsupported scheduling mode %d for activity %q", mode, a.Name), nil)
	}
	if a.Delete {
		return rsimerr.NewFatal("EventDriver", d.currentTime,
			fmt.Sprintf("rescheduling already-deleting activity %q", a.Name), nil)
	}
	a.WakeAt = d.currentTime + delta
	a.State = Ready
	d.list.Insert(a)
	return nil
}

// Interrupt stops Run at the end of the current activity invocation.
func (d *Driver) Interrupt() { d.interrupted = true }

// Reset drains the event list and returns every outstanding activity to
// the pool, as if the driver had just been created.
func (d *Driver) Reset() {
	for d.list.Size() > 0 {
		a := d.list.PopMin()
		d.pool.Put(a)
	}
	d.currentTime = 0
	d.activeEvent = nil
	d.interrupted = false
}

// Run drains the event list, invoking the body of the lowest-timestamp
// activity and advancing current_time to its timestamp, until the list is
// empty, current_time reaches until, or Interrupt was called. Ties among
// equal timestamps are broken FIFO by the underlying list.
func (d *Driver) Run(until float64) error {
	d.interrupted = false
	for {
		if d.interrupted {
			return nil
		}
		next := d.list.PeekMin()
		if next == nil {
			return nil
		}
		if next.WakeAt > until {
			return nil
		}
		a := d.list.PopMin()
		d.currentTime = a.WakeAt
		d.activeEvent = a
		a.State = Running

		if a.Body == nil {
			return rsimerr.NewFatal("EventDriver", d.currentTime,
				fmt.Sprintf("activity %q fired with nil body", a.Name), nil)
		}
		a.ResumeAt = a.Body(d, a, a.ResumeAt)

		if a.Delete {
			d.pool.Put(a)
		} else if a.State == Running {
			// The body neither rescheduled itself nor requested deletion:
			// treat it as done for this activation and leave it in limbo
			// until something schedules it again.
			a.State = Limbo
		}
		d.activeEvent = nil
	}
}

// Size returns the number of pending activities.
func (d *Driver) Size() int { return d.list.Size() }
