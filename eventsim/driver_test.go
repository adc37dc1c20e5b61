package eventsim_test

import (
	"testing"

	"github.com/sarchlab/rsim/eventsim"
)

func TestRunPopsInMonotonicTimeOrder(t *testing.T) {
	d := eventsim.New(eventsim.Calendar)

	var order []float64
	mk := func(at float64) *eventsim.Activity {
		return d.NewActivity("probe", func(drv *eventsim.Driver, a *eventsim.Activity, resume int) int {
			order = append(order, drv.Now())
			a.Delete = true
			return resume
		})
	}

	times := []float64{5, 1, 3, 1, 0, 2}
	for _, tm := range times {
		if err := d.Schedule(mk(tm), tm, eventsim.Independent); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}

	if err := d.Run(1000); err != nil {
		t.Fatalf("run: %v", err)
	}

	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			t.Fatalf("pop order not monotonic: %v", order)
		}
	}
	if len(order) != len(times) {
		t.Fatalf("expected %d activations, got %d", len(times), len(order))
	}
}

func TestRunBreaksTiesFIFO(t *testing.T) {
	d := eventsim.New(eventsim.Calendar)
	var fired []int
	for i := 0; i < 5; i++ {
		i := i
		a := d.NewActivity("tie", func(drv *eventsim.Driver, a *eventsim.Activity, resume int) int {
			fired = append(fired, i)
			a.Delete = true
			return resume
		})
		if err := d.Schedule(a, 10, eventsim.Independent); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}
	if err := d.Run(100); err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, v := range fired {
		if v != i {
			t.Fatalf("expected FIFO tie order %v, got %v", []int{0, 1, 2, 3, 4}, fired)
		}
	}
}

func TestNegativeDeltaIsFatal(t *testing.T) {
	d := eventsim.New(eventsim.Calendar)
	a := d.NewActivity("bad", func(drv *eventsim.Driver, a *eventsim.Activity, resume int) int { return resume })
	if err := d.Schedule(a, -1, eventsim.Independent); err == nil {
		t.Fatal("expected fatal error scheduling negative delta")
	}
}

func TestSelfReschedulingActivityTicksPeriodically(t *testing.T) {
	d := eventsim.New(eventsim.Calendar)
	count := 0
	var body eventsim.Body
	body = func(drv *eventsim.Driver, a *eventsim.Activity, resume int) int {
		count++
		if count >= 5 {
			a.Delete = true
			return resume
		}
		_ = drv.Schedule(a, 1, eventsim.Independent)
		return resume
	}
	a := d.NewActivity("periodic", body)
	if err := d.Schedule(a, 0, eventsim.Independent); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := d.Run(1000); err != nil {
		t.Fatalf("run: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 activations, got %d", count)
	}
	if d.Now() != 4 {
		t.Fatalf("expected driver time 4, got %g", d.Now())
	}
}

func TestResizeAcrossManyActivities(t *testing.T) {
	d := eventsim.New(eventsim.Calendar)
	const n = 500
	var order []float64
	for i := 0; i < n; i++ {
		wakeAt := float64((i * 7) % n)
		a := d.NewActivity("mass", func(drv *eventsim.Driver, a *eventsim.Activity, resume int) int {
			order = append(order, drv.Now())
			a.Delete = true
			return resume
		})
		if err := d.Schedule(a, wakeAt, eventsim.Independent); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}
	if err := d.Run(float64(n) * 2); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(order) != n {
		t.Fatalf("expected %d activations, got %d", n, len(order))
	}
	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			t.Fatalf("pop order not monotonic after resize at index %d: %v -> %v", i, order[i-1], order[i])
		}
	}
}
