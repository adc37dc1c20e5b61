package directory_test

import (
	"testing"

	"github.com/sarchlab/rsim/timing/directory"
)

func TestFirstReadGoesSharedWithNoInvalidations(t *testing.T) {
	d := directory.New(16)
	act, err := d.Service(directory.Request{Proc: 0, LineTag: 0x1000, IsWrite: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if act.NewState != directory.SharedState {
		t.Fatalf("expected Shared, got %v", act.NewState)
	}
	if len(act.Invalidate) != 0 {
		t.Fatalf("expected no invalidations, got %v", act.Invalidate)
	}
}

func TestWriteToSharedLineInvalidatesOtherSharers(t *testing.T) {
	d := directory.New(16)
	d.Service(directory.Request{Proc: 0, LineTag: 0x2000, IsWrite: false})
	d.Service(directory.Request{Proc: 1, LineTag: 0x2000, IsWrite: false})

	act, err := d.Service(directory.Request{Proc: 2, LineTag: 0x2000, IsWrite: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if act.NewState != directory.ModifiedState {
		t.Fatalf("expected Modified, got %v", act.NewState)
	}
	if len(act.Invalidate) != 2 {
		t.Fatalf("expected 2 invalidations, got %d: %v", len(act.Invalidate), act.Invalidate)
	}
}

func TestReadOfModifiedLineForwardsAndDowngradesToShared(t *testing.T) {
	d := directory.New(16)
	d.Service(directory.Request{Proc: 0, LineTag: 0x3000, IsWrite: true})

	act, err := d.Service(directory.Request{Proc: 1, LineTag: 0x3000, IsWrite: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if act.ForwardFrom != 0 {
		t.Fatalf("expected forward from owner 0, got %d", act.ForwardFrom)
	}
	if act.NewState != directory.SharedState {
		t.Fatalf("expected Shared after downgrade, got %v", act.NewState)
	}
	if d.Stats().Upgrades != 1 {
		t.Fatalf("expected one upgrade recorded, got %d", d.Stats().Upgrades)
	}
}

func TestWriteToModifiedLineOwnedByAnotherForwardsAndInvalidates(t *testing.T) {
	d := directory.New(16)
	d.Service(directory.Request{Proc: 0, LineTag: 0x4000, IsWrite: true})

	act, err := d.Service(directory.Request{Proc: 1, LineTag: 0x4000, IsWrite: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if act.ForwardFrom != 0 {
		t.Fatalf("expected forward from prior owner, got %d", act.ForwardFrom)
	}
	if len(act.Invalidate) != 1 || act.Invalidate[0] != 0 {
		t.Fatalf("expected invalidate of prior owner, got %v", act.Invalidate)
	}
	if d.StateOf(0x4000) != directory.ModifiedState {
		t.Fatalf("expected line to remain Modified under new owner")
	}
}

func TestEvictClearsSoleOwner(t *testing.T) {
	d := directory.New(16)
	d.Service(directory.Request{Proc: 0, LineTag: 0x5000, IsWrite: true})
	if st := d.Evict(0, 0x5000); st != directory.Uncached {
		t.Fatalf("expected Uncached after sole owner evicts, got %v", st)
	}
}
