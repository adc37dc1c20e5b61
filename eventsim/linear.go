package eventsim

import "sort"

// linearQueue is a plain sorted-slice event list, selectable via the
// event_list_type=linear configuration knob (spec.md §6) as a simpler
// alternative to the calendar queue, grounded on original_source's
// src/MemSys/evlst.c supporting a non-calendar fallback list.
type linearQueue struct {
	items   []*Activity
	nextSeq uint64
}

func newLinearQueue() *linearQueue {
	return &linearQueue{}
}

func (q *linearQueue) Insert(a *Activity) {
	a.seq = q.nextSeq
	q.nextSeq++
	pos := sort.Search(len(q.items), func(i int) bool {
		if q.items[i].WakeAt != a.WakeAt {
			return q.items[i].WakeAt > a.WakeAt
		}
		return q.items[i].seq > a.seq
	})
	q.items = append(q.items, nil)
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = a
}

func (q *linearQueue) Delete(a *Activity) bool {
	for i, cand := range q.items {
		if cand == a {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

func (q *linearQueue) PeekMin() *Activity {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *linearQueue) PopMin() *Activity {
	if len(q.items) == 0 {
		return nil
	}
	a := q.items[0]
	q.items = q.items[1:]
	return a
}

func (q *linearQueue) Size() int { return len(q.items) }
