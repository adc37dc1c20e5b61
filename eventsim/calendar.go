package eventsim

import "sort"

// calendarQueue is Brown's calendar queue: a ring of buckets, each holding
// the activities whose wake time falls in that bucket's time range,
// FIFO-ordered within a bucket by insertion sequence. The queue resizes its
// bucket width whenever the population crosses a factor-of-two boundary,
// estimating the new width from a sample of currently-held activities —
// grounded on original_source's src/MemSys/evlst.c.
type calendarQueue struct {
	buckets   [][]*Activity
	width     float64
	basis     float64 // time origin the buckets are indexed relative to
	n         int
	lastResize int // population at last resize, for the factor-of-two test
	nextSeq   uint64
	cursorIdx int // bucket index to resume ring scans from (amortizes PopMin)

	// inResize guards resize's own reinsertion loop: Insert calls
	// maybeResize, and without this guard a reinsert landing exactly on
	// the shrink threshold (q.n*2 <= q.lastResize, passed through while
	// q.n is ramping back up from zero) would recurse into resize again.
	inResize bool
}

const (
	minBuckets   = 16
	resizeSample = 32
	widthFudge   = 3.0 // Brown's rule of thumb: ~3x the mean gap between events
)

func newCalendarQueue() *calendarQueue {
	return &calendarQueue{
		buckets: make([][]*Activity, minBuckets),
		width:   1.0,
	}
}

func (q *calendarQueue) bucketIndex(t float64) int {
	n := len(q.buckets)
	rel := (t - q.basis) / q.width
	idx := int(rel) % n
	if idx < 0 {
		idx += n
	}
	return idx
}

func (q *calendarQueue) Insert(a *Activity) {
	a.seq = q.nextSeq
	q.nextSeq++
	idx := q.bucketIndex(a.WakeAt)
	a.bucket = idx
	bucket := q.buckets[idx]

	// Keep each bucket sorted by (WakeAt, seq) so PopMin can take the head
	// of the first non-empty bucket it finds without re-sorting.
	pos := sort.Search(len(bucket), func(i int) bool {
		if bucket[i].WakeAt != a.WakeAt {
			return bucket[i].WakeAt > a.WakeAt
		}
		return bucket[i].seq > a.seq
	})
	bucket = append(bucket, nil)
	copy(bucket[pos+1:], bucket[pos:])
	bucket[pos] = a
	q.buckets[idx] = bucket

	q.n++
	q.maybeResize()
}

// Delete removes a specific activity that is known to still be queued.
// Returns true if found and removed.
func (q *calendarQueue) Delete(a *Activity) bool {
	if a.bucket < 0 || a.bucket >= len(q.buckets) {
		return false
	}
	bucket := q.buckets[a.bucket]
	for i, cand := range bucket {
		if cand == a {
			q.buckets[a.bucket] = append(bucket[:i], bucket[i+1:]...)
			q.n--
			a.bucket = -1
			return true
		}
	}
	return false
}

// scanForMin walks the ring starting at cursorIdx and returns the bucket
// index of the first non-empty bucket together with the minimum-timestamp
// activity it contains. Because every bucket is internally sorted, and a
// calendar queue's "day" (one full ring traversal) only ever holds
// activities within widthFudge buckets of the minimum in practice, a single
// full ring scan taking the smallest head-of-bucket timestamp is exact.
func (q *calendarQueue) scanForMin() (idx int, a *Activity) {
	n := len(q.buckets)
	best := -1
	var bestActivity *Activity
	for offset := 0; offset < n; offset++ {
		i := (q.cursorIdx + offset) % n
		bucket := q.buckets[i]
		if len(bucket) == 0 {
			continue
		}
		head := bucket[0]
		if bestActivity == nil || head.WakeAt < bestActivity.WakeAt ||
			(head.WakeAt == bestActivity.WakeAt && head.seq < bestActivity.seq) {
			bestActivity = head
			best = i
		}
	}
	return best, bestActivity
}

// PeekMin returns the earliest activity without removing it, or nil if the
// queue is empty.
func (q *calendarQueue) PeekMin() *Activity {
	if q.n == 0 {
		return nil
	}
	_, a := q.scanForMin()
	return a
}

func (q *calendarQueue) PopMin() *Activity {
	if q.n == 0 {
		return nil
	}
	idx, a := q.scanForMin()
	if a == nil {
		return nil
	}
	q.buckets[idx] = q.buckets[idx][1:]
	q.cursorIdx = idx
	q.n--
	a.bucket = -1
	q.maybeResize()
	return a
}

func (q *calendarQueue) Size() int { return q.n }

func (q *calendarQueue) maybeResize() {
	if q.inResize {
		return
	}
	if q.lastResize == 0 {
		if q.n >= minBuckets {
			q.resize()
		}
		return
	}
	if q.n >= q.lastResize*2 || (q.n*2) <= q.lastResize {
		if q.n > 0 {
			q.resize()
		}
	}
}

// resize re-estimates the bucket width from a sample of held activities
// (Brown's technique) and re-inserts every activity into a freshly sized
// bucket array.
func (q *calendarQueue) resize() {
	q.inResize = true
	defer func() { q.inResize = false }()

	sample := make([]float64, 0, resizeSample)
	for _, bucket := range q.buckets {
		for _, a := range bucket {
			sample = append(sample, a.WakeAt)
			if len(sample) >= resizeSample {
				break
			}
		}
		if len(sample) >= resizeSample {
			break
		}
	}
	sort.Float64s(sample)

	newWidth := q.width
	if len(sample) >= 2 {
		var totalGap float64
		gaps := 0
		for i := 1; i < len(sample); i++ {
			gap := sample[i] - sample[i-1]
			if gap > 0 {
				totalGap += gap
				gaps++
			}
		}
		if gaps > 0 {
			newWidth = (totalGap / float64(gaps)) * widthFudge
		}
	}
	if newWidth <= 0 {
		newWidth = 1.0
	}

	newNBuckets := minBuckets
	for newNBuckets < q.n*2 {
		newNBuckets *= 2
	}

	all := make([]*Activity, 0, q.n)
	for _, bucket := range q.buckets {
		all = append(all, bucket...)
	}

	q.width = newWidth
	if len(all) > 0 {
		q.basis = all[0].WakeAt
	}
	q.buckets = make([][]*Activity, newNBuckets)
	q.cursorIdx = 0
	q.lastResize = q.n
	q.n = 0
	for _, a := range all {
		q.Insert(a)
	}
}
