package regalloc

import "prospero/internal/ir"

// sinkQueueSize bounds how many sunk loads stay patchable; the oldest entry
// is overwritten when the ring wraps.
const sinkQueueSize = 32

// sinkEntry remembers one emitted memory operand so a later demand for the
// same value can promote it to a register.
type sinkEntry struct {
	src     ir.VId
	stepIdx int    // reverse-list index of the instruction that sank
	counter uint32 // dirty counter at sink time
	gen     uint32 // generation, for O(1) staleness checks from value state
	live    bool
}

// sinkQueue is a fixed-capacity ring of sink entries.
type sinkQueue struct {
	entries [sinkQueueSize]sinkEntry
	next    int
	gen     uint32
}

// push records a sink and returns the slot index and generation the value
// state keeps for later lookup. Oldest entries are overwritten silently.
func (q *sinkQueue) push(e sinkEntry) (int, uint32) {
	q.gen++
	e.gen = q.gen
	e.live = true
	idx := q.next
	q.entries[idx] = e
	q.next = (q.next + 1) % sinkQueueSize
	return idx, q.gen
}

// lookup returns the entry at idx if it still belongs to generation gen and
// has not been consumed.
func (q *sinkQueue) lookup(idx int, gen uint32) (*sinkEntry, bool) {
	if idx < 0 || idx >= sinkQueueSize {
		return nil, false
	}
	e := &q.entries[idx]
	if !e.live || e.gen != gen {
		return nil, false
	}
	return e, true
}
