// Package segarray implements the incident-net array described in spec §3:
// a per-vertex chain of fixed-capacity segments, addressed by index into an
// arena rather than by pointer, so the arena can grow with append without
// invalidating any vertex's chain identity (spec §9 "double-linked list of
// incident-net segments").
//
// Each segment holds up to Capacity entries, split into an active prefix
// (indices [0,activeSize)) and a deactivated suffix ([activeSize,size)).
// Deactivate/Reactivate move an entry across that boundary in O(1) by
// swapping it with the boundary slot; the physical entry never moves out of
// its segment, so Concatenate/Split (which only splice segment chains, not
// entries) never need to know which entries are active. Concatenating one
// vertex's chain onto another's is O(1): it only splices four index fields.
package segarray

import "github.com/gilchrisn/graph-clustering-service/internal/errs"

// Capacity is the fixed entry count per segment.
const Capacity = 16

const nilIdx = -1

// Entry is one incident edge id.
type Entry struct {
	EdgeID int32
}

// segment is one fixed-capacity block of entries plus chain metadata.
type segment struct {
	entries [Capacity]Entry
	size    int32 // number of entries physically present (active + deactivated)

	prevChain, nextChain int32 // doubly-linked ring across ALL segments of a vertex
	itPrev, itNext        int32 // iterator chain, skips segments with activeSize==0
	tail                   int32 // tail segment index captured when this segment was appended

	activeSize int32
	degree     int32 // degree contribution of this segment (== activeSize, kept separate per spec's header field)
}

// Header is a vertex's handle into the arena: the head and tail segment
// indices of its chain. Stored by value, cheap to copy, valid across arena
// growth because it stores indices not pointers.
type Header struct {
	head, tail int32
	itHead     int32
	size       int32 // number of live entries across the whole chain
	degree     int32
}

func emptyHeader() Header { return Header{head: nilIdx, tail: nilIdx, itHead: nilIdx} }

// Arena owns all segments for all vertices of one hypergraph.
type Arena struct {
	segs []segment
}

// NewArena creates an empty arena.
func NewArena() *Arena { return &Arena{} }

func (a *Arena) alloc() int32 {
	a.segs = append(a.segs, segment{prevChain: nilIdx, nextChain: nilIdx, itPrev: nilIdx, itNext: nilIdx, tail: nilIdx})
	return int32(len(a.segs) - 1)
}

// NewChain builds a fresh, empty chain (Header) for a vertex.
func (a *Arena) NewChain() Header { return emptyHeader() }

// Append adds one active entry for edgeID to h's chain, growing a
// new segment when the tail is full. O(1) amortized.
func (a *Arena) Append(h *Header, edgeID int32) {
	if h.head == nilIdx {
		idx := a.alloc()
		h.head, h.tail, h.itHead = idx, idx, idx
	}
	tail := &a.segs[h.tail]
	if tail.size >= Capacity {
		idx := a.alloc()
		tail = &a.segs[h.tail] // alloc may have moved the backing array
		newSeg := &a.segs[idx]
		newSeg.prevChain = h.tail
		tail.nextChain = idx
		// splice into iterator chain right after the old tail's iterator slot
		newSeg.itPrev = h.tail
		if tail.itNext != nilIdx {
			a.segs[tail.itNext].itPrev = idx
		}
		newSeg.itNext = tail.itNext
		tail.itNext = idx
		h.tail = idx
		tail = newSeg
	}
	tail.entries[tail.size] = Entry{EdgeID: edgeID}
	tail.size++
	tail.activeSize++
	tail.degree++
	h.size++
	h.degree++
}

// Concatenate splices v's chain onto the end of u's chain in O(1), per spec
// §3: "appending v to u splices the doubly-linked rings and stores v's
// previous tail in v's header" (recorded here as u's former tail, in the
// tail field of v's head segment, so Uncontract can find exactly where to
// cut).
func (a *Arena) Concatenate(u, v *Header) {
	if v.head == nilIdx {
		return
	}
	if u.head == nilIdx {
		*u = *v
		return
	}
	uTail := &a.segs[u.tail]
	vHead := &a.segs[v.head]
	uTail.nextChain = v.head
	vHead.prevChain = u.tail

	// iterator chain: splice v's iterator list after u's
	uTailIt := u.tail
	for a.segs[uTailIt].itNext != nilIdx {
		uTailIt = a.segs[uTailIt].itNext
	}
	a.segs[uTailIt].itNext = v.itHead
	a.segs[v.itHead].itPrev = uTailIt

	// record where u used to end, so Uncontract can detach precisely
	vHead.tail = u.tail

	u.tail = v.tail
	u.size += v.size
	u.degree += v.degree
}

// Split reverses a prior Concatenate: detaches the chain that starts at
// vHeadIdx (the segment recorded as v's former head) from u, restoring u's
// tail to the segment recorded in that segment's `tail` field.
func (a *Arena) Split(u *Header, vHeadIdx int32, removedSize, removedDegree int32) {
	vHead := &a.segs[vHeadIdx]
	prevTail := vHead.tail // u's tail before the concatenation
	if prevTail == nilIdx {
		return
	}
	a.segs[prevTail].nextChain = nilIdx
	vHead.prevChain = nilIdx

	// unsplice iterator chain
	if vHead.itPrev != nilIdx {
		a.segs[vHead.itPrev].itNext = vHead.itNext
	}
	if vHead.itNext != nilIdx {
		a.segs[vHead.itNext].itPrev = vHead.itPrev
	}
	vHead.itPrev, vHead.itNext = nilIdx, nilIdx

	u.tail = prevTail
	u.size -= removedSize
	u.degree -= removedDegree
}

// Deactivate removes edgeID from h's chain: swap its entry past the
// segment's active/deactivated boundary, decrement activeSize and degree.
// The entry itself stays physically in its segment (spec §3's "swap to end,
// decrement active-size"), so a later Reactivate can restore it in O(1).
func (a *Arena) Deactivate(h *Header, edgeID int32) bool {
	idx := h.itHead
	for idx != nilIdx {
		seg := &a.segs[idx]
		for i := int32(0); i < seg.activeSize; i++ {
			if seg.entries[i].EdgeID == edgeID {
				last := seg.activeSize - 1
				seg.entries[i], seg.entries[last] = seg.entries[last], seg.entries[i]
				seg.activeSize--
				seg.degree--
				h.size--
				h.degree--
				if seg.activeSize == 0 {
					a.unlinkIterator(idx)
				}
				return true
			}
		}
		idx = seg.itNext
	}
	return false
}

// Reactivate reverses a prior Deactivate(h, edgeID): finds the entry in its
// segment's deactivated suffix, swaps it back across the active/deactivated
// boundary, and re-links the segment into the iterator chain if it had been
// fully deactivated. Reactivate must be called in the reverse order of the
// Deactivate calls it undoes, on the same chain, with no intervening
// Append/Deactivate -- exactly the pattern Hypergraph.Uncontract follows.
func (a *Arena) Reactivate(h *Header, edgeID int32) bool {
	idx := h.head
	for idx != nilIdx {
		seg := &a.segs[idx]
		for i := seg.activeSize; i < seg.size; i++ {
			if seg.entries[i].EdgeID == edgeID {
				seg.entries[i], seg.entries[seg.activeSize] = seg.entries[seg.activeSize], seg.entries[i]
				if seg.activeSize == 0 {
					a.relinkIterator(idx)
				}
				seg.activeSize++
				seg.degree++
				h.size++
				h.degree++
				return true
			}
		}
		idx = seg.nextChain
	}
	return false
}

func (a *Arena) unlinkIterator(idx int32) {
	seg := &a.segs[idx]
	if seg.itPrev != nilIdx {
		a.segs[seg.itPrev].itNext = seg.itNext
	}
	if seg.itNext != nilIdx {
		a.segs[seg.itNext].itPrev = seg.itPrev
	}
}

// relinkIterator is unlinkIterator's exact inverse: idx's own itPrev/itNext
// fields were never touched by unlinkIterator, only its neighbors', so
// restoring those neighbors' links puts idx back exactly where it was.
func (a *Arena) relinkIterator(idx int32) {
	seg := &a.segs[idx]
	if seg.itPrev != nilIdx {
		a.segs[seg.itPrev].itNext = idx
	}
	if seg.itNext != nilIdx {
		a.segs[seg.itNext].itPrev = idx
	}
}

// Active returns every active (edge id) entry in h, in iterator order.
func (a *Arena) Active(h Header) []int32 {
	out := make([]int32, 0, h.size)
	idx := h.itHead
	for idx != nilIdx {
		seg := &a.segs[idx]
		for i := int32(0); i < seg.activeSize; i++ {
			out = append(out, seg.entries[i].EdgeID)
		}
		idx = seg.itNext
	}
	return out
}

// Degree returns the number of active entries in h.
func (h Header) Degree() int { return int(h.degree) }

// Head returns the arena index of h's first segment, exposed so callers can
// snapshot/restore a chain across a Concatenate+Split round trip.
func (h Header) Head() int32 { return h.head }

// Size returns the number of live entries across h's whole chain.
func (h Header) Size() int32 { return h.size }

// DegreeRaw returns the raw degree counter (same value as Degree, typed
// int32 for use in Split's bookkeeping).
func (h Header) DegreeRaw() int32 { return h.degree }

// Validate checks size/degree bookkeeping consistency; used by debug
// assertions and tests.
func (a *Arena) Validate(h Header) error {
	count := int32(0)
	idx := h.itHead
	for idx != nilIdx {
		seg := &a.segs[idx]
		count += seg.activeSize
		idx = seg.itNext
	}
	if count != h.size {
		return errs.Newf(errs.Internal, "segarray.Validate", "active count %d != header size %d", count, h.size)
	}
	return nil
}
