// Package fm implements multi-try localized k-way FM refinement with a
// global rollback pass (spec §4.5): per-node acquire/release ownership, a
// linear move log for rollback, a delta overlay for local-mode moves, and a
// pool of worker tasks racing over the boundary. Grounded on the teacher's
// pkg/louvain atomic-move-tracking style (graph-clustering-algorithm's
// MoveTracker in utils) generalized from a single-writer logging utility to
// the shared, multi-writer rollback ledger the spec requires, and on
// core/taskpool for the worker pool itself.
package fm

import (
	"sync"
	"sync/atomic"
)

// NodeTracker gives every vertex a CAS-guarded ownership slot: a thread
// never operates on v unless it holds v's slot (spec §5 "a thread never
// operates on v unless it owns it").
type NodeTracker struct {
	owner []int32 // atomic; -1 == free
}

const freeOwner = -1

func NewNodeTracker(n int) *NodeTracker {
	nt := &NodeTracker{owner: make([]int32, n)}
	for i := range nt.owner {
		nt.owner[i] = freeOwner
	}
	return nt
}

// TryAcquire attempts to claim v for searchID, returning false if already owned.
func (nt *NodeTracker) TryAcquire(v int, searchID int32) bool {
	return atomic.CompareAndSwapInt32(&nt.owner[v], freeOwner, searchID)
}

// Release frees v if currently owned by searchID.
func (nt *NodeTracker) Release(v int, searchID int32) bool {
	return atomic.CompareAndSwapInt32(&nt.owner[v], searchID, freeOwner)
}

// Owned reports whether v is currently owned by anyone.
func (nt *NodeTracker) Owned(v int) bool {
	return atomic.LoadInt32(&nt.owner[v]) != freeOwner
}

// Move is one committed (to the shared PartitionedHypergraph) or logged
// (delta-mode) vertex move, carrying the true incremental gain it achieved.
type Move struct {
	ID   int64
	Node int32
	From int32
	To   int32
	Gain int64
}

// MoveTracker is the global, linear, append-only log GlobalRollback replays
// (spec §4.5 "global MoveTracker recording (move_id, node, from, to, gain)
// for rollback"). Appends are serialized by a mutex rather than a true
// fetch-add slot reservation -- simpler, and the critical section is a
// single slice append, not a hot spin loop.
type MoveTracker struct {
	mu    sync.Mutex
	moves []Move
}

func NewMoveTracker() *MoveTracker { return &MoveTracker{} }

// Append records a move and returns its move id.
func (mt *MoveTracker) Append(node, from, to int32, gain int64) int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	id := int64(len(mt.moves))
	mt.moves = append(mt.moves, Move{ID: id, Node: node, From: from, To: to, Gain: gain})
	return id
}

// Len returns the number of moves logged so far.
func (mt *MoveTracker) Len() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return len(mt.moves)
}

// Slice returns a snapshot copy of moves[start:end).
func (mt *MoveTracker) Slice(start, end int) []Move {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	out := make([]Move, end-start)
	copy(out, mt.moves[start:end])
	return out
}
