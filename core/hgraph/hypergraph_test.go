package hgraph

import "testing"

// buildToy builds the S1 fixture from spec §8: V={0..6},
// edges {0,2},{0,1,3,4},{3,4,6},{2,5,6}.
func buildToy(t *testing.T) *Hypergraph {
	t.Helper()
	h := New(7)
	edges := [][]int32{
		{0, 2},
		{0, 1, 3, 4},
		{3, 4, 6},
		{2, 5, 6},
	}
	for _, pins := range edges {
		if _, err := h.AddEdge(1, pins); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	return h
}

func TestAddEdgeRejectsOutOfRangePin(t *testing.T) {
	h := New(3)
	if _, err := h.AddEdge(1, []int32{0, 5}); err == nil {
		t.Fatal("expected error for out-of-range pin")
	}
}

func TestAddEdgeRejectsEmpty(t *testing.T) {
	h := New(3)
	if _, err := h.AddEdge(1, nil); err == nil {
		t.Fatal("expected error for empty edge")
	}
}

func TestIncidentEdgesAndDegree(t *testing.T) {
	h := buildToy(t)
	if got := h.NodeDegree(3); got != 2 {
		t.Fatalf("NodeDegree(3) = %d, want 2", got)
	}
	edges := h.IncidentEdges(0)
	if len(edges) != 2 {
		t.Fatalf("IncidentEdges(0) = %v, want len 2", edges)
	}
}

func TestPartitionBalanceAndPinCount(t *testing.T) {
	h := buildToy(t)
	ph := NewPartitioned(h, 2, []int64{4, 4})

	assign := []int32{0, 0, 1, 0, 1, 1, 1}
	for v, b := range assign {
		ph.AssignInitial(v, b)
	}
	if err := ph.ValidatePinCounts(); err != nil {
		t.Fatalf("pin counts: %v", err)
	}
	for e := int32(0); e < int32(h.NumEdges); e++ {
		if ph.ConnectivitySize(e) == 0 {
			t.Fatalf("edge %d has empty connectivity set", e)
		}
	}

	ok, err := ph.MoveVertex(2, 1)
	if err != nil {
		t.Fatalf("MoveVertex: %v", err)
	}
	if !ok {
		t.Fatal("expected move to be accepted within balance")
	}
	if err := ph.ValidatePinCounts(); err != nil {
		t.Fatalf("pin counts after move: %v", err)
	}
	if ph.BlockWeight(0) != 3 || ph.BlockWeight(1) != 4 {
		t.Fatalf("block weights after move = %d,%d", ph.BlockWeight(0), ph.BlockWeight(1))
	}
}

func TestMoveVertexRejectsOverweightMove(t *testing.T) {
	h := buildToy(t)
	ph := NewPartitioned(h, 2, []int64{3, 3})
	for v := 0; v < 7; v++ {
		if v < 4 {
			ph.AssignInitial(v, 0)
		} else {
			ph.AssignInitial(v, 1)
		}
	}
	// block 0 already at its cap (weight 4 > 3 actually violates cap from
	// the start in this contrived setup); use a vertex move that would
	// exceed the cap to confirm CanMove rejects it.
	ok, err := ph.MoveVertex(4, 0)
	if err != nil {
		t.Fatalf("MoveVertex: %v", err)
	}
	if ok {
		t.Fatal("expected move to be rejected: would exceed max block weight")
	}
}

// TestContractDedupsSharedIncidentEdges reproduces vertices 3 and 4 sharing
// two edges ({0,1,3,4} and {3,4,6}): after Contract(3,4), vertex 3's
// incident-net chain must list each shared edge once, not twice, while the
// contraction is live -- not just after a round trip back to Uncontract.
func TestContractDedupsSharedIncidentEdges(t *testing.T) {
	h := buildToy(t)

	rec, err := h.Contract(3, 4)
	if err != nil {
		t.Fatalf("Contract: %v", err)
	}

	edges := h.IncidentEdges(3)
	seen := make(map[int32]int)
	for _, e := range edges {
		seen[e]++
	}
	for e, count := range seen {
		if count > 1 {
			t.Fatalf("edge %d listed %d times in vertex 3's incident chain after contraction, want 1", e, count)
		}
	}
	if got := h.NodeDegree(3); got != len(seen) {
		t.Fatalf("NodeDegree(3) = %d, want %d (len(seen))", got, len(seen))
	}
	if got := h.NodeDegree(3); got != 2 {
		t.Fatalf("NodeDegree(3) after contracting 4 into 3 = %d, want 2 (edges {0,1,3,4} and {3,4,6} collapse to one each, {2,5,6} stays off 3)", got)
	}

	if err := h.Uncontract(rec); err != nil {
		t.Fatalf("Uncontract: %v", err)
	}
}

func TestContractUncontractRoundTrip(t *testing.T) {
	h := buildToy(t)

	wBefore := make([]int64, h.NumNodes)
	for v := range wBefore {
		wBefore[v] = h.NodeWeight(v)
	}
	degBefore := make([]int, h.NumNodes)
	for v := range degBefore {
		degBefore[v] = h.NodeDegree(v)
	}
	pinsBefore := make([][]int32, h.NumEdges)
	for e := range pinsBefore {
		pinsBefore[e] = append([]int32(nil), h.Pins(int32(e))...)
	}

	rec, err := h.Contract(3, 4)
	if err != nil {
		t.Fatalf("Contract: %v", err)
	}
	if h.NodeWeight(3) != wBefore[3]+wBefore[4] {
		t.Fatalf("merged weight = %d, want %d", h.NodeWeight(3), wBefore[3]+wBefore[4])
	}

	if err := h.Uncontract(rec); err != nil {
		t.Fatalf("Uncontract: %v", err)
	}

	for v := range wBefore {
		if h.NodeWeight(v) != wBefore[v] {
			t.Fatalf("node %d weight after round trip = %d, want %d", v, h.NodeWeight(v), wBefore[v])
		}
		if h.NodeDegree(v) != degBefore[v] {
			t.Fatalf("node %d degree after round trip = %d, want %d", v, h.NodeDegree(v), degBefore[v])
		}
	}
	for e := range pinsBefore {
		got := h.Pins(int32(e))
		if len(got) != len(pinsBefore[e]) {
			t.Fatalf("edge %d pins after round trip = %v, want %v", e, got, pinsBefore[e])
		}
		want := map[int32]bool{}
		for _, p := range pinsBefore[e] {
			want[p] = true
		}
		for _, p := range got {
			if !want[p] {
				t.Fatalf("edge %d pins after round trip = %v, want %v", e, got, pinsBefore[e])
			}
		}
	}
}
