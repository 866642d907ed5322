package parser

import (
	"strings"
	"testing"
)

func TestReadHMetisPlainFormat(t *testing.T) {
	src := "2 4\n1 2 3\n2 3 4\n"
	h, err := ReadHMetis(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadHMetis: %v", err)
	}
	if h.NumNodes != 4 || h.NumEdges != 2 {
		t.Fatalf("got %d nodes, %d edges; want 4, 2", h.NumNodes, h.NumEdges)
	}
	if got := h.Pins(0); len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("edge 0 pins = %v, want [0 1 2] (1-indexed input converted to 0-indexed)", got)
	}
	for v := 0; v < h.NumNodes; v++ {
		if h.NodeWeight(v) != 1 {
			t.Fatalf("vertex %d weight = %d, want 1 (default)", v, h.NodeWeight(v))
		}
	}
}

func TestReadHMetisWithWeights(t *testing.T) {
	src := "2 3 11\n5 1 2\n7 2 3\n10\n20\n30\n"
	h, err := ReadHMetis(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadHMetis: %v", err)
	}
	if h.EdgeWeight(0) != 5 || h.EdgeWeight(1) != 7 {
		t.Fatalf("edge weights = %d, %d; want 5, 7", h.EdgeWeight(0), h.EdgeWeight(1))
	}
	if h.NodeWeight(0) != 10 || h.NodeWeight(1) != 20 || h.NodeWeight(2) != 30 {
		t.Fatalf("vertex weights = %d, %d, %d; want 10, 20, 30", h.NodeWeight(0), h.NodeWeight(1), h.NodeWeight(2))
	}
}

func TestWriteHMetisRoundTrips(t *testing.T) {
	src := "2 4 11\n3 1 2 3\n4 2 3 4\n1\n2\n3\n4\n"
	h, err := ReadHMetis(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadHMetis: %v", err)
	}
	var buf strings.Builder
	if err := WriteHMetis(&buf, h); err != nil {
		t.Fatalf("WriteHMetis: %v", err)
	}
	h2, err := ReadHMetis(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("ReadHMetis (round trip): %v", err)
	}
	if h2.NumNodes != h.NumNodes || h2.NumEdges != h.NumEdges {
		t.Fatalf("round trip mismatch: %d/%d vs %d/%d", h2.NumNodes, h2.NumEdges, h.NumNodes, h.NumEdges)
	}
	for e := 0; e < h.NumEdges; e++ {
		if h2.EdgeWeight(int32(e)) != h.EdgeWeight(int32(e)) {
			t.Fatalf("edge %d weight mismatch after round trip", e)
		}
	}
}

func TestPartitionRoundTrips(t *testing.T) {
	part := []int32{0, 1, 1, 0, 2}
	var buf strings.Builder
	if err := WritePartition(&buf, part); err != nil {
		t.Fatalf("WritePartition: %v", err)
	}
	got, err := ReadPartition(strings.NewReader(buf.String()), len(part))
	if err != nil {
		t.Fatalf("ReadPartition: %v", err)
	}
	for i := range part {
		if got[i] != part[i] {
			t.Fatalf("partition[%d] = %d, want %d", i, got[i], part[i])
		}
	}
}

func TestReadHMetisRejectsTruncatedFile(t *testing.T) {
	if _, err := ReadHMetis(strings.NewReader("3 4\n1 2 3\n")); err == nil {
		t.Fatal("expected an error for a truncated hyperedge section")
	}
}
