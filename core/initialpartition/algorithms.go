package initialpartition

import (
	"math/rand"

	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
)

// randomPartition assigns every vertex to an independently sampled block,
// ignoring balance -- the baseline entry in the flat-partitioner pool.
func randomPartition(h *hgraph.Hypergraph, k int, rng *rand.Rand) []int32 {
	n := h.NumVertices()
	part := make([]int32, n)
	for v := 0; v < n; v++ {
		part[v] = int32(rng.Intn(k))
	}
	return part
}

// bfsPartition grows k regions breadth-first from distinct random seeds,
// round-robining growth across blocks so region sizes stay roughly even;
// any vertex unreached by BFS (disconnected components) is assigned
// round-robin at the end.
func bfsPartition(h *hgraph.Hypergraph, k int, rng *rand.Rand) []int32 {
	n := h.NumVertices()
	part := make([]int32, n)
	for i := range part {
		part[i] = -1
	}
	seeds := rng.Perm(n)
	queues := make([][]int32, k)
	assigned := 0
	for b := 0; b < k && b < n; b++ {
		v := int32(seeds[b])
		part[v] = int32(b)
		queues[b] = append(queues[b], v)
		assigned++
	}

	for b := 0; ; b = (b + 1) % k {
		if assigned >= n {
			break
		}
		if len(queues[b]) == 0 {
			if allEmpty(queues) {
				break
			}
			continue
		}
		v := queues[b][0]
		queues[b] = queues[b][1:]
		for _, e := range h.IncidentEdges(int(v)) {
			for _, u := range h.Pins(e) {
				if part[u] == -1 {
					part[u] = int32(b)
					queues[b] = append(queues[b], u)
					assigned++
				}
			}
		}
	}

	// Disconnected leftovers: round-robin.
	next := 0
	for v := 0; v < n; v++ {
		if part[v] == -1 {
			part[v] = int32(next % k)
			next++
		}
	}
	return part
}

func allEmpty(queues [][]int32) bool {
	for _, q := range queues {
		if len(q) > 0 {
			return false
		}
	}
	return true
}

// greedyGrowingPartition grows regions like bfsPartition, but always
// extends the currently lightest block, and within that block picks the
// frontier vertex with the most edges already touching it (greedy
// hypergraph growing, spec §4.4) rather than plain FIFO order.
func greedyGrowingPartition(h *hgraph.Hypergraph, k int, rng *rand.Rand) []int32 {
	n := h.NumVertices()
	part := make([]int32, n)
	for i := range part {
		part[i] = -1
	}
	weight := make([]int64, k)
	frontier := make([][]int32, k)

	seeds := rng.Perm(n)
	assigned := 0
	for b := 0; b < k && b < n; b++ {
		v := int32(seeds[b])
		part[v] = int32(b)
		weight[b] += h.NodeWeight(int(v))
		frontier[b] = append(frontier[b], v)
		assigned++
	}

	for assigned < n {
		b := lightestNonEmptyFrontier(weight, frontier)
		if b < 0 {
			break
		}
		v, idx := bestFrontierCandidate(h, frontier[b], part, int32(b))
		frontier[b] = append(frontier[b][:idx], frontier[b][idx+1:]...)
		if v < 0 {
			continue
		}
		part[v] = int32(b)
		weight[b] += h.NodeWeight(int(v))
		assigned++
		for _, e := range h.IncidentEdges(int(v)) {
			for _, u := range h.Pins(e) {
				if part[u] == -1 {
					frontier[b] = append(frontier[b], u)
				}
			}
		}
	}

	next := 0
	for v := 0; v < n; v++ {
		if part[v] == -1 {
			part[v] = int32(next % k)
			next++
		}
	}
	return part
}

func lightestNonEmptyFrontier(weight []int64, frontier [][]int32) int {
	best := -1
	for b := range frontier {
		if len(frontier[b]) == 0 {
			continue
		}
		if best < 0 || weight[b] < weight[best] {
			best = b
		}
	}
	return best
}

// bestFrontierCandidate picks the frontier vertex with the most incident
// edges already touching block b (ties go to the earliest entry in
// frontier order), returning its id and index within frontier[b].
func bestFrontierCandidate(h *hgraph.Hypergraph, candidates []int32, part []int32, b int32) (int32, int) {
	bestScore := -1
	bestIdx := -1
	bestV := int32(-1)
	for i, v := range candidates {
		if part[v] != -1 {
			continue // assigned to some block meanwhile by another frontier's growth
		}
		score := 0
		for _, e := range h.IncidentEdges(int(v)) {
			for _, u := range h.Pins(e) {
				if u != v && part[u] == b {
					score++
				}
			}
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
			bestV = v
		}
	}
	if bestIdx == -1 && len(candidates) > 0 {
		// Every candidate was already claimed by another block's growth
		// meanwhile; drop the first stale entry and signal "no pick" so the
		// caller neither assigns nor double-counts it.
		return -1, 0
	}
	return bestV, bestIdx
}

// labelPropagationPass reassigns each vertex to the block with the greatest
// incident edge-weight support, subject to maxWeight, iterating until no
// vertex moves or maxIterations is reached (spec §6
// refinement.label_propagation; also used as a flat partitioner seeded from
// a random start, and as the refine step for k>=3).
func labelPropagationPass(h *hgraph.Hypergraph, part []int32, k int, maxWeight []int64, maxIterations int, rng *rand.Rand) {
	n := h.NumVertices()
	blockWeight := make([]int64, k)
	for v := 0; v < n; v++ {
		blockWeight[part[v]] += h.NodeWeight(v)
	}
	if maxIterations < 1 {
		maxIterations = 1
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	for iter := 0; iter < maxIterations; iter++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		moved := 0
		for _, v := range order {
			support := make(map[int32]int64, 4)
			for _, e := range h.IncidentEdges(v) {
				w := h.EdgeWeight(e)
				for _, u := range h.Pins(e) {
					if int(u) == v {
						continue
					}
					support[part[u]] += w
				}
			}
			cur := part[v]
			bestB, bestScore := cur, support[cur]
			for b, s := range support {
				if b == cur {
					continue
				}
				nw := h.NodeWeight(v)
				if blockWeight[b]+nw > maxWeight[b] {
					continue
				}
				if s > bestScore || (s == bestScore && b < bestB) {
					bestScore = s
					bestB = b
				}
			}
			if bestB != cur {
				nw := h.NodeWeight(v)
				blockWeight[cur] -= nw
				blockWeight[bestB] += nw
				part[v] = bestB
				moved++
			}
		}
		if moved == 0 {
			break
		}
	}
}

// twoWayLocalSearch is a simplified FM-style hill climb for k=2: repeatedly
// moves the single highest-gain vertex (gain = cut reduction from flipping
// its block) while it stays strictly positive and balance allows, for up to
// maxRounds moves (each round scans all vertices and applies one move). The
// full multi-try rollback FM lives in core/fm;
// this is only the IP pool's lightweight "refine the population" step (spec
// §4.4 "2-way FM for k=2").
func twoWayLocalSearch(h *hgraph.Hypergraph, part []int32, maxWeight []int64, maxRounds int) {
	n := h.NumVertices()
	blockWeight := [2]int64{}
	for v := 0; v < n; v++ {
		blockWeight[part[v]] += h.NodeWeight(v)
	}
	if maxRounds < 1 {
		maxRounds = 1
	}

	gain := func(v int) int64 {
		var g int64
		from := part[v]
		for _, e := range h.IncidentEdges(v) {
			w := h.EdgeWeight(e)
			countFrom, countTo := 0, 0
			for _, u := range h.Pins(e) {
				if int(u) == v {
					continue
				}
				if part[u] == from {
					countFrom++
				} else {
					countTo++
				}
			}
			if countFrom == 0 {
				g += w // edge currently cut would become internal to `to`
			}
			if countTo == 0 {
				g -= w // edge currently internal to `from` would become cut
			}
		}
		return g
	}

	for round := 0; round < maxRounds; round++ {
		bestV, bestGain := -1, int64(0)
		for v := 0; v < n; v++ {
			to := 1 - part[v]
			if blockWeight[to]+h.NodeWeight(v) > maxWeight[to] {
				continue
			}
			if g := gain(v); g > bestGain {
				bestGain = g
				bestV = v
			}
		}
		if bestV < 0 {
			break
		}
		from := part[bestV]
		to := 1 - from
		blockWeight[from] -= h.NodeWeight(bestV)
		blockWeight[to] += h.NodeWeight(bestV)
		part[bestV] = to
	}
}
