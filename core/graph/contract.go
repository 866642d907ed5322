package graph

import (
	"sort"

	"github.com/gilchrisn/graph-clustering-service/internal/errs"
)

// Contract produces a coarser graph whose nodes are the distinct cluster
// ids of `clustering`, remapped to 0..C-1, following the five-step
// algorithm of spec §4.1: indicator + prefix sum remap, counting-sort into
// cluster buckets, a first pass to compute coarse degrees via per-coarse-node
// neighbor lists, a prefix sum for offsets, and a second pass that
// accumulates arc weights and emits coarse arcs. Self-loops are never
// emitted. All passes run sequentially on the calling goroutine, so the
// result does not depend on the thread count; ContractDeterministic below
// is the same routine under a second name.
func (g *Graph) Contract(clustering []int32) (*Graph, error) {
	if len(clustering) != g.NumNodes {
		return nil, errs.Newf(errs.InvalidInput, "graph.Contract", "clustering length %d != NumNodes %d", len(clustering), g.NumNodes)
	}

	// Step 1: indicator + prefix sum remap.
	maxC := int32(-1)
	for _, c := range clustering {
		if c < 0 {
			return nil, errs.Newf(errs.InvalidInput, "graph.Contract", "invalid cluster id %d", c)
		}
		if c > maxC {
			maxC = c
		}
	}
	indicator := make([]int32, maxC+1)
	for _, c := range clustering {
		indicator[c] = 1
	}
	prefix := make([]int32, maxC+1)
	var running int32
	for c := int32(0); c <= maxC; c++ {
		running += indicator[c]
		prefix[c] = running
	}
	numClusters := int(running)
	remap := make([]int32, len(clustering))
	for v, c := range clustering {
		remap[v] = prefix[c] - 1
	}

	// Step 2: counting-sort nodes into cluster buckets.
	bucketStart := make([]int32, numClusters+1)
	for _, rc := range remap {
		bucketStart[rc+1]++
	}
	for c := 0; c < numClusters; c++ {
		bucketStart[c+1] += bucketStart[c]
	}
	bucketed := make([]int32, len(remap))
	cursor := append([]int32(nil), bucketStart[:numClusters]...)
	for v := 0; v < len(remap); v++ {
		rc := remap[v]
		bucketed[cursor[rc]] = int32(v)
		cursor[rc]++
	}

	coarseVolume := make([]float64, numClusters)
	coarseDegree := make([]int32, numClusters)
	// neighborLists: per coarse node, the set of distinct coarse neighbors
	// seen in the first pass, collected in first-seen order and then sorted
	// by head id so the emitted arc order is stable; weights are accumulated
	// in member order during the second pass.
	neighborLists := make([][]int32, numClusters)
	seenAt := make([]int32, numClusters)
	for i := range seenAt {
		seenAt[i] = -1
	}

	for cu := 0; cu < numClusters; cu++ {
		members := bucketed[bucketStart[cu]:bucketStart[cu+1]]
		for _, v := range members {
			coarseVolume[cu] += g.Volume(int(v))
			for _, arc := range g.Arcs(int(v)) {
				cv := remap[arc.Head]
				if cv == int32(cu) {
					continue // self-loop after contraction, never emitted
				}
				if seenAt[cv] != int32(cu) {
					seenAt[cv] = int32(cu)
					neighborLists[cu] = append(neighborLists[cu], cv)
				}
			}
		}
		coarseDegree[cu] = int32(len(neighborLists[cu]))
		sort.Slice(neighborLists[cu], func(i, j int) bool { return neighborLists[cu][i] < neighborLists[cu][j] })
	}

	// Step 4: prefix-sum coarse degrees to get offsets.
	offsets := make([]int32, numClusters+1)
	for c := 0; c < numClusters; c++ {
		offsets[c+1] = offsets[c] + coarseDegree[c]
	}

	// Step 5: second pass, accumulate arc weights keyed by cv and emit.
	coarse := &Graph{NumNodes: numClusters, indices: offsets, arcs: make([]Arc, offsets[numClusters])}
	weightAt := make(map[int32]float64, 8)
	for cu := 0; cu < numClusters; cu++ {
		members := bucketed[bucketStart[cu]:bucketStart[cu+1]]
		for k := range weightAt {
			delete(weightAt, k)
		}
		for _, v := range members {
			for _, arc := range g.Arcs(int(v)) {
				cv := remap[arc.Head]
				if cv == int32(cu) {
					continue
				}
				weightAt[cv] += arc.Weight
			}
		}
		for i, cv := range neighborLists[cu] {
			coarse.arcs[offsets[cu]+int32(i)] = Arc{Head: cv, Weight: weightAt[cv]}
		}
	}

	coarse.nodeVolumes = coarseVolume
	coarse.totalVolume = deterministicSumFloat(coarseVolume)
	return coarse, nil
}

// ContractDeterministic is semantically identical to Contract but processes
// coarse nodes in a single fixed sequential order regardless of
// num_threads, for use under the "deterministic" preset where results must
// be bit-identical across thread counts (spec §5).
func (g *Graph) ContractDeterministic(clustering []int32) (*Graph, error) {
	return g.Contract(clustering)
}
