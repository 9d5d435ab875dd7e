package swapping

import (
	"fmt"

	"github.com/memflow/memswap/graph"
	"github.com/memflow/memswap/ops"
)

// Stats summarizes the shape of a graph by topological rank: how deep it is,
// how connected, and how far apart (in ranks) producers sit from their
// consumers. Large rank differences are what make swapping worthwhile.
type Stats struct {
	NumNodes          int
	Depth             int
	AvgInDegree       float64
	AvgOutDegree      float64
	AvgInputRankDiff  float64
	AvgOutputRankDiff float64
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"depth=%d num_nodes=%d avg_indegree=%.2f avg_outdegree=%.2f avg_input_rank_diff=%.2f avg_output_rank_diff=%.2f",
		s.Depth, s.NumNodes, s.AvgInDegree, s.AvgOutDegree, s.AvgInputRankDiff, s.AvgOutputRankDiff)
}

// GraphStats computes Stats over the view's data edges.
func GraphStats(view *graph.View) Stats {
	order := topoOrder(view)
	rank := make([]int, view.NumNodes())
	stats := Stats{NumNodes: len(order)}
	totalInputs, totalOutputs := 0, 0
	for _, i := range order {
		totalInputs += len(view.Inputs(i))
		totalOutputs += len(view.Outputs(i))
		for _, out := range view.Outputs(i) {
			rank[out] = max(rank[out], rank[i]+1)
			stats.Depth = max(stats.Depth, rank[out])
		}
	}

	totalInputDiff, totalOutputDiff := 0, 0
	for _, i := range order {
		for _, in := range view.Inputs(i) {
			totalInputDiff += rank[i] - rank[in]
		}
		for _, out := range view.Outputs(i) {
			totalOutputDiff += rank[out] - rank[i]
		}
	}
	if len(order) > 0 {
		stats.AvgInDegree = float64(totalInputs) / float64(len(order))
		stats.AvgOutDegree = float64(totalOutputs) / float64(len(order))
	}
	if totalInputs > 0 {
		stats.AvgInputRankDiff = float64(totalInputDiff) / float64(totalInputs)
	}
	if totalOutputs > 0 {
		stats.AvgOutputRankDiff = float64(totalOutputDiff) / float64(totalOutputs)
	}
	return stats
}

// topoOrder returns a deterministic topological order of the view's nodes
// over data edges: sources are queued in index order and ready nodes are
// taken first-in, first-out. Merge nodes are
// pre-credited with their NextIteration fan-ins, like the partitioner, so
// loops do not truncate the order. Nodes on unrecognized cycles are omitted.
func topoOrder(view *graph.View) []int {
	n := view.NumNodes()
	numReadyInputs := make([]int, n)
	var frontier []int
	for i := 0; i < n; i++ {
		if len(view.Inputs(i)) == 0 {
			frontier = append(frontier, i)
		}
		if ops.IsMerge(view.Node(i)) {
			for _, input := range view.Inputs(i) {
				if ops.IsNextIteration(view.Node(input)) {
					numReadyInputs[i]++
				}
			}
		}
	}

	order := make([]int, 0, n)
	for len(frontier) > 0 {
		i := frontier[0]
		frontier = frontier[1:]
		order = append(order, i)
		for _, out := range view.Outputs(i) {
			numReadyInputs[out]++
			if numReadyInputs[out] == len(view.Inputs(out)) {
				frontier = append(frontier, out)
			}
		}
	}
	return order
}
