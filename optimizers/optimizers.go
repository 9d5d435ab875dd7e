// Package optimizers defines the contract graph-rewriting passes implement
// so a surrounding pipeline can run them interchangeably.
package optimizers

import "github.com/memflow/memswap/graph"

// GraphOptimizer is one graph-rewriting pass. Optimize mutates the graph in
// place; on error the graph may be partially rewritten and should be
// discarded by the caller.
type GraphOptimizer interface {
	Name() string
	Optimize(g *graph.Graph) error
}
