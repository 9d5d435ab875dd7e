package swapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memflow/memswap/devices"
	"github.com/memflow/memswap/graph"
	"github.com/memflow/memswap/graph/graphtest"
	"github.com/memflow/memswap/memest"
	"github.com/memflow/memswap/ops"
)

func manualOptimizer(t *testing.T, waveSize int) *Optimizer {
	opt, err := New(Config{WaveSize: waveSize, Level: LevelManual}, graphtest.Catalog(), nil)
	require.NoError(t, err)
	return opt
}

func countSwapNodes(g *graph.Graph) (swapOuts, swapIns int) {
	for _, node := range g.Nodes() {
		switch node.Op {
		case ops.CopyFromGpuToHost:
			swapOuts++
		case ops.CopyFromHostToGpu:
			swapIns++
		}
	}
	return
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{WaveSize: 0, Level: LevelManual}, graphtest.Catalog(), nil)
	require.Error(t, err)
}

func TestLevelRoundTrip(t *testing.T) {
	for _, level := range []Level{LevelOff, LevelDefault, LevelHeuristics, LevelManual} {
		parsed, err := ParseLevel(level.String())
		require.NoError(t, err)
		assert.Equal(t, level, parsed)
	}
	_, err := ParseLevel("aggressive")
	require.Error(t, err)
}

// Producer and consumer in the same wave: nothing to swap.
func TestOptimizeTrivialNoSwap(t *testing.T) {
	g := graph.New()
	graphtest.Chain(t, g, graphtest.GPU0, "a", "b")
	require.NoError(t, manualOptimizer(t, 4).Optimize(g))

	assert.Equal(t, 2, g.NumNodes())
	assert.Equal(t, 1, g.GetNode("a").Priority)
	assert.Equal(t, 1, g.GetNode("b").Priority)
}

// A consumer four waves downstream of its producer gets rerouted through a
// swap-out/swap-in pair.
func TestOptimizeDistantConsumer(t *testing.T) {
	g := graph.New()
	graphtest.Chain(t, g, graphtest.GPU0, "a", "b", "c", "d")
	graphtest.AddOp(t, g, "e", "Add", graphtest.GPU0, "d", "a")
	require.NoError(t, manualOptimizer(t, 1).Optimize(g))

	for i, name := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, i+1, g.GetNode(name).Priority, "node %s", name)
	}

	swapOut := g.GetNode("swap_out_a_0")
	require.NotNil(t, swapOut)
	assert.Equal(t, 1, swapOut.Priority)
	assert.Equal(t, []string{"a"}, swapOut.Inputs)
	swapIn := g.GetNode("swap_in_a_0_e_1")
	require.NotNil(t, swapIn)
	assert.Equal(t, 4, swapIn.Priority)
	assert.Equal(t, []string{"swap_out_a_0"}, swapIn.Inputs)

	// Only the distant edge was rewired; b still reads a directly.
	assert.Equal(t, []string{"d", "swap_in_a_0_e_1"}, g.GetNode("e").Inputs)
	assert.Equal(t, []string{"a"}, g.GetNode("b").Inputs)
}

// Reference-typed outputs are never swapped, however distant the consumer.
func TestOptimizeReferenceTypeSkip(t *testing.T) {
	g := graph.New()
	graphtest.Chain(t, g, graphtest.GPU0, "p0", "p1", "p2", "p3")
	// Added after the chain so the LIFO walk schedules it in wave 1, far
	// ahead of its consumer.
	addVariable(t, g, "var", graphtest.GPU0)
	graphtest.AddOp(t, g, "use", "Add", graphtest.GPU0, "p3", "var")
	require.NoError(t, manualOptimizer(t, 1).Optimize(g))

	swapOuts, swapIns := countSwapNodes(g)
	assert.Zero(t, swapOuts)
	assert.Zero(t, swapIns)
	assert.Contains(t, g.GetNode("use").Inputs, "var")
}

// An Identity forwarding a colocated variable is as persistent as the
// variable itself.
func TestOptimizeIdentityPassthroughSkip(t *testing.T) {
	g := graph.New()
	graphtest.Chain(t, g, graphtest.GPU0, "p0", "p1", "p2", "p3")
	addVariable(t, g, "var", graphtest.GPU0)
	graphtest.AddOp(t, g, "id", ops.Identity, graphtest.GPU0, "var")
	graphtest.AddOp(t, g, "use", "Add", graphtest.GPU0, "p3", "id")
	require.NoError(t, manualOptimizer(t, 1).Optimize(g))

	swapOuts, swapIns := countSwapNodes(g)
	assert.Zero(t, swapOuts)
	assert.Zero(t, swapIns)
	assert.Contains(t, g.GetNode("use").Inputs, "id")
}

// Cross-device consumers are the framework's transfer problem, not ours.
func TestOptimizeCrossDeviceUntouched(t *testing.T) {
	g := graph.New()
	graphtest.Chain(t, g, graphtest.GPU0, "a", "b", "c", "d")
	graphtest.AddOp(t, g, "remote", "Relu", graphtest.GPU1, "a")
	require.NoError(t, manualOptimizer(t, 1).Optimize(g))

	swapOuts, swapIns := countSwapNodes(g)
	assert.Zero(t, swapOuts)
	assert.Zero(t, swapIns)
	assert.Equal(t, []string{"a"}, g.GetNode("remote").Inputs)
}

func TestOptimizeGating(t *testing.T) {
	const gib = 1 << 30
	build := func(t *testing.T) *graph.Graph {
		g := graph.New()
		graphtest.Chain(t, g, graphtest.GPU0, "a", "b", "c", "d")
		graphtest.AddOp(t, g, "e", "Add", graphtest.GPU0, "d", "a")
		return g
	}
	catalog := devices.Catalog{graphtest.GPU0: {Type: "GPU", MemorySize: gib}}

	t.Run("off", func(t *testing.T) {
		g := build(t)
		opt, err := New(Config{WaveSize: 1, Level: LevelOff}, catalog, memest.Static{graphtest.GPU0: 2 * gib})
		require.NoError(t, err)
		require.NoError(t, opt.Optimize(g))
		assert.Equal(t, 5, g.NumNodes())
		assert.Zero(t, g.GetNode("a").Priority)
	})

	t.Run("under budget", func(t *testing.T) {
		g := build(t)
		opt, err := New(Config{WaveSize: 1, Level: LevelHeuristics}, catalog, memest.Static{graphtest.GPU0: gib / 2})
		require.NoError(t, err)
		require.NoError(t, opt.Optimize(g))
		assert.Equal(t, 5, g.NumNodes())
	})

	t.Run("over budget", func(t *testing.T) {
		g := build(t)
		opt, err := New(Config{WaveSize: 1, Level: LevelHeuristics}, catalog, memest.Static{graphtest.GPU0: 2 * gib})
		require.NoError(t, err)
		require.NoError(t, opt.Optimize(g))
		swapOuts, swapIns := countSwapNodes(g)
		assert.Equal(t, 1, swapOuts)
		assert.Equal(t, 1, swapIns)
	})

	t.Run("oracle failure skips quietly", func(t *testing.T) {
		g := build(t)
		opt, err := New(Config{WaveSize: 1, Level: LevelHeuristics}, catalog, memest.Static{})
		require.NoError(t, err)
		require.NoError(t, opt.Optimize(g))
		assert.Equal(t, 5, g.NumNodes())
	})

	t.Run("manual ignores budget", func(t *testing.T) {
		g := build(t)
		opt, err := New(Config{WaveSize: 1, Level: LevelManual}, catalog, memest.Static{graphtest.GPU0: gib / 2})
		require.NoError(t, err)
		require.NoError(t, opt.Optimize(g))
		swapOuts, _ := countSwapNodes(g)
		assert.Equal(t, 1, swapOuts)
	})
}

// An input graph that already uses a reserved generated name fails the pass
// instead of silently merging nodes.
func TestOptimizeRejectsReservedNames(t *testing.T) {
	g := graph.New()
	graphtest.Chain(t, g, graphtest.GPU0, "a", "b", "c", "d")
	graphtest.AddOp(t, g, "e", "Add", graphtest.GPU0, "d", "a")
	graphtest.Chain(t, g, graphtest.GPU0, "swap_out_a_0")
	err := manualOptimizer(t, 1).Optimize(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "swap_out_a_0")
}
