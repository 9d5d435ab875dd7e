package swapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memflow/memswap/graph"
	"github.com/memflow/memswap/graph/graphtest"
	"github.com/memflow/memswap/ops"
)

// fanOutProducer builds a producer "a" on GPU0 whose consumers sit at the
// given waves, bypassing the partitioner so tests control wave geometry
// exactly.
func fanOutProducer(t *testing.T, consumerWaves map[string]int) (*graph.Graph, *graph.View, Partitions) {
	g := graph.New()
	producer := graphtest.Chain(t, g, graphtest.GPU0, "a")[0]
	producer.Priority = 1
	partitions := Partitions{1: {producer}}
	for _, name := range []string{"b", "c", "d", "e"} {
		wave, wanted := consumerWaves[name]
		if !wanted {
			continue
		}
		consumer := graphtest.AddOp(t, g, name, "Relu", graphtest.GPU0, "a")
		consumer.Priority = wave
		partitions[wave] = append(partitions[wave], consumer)
	}
	return g, graphtest.MustView(t, g), partitions
}

func TestPlanSkipsNearbyConsumers(t *testing.T) {
	_, view, partitions := fanOutProducer(t, map[string]int{"b": 2, "c": 3, "d": 4})
	plan := planSwaps(view, partitions)
	// Only d is more than two waves away.
	require.Len(t, plan, 1)
	require.Len(t, plan[0].ports, 1)
	assert.Equal(t, 0, plan[0].ports[0].port)
	require.Len(t, plan[0].ports[0].uses, 1)
	assert.Equal(t, "d", plan[0].ports[0].uses[0].Node.Name)
}

func TestPlanSkipsCrossDeviceConsumers(t *testing.T) {
	g := graph.New()
	producer := graphtest.Chain(t, g, graphtest.GPU0, "a")[0]
	producer.Priority = 1
	remote := graphtest.AddOp(t, g, "remote", "Relu", graphtest.GPU1, "a")
	remote.Priority = 9
	view := graphtest.MustView(t, g)

	plan := planSwaps(view, Partitions{1: {producer}, 9: {remote}})
	assert.Empty(t, plan)
}

func TestPlanSkipsNonGPUAndSwapNodes(t *testing.T) {
	g := graph.New()
	cpuProducer := graphtest.Chain(t, g, graphtest.CPU0, "p")[0]
	cpuProducer.Priority = 1
	cpuConsumer := graphtest.AddOp(t, g, "q", "Relu", graphtest.CPU0, "p")
	cpuConsumer.Priority = 9

	swapIn := graphtest.AddOp(t, g, "si", ops.CopyFromHostToGpu, graphtest.GPU0)
	swapIn.Priority = 1
	gpuConsumer := graphtest.AddOp(t, g, "r", "Relu", graphtest.GPU0, "si")
	gpuConsumer.Priority = 9
	view := graphtest.MustView(t, g)

	plan := planSwaps(view, Partitions{1: {cpuProducer, swapIn}, 9: {cpuConsumer, gpuConsumer}})
	assert.Empty(t, plan)
}

// Consumers within one wave of each other share a swap-in; a larger gap gets
// a fresh swap-in serialized behind the previous consumer.
func TestRewriteSwapInReuseAndControlChain(t *testing.T) {
	g, view, partitions := fanOutProducer(t, map[string]int{"b": 4, "c": 5, "d": 9})
	plan := planSwaps(view, partitions)
	require.Len(t, plan, 1)
	addSwapNodes(g, plan[0])

	swapOut := g.GetNode("swap_out_a_0")
	require.NotNil(t, swapOut)
	assert.Equal(t, ops.CopyFromGpuToHost, swapOut.Op)
	assert.Equal(t, graphtest.GPU0, swapOut.Device)
	assert.Equal(t, 1, swapOut.Priority)
	assert.Equal(t, []string{"a"}, swapOut.Inputs)
	assert.Equal(t, []string{"loc@a_0"}, swapOut.Classes())
	assert.Equal(t, []string{"loc@a_0"}, g.GetNode("a").Classes())

	first := g.GetNode("swap_in_a_0_b_0")
	require.NotNil(t, first)
	assert.Equal(t, ops.CopyFromHostToGpu, first.Op)
	assert.Equal(t, 3, first.Priority)
	assert.Equal(t, []string{"swap_out_a_0"}, first.Inputs)
	assert.Equal(t, []string{"loc@a_0"}, first.Classes())

	second := g.GetNode("swap_in_a_0_d_0")
	require.NotNil(t, second)
	assert.Equal(t, 8, second.Priority)
	assert.Equal(t, []string{"swap_out_a_0", "^c"}, second.Inputs)

	// b and c share the first swap-in; d reads the second.
	assert.Equal(t, []string{"swap_in_a_0_b_0"}, g.GetNode("b").Inputs)
	assert.Equal(t, []string{"swap_in_a_0_b_0"}, g.GetNode("c").Inputs)
	assert.Equal(t, []string{"swap_in_a_0_d_0"}, g.GetNode("d").Inputs)

	// Exactly one swap-out and two swap-ins were added.
	assert.Equal(t, 4+3, g.NumNodes())
}

func TestRewriteSwapInPriorityFloor(t *testing.T) {
	// A consumer in wave 0 is impossible after partitioning, but a
	// manually-annotated graph can carry one: the swap-in priority is
	// clamped at 0 instead of going negative.
	g, view, partitions := fanOutProducer(t, map[string]int{"b": 9})
	plan := planSwaps(view, partitions)
	require.Len(t, plan, 1)
	plan[0].ports[0].uses[0].Node.Priority = 0
	addSwapNodes(g, plan[0])
	assert.Equal(t, 0, g.GetNode("swap_in_a_0_b_0").Priority)
}

func TestRewriteMultiplePorts(t *testing.T) {
	g := graph.New()
	graphtest.Chain(t, g, graphtest.GPU0, "x")
	graphtest.Chain(t, g, graphtest.GPU0, "pred")
	producer := graphtest.AddOp(t, g, "sw", ops.Switch, graphtest.GPU0, "x", "pred")
	producer.Priority = 1
	onFalse := graphtest.AddOp(t, g, "onFalse", "Relu", graphtest.GPU0, "sw")
	onFalse.Priority = 6
	onTrue := graphtest.AddOp(t, g, "onTrue", "Relu", graphtest.GPU0, "sw:1")
	onTrue.Priority = 6
	view := graphtest.MustView(t, g)

	plan := planSwaps(view, Partitions{1: {producer}, 6: {onFalse, onTrue}})
	require.Len(t, plan, 1)
	require.Len(t, plan[0].ports, 2)
	addSwapNodes(g, plan[0])

	out0 := g.GetNode("swap_out_sw_0")
	out1 := g.GetNode("swap_out_sw_1")
	require.NotNil(t, out0)
	require.NotNil(t, out1)
	assert.Equal(t, []string{"sw"}, out0.Inputs)
	assert.Equal(t, []string{"sw:1"}, out1.Inputs)
	assert.Equal(t, []string{"loc@sw_0", "loc@sw_1"}, producer.Classes())
	assert.Equal(t, []string{"swap_in_sw_0_onFalse_0"}, onFalse.Inputs)
	assert.Equal(t, []string{"swap_in_sw_1_onTrue_0"}, onTrue.Inputs)
}
