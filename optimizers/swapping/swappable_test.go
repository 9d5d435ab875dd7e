package swapping

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memflow/memswap/graph"
	"github.com/memflow/memswap/graph/graphtest"
	"github.com/memflow/memswap/ops"
)

func addVariable(t *testing.T, g *graph.Graph, name, device string) *graph.Node {
	v := graph.NewNode(name, ops.VariableV2, device)
	v.SetTypeAttr("dtype", graph.MakeDataType(dtypes.Float32))
	require.NoError(t, g.AddNode(v))
	return v
}

func TestSwappableOutput(t *testing.T) {
	g := graph.New()
	relu := graphtest.Chain(t, g, graphtest.GPU0, "x", "relu")[1]
	v := addVariable(t, g, "var", graphtest.GPU0)
	unknown := graph.NewNode("unknown", "SomeCustomOp", graphtest.GPU0)
	require.NoError(t, g.AddNode(unknown))
	untyped := graph.NewNode("untyped", "Relu", graphtest.GPU0)
	untyped.AddInput("x", 0)
	require.NoError(t, g.AddNode(untyped))
	view := graphtest.MustView(t, g)

	assert.True(t, isSwappableOutput(view, graph.OutputPort{Node: relu, Port: 0}))
	// Persistent producers keep their memory either way.
	assert.False(t, isSwappableOutput(view, graph.OutputPort{Node: v, Port: 0}))
	// Unregistered op, unresolvable type, out-of-range port.
	assert.False(t, isSwappableOutput(view, graph.OutputPort{Node: unknown, Port: 0}))
	assert.False(t, isSwappableOutput(view, graph.OutputPort{Node: untyped, Port: 0}))
	assert.False(t, isSwappableOutput(view, graph.OutputPort{Node: relu, Port: 1}))
}

func TestSwappableOutputIdentityPassthrough(t *testing.T) {
	g := graph.New()
	addVariable(t, g, "var", graphtest.GPU0)
	identity := graphtest.AddOp(t, g, "id", ops.Identity, graphtest.GPU0, "var")
	reshapeOfID := graphtest.AddOp(t, g, "reshape", ops.Reshape, graphtest.GPU0, "id", "shape")
	shape := graph.NewNode("shape", ops.Const, graphtest.GPU0)
	shape.SetTypeAttr("dtype", graph.MakeDataType(dtypes.Int32))
	require.NoError(t, g.AddNode(shape))

	addVariable(t, g, "cpuVar", graphtest.CPU0)
	remoteIdentity := graphtest.AddOp(t, g, "remoteId", ops.Identity, graphtest.GPU0, "cpuVar")

	graphtest.Chain(t, g, graphtest.GPU0, "x", "relu")
	identityOfRelu := graphtest.AddOp(t, g, "idRelu", ops.Identity, graphtest.GPU0, "relu")

	view := graphtest.MustView(t, g)

	// Identity colocated with a persistent producer forwards persistent
	// storage: not swappable. The chained Reshape delegates all the way down.
	assert.False(t, isSwappableOutput(view, graph.OutputPort{Node: identity, Port: 0}))
	assert.False(t, isSwappableOutput(view, graph.OutputPort{Node: reshapeOfID, Port: 0}))

	// An Identity whose source lives on another device owns a fresh local
	// copy, so it is swappable regardless of the source.
	assert.True(t, isSwappableOutput(view, graph.OutputPort{Node: remoteIdentity, Port: 0}))

	// Identity of an ordinary tensor delegates and stays swappable.
	assert.True(t, isSwappableOutput(view, graph.OutputPort{Node: identityOfRelu, Port: 0}))
}

func TestSwappableInput(t *testing.T) {
	g := graph.New()
	addVariable(t, g, "var", graphtest.GPU0)
	graphtest.Chain(t, g, graphtest.GPU0, "x", "val")
	assign := graphtest.AddOp(t, g, "assign", ops.Assign, graphtest.GPU0, "var", "val")
	unknown := graph.NewNode("unknown", "SomeCustomOp", graphtest.GPU0)
	require.NoError(t, g.AddNode(unknown))

	// Assign's first input must alias the variable: not rewirable.
	assert.False(t, isSwappableInput(graph.InputPort{Node: assign, Port: 0}))
	assert.True(t, isSwappableInput(graph.InputPort{Node: assign, Port: 1}))
	assert.False(t, isSwappableInput(graph.InputPort{Node: unknown, Port: 0}))
}
