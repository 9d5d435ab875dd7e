/*
 *	Copyright 2026 The MemSwap Authors
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package graphtest holds test utilities for packages that operate on graphs:
// canonical device names, a catalog, and terse node builders.
package graphtest

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"

	"github.com/memflow/memswap/devices"
	"github.com/memflow/memswap/graph"
)

// Canonical device names used across tests.
const (
	GPU0 = "/job:localhost/replica:0/task:0/device:GPU:0"
	GPU1 = "/job:localhost/replica:0/task:0/device:GPU:1"
	CPU0 = "/job:localhost/replica:0/task:0/device:CPU:0"
)

// Catalog returns a catalog with the canonical devices: two 1 GiB GPUs and a
// CPU with unknown memory.
func Catalog() devices.Catalog {
	const gib = 1 << 30
	return devices.Catalog{
		GPU0: {Type: "GPU", MemorySize: gib},
		GPU1: {Type: "GPU", MemorySize: gib},
		CPU0: {Type: "CPU"},
	}
}

// AddOp adds a float32-typed node to the graph. Inputs are raw references
// ("producer", "producer:1", "^producer").
func AddOp(t *testing.T, g *graph.Graph, name, op, device string, inputs ...string) *graph.Node {
	node := graph.NewNode(name, op, device)
	node.Inputs = inputs
	node.SetTypeAttr(graph.TypeAttrT, graph.MakeDataType(dtypes.Float32))
	require.NoError(t, g.AddNode(node))
	return node
}

// AddConst adds a Const node carrying an integer payload in its "value"
// attribute, for interpreter-based tests.
func AddConst(t *testing.T, g *graph.Graph, name, device string, value int64) *graph.Node {
	node := graph.NewNode(name, "Const", device)
	node.SetTypeAttr("dtype", graph.MakeDataType(dtypes.Int64))
	node.SetAttr("value", &graph.AttrValue{Kind: graph.AttrKindInt, I: value})
	require.NoError(t, g.AddNode(node))
	return node
}

// Chain adds a linear chain of single-input ops on one device and returns
// the nodes. The first name becomes a Placeholder source; the rest are Relu.
func Chain(t *testing.T, g *graph.Graph, device string, names ...string) []*graph.Node {
	require.NotEmpty(t, names)
	nodes := make([]*graph.Node, 0, len(names))
	source := graph.NewNode(names[0], "Placeholder", device)
	source.SetTypeAttr("dtype", graph.MakeDataType(dtypes.Float32))
	require.NoError(t, g.AddNode(source))
	nodes = append(nodes, source)
	for _, name := range names[1:] {
		nodes = append(nodes, AddOp(t, g, name, "Relu", device, nodes[len(nodes)-1].Name))
	}
	return nodes
}

// MustView indexes the graph, failing the test on error.
func MustView(t *testing.T, g *graph.Graph) *graph.View {
	view, err := graph.NewView(g)
	require.NoError(t, err)
	return view
}
