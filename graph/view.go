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

package graph

import (
	"cmp"
	"slices"

	"github.com/pkg/errors"
)

// ControlSlot is the pseudo port id used for control edges, which carry no
// tensor and therefore have no real port.
const ControlSlot = -1

// OutputPort identifies one produced tensor: the producing node and the
// output port it is yielded on.
type OutputPort struct {
	Node *Node
	Port int
}

// InputPort identifies one consumer slot: the consuming node and the data
// input position being fed.
type InputPort struct {
	Node *Node
	Port int
}

// Edge is a directed producer-output-port to consumer-input-port connection.
// Control edges use ControlSlot on both ports.
type Edge struct {
	Src OutputPort
	Dst InputPort
}

// View is a read-only indexed adapter over a Graph, giving O(1) access to
// nodes by index and to fan-in/fan-out adjacency. It is built once and
// invalidated by any structural mutation of the underlying graph: rebuild it
// after rewriting.
//
// Ordering contract: fan-ins preserve the node's input-list order; fan-outs
// and fan-out edges are sorted by (consumer node index, input port).
type View struct {
	g     *Graph
	index map[string]int

	dataFanins  [][]int // upstream node indices, in input order
	dataFanouts [][]int // downstream node indices, sorted, deduplicated
	ctrlFanins  [][]int
	ctrlFanouts [][]int

	dataEdges [][]Edge // outgoing data edges per producer
	ctrlEdges [][]Edge // outgoing control edges per producer
}

// NewView indexes the graph. It fails if any node references an input that
// does not exist in the graph or is malformed.
func NewView(g *Graph) (*View, error) {
	n := g.NumNodes()
	v := &View{
		g:           g,
		index:       make(map[string]int, n),
		dataFanins:  make([][]int, n),
		dataFanouts: make([][]int, n),
		ctrlFanins:  make([][]int, n),
		ctrlFanouts: make([][]int, n),
		dataEdges:   make([][]Edge, n),
		ctrlEdges:   make([][]Edge, n),
	}
	for i := 0; i < n; i++ {
		v.index[g.Node(i).Name] = i
	}
	for i := 0; i < n; i++ {
		node := g.Node(i)
		dataPort := 0
		for _, ref := range node.Inputs {
			producer, srcPort, control, err := ParseInputRef(ref)
			if err != nil {
				return nil, errors.Wrapf(err, "node %q", node.Name)
			}
			srcIdx, found := v.index[producer]
			if !found {
				return nil, errors.Errorf("node %q references unknown input node %q", node.Name, producer)
			}
			src := g.Node(srcIdx)
			if control {
				v.ctrlFanins[i] = append(v.ctrlFanins[i], srcIdx)
				v.ctrlFanouts[srcIdx] = append(v.ctrlFanouts[srcIdx], i)
				v.ctrlEdges[srcIdx] = append(v.ctrlEdges[srcIdx], Edge{
					Src: OutputPort{Node: src, Port: ControlSlot},
					Dst: InputPort{Node: node, Port: ControlSlot},
				})
				continue
			}
			v.dataFanins[i] = append(v.dataFanins[i], srcIdx)
			v.dataEdges[srcIdx] = append(v.dataEdges[srcIdx], Edge{
				Src: OutputPort{Node: src, Port: srcPort},
				Dst: InputPort{Node: node, Port: dataPort},
			})
			dataPort++
		}
	}
	for i := 0; i < n; i++ {
		edgeOrder := func(a, b Edge) int {
			if c := cmp.Compare(v.index[a.Dst.Node.Name], v.index[b.Dst.Node.Name]); c != 0 {
				return c
			}
			return cmp.Compare(a.Dst.Port, b.Dst.Port)
		}
		slices.SortFunc(v.dataEdges[i], edgeOrder)
		slices.SortFunc(v.ctrlEdges[i], edgeOrder)
		for _, e := range v.dataEdges[i] {
			v.dataFanouts[i] = append(v.dataFanouts[i], v.index[e.Dst.Node.Name])
		}
		slices.Sort(v.dataFanouts[i])
		v.dataFanouts[i] = slices.Compact(v.dataFanouts[i])
		slices.Sort(v.ctrlFanouts[i])
		v.ctrlFanouts[i] = slices.Compact(v.ctrlFanouts[i])
	}
	return v, nil
}

// NumNodes returns the number of indexed nodes.
func (v *View) NumNodes() int { return v.g.NumNodes() }

// Node returns the i-th node of the underlying graph.
func (v *View) Node(i int) *Node { return v.g.Node(i) }

// Index returns the index of the named node.
func (v *View) Index(name string) (int, bool) {
	i, found := v.index[name]
	return i, found
}

// Inputs returns the upstream node indices of node i over data edges only,
// in the node's input order (one entry per data input, repeats included).
func (v *View) Inputs(i int) []int { return v.dataFanins[i] }

// Outputs returns the downstream node indices of node i over data edges
// only, sorted and deduplicated.
func (v *View) Outputs(i int) []int { return v.dataFanouts[i] }

// FanoutEdges returns the edges leaving any output port of the node, sorted
// by (consumer node index, input port). Control edges are appended after the
// data edges when includeControl is set.
func (v *View) FanoutEdges(n *Node, includeControl bool) []Edge {
	i, found := v.index[n.Name]
	if !found {
		return nil
	}
	edges := slices.Clone(v.dataEdges[i])
	if includeControl {
		edges = append(edges, v.ctrlEdges[i]...)
	}
	return edges
}

// Fanins returns the distinct upstream nodes of n, data edges first in input
// order, then control edges when includeControl is set.
func (v *View) Fanins(n *Node, includeControl bool) []*Node {
	i, found := v.index[n.Name]
	if !found {
		return nil
	}
	indices := slices.Clone(v.dataFanins[i])
	if includeControl {
		indices = append(indices, v.ctrlFanins[i]...)
	}
	return v.nodesFor(indices)
}

// Fanouts returns the distinct downstream nodes of n, data consumers first,
// then control dependents when includeControl is set.
func (v *View) Fanouts(n *Node, includeControl bool) []*Node {
	i, found := v.index[n.Name]
	if !found {
		return nil
	}
	indices := slices.Clone(v.dataFanouts[i])
	if includeControl {
		indices = append(indices, v.ctrlFanouts[i]...)
	}
	return v.nodesFor(indices)
}

// RegularFanin resolves the producer output port feeding the given data
// input port.
func (v *View) RegularFanin(in InputPort) (OutputPort, bool) {
	ref, err := in.Node.DataInput(in.Port)
	if err != nil {
		return OutputPort{}, false
	}
	producer, srcPort, control, err := ParseInputRef(ref)
	if err != nil || control {
		return OutputPort{}, false
	}
	i, found := v.index[producer]
	if !found {
		return OutputPort{}, false
	}
	return OutputPort{Node: v.g.Node(i), Port: srcPort}, true
}

func (v *View) nodesFor(indices []int) []*Node {
	seen := make(map[int]bool, len(indices))
	nodes := make([]*Node, 0, len(indices))
	for _, i := range indices {
		if seen[i] {
			continue
		}
		seen[i] = true
		nodes = append(nodes, v.g.Node(i))
	}
	return nodes
}
