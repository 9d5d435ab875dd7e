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

// Package graph holds the mutable dataflow-graph representation that the
// optimizer passes in this repository rewrite, and a read-only indexed View
// over it.
//
// A Graph is a flat list of named Nodes whose edges are encoded in each
// node's input references (see Node.Inputs). This mirrors the serialized
// graph form of the host frameworks these passes target: ops are identified
// by string kind, devices by string name, and tensors by "producer:port"
// references.
package graph

import (
	"github.com/pkg/errors"
)

// Graph is an ordered collection of uniquely named nodes.
//
// The zero Graph is not usable; create one with New.
type Graph struct {
	nodes  []*Node
	byName map[string]*Node
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{byName: make(map[string]*Node)}
}

// AddNode appends a node to the graph. Node names must be unique: a
// duplicate (or empty) name is an error and the graph is left unchanged.
func (g *Graph) AddNode(n *Node) error {
	if n.Name == "" {
		return errors.New("cannot add a node with an empty name")
	}
	if _, found := g.byName[n.Name]; found {
		return errors.Errorf("duplicate node name %q", n.Name)
	}
	g.nodes = append(g.nodes, n)
	g.byName[n.Name] = n
	return nil
}

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Node returns the i-th node, in insertion order.
func (g *Graph) Node(i int) *Node { return g.nodes[i] }

// GetNode returns the node with the given name, or nil.
func (g *Graph) GetNode(name string) *Node { return g.byName[name] }

// Nodes returns the nodes in insertion order. The returned slice is owned by
// the Graph and must not be modified.
func (g *Graph) Nodes() []*Node { return g.nodes }
