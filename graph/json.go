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
	"encoding/json"

	"github.com/pkg/errors"
)

type nodeJSON struct {
	Name     string                `json:"name"`
	Op       string                `json:"op"`
	Device   string                `json:"device,omitempty"`
	Inputs   []string              `json:"inputs,omitempty"`
	Priority int                   `json:"priority,omitempty"`
	Attrs    map[string]*AttrValue `json:"attrs,omitempty"`
}

type graphJSON struct {
	Nodes []nodeJSON `json:"nodes"`
}

// MarshalJSON encodes the graph as a flat node list, in insertion order.
func (g *Graph) MarshalJSON() ([]byte, error) {
	out := graphJSON{Nodes: make([]nodeJSON, 0, g.NumNodes())}
	for _, n := range g.nodes {
		out.Nodes = append(out.Nodes, nodeJSON{
			Name:     n.Name,
			Op:       n.Op,
			Device:   n.Device,
			Inputs:   n.Inputs,
			Priority: n.Priority,
			Attrs:    n.attrs,
		})
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a node list produced by MarshalJSON. Duplicate node
// names are an error.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var in graphJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "decoding graph")
	}
	decoded := New()
	for _, jn := range in.Nodes {
		node := &Node{
			Name:     jn.Name,
			Op:       jn.Op,
			Device:   jn.Device,
			Inputs:   jn.Inputs,
			Priority: jn.Priority,
			attrs:    jn.Attrs,
		}
		if err := decoded.AddNode(node); err != nil {
			return err
		}
	}
	*g = *decoded
	return nil
}
