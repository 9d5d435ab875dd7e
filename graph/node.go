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
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Node is one unit of computation in a Graph.
//
// Inputs is the ordered list of input references. A data reference has the
// form "producer" (output port 0) or "producer:port"; a control reference has
// the form "^producer". Data references come first, control references last.
//
// Priority is the node's partition id ("wave") assigned by a scheduler pass:
// 0 means unassigned, scheduled nodes carry values >= 1.
type Node struct {
	Name     string
	Op       string
	Device   string
	Inputs   []string
	Priority int

	attrs map[string]*AttrValue
}

// NewNode returns a Node with the given identity and no inputs or attributes.
func NewNode(name, op, device string) *Node {
	return &Node{Name: name, Op: op, Device: device}
}

// AddInput appends a data input reference "producer:port" ("producer" when
// port is 0, following the canonical short form).
func (n *Node) AddInput(producer string, port int) *Node {
	n.Inputs = append(n.Inputs, FormatInputRef(producer, port))
	return n
}

// AddControlInput appends a control input reference "^producer".
func (n *Node) AddControlInput(producer string) *Node {
	n.Inputs = append(n.Inputs, "^"+producer)
	return n
}

// NumDataInputs returns how many of the node's inputs are data references.
func (n *Node) NumDataInputs() int {
	count := 0
	for _, in := range n.Inputs {
		if !IsControlInput(in) {
			count++
		}
	}
	return count
}

// DataInput returns the data input reference at the given data-input port.
func (n *Node) DataInput(port int) (string, error) {
	idx, err := n.dataInputIndex(port)
	if err != nil {
		return "", err
	}
	return n.Inputs[idx], nil
}

// SetDataInput replaces the data input at the given data-input port with a
// reference to the given producer node (output port 0).
func (n *Node) SetDataInput(port int, producer string) error {
	idx, err := n.dataInputIndex(port)
	if err != nil {
		return err
	}
	n.Inputs[idx] = producer
	return nil
}

func (n *Node) dataInputIndex(port int) (int, error) {
	if port < 0 {
		return -1, errors.Errorf("node %q: negative input port %d", n.Name, port)
	}
	seen := 0
	for idx, in := range n.Inputs {
		if IsControlInput(in) {
			continue
		}
		if seen == port {
			return idx, nil
		}
		seen++
	}
	return -1, errors.Errorf("node %q has %d data input(s), no port %d", n.Name, seen, port)
}

func (n *Node) String() string {
	return fmt.Sprintf("%s[op=%s, device=%q, priority=%d, inputs=%v]",
		n.Name, n.Op, n.Device, n.Priority, n.Inputs)
}

// IsControlInput reports whether the input reference is a control edge.
func IsControlInput(ref string) bool {
	return strings.HasPrefix(ref, "^")
}

// FormatInputRef builds the canonical data input reference for an output
// port: "producer" for port 0, "producer:port" otherwise.
func FormatInputRef(producer string, port int) string {
	if port == 0 {
		return producer
	}
	return producer + ":" + strconv.Itoa(port)
}

// ParseInputRef splits an input reference into producer name, output port and
// whether it is a control edge. Control references have no port; their port is
// reported as ControlSlot.
func ParseInputRef(ref string) (producer string, port int, control bool, err error) {
	if ref == "" {
		return "", 0, false, errors.New("empty input reference")
	}
	if strings.HasPrefix(ref, "^") {
		name := ref[1:]
		if name == "" {
			return "", 0, false, errors.Errorf("malformed control input %q", ref)
		}
		return name, ControlSlot, true, nil
	}
	colon := strings.LastIndexByte(ref, ':')
	if colon < 0 {
		return ref, 0, false, nil
	}
	port, err = strconv.Atoi(ref[colon+1:])
	if err != nil || port < 0 {
		return "", 0, false, errors.Errorf("malformed input reference %q", ref)
	}
	return ref[:colon], port, false, nil
}
