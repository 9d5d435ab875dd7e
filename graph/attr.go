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

// ClassAttr is the attribute carrying colocation tags ("loc@..."), and
// TypeAttrT the conventional name of the element-type attribute.
const (
	ClassAttr = "_class"
	TypeAttrT = "T"
)

// AttrKind discriminates the value held by an AttrValue.
type AttrKind string

const (
	AttrKindString  AttrKind = "string"
	AttrKindInt     AttrKind = "int"
	AttrKindBool    AttrKind = "bool"
	AttrKindFloat   AttrKind = "float"
	AttrKindType    AttrKind = "type"
	AttrKindStrings AttrKind = "strings"
)

// AttrValue is one typed node attribute. Only the field selected by Kind is
// meaningful.
type AttrValue struct {
	Kind    AttrKind `json:"kind"`
	S       string   `json:"s,omitempty"`
	I       int64    `json:"i,omitempty"`
	B       bool     `json:"b,omitempty"`
	F       float64  `json:"f,omitempty"`
	Type    DataType `json:"type,omitzero"`
	Strings []string `json:"strings,omitempty"`
}

// Attr returns the node's attribute with the given name, or nil.
func (n *Node) Attr(name string) *AttrValue {
	return n.attrs[name]
}

// SetAttr sets (or replaces) an attribute.
func (n *Node) SetAttr(name string, value *AttrValue) *Node {
	if n.attrs == nil {
		n.attrs = make(map[string]*AttrValue)
	}
	n.attrs[name] = value
	return n
}

// SetTypeAttr sets a DataType-valued attribute, conventionally "T" or "dtype".
func (n *Node) SetTypeAttr(name string, dtype DataType) *Node {
	return n.SetAttr(name, &AttrValue{Kind: AttrKindType, Type: dtype})
}

// TypeAttr resolves a DataType-valued attribute.
func (n *Node) TypeAttr(name string) (DataType, bool) {
	attr := n.attrs[name]
	if attr == nil || attr.Kind != AttrKindType {
		return DataType{}, false
	}
	return attr.Type, true
}

// AddClass appends a colocation tag to the node's "_class" attribute list.
func (n *Node) AddClass(tag string) *Node {
	attr := n.attrs[ClassAttr]
	if attr == nil || attr.Kind != AttrKindStrings {
		attr = &AttrValue{Kind: AttrKindStrings}
		n.SetAttr(ClassAttr, attr)
	}
	attr.Strings = append(attr.Strings, tag)
	return n
}

// Classes returns the node's colocation tags, nil when it has none.
func (n *Node) Classes() []string {
	attr := n.attrs[ClassAttr]
	if attr == nil || attr.Kind != AttrKindStrings {
		return nil
	}
	return attr.Strings
}
