// Package ops is the op registry: it maps op kind strings to signatures and
// answers the type questions the optimizer passes ask, like "what DataType
// does output port 2 of this node carry?" or "is this node persistent?".
//
// The registry is populated at init time with the builtin ops (see
// builtin.go) and is read-only afterwards, so lookups are safe for
// concurrent use.
package ops

import (
	"sort"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/memflow/memswap/graph"
)

// ArgDef describes one input or output slot of an op signature.
//
// The slot's DataType is either fixed (Type) or resolved from a node
// attribute (TypeAttr, e.g. "T" or "dtype"). Ref marks slots that carry
// reference types. A Variadic slot absorbs this and all following ports,
// each with the same type (Merge's data inputs, for example).
type ArgDef struct {
	Name     string
	Type     dtypes.DType
	TypeAttr string
	Ref      bool
	Variadic bool
}

// Signature is the registered definition of an op kind.
type Signature struct {
	Name    string
	Inputs  []ArgDef
	Outputs []ArgDef

	// Persistent marks ops whose output tensors live for the whole
	// session (variables, constants).
	Persistent bool
}

var registry = make(map[string]*Signature)

// Register adds an op signature to the registry. It must be called during
// package initialization, before any lookups. Registering the same op kind
// twice panics; it indicates two packages fighting over an op name.
func Register(sig *Signature) {
	if _, found := registry[sig.Name]; found {
		panic(errors.Errorf("ops: duplicate registration of op %q", sig.Name))
	}
	registry[sig.Name] = sig
}

// Lookup returns the signature registered for the op kind.
func Lookup(op string) (*Signature, error) {
	sig, found := registry[op]
	if !found {
		return nil, errors.Errorf("op %q is not registered", op)
	}
	return sig, nil
}

// Registered returns the sorted list of registered op kinds.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OutputType resolves the DataType yielded at the node's output port.
func OutputType(n *graph.Node, sig *Signature, port int) (graph.DataType, error) {
	return resolveArg(n, sig, sig.Outputs, port, "output")
}

// InputType resolves the DataType expected at the node's data input port.
func InputType(n *graph.Node, sig *Signature, port int) (graph.DataType, error) {
	return resolveArg(n, sig, sig.Inputs, port, "input")
}

func resolveArg(n *graph.Node, sig *Signature, args []ArgDef, port int, what string) (graph.DataType, error) {
	if port < 0 {
		return graph.DataType{}, errors.Errorf("op %q: negative %s port %d", sig.Name, what, port)
	}
	var arg *ArgDef
	for i := range args {
		if i == port || (args[i].Variadic && i <= port) {
			arg = &args[i]
			break
		}
	}
	if arg == nil {
		return graph.DataType{}, errors.Errorf("op %q has %d %s(s), no port %d", sig.Name, len(args), what, port)
	}
	elem := arg.Type
	if arg.TypeAttr != "" {
		attr, found := n.TypeAttr(arg.TypeAttr)
		if !found {
			return graph.DataType{}, errors.Errorf(
				"node %q (op %q) is missing type attribute %q for %s port %d",
				n.Name, sig.Name, arg.TypeAttr, what, port)
		}
		elem = attr.Elem
	}
	if elem == dtypes.InvalidDType {
		return graph.DataType{}, errors.Errorf("op %q: %s port %d has no resolvable type", sig.Name, what, port)
	}
	if arg.Ref {
		return graph.MakeRefType(elem), nil
	}
	return graph.MakeDataType(elem), nil
}

// IsPersistent reports whether the node's tensors live for the session.
// Unknown ops are not persistent.
func IsPersistent(n *graph.Node) bool {
	sig, found := registry[n.Op]
	return found && sig.Persistent
}

// IsMerge reports whether the node is a control-flow Merge.
func IsMerge(n *graph.Node) bool {
	return n.Op == Merge || n.Op == RefMerge
}

// IsNextIteration reports whether the node is a control-flow NextIteration
// (the source of a loop back-edge).
func IsNextIteration(n *graph.Node) bool {
	return n.Op == NextIteration || n.Op == RefNextIteration
}

// IsSwap reports whether the node is one of the host-swap transfer ops this
// repository inserts.
func IsSwap(n *graph.Node) bool {
	return n.Op == CopyFromGpuToHost || n.Op == CopyFromHostToGpu
}
