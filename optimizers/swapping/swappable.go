package swapping

import (
	"github.com/memflow/memswap/graph"
	"github.com/memflow/memswap/ops"
)

// isSwappableOutput decides whether the tensor at the given producer output
// port may be routed through host memory.
//
// Persistent producers keep their memory for the session, so swapping them
// out frees nothing. Outputs whose type cannot be resolved are conservatively
// not swappable, and reference types never are: they alias persistent
// storage. Identity and Reshape forward their input tensor without new
// storage when colocated with it, so their swappability is the forwarded
// source's.
func isSwappableOutput(view *graph.View, out graph.OutputPort) bool {
	node := out.Node
	if ops.IsPersistent(node) {
		return false
	}
	sig, err := ops.Lookup(node.Op)
	if err != nil {
		return false
	}
	dtype, err := ops.OutputType(node, sig, out.Port)
	if err != nil {
		return false
	}
	if dtype.IsRef() {
		return false
	}
	if node.Op == ops.Identity || node.Op == ops.Reshape {
		fanin, found := view.RegularFanin(graph.InputPort{Node: node, Port: 0})
		if !found {
			return false
		}
		if fanin.Node.Device == node.Device {
			return isSwappableOutput(view, fanin)
		}
	}
	return true
}

// isSwappableInput decides whether a consumer slot may be rewired to read
// from a swap-in: reference-typed inputs cannot, their tensor must alias the
// original persistent storage.
func isSwappableInput(in graph.InputPort) bool {
	sig, err := ops.Lookup(in.Node.Op)
	if err != nil {
		return false
	}
	dtype, err := ops.InputType(in.Node, sig, in.Port)
	if err != nil {
		return false
	}
	return !dtype.IsRef()
}
