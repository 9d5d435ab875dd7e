package ops

import "github.com/gomlx/gopjrt/dtypes"

// Op kinds the optimizer passes care about by name.
const (
	Const            = "Const"
	Variable         = "Variable"
	VariableV2       = "VariableV2"
	Placeholder      = "Placeholder"
	Assign           = "Assign"
	Identity         = "Identity"
	Reshape          = "Reshape"
	NoOp             = "NoOp"
	Merge            = "Merge"
	RefMerge         = "RefMerge"
	NextIteration    = "NextIteration"
	RefNextIteration = "RefNextIteration"
	Enter            = "Enter"
	Exit             = "Exit"
	Switch           = "Switch"

	// CopyFromGpuToHost and CopyFromHostToGpu are the swap transfer ops
	// inserted by the swapping optimizer. The runtime must recognize them
	// as device-to-host and host-to-device copy kernels; both carry their
	// tensor type in attribute "T".
	CopyFromGpuToHost = "_CopyFromGpuToHost"
	CopyFromHostToGpu = "_CopyFromHostToGpu"
)

func typed(name string) ArgDef  { return ArgDef{Name: name, TypeAttr: "T"} }
func ref(arg ArgDef) ArgDef     { arg.Ref = true; return arg }
func many(arg ArgDef) ArgDef    { arg.Variadic = true; return arg }
func dtyped(name string) ArgDef { return ArgDef{Name: name, TypeAttr: "dtype"} }

func init() {
	for _, sig := range []*Signature{
		{Name: Const, Outputs: []ArgDef{dtyped("output")}, Persistent: true},
		{Name: Variable, Outputs: []ArgDef{ref(dtyped("ref"))}, Persistent: true},
		{Name: VariableV2, Outputs: []ArgDef{ref(dtyped("ref"))}, Persistent: true},
		{Name: Placeholder, Outputs: []ArgDef{dtyped("output")}},
		{Name: Assign,
			Inputs:  []ArgDef{ref(typed("ref")), typed("value")},
			Outputs: []ArgDef{ref(typed("output_ref"))}},
		{Name: Identity, Inputs: []ArgDef{typed("input")}, Outputs: []ArgDef{typed("output")}},
		{Name: Reshape,
			Inputs:  []ArgDef{typed("tensor"), {Name: "shape", Type: dtypes.Int32}},
			Outputs: []ArgDef{typed("output")}},
		{Name: NoOp},
		{Name: Merge,
			Inputs:  []ArgDef{many(typed("inputs"))},
			Outputs: []ArgDef{typed("output"), {Name: "value_index", Type: dtypes.Int32}}},
		{Name: RefMerge,
			Inputs:  []ArgDef{many(ref(typed("inputs")))},
			Outputs: []ArgDef{ref(typed("output")), {Name: "value_index", Type: dtypes.Int32}}},
		{Name: NextIteration, Inputs: []ArgDef{typed("data")}, Outputs: []ArgDef{typed("output")}},
		{Name: RefNextIteration, Inputs: []ArgDef{ref(typed("data"))}, Outputs: []ArgDef{ref(typed("output"))}},
		{Name: Enter, Inputs: []ArgDef{typed("data")}, Outputs: []ArgDef{typed("output")}},
		{Name: Exit, Inputs: []ArgDef{typed("data")}, Outputs: []ArgDef{typed("output")}},
		{Name: Switch,
			Inputs:  []ArgDef{typed("data"), {Name: "pred", Type: dtypes.Bool}},
			Outputs: []ArgDef{typed("output_false"), typed("output_true")}},
		{Name: CopyFromGpuToHost, Inputs: []ArgDef{typed("input")}, Outputs: []ArgDef{typed("output")}},
		{Name: CopyFromHostToGpu, Inputs: []ArgDef{typed("input")}, Outputs: []ArgDef{typed("output")}},

		// A minimal arithmetic vocabulary so realistic graphs resolve.
		{Name: "Add", Inputs: []ArgDef{typed("x"), typed("y")}, Outputs: []ArgDef{typed("z")}},
		{Name: "Sub", Inputs: []ArgDef{typed("x"), typed("y")}, Outputs: []ArgDef{typed("z")}},
		{Name: "Mul", Inputs: []ArgDef{typed("x"), typed("y")}, Outputs: []ArgDef{typed("z")}},
		{Name: "MatMul", Inputs: []ArgDef{typed("a"), typed("b")}, Outputs: []ArgDef{typed("product")}},
		{Name: "Relu", Inputs: []ArgDef{typed("features")}, Outputs: []ArgDef{typed("activations")}},
		{Name: "Neg", Inputs: []ArgDef{typed("x")}, Outputs: []ArgDef{typed("y")}},
	} {
		Register(sig)
	}
}
