package swapping

import (
	"fmt"
	"sort"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/memflow/memswap/devices"
	"github.com/memflow/memswap/graph"
	"github.com/memflow/memswap/ops"
)

// swapDistanceWaves is the minimum fan-out distance, in waves, beyond which
// a consumer is routed through host memory: the producer and consumer must
// be separated by more than this many waves to amortize the copy cost.
const swapDistanceWaves = 2

// portUses collects the consumer slots of one producer output port that lie
// beyond the swap distance.
type portUses struct {
	port int
	uses []graph.InputPort
}

// swapCandidate is one producer with at least one swappable output port.
type swapCandidate struct {
	producer *graph.Node
	ports    []portUses
}

// planSwaps walks every scheduled node placed on an accelerator and groups
// its distant same-device consumers by output port, keeping only ports whose
// tensor is actually swappable. Unscheduled nodes (priority 0) never appear:
// the walk is over the partitions, not the graph.
func planSwaps(view *graph.View, partitions Partitions) []swapCandidate {
	var plan []swapCandidate
	for _, wave := range partitions.Waves() {
		for _, node := range partitions[wave] {
			if ops.IsSwap(node) {
				continue
			}
			parsed, err := devices.Parse(node.Device)
			if err != nil || !parsed.IsType("GPU") {
				continue
			}

			byPort := make(map[int][]graph.InputPort)
			for _, edge := range view.FanoutEdges(node, false) {
				consumer := edge.Dst.Node
				if consumer.Device != node.Device {
					// Cross-device edges already go through the framework's
					// own transfer machinery.
					continue
				}
				if consumer.Priority-wave <= swapDistanceWaves {
					continue
				}
				if !isSwappableInput(edge.Dst) {
					continue
				}
				byPort[edge.Src.Port] = append(byPort[edge.Src.Port], edge.Dst)
			}
			if len(byPort) == 0 {
				continue
			}

			candidate := swapCandidate{producer: node}
			ports := make([]int, 0, len(byPort))
			for port := range byPort {
				ports = append(ports, port)
			}
			sort.Ints(ports)
			for _, port := range ports {
				if !isSwappableOutput(view, graph.OutputPort{Node: node, Port: port}) {
					klog.V(2).Infof("not swapping %s:%d, output is not swappable", node.Name, port)
					continue
				}
				candidate.ports = append(candidate.ports, portUses{port: port, uses: byPort[port]})
			}
			if len(candidate.ports) > 0 {
				plan = append(plan, candidate)
			}
		}
	}
	return plan
}

// addSwapNodes rewires one producer's planned output ports through a
// swap-out/swap-in pair per port.
//
// Per port it inserts a single _CopyFromGpuToHost fed by the producer and
// colocated with it, then walks the consumers in priority order: consumers
// within one wave of the previous one share its swap-in, a larger gap gets a
// fresh _CopyFromHostToGpu scheduled one wave before its consumer and
// control-chained behind the previous consumer so transfers issue one at a
// time. Invariant failures here are planner bugs and panic; the driver
// converts them into an error.
func addSwapNodes(g *graph.Graph, candidate swapCandidate) {
	producer := candidate.producer
	sig, err := ops.Lookup(producer.Op)
	if err != nil {
		exceptions.Panicf("swapping: planned node %q has an unregistered op: %v", producer.Name, err)
	}

	for _, pu := range candidate.ports {
		outType, err := ops.OutputType(producer, sig, pu.port)
		if err != nil {
			exceptions.Panicf("swapping: cannot resolve type of planned output %s:%d: %v",
				producer.Name, pu.port, err)
		}
		if outType.IsRef() {
			exceptions.Panicf("swapping: planned output %s:%d resolved to reference type %s",
				producer.Name, pu.port, outType)
		}

		tensor := fmt.Sprintf("%s_%d", producer.Name, pu.port)
		colocation := "loc@" + tensor

		swapOut := graph.NewNode("swap_out_"+tensor, ops.CopyFromGpuToHost, producer.Device)
		swapOut.Priority = producer.Priority
		swapOut.AddInput(producer.Name, pu.port)
		swapOut.AddClass(colocation)
		swapOut.SetTypeAttr(graph.TypeAttrT, outType)
		mustAddNode(g, swapOut)
		producer.AddClass(colocation)

		uses := pu.uses
		sort.SliceStable(uses, func(a, b int) bool {
			return uses[a].Node.Priority < uses[b].Node.Priority
		})

		var prevUse graph.InputPort
		var prevSwapIn *graph.Node
		for _, use := range uses {
			var swapIn *graph.Node
			if prevSwapIn == nil || prevUse.Node.Priority+1 < use.Node.Priority {
				name := fmt.Sprintf("swap_in_%s_%s_%d", tensor, use.Node.Name, use.Port)
				swapIn = graph.NewNode(name, ops.CopyFromHostToGpu, producer.Device)
				swapIn.Priority = max(use.Node.Priority-1, 0)
				swapIn.AddInput(swapOut.Name, 0)
				if prevSwapIn != nil {
					swapIn.AddControlInput(prevUse.Node.Name)
				}
				swapIn.AddClass(colocation)
				swapIn.SetTypeAttr(graph.TypeAttrT, outType)
				mustAddNode(g, swapIn)
			} else {
				if prevUse.Node.Priority != use.Node.Priority &&
					prevUse.Node.Priority+1 != use.Node.Priority {
					exceptions.Panicf(
						"swapping: consumers of %s:%d are out of order: %q (wave %d) followed by %q (wave %d)",
						producer.Name, pu.port, prevUse.Node.Name, prevUse.Node.Priority,
						use.Node.Name, use.Node.Priority)
				}
				swapIn = prevSwapIn
			}
			if err := use.Node.SetDataInput(use.Port, swapIn.Name); err != nil {
				exceptions.Panicf("swapping: rewiring %q input %d: %v", use.Node.Name, use.Port, err)
			}
			prevUse = use
			prevSwapIn = swapIn
		}
	}
}

func mustAddNode(g *graph.Graph, n *graph.Node) {
	if err := g.AddNode(n); err != nil {
		exceptions.Panicf("swapping: inserting %q: %v (does the input graph use reserved swap node names?)",
			n.Name, err)
	}
}
