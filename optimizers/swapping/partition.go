package swapping

import (
	"sort"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/memflow/memswap/devices"
	"github.com/memflow/memswap/graph"
	"github.com/memflow/memswap/ops"
)

// Partitions maps a wave id (a strictly positive "partition id") to the
// nodes assigned to that wave, in assignment order.
type Partitions map[int][]*graph.Node

// Waves returns the assigned wave ids in increasing order.
func (p Partitions) Waves() []int {
	waves := make([]int, 0, len(p))
	for w := range p {
		waves = append(waves, w)
	}
	sort.Ints(waves)
	return waves
}

// Partition runs a per-device capacity-bounded topological walk over the
// graph and stamps every reachable node's Priority with the wave it would be
// dispatched in: an integer proxy for execution time that is comparable
// across devices.
//
// Each device owns a LIFO stack of ready nodes (all data inputs satisfied)
// and may place at most waveSize nodes into the current wave; when any
// device fills its quota the wave closes globally and every device starts
// counting in the next one. Merge nodes are pre-credited with their
// NextIteration fan-ins so loop back-edges do not deadlock the walk: a Merge
// becomes ready on its forward inputs alone.
//
// Nodes left with Priority == 0 were unreachable (for example members of a
// cycle with no recognized loop structure); downstream passes must skip
// them.
func Partition(view *graph.View, catalog devices.Catalog, waveSize int) (Partitions, error) {
	if waveSize <= 0 {
		return nil, errors.Errorf("wave size must be positive, got %d", waveSize)
	}

	// One scheduling lane per device. Catalog devices come first in sorted
	// order; devices that appear only on nodes still get a lane after them.
	laneOf := make(map[string]int)
	for _, name := range catalog.Names() {
		laneOf[name] = len(laneOf)
	}
	var extra []string
	seen := make(map[string]bool)
	for i := 0; i < view.NumNodes(); i++ {
		device := view.Node(i).Device
		if _, found := laneOf[device]; !found && !seen[device] {
			seen[device] = true
			extra = append(extra, device)
		}
	}
	sort.Strings(extra)
	for _, device := range extra {
		laneOf[device] = len(laneOf)
	}

	numLanes := len(laneOf)
	ready := make([][]int, numLanes)
	waveCount := make([]int, numLanes)
	numReadyInputs := make([]int, view.NumNodes())

	push := func(i int) {
		lane := laneOf[view.Node(i).Device]
		ready[lane] = append(ready[lane], i)
	}

	for i := 0; i < view.NumNodes(); i++ {
		node := view.Node(i)
		node.Priority = 0
		if len(view.Inputs(i)) == 0 {
			push(i)
		}
		if ops.IsMerge(node) {
			for _, input := range view.Inputs(i) {
				if ops.IsNextIteration(view.Node(input)) {
					numReadyInputs[i]++
				}
			}
		}
	}

	partitions := make(Partitions)
	wave := 1
	for {
		progressed := false
		for lane := 0; lane < numLanes; lane++ {
			if waveCount[lane] == waveSize {
				// Global wave boundary: one full device advances every
				// device's clock.
				wave++
				for l := range waveCount {
					waveCount[l] = 0
				}
			}
			stack := ready[lane]
			if len(stack) == 0 {
				continue
			}
			i := stack[len(stack)-1]
			ready[lane] = stack[:len(stack)-1]
			progressed = true

			node := view.Node(i)
			node.Priority = wave
			partitions[wave] = append(partitions[wave], node)
			waveCount[lane]++

			for _, fanout := range view.Outputs(i) {
				numReadyInputs[fanout]++
				if numReadyInputs[fanout] == len(view.Inputs(fanout)) {
					push(fanout)
				}
			}
		}
		if !progressed {
			break
		}
	}

	if klog.V(2).Enabled() {
		for i := 0; i < view.NumNodes(); i++ {
			if node := view.Node(i); node.Priority == 0 {
				klog.V(2).Infof("node %q (op %s) is unreachable, left unscheduled", node.Name, node.Op)
			}
		}
	}
	return partitions, nil
}
