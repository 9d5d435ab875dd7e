// Package swapping implements a graph-rewriting pass that reduces peak
// accelerator memory by spilling long-lived intermediate tensors to host
// memory and reloading them shortly before use.
//
// The pass first assigns every node a "wave": its ordinal batch in a
// per-device capacity-bounded topological schedule, a coarse proxy for
// execution time (see Partition). It then finds producer output ports whose
// same-device consumers run more than two waves later and reroutes those
// consumers through a _CopyFromGpuToHost / _CopyFromHostToGpu pair, freeing
// the device buffer in between. Swap-ins for consecutive waves are shared,
// and distinct swap-ins are serialized behind the previous consumer with a
// control edge so reloads do not all issue at once.
package swapping

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/memflow/memswap/devices"
	"github.com/memflow/memswap/graph"
	"github.com/memflow/memswap/memest"
)

// Level selects how eagerly the pass runs.
type Level int

const (
	// LevelOff disables the pass entirely.
	LevelOff Level = iota
	// LevelDefault and LevelHeuristics swap only when the memory oracle
	// reports a device over budget.
	LevelDefault
	LevelHeuristics
	// LevelManual swaps unconditionally.
	LevelManual
)

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelDefault:
		return "default"
	case LevelHeuristics:
		return "heuristics"
	case LevelManual:
		return "manual"
	}
	return "invalid"
}

// ParseLevel converts the String form back to a Level.
func ParseLevel(s string) (Level, error) {
	for _, l := range []Level{LevelOff, LevelDefault, LevelHeuristics, LevelManual} {
		if s == l.String() {
			return l, nil
		}
	}
	return LevelOff, errors.Errorf("unknown swapping level %q", s)
}

// Config parameterizes the pass.
type Config struct {
	// WaveSize is the partitioner's per-device wave capacity. Must be
	// positive.
	WaveSize int
	// Level gates the pass; see the Level constants.
	Level Level
}

// Optimizer is the swapping pass. It implements optimizers.GraphOptimizer.
type Optimizer struct {
	config  Config
	catalog devices.Catalog
	oracle  memest.Oracle
}

// New builds the pass for a device catalog. The oracle may be nil, in which
// case no device is ever considered over budget and only LevelManual swaps.
func New(config Config, catalog devices.Catalog, oracle memest.Oracle) (*Optimizer, error) {
	if config.WaveSize <= 0 {
		return nil, errors.Errorf("swapping: wave size must be positive, got %d", config.WaveSize)
	}
	return &Optimizer{config: config, catalog: catalog, oracle: oracle}, nil
}

// Name implements optimizers.GraphOptimizer.
func (o *Optimizer) Name() string { return "swapping" }

// Optimize rewrites the graph in place. On error the graph may be partially
// rewritten and must be discarded. When the pass runs and succeeds, every
// reachable node carries its wave in Priority and distant same-device GPU
// tensors are routed through host memory; when it is off or gated out, the
// graph is left untouched.
//
// The pass is gated: unless the level is LevelManual, it runs only when some
// GPU device with known memory size peaks at or above capacity according to
// the oracle. An oracle failure skips the pass (the graph is returned
// unchanged) rather than failing it.
func (o *Optimizer) Optimize(g *graph.Graph) error {
	if o.config.Level == LevelOff {
		return nil
	}
	view, err := graph.NewView(g)
	if err != nil {
		return errors.Wrap(err, "swapping: indexing graph")
	}
	klog.V(1).Infof("swapping: %s", GraphStats(view))

	needSwap, err := o.needSwap()
	if err != nil {
		klog.V(1).Infof("swapping: failed to infer memory usage, skipping: %v", err)
		return nil
	}
	if !needSwap && o.config.Level != LevelManual {
		klog.V(1).Info("swapping: all devices within memory budget, nothing to do")
		return nil
	}

	err = exceptions.TryCatch[error](func() {
		partitions, err := Partition(view, o.catalog, o.config.WaveSize)
		if err != nil {
			exceptions.Panicf("%v", err)
		}
		plan := planSwaps(view, partitions)
		for _, candidate := range plan {
			addSwapNodes(g, candidate)
		}
		klog.V(1).Infof("swapping: rewired %d producer(s) over %d wave(s)", len(plan), len(partitions))
	})
	if err != nil {
		return errors.Wrap(err, "swapping: graph may be partially rewritten, discard it")
	}

	if klog.V(2).Enabled() {
		o.auditDump(g)
	}
	return nil
}

// needSwap consults the oracle for every GPU device with a known memory
// size. Any device peaking at or above capacity triggers swapping.
func (o *Optimizer) needSwap() (bool, error) {
	if o.oracle == nil {
		return false, nil
	}
	needSwap := false
	for _, name := range o.catalog.Names() {
		prop := o.catalog[name]
		if !strings.EqualFold(prop.Type, "GPU") || prop.MemorySize <= 0 {
			continue
		}
		used, err := o.oracle.PeakUsage(name)
		if err != nil {
			return false, err
		}
		klog.V(1).Infof("swapping: device %s peaks at %s of %s",
			name, humanize.IBytes(uint64(max(used, 0))), humanize.IBytes(uint64(prop.MemorySize)))
		if used >= prop.MemorySize {
			needSwap = true
		}
	}
	return needSwap, nil
}

// auditDump logs every node with its neighborhood after rewriting, for
// debugging rewired graphs.
func (o *Optimizer) auditDump(g *graph.Graph) {
	view, err := graph.NewView(g)
	if err != nil {
		klog.Warningf("swapping: audit dump failed to re-index graph: %v", err)
		return
	}
	for i := 0; i < view.NumNodes(); i++ {
		node := view.Node(i)
		klog.V(2).Infof("node=%s op=%s device=%s priority=%d num_inputs=%d",
			node.Name, node.Op, node.Device, node.Priority, len(node.Inputs))
		for _, fanin := range view.Fanins(node, true) {
			klog.V(2).Infof("  fanin=%s device=%s priority=%d", fanin.Name, fanin.Device, fanin.Priority)
		}
		for _, fanout := range view.Fanouts(node, true) {
			klog.V(2).Infof("  fanout=%s device=%s priority=%d", fanout.Name, fanout.Device, fanout.Priority)
		}
	}
}
