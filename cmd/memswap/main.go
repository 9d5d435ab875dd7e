// memswap loads a graph from JSON, runs the host-swapping optimizer over it,
// prints a summary, and writes the rewritten graph out when -o is given.
//
// The devices file maps fully-qualified device names to their properties and
// (optionally) a statically estimated peak usage:
//
//	{
//	  "/job:localhost/replica:0/task:0/device:GPU:0":
//	    {"type": "GPU", "memory_size": 17179869184, "peak_usage": 20401094656}
//	}
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/memflow/memswap/devices"
	"github.com/memflow/memswap/graph"
	"github.com/memflow/memswap/memest"
	"github.com/memflow/memswap/ops"
	"github.com/memflow/memswap/optimizers/swapping"
)

var (
	flagGraph    string
	flagDevices  string
	flagOutput   string
	flagWaveSize int
	flagLevel    string
)

type deviceEntry struct {
	devices.Properties
	PeakUsage int64 `json:"peak_usage,omitempty"`
}

func main() {
	cmd := &cobra.Command{
		Use:          "memswap --graph graph.json --devices devices.json",
		Short:        "Rewrite a dataflow graph to swap long-lived GPU tensors through host memory",
		SilenceUsage: true,
		RunE:         run,
	}
	cmd.Flags().StringVar(&flagGraph, "graph", "", "graph JSON to optimize (required)")
	cmd.Flags().StringVar(&flagDevices, "devices", "", "device catalog JSON (required)")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "where to write the rewritten graph; omit for a dry run")
	cmd.Flags().IntVar(&flagWaveSize, "wave-size", 4, "partitioner wave capacity per device")
	cmd.Flags().StringVar(&flagLevel, "level", swapping.LevelHeuristics.String(),
		"swapping level: off, default, heuristics or manual")
	_ = cmd.MarkFlagRequired("graph")
	_ = cmd.MarkFlagRequired("devices")

	klog.InitFlags(nil)
	cmd.Flags().AddGoFlagSet(flag.CommandLine)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	level, err := swapping.ParseLevel(flagLevel)
	if err != nil {
		return err
	}

	g := graph.New()
	if err := json.Unmarshal(must.M1(os.ReadFile(flagGraph)), g); err != nil {
		return errors.Wrapf(err, "loading graph %q", flagGraph)
	}
	var entries map[string]deviceEntry
	if err := json.Unmarshal(must.M1(os.ReadFile(flagDevices)), &entries); err != nil {
		return errors.Wrapf(err, "loading devices %q", flagDevices)
	}
	catalog := make(devices.Catalog, len(entries))
	oracle := make(memest.Static, len(entries))
	for name, entry := range entries {
		catalog[name] = entry.Properties
		oracle[name] = entry.PeakUsage
	}

	opt, err := swapping.New(swapping.Config{WaveSize: flagWaveSize, Level: level}, catalog, oracle)
	if err != nil {
		return err
	}

	before := g.NumNodes()
	if err := opt.Optimize(g); err != nil {
		return err
	}
	view, err := graph.NewView(g)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", swapping.GraphStats(view))
	printSummary(g, catalog, before)

	if flagOutput != "" {
		data := must.M1(json.MarshalIndent(g, "", "  "))
		if err := os.WriteFile(flagOutput, append(data, '\n'), 0o644); err != nil {
			return errors.Wrapf(err, "writing %q", flagOutput)
		}
	}
	return nil
}

func printSummary(g *graph.Graph, catalog devices.Catalog, nodesBefore int) {
	perDevice := make(map[string]int)
	for _, node := range g.Nodes() {
		if ops.IsSwap(node) {
			perDevice[node.Device]++
		}
	}
	fmt.Printf("inserted %d swap node(s) (%d nodes -> %d)\n",
		g.NumNodes()-nodesBefore, nodesBefore, g.NumNodes())
	for _, name := range catalog.Names() {
		if count := perDevice[name]; count > 0 {
			prop := catalog[name]
			fmt.Printf("  %s (%s): %d swap node(s)\n",
				name, humanize.IBytes(uint64(max(prop.MemorySize, 0))), count)
		}
	}
}
