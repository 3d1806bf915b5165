package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wegman-software/pbfstream/internal/sink"
)

var countCmd = &cobra.Command{
	Use:   "count <input.osm.pbf|->",
	Short: "Count nodes, ways and relations",
	Args:  cobra.ExactArgs(1),
	Run:   runCount,
}

func init() {
	rootCmd.AddCommand(countCmd)
}

func runCount(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx, stop := signalContext()
	defer stop()
	startMetrics(ctx)

	counter := &sink.Counter{}
	stats, err := runPipeline(ctx, []sink.Sink{counter}, nil)
	if err != nil {
		exitWithError("count failed", err)
	}
	logStats("Count complete", stats)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "nodes\t%d\n", counter.Nodes)
	fmt.Fprintf(out, "ways\t%d\n", counter.Ways)
	fmt.Fprintf(out, "relations\t%d\n", counter.Relations)
	if stats.Filtered > 0 {
		fmt.Fprintf(out, "filtered\t%d\n", stats.Filtered)
	}
	for kind, n := range stats.Diagnostics {
		fmt.Fprintf(out, "%s\t%d\n", kind, n)
	}
}
