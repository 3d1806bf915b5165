package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wegman-software/pbfstream/internal/config"
	"github.com/wegman-software/pbfstream/internal/sink"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <input.osm.pbf|->",
	Short: "Decode a PBF file to NDJSON",
	Long: `Decode a PBF file and write one JSON object per entity, in file order.

Nodes carry lat/lon, ways their node refs and relations their members.
Entities with metadata get an info object; visible is only present for
files with historical information.`,
	Args: cobra.ExactArgs(1),
	Run:  runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVarP(&cfg.OutputPath, "output", "o", cfg.OutputPath, "Output file, - for stdout")
}

func runDecode(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	cfg.Format = config.FormatNDJSON
	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx, stop := signalContext()
	defer stop()
	startMetrics(ctx)

	out, closeOut, err := createOutput(cfg.OutputPath)
	if err != nil {
		exitWithError("failed to open output", err)
	}

	stats, err := runPipeline(ctx, []sink.Sink{sink.NewNDJSON(out)}, nil)
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		exitWithError("decode failed", err)
	}
	logStats("Decode complete", stats)
}
