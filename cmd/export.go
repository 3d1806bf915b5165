package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/pbfstream/internal/config"
	"github.com/wegman-software/pbfstream/internal/logger"
	"github.com/wegman-software/pbfstream/internal/pbf"
	"github.com/wegman-software/pbfstream/internal/sink"
)

var exportCmd = &cobra.Command{
	Use:   "export <input.osm.pbf|->",
	Short: "Export entities as NDJSON, OSM XML or Parquet",
	Long: `Decode a PBF file and write the kept entities in the chosen format.

Formats:
  ndjson   one JSON object per entity
  xml      an OSM XML 0.6 document, with the header bbox as <bounds>
  parquet  a directory with nodes, ways, way_nodes, relations and
           relation_members tables`,
	Args: cobra.ExactArgs(1),
	Run:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&cfg.Format, "format", "f", cfg.Format, "Output format: ndjson, xml or parquet")
	exportCmd.Flags().StringVarP(&cfg.OutputPath, "output", "o", cfg.OutputPath, "Output file, or directory for parquet; - for stdout")
	exportCmd.Flags().IntVar(&cfg.ParquetBatchSize, "batch-size", cfg.ParquetBatchSize, "Rows per Parquet row group")
}

func runExport(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	log := logger.Get()
	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx, stop := signalContext()
	defer stop()
	startMetrics(ctx)

	log.Info("Starting export",
		zap.String("input", cfg.InputFile),
		zap.String("format", cfg.Format),
		zap.String("output", cfg.OutputPath),
	)
	start := time.Now()

	closeOut := func() error { return nil }
	var s sink.Sink
	var onHeader func(*pbf.Header)

	switch cfg.Format {
	case config.FormatParquet:
		p, err := sink.NewParquet(cfg.OutputPath, cfg.ParquetBatchSize)
		if err != nil {
			exitWithError("failed to create parquet output", err)
		}
		s = p
	case config.FormatXML:
		out, c, err := createOutput(cfg.OutputPath)
		if err != nil {
			exitWithError("failed to open output", err)
		}
		x := sink.NewXML(out)
		s, closeOut = x, c
		onHeader = func(h *pbf.Header) {
			if h.BBox != nil {
				x.SetBounds(h.BBox)
			}
		}
	default:
		out, c, err := createOutput(cfg.OutputPath)
		if err != nil {
			exitWithError("failed to open output", err)
		}
		s, closeOut = sink.NewNDJSON(out), c
	}

	stats, err := runPipeline(ctx, []sink.Sink{s}, onHeader)
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		exitWithError("export failed", err)
	}

	logStats("Export complete", stats)
	log.Info("Output written", zap.String("output", cfg.OutputPath), zap.Duration("total", time.Since(start).Round(time.Second)))
}
