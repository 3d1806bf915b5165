package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wegman-software/pbfstream/internal/config"
	"github.com/wegman-software/pbfstream/internal/logger"
)

var (
	cfg        = config.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "pbfstream",
	Short: "Streaming OSM PBF decoder",
	Long: `pbfstream decodes OpenStreetMap PBF files as a stream.

The input is framed into blobs, inflated and decoded into nodes, ways and
relations without holding more than one block in memory. Entities can be
filtered by tags, a bounding box or a Lua script and written as NDJSON,
OSM XML, Parquet or straight into PostgreSQL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := loadConfigFile(cmd.Flags(), configFile); err != nil {
				return err
			}
		}

		if cfg.LogFile != "" {
			logger.InitWithFile(cfg.Verbose, cfg.LogFile)
		} else {
			logger.Init(cfg.Verbose)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	defer logger.Sync()
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "YAML configuration file; flags override its values")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	flags.StringVar(&cfg.LogFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	flags.DurationVar(&cfg.MetricsInterval, "metrics-interval", cfg.MetricsInterval, "Interval for system metrics logging, 0 to disable")
	flags.DurationVar(&cfg.ProgressInterval, "progress-interval", cfg.ProgressInterval, "Interval for progress logging, 0 to disable")

	flags.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "Bytes read from the input at a time")
	flags.BoolVar(&cfg.UseMmap, "mmap", false, "Memory-map the input file instead of reading it")

	flags.StringVar(&cfg.BBoxSpec, "bbox", "", "Keep only nodes inside minlon,minlat,maxlon,maxlat")
	flags.StringVar(&cfg.TagFilterFile, "tag-filter", "", "YAML tag filter file")
	flags.StringVar(&cfg.LuaScript, "lua", "", "Lua filter script")
}

// loadConfigFile overlays the file onto cfg, then re-applies flags given on
// the command line so they win over the file.
func loadConfigFile(flags *pflag.FlagSet, path string) error {
	changed := map[string]string{}
	flags.Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	if err := cfg.LoadFile(path); err != nil {
		return err
	}

	for name, value := range changed {
		if err := flags.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}
