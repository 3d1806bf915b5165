package cmd

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/pbfstream/internal/logger"
	"github.com/wegman-software/pbfstream/internal/sink"
)

var loadCmd = &cobra.Command{
	Use:   "load <input.osm.pbf|->",
	Short: "Stream entities into PostgreSQL",
	Long: `Decode a PBF file and COPY the kept entities into PostgreSQL.

Three tables are written in parallel, one COPY stream each:
  nodes      (id, lat, lon, tags jsonb)
  ways       (id, nodes bigint[], tags jsonb)
  relations  (id, members jsonb, tags jsonb)

With --geometry, nodes also get a PostGIS geom point in --projection.

Tables are created UNLOGGED and switched to LOGGED once loaded.`,
	Args: cobra.ExactArgs(1),
	Run:  runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	flags := loadCmd.Flags()
	flags.StringVar(&cfg.DBHost, "db-host", cfg.DBHost, "PostgreSQL host")
	flags.IntVar(&cfg.DBPort, "db-port", cfg.DBPort, "PostgreSQL port")
	flags.StringVarP(&cfg.DBName, "db-name", "d", cfg.DBName, "PostgreSQL database name")
	flags.StringVarP(&cfg.DBUser, "db-user", "U", cfg.DBUser, "PostgreSQL user")
	flags.StringVarP(&cfg.DBPassword, "db-password", "W", cfg.DBPassword, "PostgreSQL password")
	flags.StringVar(&cfg.DBSchema, "db-schema", cfg.DBSchema, "PostgreSQL schema")
	flags.BoolVar(&cfg.DropExisting, "drop-existing", false, "Drop existing tables before loading")
	flags.BoolVar(&cfg.CreateIndexes, "create-indexes", cfg.CreateIndexes, "Create id indexes after loading")
	flags.BoolVar(&cfg.ExtraAttributes, "extra-attributes", false, "Add version, changeset, created, uid and user_name columns")
	flags.BoolVar(&cfg.Geometry, "geometry", false, "Add a PostGIS geom column to nodes")
	flags.StringVar(&cfg.Projection, "projection", cfg.Projection, "Geometry projection: 4326 or 3857")
}

func runLoad(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	log := logger.Get()
	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	log.Info("Starting PostgreSQL load",
		zap.String("input", cfg.InputFile),
		zap.String("database", cfg.DBName),
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("user", cfg.DBUser),
		zap.String("schema", cfg.DBSchema),
	)

	ctx, stop := signalContext()
	defer stop()
	startMetrics(ctx)
	start := time.Now()

	pool, err := connect(ctx)
	if err != nil {
		exitWithError("failed to connect to database", err)
	}
	defer pool.Close()

	pg, err := sink.NewPostgres(ctx, pool, sink.PostgresOptions{
		Schema:        cfg.DBSchema,
		DropExisting:  cfg.DropExisting,
		Attributes:    cfg.ExtraAttributes,
		CreateIndexes: cfg.CreateIndexes,
		Geometry:      cfg.Geometry,
		SRID:          cfg.SRID,
		Log:           log,
	})
	if err != nil {
		exitWithError("failed to prepare tables", err)
	}

	stats, err := runPipeline(ctx, []sink.Sink{pg}, nil)
	if err != nil {
		exitWithError("load failed", err)
	}
	logStats("Decode complete", stats)

	nodes, ways, relations := pg.Counts()
	elapsed := time.Since(start)
	rows := nodes + ways + relations
	log.Info("Load complete",
		zap.Duration("duration", elapsed.Round(time.Second)),
		zap.Int64("nodes", nodes),
		zap.Int64("ways", ways),
		zap.Int64("relations", relations),
		zap.Float64("throughput_rows_s", float64(rows)/elapsed.Seconds()),
	)
}

// connect opens a pool with one connection per COPY stream plus one spare.
func connect(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
