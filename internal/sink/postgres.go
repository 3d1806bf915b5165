package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/encoding/ewkb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/pbfstream/internal/pbf"
	"github.com/wegman-software/pbfstream/internal/proj"
)

// PostgresOptions configures the PostgreSQL sink.
type PostgresOptions struct {
	Schema        string
	DropExisting  bool
	Attributes    bool // add version, changeset, created, uid and user columns
	CreateIndexes bool
	// Geometry adds a PostGIS point column to nodes, projected to SRID.
	Geometry bool
	SRID     int
	Log      *zap.Logger
}

// pgTable is one COPY target.
type pgTable struct {
	name    string
	columns []string
	ddl     string
}

var attributeColumns = []string{"version", "changeset", "created", "uid", "user_name"}

const attributeDDL = `,
	version INTEGER,
	changeset BIGINT,
	created TIMESTAMPTZ,
	uid BIGINT,
	user_name TEXT`

func pgTables(attributes bool, geomSRID int) [3]pgTable {
	tables := [3]pgTable{
		{name: "nodes", columns: []string{"id", "lat", "lon", "tags"},
			ddl: "id BIGINT NOT NULL,\n\tlat DOUBLE PRECISION NOT NULL,\n\tlon DOUBLE PRECISION NOT NULL,\n\ttags JSONB"},
		{name: "ways", columns: []string{"id", "nodes", "tags"},
			ddl: "id BIGINT NOT NULL,\n\tnodes BIGINT[] NOT NULL,\n\ttags JSONB"},
		{name: "relations", columns: []string{"id", "members", "tags"},
			ddl: "id BIGINT NOT NULL,\n\tmembers JSONB NOT NULL,\n\ttags JSONB"},
	}
	if geomSRID > 0 {
		tables[tableNodes].columns = append(tables[tableNodes].columns, "geom")
		tables[tableNodes].ddl += fmt.Sprintf(",\n\tgeom geometry(Point, %d)", geomSRID)
	}
	if attributes {
		for i := range tables {
			tables[i].columns = append(tables[i].columns, attributeColumns...)
			tables[i].ddl += attributeDDL
		}
	}
	return tables
}

// Postgres streams entities into nodes, ways and relations tables with one
// COPY per table, each running on its own pooled connection.
type Postgres struct {
	pool   *pgxpool.Pool
	opts   PostgresOptions
	log    *zap.Logger
	tables [3]pgTable
	proj   *proj.Transformer // nil without a geometry column

	group  errgroup.Group
	ctx    context.Context
	cancel context.CancelCauseFunc
	rows   [3]chan []any
	counts [3]int64

	closed   bool
	closeErr error
}

const (
	tableNodes = iota
	tableWays
	tableRelations
)

// NewPostgres creates the tables and starts the COPY streams. The pool
// must allow at least three connections.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, opts PostgresOptions) (*Postgres, error) {
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	s := &Postgres{pool: pool, opts: opts, log: log}
	geomSRID := 0
	if opts.Geometry {
		t, err := proj.NewTransformer(opts.SRID)
		if err != nil {
			return nil, err
		}
		s.proj, geomSRID = t, opts.SRID
	}
	s.tables = pgTables(opts.Attributes, geomSRID)

	if err := s.ensureTables(ctx); err != nil {
		return nil, err
	}

	s.ctx, s.cancel = context.WithCancelCause(ctx)
	for i := range s.tables {
		s.rows[i] = make(chan []any, 10000)
		s.group.Go(func() error {
			return s.copy(s.ctx, s.tables[i], s.rows[i])
		})
	}
	return s, nil
}

func (s *Postgres) qualified(table string) string {
	return pgx.Identifier{s.opts.Schema, table}.Sanitize()
}

func (s *Postgres) ensureTables(ctx context.Context) error {
	if s.proj != nil {
		if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
			return fmt.Errorf("failed to create postgis extension: %w", err)
		}
	}
	if s.opts.Schema != "public" {
		sql := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{s.opts.Schema}.Sanitize())
		if _, err := s.pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	for _, t := range s.tables {
		name := s.qualified(t.name)
		if s.opts.DropExisting {
			s.log.Info("Dropping table", zap.String("table", t.name))
			if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", name)); err != nil {
				return fmt.Errorf("failed to drop table %s: %w", t.name, err)
			}
		}
		sql := fmt.Sprintf("CREATE UNLOGGED TABLE IF NOT EXISTS %s (\n\t%s\n)", name, t.ddl)
		if _, err := s.pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.name, err)
		}
	}
	return nil
}

func (s *Postgres) copy(ctx context.Context, t pgTable, rows <-chan []any) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	count, err := conn.Conn().CopyFrom(ctx, pgx.Identifier{s.opts.Schema, t.name}, t.columns, &rowSource{rows: rows})
	if err != nil {
		err = fmt.Errorf("COPY to %s failed: %w", t.name, err)
		s.cancel(err)
		for range rows {
		}
		return err
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf("ALTER TABLE %s SET LOGGED", s.qualified(t.name))); err != nil {
		s.log.Warn("Failed to set table logged", zap.String("table", t.name), zap.Error(err))
	}
	s.log.Info("Table load complete", zap.String("table", t.name), zap.Int64("rows", count))
	return nil
}

func (s *Postgres) Write(e pbf.Entity) error {
	if s.closed {
		return fmt.Errorf("write to closed postgres sink")
	}
	var idx int
	var row []any
	switch v := e.(type) {
	case *pbf.Node:
		idx, row = tableNodes, nodeRow(v)
		if s.proj != nil {
			geom, err := pointEWKB(s.proj, v)
			if err != nil {
				return err
			}
			row = append(row, geom)
		}
	case *pbf.Way:
		idx, row = tableWays, wayRow(v)
	case *pbf.Relation:
		idx, row = tableRelations, relationRow(v)
	default:
		return nil
	}
	if s.opts.Attributes {
		row = append(row, attributeValues(e.EntityInfo())...)
	}

	select {
	case s.rows[idx] <- row:
		s.counts[idx]++
		return nil
	case <-s.ctx.Done():
		return s.closeStreams()
	}
}

// Counts returns the rows queued for nodes, ways and relations.
func (s *Postgres) Counts() (nodes, ways, relations int64) {
	return s.counts[tableNodes], s.counts[tableWays], s.counts[tableRelations]
}

// closeStreams ends every COPY and reports the error that stopped the
// first failing stream.
func (s *Postgres) closeStreams() error {
	if s.closed {
		return s.closeErr
	}
	s.closed = true
	for _, ch := range s.rows {
		close(ch)
	}
	err := s.group.Wait()
	if cause := context.Cause(s.ctx); cause != nil {
		err = cause
	}
	s.cancel(nil)
	s.closeErr = err
	return err
}

// Close ends the COPY streams and, if requested, builds indexes.
func (s *Postgres) Close() error {
	if err := s.closeStreams(); err != nil {
		return err
	}
	if s.opts.CreateIndexes {
		return s.createIndexes(context.Background())
	}
	return nil
}

func (s *Postgres) createIndexes(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SET maintenance_work_mem = '1GB'"); err != nil {
		s.log.Debug("Could not raise maintenance_work_mem", zap.Error(err))
	}

	for _, t := range s.tables {
		name := s.qualified(t.name)
		start := time.Now()
		sql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (id)", pgx.Identifier{t.name + "_id_idx"}.Sanitize(), name)
		if _, err := conn.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to index %s: %w", t.name, err)
		}
		if _, err := conn.Exec(ctx, fmt.Sprintf("ANALYZE %s", name)); err != nil {
			return fmt.Errorf("failed to analyze %s: %w", t.name, err)
		}
		s.log.Info("Index created", zap.String("table", t.name), zap.Duration("elapsed", time.Since(start)))
	}
	return nil
}

// nullableJSON returns nil for empty tags so the column stays NULL.
func nullableJSON(tags pbf.Tags) []byte {
	if len(tags) == 0 {
		return nil
	}
	b, _ := json.Marshal(tags)
	return b
}

func nodeRow(n *pbf.Node) []any {
	return []any{n.ID, n.Lat, n.Lon, nullableJSON(n.Tags)}
}

// pointEWKB encodes the node position as EWKB in the transformer's SRID.
func pointEWKB(t *proj.Transformer, n *pbf.Node) ([]byte, error) {
	b, err := ewkb.Marshal(t.Point(n.Lon, n.Lat), t.TargetSRID)
	if err != nil {
		return nil, fmt.Errorf("encode node %d geometry: %w", n.ID, err)
	}
	return b, nil
}

func wayRow(w *pbf.Way) []any {
	refs := w.Refs
	if refs == nil {
		refs = []int64{}
	}
	return []any{w.ID, refs, nullableJSON(w.Tags)}
}

type pgMember struct {
	Type string `json:"type"`
	Ref  int64  `json:"ref"`
	Role string `json:"role"`
}

func relationRow(r *pbf.Relation) []any {
	members := make([]pgMember, len(r.Members))
	for i, m := range r.Members {
		members[i] = pgMember{Type: m.Type.String(), Ref: m.ID, Role: m.Role}
	}
	membersJSON, _ := json.Marshal(members)
	return []any{r.ID, membersJSON, nullableJSON(r.Tags)}
}

func attributeValues(info *pbf.Info) []any {
	if info == nil {
		return []any{nil, nil, nil, nil, nil}
	}
	return []any{info.Version, info.Changeset, info.Time(), info.UID, info.User}
}

// rowSource implements pgx.CopyFromSource over a channel
type rowSource struct {
	rows    <-chan []any
	current []any
}

func (r *rowSource) Next() bool {
	row, ok := <-r.rows
	if !ok {
		return false
	}
	r.current = row
	return true
}

func (r *rowSource) Values() ([]any, error) {
	return r.current, nil
}

func (r *rowSource) Err() error {
	return nil
}
