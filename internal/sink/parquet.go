package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/wegman-software/pbfstream/internal/pbf"
)

// Parquet table files written by the Parquet sink.
const (
	NodesFile           = "nodes.parquet"
	WaysFile            = "ways.parquet"
	WayNodesFile        = "way_nodes.parquet"
	RelationsFile       = "relations.parquet"
	RelationMembersFile = "relation_members.parquet"
)

var infoFields = []arrow.Field{
	{Name: "version", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	{Name: "timestamp", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "changeset", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "uid", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "user", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "visible", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
}

var (
	nodeSchema = arrow.NewSchema(append([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "lat", Type: arrow.PrimitiveTypes.Float64},
		{Name: "lon", Type: arrow.PrimitiveTypes.Float64},
		{Name: "tags", Type: arrow.BinaryTypes.String},
	}, infoFields...), nil)

	waySchema = arrow.NewSchema(append([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "tags", Type: arrow.BinaryTypes.String},
	}, infoFields...), nil)

	wayNodeSchema = arrow.NewSchema([]arrow.Field{
		{Name: "way_id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "seq", Type: arrow.PrimitiveTypes.Int32},
		{Name: "node_id", Type: arrow.PrimitiveTypes.Int64},
	}, nil)

	relationSchema = arrow.NewSchema(append([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "tags", Type: arrow.BinaryTypes.String},
	}, infoFields...), nil)

	relationMemberSchema = arrow.NewSchema([]arrow.Field{
		{Name: "relation_id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "seq", Type: arrow.PrimitiveTypes.Int32},
		{Name: "member_type", Type: arrow.BinaryTypes.String},
		{Name: "member_id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "role", Type: arrow.BinaryTypes.String},
	}, nil)
)

// tableWriter buffers rows of one Parquet file and writes a row group every
// batchSize rows.
type tableWriter struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
}

func newTableWriter(path string, schema *arrow.Schema, batchSize int) (*tableWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(schema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, err
	}

	return &tableWriter{
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, schema),
		batchSize: batchSize,
	}, nil
}

func (w *tableWriter) putInt64(i int, v int64) {
	w.builder.Field(i).(*array.Int64Builder).Append(v)
}

func (w *tableWriter) putInt32(i int, v int32) {
	w.builder.Field(i).(*array.Int32Builder).Append(v)
}

func (w *tableWriter) putFloat64(i int, v float64) {
	w.builder.Field(i).(*array.Float64Builder).Append(v)
}

func (w *tableWriter) putString(i int, v string) {
	w.builder.Field(i).(*array.StringBuilder).Append(v)
}

// info appends the metadata columns starting at field i.
func (w *tableWriter) info(i int, info *pbf.Info) {
	if info == nil {
		for j := range infoFields {
			w.builder.Field(i + j).AppendNull()
		}
		return
	}
	w.putInt32(i, info.Version)
	w.putInt64(i+1, int64(info.Timestamp))
	w.putInt64(i+2, info.Changeset)
	w.putInt64(i+3, info.UID)
	w.putString(i+4, info.User)
	if info.Visible != nil {
		w.builder.Field(i + 5).(*array.BooleanBuilder).Append(*info.Visible)
	} else {
		w.builder.Field(i + 5).AppendNull()
	}
}

// row completes a row and flushes a full batch.
func (w *tableWriter) row() error {
	w.count++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *tableWriter) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	err := w.writer.Write(rec)
	w.count = 0
	return err
}

func (w *tableWriter) Close() error {
	defer w.builder.Release()
	if err := w.flush(); err != nil {
		w.file.Close()
		return err
	}
	// The parquet writer closes the file it was given.
	if err := w.writer.Close(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// Parquet writes entities to five Parquet files in a directory: nodes,
// ways, way_nodes, relations and relation_members. Tags are stored as JSON
// text, timestamps as epoch milliseconds.
type Parquet struct {
	nodes, ways, wayNodes, relations, members *tableWriter
}

// NewParquet creates dir if needed and opens the table files.
func NewParquet(dir string, batchSize int) (*Parquet, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("parquet batch size must be at least 1")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	p := &Parquet{}
	tables := []struct {
		dst    **tableWriter
		file   string
		schema *arrow.Schema
	}{
		{&p.nodes, NodesFile, nodeSchema},
		{&p.ways, WaysFile, waySchema},
		{&p.wayNodes, WayNodesFile, wayNodeSchema},
		{&p.relations, RelationsFile, relationSchema},
		{&p.members, RelationMembersFile, relationMemberSchema},
	}
	for _, t := range tables {
		w, err := newTableWriter(filepath.Join(dir, t.file), t.schema, batchSize)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to create %s: %w", t.file, err)
		}
		*t.dst = w
	}
	return p, nil
}

func (p *Parquet) Write(e pbf.Entity) error {
	switch v := e.(type) {
	case *pbf.Node:
		w := p.nodes
		w.putInt64(0, v.ID)
		w.putFloat64(1, v.Lat)
		w.putFloat64(2, v.Lon)
		w.putString(3, tagsJSON(v.Tags))
		w.info(4, v.Info)
		return w.row()

	case *pbf.Way:
		w := p.ways
		w.putInt64(0, v.ID)
		w.putString(1, tagsJSON(v.Tags))
		w.info(2, v.Info)
		if err := w.row(); err != nil {
			return err
		}
		for i, ref := range v.Refs {
			p.wayNodes.putInt64(0, v.ID)
			p.wayNodes.putInt32(1, int32(i))
			p.wayNodes.putInt64(2, ref)
			if err := p.wayNodes.row(); err != nil {
				return err
			}
		}
		return nil

	case *pbf.Relation:
		w := p.relations
		w.putInt64(0, v.ID)
		w.putString(1, tagsJSON(v.Tags))
		w.info(2, v.Info)
		if err := w.row(); err != nil {
			return err
		}
		for i, m := range v.Members {
			p.members.putInt64(0, v.ID)
			p.members.putInt32(1, int32(i))
			p.members.putString(2, m.Type.String())
			p.members.putInt64(3, m.ID)
			p.members.putString(4, m.Role)
			if err := p.members.row(); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// Close flushes and closes every table file, returning the first error.
func (p *Parquet) Close() error {
	var firstErr error
	for _, w := range []*tableWriter{p.nodes, p.ways, p.wayNodes, p.relations, p.members} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
