package pbf

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"

	"github.com/wegman-software/pbfstream/internal/osmproto"
)

// FeatureHistoricalInformation is the required feature that enables the
// visible flag on entity metadata.
const FeatureHistoricalInformation = "HistoricalInformation"

const nano = 1e-9

// BBox is a header bounding box in degrees.
type BBox struct {
	Left, Right, Top, Bottom float64
}

// Header is the decoded content of an OSMHeader blob.
type Header struct {
	BBox                      *BBox
	RequiredFeatures          []string
	OptionalFeatures          []string
	WritingProgram            string
	Source                    string
	ReplicationTimestamp      time.Time
	ReplicationSequenceNumber int64
	ReplicationBaseURL        string
}

// HasFeature reports whether name is a required feature.
func (h *Header) HasFeature(name string) bool {
	for _, f := range h.RequiredFeatures {
		if f == name {
			return true
		}
	}
	return false
}

// Session decodes the blocks of one stream in order. The historical
// information flag learned from the latest header blob carries over to the
// data blobs that follow it. A Session belongs to a single stream and a
// single goroutine.
type Session struct {
	log         *zap.Logger
	historical  bool
	header      *Header
	diagnostics Diagnostics
}

// NewSession returns a Session. A nil logger disables diagnostics logging.
func NewSession(log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{log: log, diagnostics: make(Diagnostics)}
}

// Historical reports whether the last header required historical
// information.
func (s *Session) Historical() bool {
	return s.historical
}

// Header returns the last decoded header block, or nil.
func (s *Session) Header() *Header {
	return s.header
}

// Diagnostics returns a copy of the non-fatal condition counters.
func (s *Session) Diagnostics() Diagnostics {
	out := make(Diagnostics, len(s.diagnostics))
	for k, v := range s.diagnostics {
		out[k] = v
	}
	return out
}

// Decode decodes one inflated block. Header blocks update the session and
// yield an empty batch. Data blocks are checked in full before the batch is
// returned, so a block either fails as a whole or yields all its entities.
func (s *Session) Decode(block DecodedBlock) (*Batch, error) {
	switch block.Type {
	case BlobTypeHeader:
		if err := s.decodeHeader(block.Data); err != nil {
			return nil, s.fail(block, err)
		}
		return &Batch{}, nil
	case BlobTypeData:
		batch, err := s.decodeData(block)
		if err != nil {
			return nil, s.fail(block, err)
		}
		return batch, nil
	default:
		s.note(block, DiagnosticUnknownBlob, 1)
		return &Batch{}, nil
	}
}

func (s *Session) fail(block DecodedBlock, err error) error {
	return &DecodeError{Stage: StageDecode, Offset: block.Offset, BlobType: block.Type, Err: err}
}

func (s *Session) note(block DecodedBlock, kind DiagnosticKind, count int) {
	s.diagnostics[kind] += int64(count)
	s.log.Warn("Skipping unsupported content",
		zap.String("kind", string(kind)),
		zap.Int("count", count),
		zap.String("blob_type", block.Type),
		zap.Uint64("offset", block.Offset),
	)
}

func (s *Session) decodeHeader(data []byte) error {
	var hb osmproto.HeaderBlock
	if err := proto.Unmarshal(data, &hb); err != nil {
		return fmt.Errorf("%w: header block: %v", ErrMalformedBlock, err)
	}

	h := &Header{
		RequiredFeatures:          hb.RequiredFeatures,
		OptionalFeatures:          hb.OptionalFeatures,
		WritingProgram:            hb.GetWritingprogram(),
		Source:                    hb.GetSource(),
		ReplicationSequenceNumber: hb.GetOsmosisReplicationSequenceNumber(),
		ReplicationBaseURL:        hb.GetOsmosisReplicationBaseUrl(),
	}
	if bb := hb.Bbox; bb != nil {
		h.BBox = &BBox{
			Left:   nano * float64(bb.GetLeft()),
			Right:  nano * float64(bb.GetRight()),
			Top:    nano * float64(bb.GetTop()),
			Bottom: nano * float64(bb.GetBottom()),
		}
	}
	if ts := hb.GetOsmosisReplicationTimestamp(); ts != 0 {
		h.ReplicationTimestamp = time.Unix(ts, 0).UTC()
	}

	s.header = h
	s.historical = h.HasFeature(FeatureHistoricalInformation)
	return nil
}

func (s *Session) decodeData(block DecodedBlock) (*Batch, error) {
	var pb osmproto.PrimitiveBlock
	if err := proto.Unmarshal(block.Data, &pb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlock, err)
	}
	if err := checkStringTable(pb.Stringtable); err != nil {
		return nil, err
	}

	ctx := newBlockContext(&pb, s.historical)
	for i, g := range pb.Primitivegroup {
		if err := ctx.validateGroup(g); err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
	}

	for _, g := range pb.Primitivegroup {
		if len(g.Nodes) > 0 {
			s.note(block, DiagnosticPlainNodes, len(g.Nodes))
		}
		if len(g.Changesets) > 0 {
			s.note(block, DiagnosticChangeSets, len(g.Changesets))
		}
	}

	return &Batch{ctx: ctx, groups: pb.Primitivegroup}, nil
}

// checkStringTable rejects entries that are not length-delimited. The
// protobuf runtime keeps such fields as unknown data instead of failing.
func checkStringTable(st *osmproto.StringTable) error {
	if st == nil {
		return nil
	}
	b := st.ProtoReflect().GetUnknown()
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedStringTable, protowire.ParseError(n))
		}
		if num == 1 && typ != protowire.BytesType {
			return fmt.Errorf("%w: entry has wire type %d", ErrMalformedStringTable, typ)
		}
		m := protowire.ConsumeFieldValue(num, typ, b[n:])
		if m < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedStringTable, protowire.ParseError(m))
		}
		b = b[n+m:]
	}
	return nil
}

// blockContext is the per-block decode state shared by every entity.
type blockContext struct {
	strings         []string
	granularity     float64
	latOffset       float64
	lonOffset       float64
	dateGranularity float64
	historical      bool
}

func newBlockContext(pb *osmproto.PrimitiveBlock, historical bool) *blockContext {
	table := pb.GetStringtable().GetS()
	strs := make([]string, len(table))
	for i, b := range table {
		s := string(b)
		if !utf8.ValidString(s) {
			s = strings.ToValidUTF8(s, "\uFFFD")
		}
		strs[i] = s
	}
	return &blockContext{
		strings:         strs,
		granularity:     nano * float64(pb.GetGranularity()),
		latOffset:       nano * float64(pb.GetLatOffset()),
		lonOffset:       nano * float64(pb.GetLonOffset()),
		dateGranularity: float64(pb.GetDateGranularity()),
		historical:      historical,
	}
}

func (c *blockContext) checkIndex(i int64) error {
	if i < 0 || i >= int64(len(c.strings)) {
		return fmt.Errorf("%w: index %d, table size %d", ErrStringIndexOutOfRange, i, len(c.strings))
	}
	return nil
}

// checkUser is checkIndex for user_sid. A zero index means no user and is
// accepted even when the table is empty.
func (c *blockContext) checkUser(i int64) error {
	if i == 0 && len(c.strings) == 0 {
		return nil
	}
	return c.checkIndex(i)
}

func (c *blockContext) user(i int64) string {
	if i == 0 && len(c.strings) == 0 {
		return ""
	}
	return c.strings[i]
}

// validateGroup checks every string index and array length the decoders
// will touch, so decoding itself cannot fail.
func (c *blockContext) validateGroup(g *osmproto.PrimitiveGroup) error {
	if g.Dense != nil {
		if err := c.validateDense(g.Dense); err != nil {
			return fmt.Errorf("dense nodes: %w", err)
		}
	}
	for _, w := range g.Ways {
		if err := c.validateTags(w.Keys, w.Vals); err != nil {
			return fmt.Errorf("way %d: %w", w.GetId(), err)
		}
		if err := c.validateInfo(w.Info); err != nil {
			return fmt.Errorf("way %d: %w", w.GetId(), err)
		}
	}
	for _, r := range g.Relations {
		if err := c.validateTags(r.Keys, r.Vals); err != nil {
			return fmt.Errorf("relation %d: %w", r.GetId(), err)
		}
		n := min(len(r.RolesSid), len(r.Memids), len(r.Types))
		for _, sid := range r.RolesSid[:n] {
			if err := c.checkIndex(int64(sid)); err != nil {
				return fmt.Errorf("relation %d role: %w", r.GetId(), err)
			}
		}
		if err := c.validateInfo(r.Info); err != nil {
			return fmt.Errorf("relation %d: %w", r.GetId(), err)
		}
	}
	return nil
}

func (c *blockContext) validateTags(keys, vals []uint32) error {
	n := min(len(keys), len(vals))
	for i := 0; i < n; i++ {
		if err := c.checkIndex(int64(keys[i])); err != nil {
			return fmt.Errorf("tag key: %w", err)
		}
		if err := c.checkIndex(int64(vals[i])); err != nil {
			return fmt.Errorf("tag value: %w", err)
		}
	}
	return nil
}

func (c *blockContext) validateInfo(info *osmproto.Info) error {
	if info == nil {
		return nil
	}
	if err := c.checkUser(int64(info.GetUserSid())); err != nil {
		return fmt.Errorf("user: %w", err)
	}
	return nil
}

func (c *blockContext) validateDense(dn *osmproto.DenseNodes) error {
	n := len(dn.Id)
	if len(dn.Lat) != n || len(dn.Lon) != n {
		return fmt.Errorf("%w: %d ids, %d lats, %d lons", ErrMalformedBlock, n, len(dn.Lat), len(dn.Lon))
	}

	if di := dn.Denseinfo; di != nil {
		for name, l := range map[string]int{
			"version":   len(di.Version),
			"timestamp": len(di.Timestamp),
			"changeset": len(di.Changeset),
			"uid":       len(di.Uid),
			"user_sid":  len(di.UserSid),
			"visible":   len(di.Visible),
		} {
			if l != 0 && l != n {
				return fmt.Errorf("%w: denseinfo %s has %d entries for %d nodes", ErrMalformedBlock, name, l, n)
			}
		}
	}

	var cur denseCursor
	for cur.index = 0; cur.index < n; cur.index++ {
		next, err := walkDenseTags(dn.KeysVals, cur.tagOffset, func(k, v int32) error {
			if err := c.checkIndex(int64(k)); err != nil {
				return fmt.Errorf("tag key: %w", err)
			}
			return c.checkIndex(int64(v))
		})
		if err != nil {
			return fmt.Errorf("node %d: %w", cur.index, err)
		}
		cur.tagOffset = next

		if di := dn.Denseinfo; di != nil {
			if len(di.UserSid) > 0 {
				cur.userSID += int64(di.UserSid[cur.index])
			}
			if err := c.checkUser(cur.userSID); err != nil {
				return fmt.Errorf("node %d user: %w", cur.index, err)
			}
		}
	}
	return nil
}

func (c *blockContext) tags(keys, vals []uint32) Tags {
	n := min(len(keys), len(vals))
	if n == 0 {
		return nil
	}
	tags := make(Tags, n)
	for i := 0; i < n; i++ {
		tags[c.strings[keys[i]]] = c.strings[vals[i]]
	}
	return tags
}

func (c *blockContext) info(info *osmproto.Info) *Info {
	if info == nil {
		return nil
	}
	out := &Info{
		Version:   info.GetVersion(),
		Timestamp: c.dateGranularity * float64(info.GetTimestamp()),
		Changeset: info.GetChangeset(),
		UID:       int64(info.GetUid()),
		User:      c.user(int64(info.GetUserSid())),
	}
	if c.historical && info.Visible != nil {
		visible := *info.Visible
		out.Visible = &visible
	}
	return out
}

func (c *blockContext) way(w *osmproto.Way) *Way {
	way := &Way{
		ID:   w.GetId(),
		Tags: c.tags(w.Keys, w.Vals),
		Refs: make([]int64, len(w.Refs)),
		Info: c.info(w.Info),
	}
	var ref int64
	for i, delta := range w.Refs {
		ref += delta
		way.Refs[i] = ref
	}
	return way
}

func (c *blockContext) relation(r *osmproto.Relation) *Relation {
	n := min(len(r.RolesSid), len(r.Memids), len(r.Types))
	rel := &Relation{
		ID:      r.GetId(),
		Tags:    c.tags(r.Keys, r.Vals),
		Members: make([]Member, n),
		Info:    c.info(r.Info),
	}
	var id int64
	for i := 0; i < n; i++ {
		id += r.Memids[i]
		rel.Members[i] = Member{
			ID:   id,
			Type: memberTypeOf(r.Types[i]),
			Role: c.strings[r.RolesSid[i]],
		}
	}
	return rel
}
