package pbf

import (
	"iter"

	"github.com/wegman-software/pbfstream/internal/osmproto"
)

type groupPhase int

const (
	phaseDense groupPhase = iota
	phaseWays
	phaseRelations
)

// Batch yields the entities of one data block lazily, group by group:
// dense nodes in index order, then ways, then relations. It only moves
// forward; entities are decoded as Next is called.
type Batch struct {
	ctx    *blockContext
	groups []*osmproto.PrimitiveGroup

	group int
	phase groupPhase
	item  int
	dense denseCursor
}

// Next returns the next entity, or false once the block is exhausted.
func (b *Batch) Next() (Entity, bool) {
	for b.group < len(b.groups) {
		g := b.groups[b.group]
		switch b.phase {
		case phaseDense:
			if g.Dense != nil && b.dense.index < len(g.Dense.Id) {
				return b.ctx.denseNode(g.Dense, &b.dense), true
			}
			b.phase, b.item = phaseWays, 0
		case phaseWays:
			if b.item < len(g.Ways) {
				b.item++
				return b.ctx.way(g.Ways[b.item-1]), true
			}
			b.phase, b.item = phaseRelations, 0
		case phaseRelations:
			if b.item < len(g.Relations) {
				b.item++
				return b.ctx.relation(g.Relations[b.item-1]), true
			}
			b.group++
			b.phase, b.item = phaseDense, 0
			b.dense = denseCursor{}
		}
	}
	return nil, false
}

// Len is the number of entities the batch yields in total.
func (b *Batch) Len() int {
	n := 0
	for _, g := range b.groups {
		n += len(g.GetDense().GetId())
		n += len(g.Ways) + len(g.Relations)
	}
	return n
}

// All iterates over the remaining entities.
func (b *Batch) All() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for {
			e, ok := b.Next()
			if !ok || !yield(e) {
				return
			}
		}
	}
}

// Collect decodes the remaining entities into a slice.
func (b *Batch) Collect() []Entity {
	out := make([]Entity, 0, b.Len())
	for e := range b.All() {
		out = append(out, e)
	}
	return out
}
