package plan

import (
	"context"
	"reflect"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/telemetry"
)

// samePrepare compares two prepare callbacks by code identity. Go
// function values aren't otherwise comparable; this is the idiomatic
// workaround for "is this the same callback" used during compaction.
func samePrepare(a, b PrepareFunc) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// list holds one (coll-type, mem-type) cell: the strictly-ordered,
// non-overlapping first-class plans for that cell.
type list struct {
	plans []*Plan
}

// Catalog is a group's plans container: a matrix of lists indexed by
// (collective type, memory type).
type Catalog struct {
	cells [numCollTypes][numMemTypes]*list
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

func (c *Catalog) cell(coll CollType, mem MemType) *list {
	l := c.cells[coll][mem]
	if l == nil {
		l = &list{}
		c.cells[coll][mem] = l
	}
	return l
}

// Add inserts p into the (coll, mem) cell, running the normalise /
// merge / insert / compact pipeline described for plan addition.
// Deprecated plans are dropped silently.
func (c *Catalog) Add(coll CollType, mem MemType, p *Plan) error {
	if p.Deprecated {
		return nil
	}
	l := c.cell(coll, mem)
	l.add(p)
	return nil
}

func (l *list) add(p *Plan) {
	pending := []*Plan{p}
	for len(pending) > 0 {
		frag := pending[0]
		pending = pending[1:]
		if frag.Deprecated {
			continue
		}

		if idx, splitThis, point, ok := l.findOverlap(frag); ok {
			if splitThis {
				existing := l.plans[idx]
				l.plans = append(l.plans[:idx], l.plans[idx+1:]...)
				left, right := existing.splitAt(point)
				pending = append(pending, left, right, frag)
			} else {
				fragLeft, fragRight := frag.splitAt(point)
				pending = append(pending, fragLeft, fragRight)
			}
			continue
		}

		if idx, ok := l.findEqual(frag.Range); ok {
			existing := l.plans[idx]
			var winner, loser *Plan
			if frag.Score > existing.Score {
				winner, loser = frag, existing
			} else {
				winner, loser = existing, frag
			}
			l.plans[idx] = absorb(winner, loser)
			continue
		}

		l.insertSorted(frag)
	}
	l.compact()
}

// findOverlap returns the index of an existing plan overlapping frag
// without being equal to it, plus the split point and which side
// (existing=true, fragment=false) straddles the other's boundary.
func (l *list) findOverlap(frag *Plan) (idx int, splitExisting bool, point uint64, ok bool) {
	for i, e := range l.plans {
		if e.Range.Equal(frag.Range) || !e.Range.Overlaps(frag.Range) {
			continue
		}
		pt, splitX, found := splitPoint(e.Range, frag.Range)
		if !found {
			continue
		}
		return i, splitX, pt, true
	}
	return 0, false, 0, false
}

func (l *list) findEqual(r Range) (int, bool) {
	for i, e := range l.plans {
		if e.Range.Equal(r) {
			return i, true
		}
	}
	return 0, false
}

func (l *list) insertSorted(p *Plan) {
	i := sort.Search(len(l.plans), func(i int) bool {
		return l.plans[i].Range.Start >= p.Range.Start
	})
	l.plans = append(l.plans, nil)
	copy(l.plans[i+1:], l.plans[i:])
	l.plans[i] = p
}

// compact merges adjacent plans with matching behaviour into one
// plan spanning the union of their ranges.
func (l *list) compact() {
	out := l.plans[:0]
	for _, p := range l.plans {
		if n := len(out); n > 0 {
			prev := out[n-1]
			if prev.Range.Adjacent(p.Range) &&
				prev.Score == p.Score &&
				samePrepare(prev.Prepare, p.Prepare) &&
				fallbackShapeEqual(prev.Fallbacks, p.Fallbacks) {
				prev.Range.End = p.Range.End
				continue
			}
		}
		out = append(out, p)
	}
	l.plans = out
}

// splitPoint finds a boundary of x or y that lies strictly inside the
// other, which must exist for any overlapping, non-equal pair.
func splitPoint(x, y Range) (point uint64, splitX bool, ok bool) {
	if y.Start > x.Start && y.Start < x.End {
		return y.Start, true, true
	}
	if y.End > x.Start && y.End < x.End {
		return y.End, true, true
	}
	if x.Start > y.Start && x.Start < y.End {
		return x.Start, false, true
	}
	if x.End > y.Start && x.End < y.End {
		return x.End, false, true
	}
	return 0, false, false
}

// Select walks the first-class list for (coll, mem) and returns the
// plan whose range contains msgSize.
func (c *Catalog) Select(coll CollType, mem MemType, msgSize uint64) (*Plan, *errors.Status) {
	_, span := telemetry.StartSpan(context.Background(), "plan.select",
		oteltrace.WithAttributes(
			attribute.String("coll", coll.String()),
			attribute.Int64("msg_size", int64(msgSize)),
		),
	)
	defer span.End()

	l := c.cells[coll][mem]
	if l == nil {
		return nil, errors.New(errors.NotFound, "no plans registered for this collective/memory type")
	}
	plans := l.plans
	i := sort.Search(len(plans), func(i int) bool {
		return plans[i].Range.End > msgSize
	})
	if i == len(plans) || !plans[i].Range.Contains(msgSize) {
		return nil, errors.New(errors.NotFound, "no plan covers this message size")
	}
	return plans[i], nil
}

// Prepare selects a plan for msgSize and invokes its prepare chain,
// walking the fallback list in score order whenever a candidate
// declines with Unsupported.
func (c *Catalog) Prepare(coll CollType, mem MemType, msgSize uint64, args any) (Op, *errors.Status) {
	p, status := c.Select(coll, mem, msgSize)
	if status.Failed() {
		return nil, status
	}
	if op, status := tryPrepare(p, args); status.Code == errors.OK {
		return op, status
	} else if status.Code != errors.Unsupported {
		return nil, status
	}
	for _, fb := range p.Fallbacks {
		op, status := tryPrepare(fb, args)
		if status.Code == errors.OK {
			return op, status
		}
		if status.Code != errors.Unsupported {
			return nil, status
		}
	}
	return nil, errors.New(errors.NotFound, "every plan and fallback declined this request")
}

// List returns the first-class plans registered for (coll, mem), in
// range order, for diagnostic dumps (ucg_info -p).
func (c *Catalog) List(coll CollType, mem MemType) []*Plan {
	l := c.cells[coll][mem]
	if l == nil {
		return nil
	}
	return append([]*Plan(nil), l.plans...)
}

func tryPrepare(p *Plan, args any) (Op, *errors.Status) {
	op, err := p.Prepare(args)
	if err == nil {
		return op, errors.Ok()
	}
	if status, ok := err.(*errors.Status); ok {
		return nil, status
	}
	return nil, errors.Wrap(errors.Unsupported, "prepare failed", err)
}

// Merge produces a new catalog holding a deep copy of dst with every
// plan of src added on top. On any failure the original dst is
// returned unmodified.
func Merge(dst, src *Catalog) (*Catalog, *errors.Status) {
	out := dst.clone()
	for coll := CollType(0); coll < numCollTypes; coll++ {
		for mem := MemType(0); mem < numMemTypes; mem++ {
			l := src.cells[coll][mem]
			if l == nil {
				continue
			}
			for _, p := range l.plans {
				if err := out.Add(coll, mem, p.clone()); err != nil {
					return dst, errors.New(errors.InvalidParam, "merge failed")
				}
			}
		}
	}
	return out, errors.Ok()
}

func (c *Catalog) clone() *Catalog {
	cp := NewCatalog()
	for coll := CollType(0); coll < numCollTypes; coll++ {
		for mem := MemType(0); mem < numMemTypes; mem++ {
			l := c.cells[coll][mem]
			if l == nil {
				continue
			}
			nl := &list{}
			for _, p := range l.plans {
				nl.plans = append(nl.plans, p.clone())
			}
			cp.cells[coll][mem] = nl
		}
	}
	return cp
}
