package plan

import "sort"

// Plan is the unit of selectable behaviour: either first-class (has a
// Fallbacks list, ordered by descending score) or a fallback itself
// (sits inside another plan's Fallbacks and carries an empty list).
type Plan struct {
	Attr
	Fallbacks []*Plan
}

// clone returns a deep copy of p, including its fallback chain.
func (p *Plan) clone() *Plan {
	if p == nil {
		return nil
	}
	cp := &Plan{Attr: p.Attr}
	if len(p.Fallbacks) > 0 {
		cp.Fallbacks = make([]*Plan, len(p.Fallbacks))
		for i, fb := range p.Fallbacks {
			cp.Fallbacks[i] = fb.clone()
		}
	}
	return cp
}

// splitAt cuts p into two plans at point, which must lie strictly
// inside p.Range. Fallbacks are split the same way so both halves
// keep a consistent fallback chain.
func (p *Plan) splitAt(point uint64) (left, right *Plan) {
	left = &Plan{Attr: p.Attr}
	left.Range = Range{Start: p.Range.Start, End: point}
	right = &Plan{Attr: p.Attr}
	right.Range = Range{Start: point, End: p.Range.End}

	for _, fb := range p.Fallbacks {
		fbLeft, fbRight := fb.splitAt(point)
		left.Fallbacks = append(left.Fallbacks, fbLeft)
		right.Fallbacks = append(right.Fallbacks, fbRight)
	}
	return left, right
}

// insertFallback inserts fb into p's fallback list, keeping it sorted
// by descending score.
func (p *Plan) insertFallback(fb *Plan) {
	i := sort.Search(len(p.Fallbacks), func(i int) bool {
		return p.Fallbacks[i].Score < fb.Score
	})
	p.Fallbacks = append(p.Fallbacks, nil)
	copy(p.Fallbacks[i+1:], p.Fallbacks[i:])
	p.Fallbacks[i] = fb
}

// absorb merges loser into winner (winner has the higher score): the
// loser is demoted into winner's fallback list, and if winner was the
// new fragment it inherits loser's pre-existing fallbacks too.
func absorb(winner, loser *Plan) *Plan {
	for _, fb := range loser.Fallbacks {
		winner.insertFallback(fb)
	}
	loserShell := &Plan{Attr: loser.Attr}
	winner.insertFallback(loserShell)
	return winner
}

// fallbackShapeEqual reports whether two plans' fallback chains are
// equal for compaction purposes: same length, same ids/scores/prepare
// identity in order.
func fallbackShapeEqual(a, b []*Plan) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Score != b[i].Score || a[i].ID != b[i].ID || !samePrepare(a[i].Prepare, b[i].Prepare) {
			return false
		}
	}
	return true
}
