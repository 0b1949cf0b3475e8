package plan

import "github.com/ucg-engine/pkg/planattr"

// ApplyOverride mutates attr in place per the override matching its
// ID, if any: replacing Score and/or Range, and marking Deprecated
// when groupSize falls outside the override's GroupSize bound. A nil
// or non-matching override set leaves attr untouched.
func ApplyOverride(attr *Attr, overrides []planattr.Override, groupSize int) {
	for _, ov := range overrides {
		if ov.ID != attr.ID {
			continue
		}
		if ov.Score != nil {
			attr.Score = *ov.Score
		}
		if ov.Range != nil {
			end := uint64(RangeMax)
			if ov.Range.HasHi {
				end = ov.Range.Hi
			}
			attr.Range = Range{Start: ov.Range.Lo, End: end}
		}
		if ov.GroupSize != nil {
			lo := int(ov.GroupSize.Lo)
			below := groupSize < lo
			above := ov.GroupSize.HasHi && groupSize >= int(ov.GroupSize.Hi)
			if below || above {
				attr.Deprecated = true
			}
		}
		return
	}
}
