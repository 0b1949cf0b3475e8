package plan

// MsgSizeArgs carries whichever fields a collective's size formula
// needs; unused fields are left zero.
type MsgSizeArgs struct {
	DtSize     uint64
	Count      int
	GroupSize  int
	RecvCounts []int // per-rank element counts, for allgatherv
}

// MsgSize computes the selection key for coll per §4.D's formulas.
func MsgSize(coll CollType, a MsgSizeArgs) uint64 {
	switch coll {
	case Bcast, Allreduce, Reduce:
		return a.DtSize * uint64(a.Count)
	case Barrier, Alltoallv, Scatterv, Gatherv:
		return 0
	case Allgatherv:
		if a.GroupSize == 0 {
			return 0
		}
		var total uint64
		for _, c := range a.RecvCounts {
			total += a.DtSize * uint64(c)
		}
		return total / uint64(a.GroupSize)
	default:
		return 0
	}
}
