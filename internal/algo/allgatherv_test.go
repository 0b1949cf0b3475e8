package algo

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ucg-engine/pkg/datatype"
)

func TestAllgatherv_EveryRankSeesEveryContribution(t *testing.T) {
	const size = 5
	dt := datatype.Predefined(datatype.TagUint8)
	bus := newFakeBus()
	vgs := newFakeVGroups(bus, size, 8)

	counts := []int{2, 1, 3, 2, 4}
	displs := make([]int, size)
	total := 0
	for i, c := range counts {
		displs[i] = total
		total += c
	}

	sendBufs := make([][]byte, size)
	for r := 0; r < size; r++ {
		sendBufs[r] = make([]byte, counts[r])
		for i := range sendBufs[r] {
			sendBufs[r][i] = byte(r*10 + i)
		}
	}

	ops := make([]interface {
		Trigger() error
		Progress() error
	}, size)
	recvBufs := make([][]byte, size)
	for r := 0; r < size; r++ {
		recvBufs[r] = make([]byte, total)
		args := &Args{
			VGroup: vgs[r], Dt: dt, Count: counts[r],
			SendBuf: sendBufs[r], RecvBuf: recvBufs[r],
			RecvCounts: counts, RecvDispls: displs,
		}
		o, err := NewAllgathervPrepare()(args)
		require.NoError(t, err)
		ops[r] = o
	}

	results := runToCompletion(ops)
	for r, st := range results {
		require.Falsef(t, st.Failed(), "rank %d: %v", r, st)
	}
	for r := 0; r < size; r++ {
		for src := 0; src < size; src++ {
			require.Equalf(t, sendBufs[src], recvBufs[r][displs[src]:displs[src]+counts[src]], "rank %d missing src %d", r, src)
		}
	}
}
