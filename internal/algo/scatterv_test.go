package algo

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ucg-engine/pkg/datatype"
)

func TestScatterv_EachRankGetsItsOwnSlice(t *testing.T) {
	const size = 4
	const root = 1
	dt := datatype.Predefined(datatype.TagUint8)
	bus := newFakeBus()
	vgs := newFakeVGroups(bus, size, 2)

	counts := []int{2, 3, 1, 4}
	displs := make([]int, size)
	total := 0
	for i, c := range counts {
		displs[i] = total
		total += c
	}
	sendBuf := make([]byte, total)
	for i := range sendBuf {
		sendBuf[i] = byte(i + 1)
	}

	ops := make([]interface {
		Trigger() error
		Progress() error
	}, size)
	recvBufs := make([][]byte, size)
	for r := 0; r < size; r++ {
		recvBufs[r] = make([]byte, counts[r])
		var sb []byte
		if r == root {
			sb = sendBuf
		}
		args := &Args{
			VGroup: vgs[r], Dt: dt, Count: counts[r],
			SendBuf: sb, RecvBuf: recvBufs[r], Root: root,
			SendCounts: counts, SendDispls: displs,
		}
		o, err := NewScattervPrepare()(args)
		require.NoError(t, err)
		ops[r] = o
	}

	results := runToCompletion(ops)
	for r, st := range results {
		require.Falsef(t, st.Failed(), "rank %d: %v", r, st)
	}
	for r := 0; r < size; r++ {
		require.Equal(t, sendBuf[displs[r]:displs[r]+counts[r]], recvBufs[r], "rank %d", r)
	}
}
