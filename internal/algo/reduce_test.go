package algo

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ucg-engine/pkg/datatype"
)

func TestReduce_SumLandsOnlyAtRoot(t *testing.T) {
	const size = 6
	const root = 3
	dt := datatype.Predefined(datatype.TagUint32)
	op, err := datatype.CreateOp(datatype.OpSum, dt, datatype.OpCreateParams{})
	require.NoError(t, err)

	bus := newFakeBus()
	vgs := newFakeVGroups(bus, size, 9)

	ops := make([]interface {
		Trigger() error
		Progress() error
	}, size)
	recvBufs := make([][]byte, size)
	var wantSum uint32
	for r := 0; r < size; r++ {
		sendBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(sendBuf, uint32(r+1))
		wantSum += uint32(r + 1)
		recvBufs[r] = make([]byte, 4)

		args := &Args{VGroup: vgs[r], Dt: dt, Op: op, Count: 1, SendBuf: sendBuf, RecvBuf: recvBufs[r], Root: root}
		o, err := NewReducePrepare()(args)
		require.NoError(t, err)
		ops[r] = o
	}

	results := runToCompletion(ops)
	for r, st := range results {
		require.Falsef(t, st.Failed(), "rank %d: %v", r, st)
	}
	require.Equal(t, wantSum, binary.LittleEndian.Uint32(recvBufs[root]))
}
