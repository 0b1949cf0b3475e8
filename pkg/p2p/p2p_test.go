package p2p

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ucg-engine/pkg/datatype"
	"github.com/ucg-engine/pkg/errors"
)

func TestMakeParseTag_RoundTrip(t *testing.T) {
	tag := MakeTag(42, 100, 7)
	opSeq, sender, group := ParseTag(tag)

	assert.Equal(t, uint16(42), opSeq)
	assert.Equal(t, uint32(100), sender)
	assert.Equal(t, uint32(7), group)
}

func TestMakeTag_DifferentGroupsNeverCollide(t *testing.T) {
	t1 := MakeTag(1, 0, 1)
	t2 := MakeTag(1, 0, 2)
	assert.NotEqual(t, t1, t2)
}

// fakeTransport completes every send/recv asynchronously after a fixed
// number of Test polls, letting tests exercise the pending-handle
// drain path deterministically.
type fakeHandle struct{ pollsLeft int }

type fakeTransport struct {
	pollsUntilDone int
	failSend       bool
}

func (f *fakeTransport) ISend(buf []byte, count int, dt *datatype.Datatype, peer int, tag uint64) (Handle, *errors.Status) {
	if f.failSend {
		return nil, errors.New(errors.IOError, "send failed")
	}
	return &fakeHandle{pollsLeft: f.pollsUntilDone}, errors.InProgressStatus()
}

func (f *fakeTransport) IRecv(buf []byte, count int, dt *datatype.Datatype, peer int, tag uint64) (Handle, *errors.Status) {
	return &fakeHandle{pollsLeft: f.pollsUntilDone}, errors.InProgressStatus()
}

func (f *fakeTransport) Test(h Handle) (bool, *errors.Status) {
	fh := h.(*fakeHandle)
	if fh.pollsLeft <= 0 {
		return true, errors.Ok()
	}
	fh.pollsLeft--
	return false, errors.Ok()
}

func TestState_TestallCompletesAfterPolls(t *testing.T) {
	transport := &fakeTransport{pollsUntilDone: 2}
	state := NewState()
	i8 := datatype.Predefined(datatype.TagInt8)

	require.Equal(t, errors.InProgress, state.Send(transport, nil, 0, i8, 1, 0).Code)
	assert.Equal(t, 1, state.InflightSendCount())

	assert.Equal(t, errors.InProgress, state.Testall(transport).Code)
	assert.Equal(t, errors.InProgress, state.Testall(transport).Code)
	assert.Equal(t, errors.OK, state.Testall(transport).Code)
	assert.Equal(t, 0, state.InflightSendCount())
}

func TestState_LatchesTransportError(t *testing.T) {
	transport := &fakeTransport{failSend: true}
	state := NewState()
	i8 := datatype.Predefined(datatype.TagInt8)

	status := state.Send(transport, nil, 0, i8, 1, 0)
	assert.Equal(t, errors.IOError, status.Code)

	// Sticky: once latched, Testall keeps returning the same error.
	assert.Equal(t, errors.IOError, state.Testall(transport).Code)
}
