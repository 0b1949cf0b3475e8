package datatype

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ucg-engine/pkg/errors"
)

func TestPredefined_SingletonIdentity(t *testing.T) {
	a := Predefined(TagInt32)
	b := Predefined(TagInt32)
	assert.Same(t, a, b)
	assert.True(t, a.Predefined)
	assert.True(t, a.Contiguous)
	assert.Equal(t, uint64(4), a.Size)
}

func TestCreate_UserContiguous(t *testing.T) {
	dt, err := Create(TagUserDefined, CreateParams{Size: 12, Extent: 12})
	require.Nil(t, err)
	assert.True(t, dt.Contiguous)
}

func TestCreate_NonContiguousRequiresFactory(t *testing.T) {
	_, err := Create(TagUserDefined, CreateParams{Size: 4, Extent: 8})
	require.NotNil(t, err)
	assert.Equal(t, "INVALID_PARAM", string(err.Code))
}

func TestMemcpy_ContiguousExactFit(t *testing.T) {
	src := make([]byte, 4*4)
	for i := range src {
		src[i] = byte(i)
	}
	dst := make([]byte, 4*4)

	i32 := Predefined(TagInt32)
	status := Memcpy(dst, 4, i32, src, 4, i32)

	assert.Equal(t, errors.OK, status.Code)
	assert.Equal(t, src, dst)
}

func TestMemcpy_Truncate(t *testing.T) {
	i32 := Predefined(TagInt32)
	src := make([]byte, 12*4)
	for i := range src {
		src[i] = byte(i)
	}
	dst := make([]byte, 11*4)

	status := Memcpy(dst, 11, i32, src, 12, i32)

	assert.Equal(t, errors.Truncate, status.Code)
	assert.Equal(t, src[:11*4], dst)
}

func TestPackUnpack_RoundTrip(t *testing.T) {
	i64 := Predefined(TagInt64)
	buf := make([]byte, 8*8)
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(i*1000))
	}

	packState, err := StartPack(buf, i64, 8)
	require.Nil(t, err)

	var stream []byte
	chunk := make([]byte, 7) // deliberately awkward chunk size
	offset := 0
	for {
		n, perr := Pack(packState, offset, chunk)
		require.Nil(t, perr)
		if n == 0 {
			break
		}
		stream = append(stream, chunk[:n]...)
		offset += n
	}
	require.Nil(t, FinishPack(packState))
	require.Equal(t, buf, stream)

	out := make([]byte, len(buf))
	unpackState, err := StartUnpack(out, i64, 8)
	require.Nil(t, err)

	off := 0
	for off < len(stream) {
		end := off + 5
		if end > len(stream) {
			end = len(stream)
		}
		n, uerr := Unpack(unpackState, off, stream[off:end])
		require.Nil(t, uerr)
		if n == 0 {
			break
		}
		off += n
	}
	require.Nil(t, FinishUnpack(unpackState))
	assert.Equal(t, buf, out)
}

func TestReduce_SumCommutative(t *testing.T) {
	i32 := Predefined(TagInt32)
	op, err := CreateOp(OpSum, i32, OpCreateParams{})
	require.Nil(t, err)

	a := make([]byte, 4)
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(a, uint32(7))
	binary.LittleEndian.PutUint32(b, uint32(35))

	ab := append([]byte(nil), b...)
	status := Reduce(op, a, ab, 1, i32)
	require.Nil(t, status.Err)

	ba := append([]byte(nil), a...)
	status2 := Reduce(op, b, ba, 1, i32)
	require.Nil(t, status2.Err)

	assert.Equal(t, ab, ba)
	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(ab))
}

func TestReduce_MaxMin(t *testing.T) {
	f64 := Predefined(TagFloat64)
	maxOp, err := CreateOp(OpMax, f64, OpCreateParams{})
	require.Nil(t, err)

	src := make([]byte, 8)
	dst := make([]byte, 8)
	encodeFloat64(src, 3.5)
	encodeFloat64(dst, 9.25)

	status := Reduce(maxOp, src, dst, 1, f64)
	require.Nil(t, status.Err)
	assert.Equal(t, 9.25, decodeFloat64(dst))
}

func TestCreateOp_UnsupportedForTag(t *testing.T) {
	_, err := CreateOp(OpSum, Predefined(TagFloat16), OpCreateParams{})
	require.NotNil(t, err)
	assert.Equal(t, "UNSUPPORTED", string(err.Code))
}
