package datatype

import "github.com/ucg-engine/pkg/errors"

// Packer incrementally serialises count elements of a datatype out of
// memory into a byte stream. Calls to Pack may arrive in any order and
// with any (offset, len) split; per Testable Property 7, any
// interleaving whose spans cover [0, n*dt.size) without overlap must
// reproduce a contiguous copy of the logical content.
type Packer interface {
	// Pack writes up to len(iobuf) bytes of the logical stream starting
	// at offset into iobuf, returning the number of bytes written. A
	// return of 0 with a nil error means the stream is exhausted at
	// offset.
	Pack(offset int, iobuf []byte) (int, error)
	Finish() error
}

// Unpacker is the mirror of Packer: incrementally deserialises a byte
// stream into memory.
type Unpacker interface {
	Unpack(offset int, iobuf []byte) (int, error)
	Finish() error
}

// ConvertorFactory produces a fresh Packer/Unpacker bound to a given
// buffer and element count. Non-contiguous user datatypes supply one;
// contiguous datatypes (predefined or user) use the package's built-in
// straight-copy convertor instead.
type ConvertorFactory interface {
	NewPacker(buf []byte, count int) (Packer, error)
	NewUnpacker(buf []byte, count int) (Unpacker, error)
}

// PackState is the handle returned by StartPack.
type PackState struct {
	packer Packer
	dt     *Datatype
	count  int
}

// UnpackState is the handle returned by StartUnpack.
type UnpackState struct {
	unpacker Unpacker
	dt       *Datatype
	count    int
}

// StartPack begins an incremental pack of count elements of dt out of
// buf.
func StartPack(buf []byte, dt *Datatype, count int) (*PackState, *errors.Status) {
	packer, err := newPacker(buf, dt, count)
	if err != nil {
		return nil, err
	}
	return &PackState{packer: packer, dt: dt, count: count}, nil
}

// Pack writes the next span [offset, offset+len(iobuf)) of the
// logical stream into iobuf. len(iobuf) on entry is the requested
// capacity; the returned n is how much was actually produced, with
// n == 0 signalling end of stream.
func Pack(state *PackState, offset int, iobuf []byte) (int, *errors.Status) {
	n, err := state.packer.Pack(offset, iobuf)
	if err != nil {
		return 0, errors.Wrap(errors.IOError, "pack failed", err)
	}
	return n, nil
}

// FinishPack releases a pack state.
func FinishPack(state *PackState) *errors.Status {
	if err := state.packer.Finish(); err != nil {
		return errors.Wrap(errors.IOError, "pack finish failed", err)
	}
	return nil
}

// StartUnpack begins an incremental unpack of count elements of dt
// into buf.
func StartUnpack(buf []byte, dt *Datatype, count int) (*UnpackState, *errors.Status) {
	unpacker, err := newUnpacker(buf, dt, count)
	if err != nil {
		return nil, err
	}
	return &UnpackState{unpacker: unpacker, dt: dt, count: count}, nil
}

// Unpack writes iobuf into the logical stream starting at offset.
func Unpack(state *UnpackState, offset int, iobuf []byte) (int, *errors.Status) {
	n, err := state.unpacker.Unpack(offset, iobuf)
	if err != nil {
		return 0, errors.Wrap(errors.IOError, "unpack failed", err)
	}
	return n, nil
}

// FinishUnpack releases an unpack state.
func FinishUnpack(state *UnpackState) *errors.Status {
	if err := state.unpacker.Finish(); err != nil {
		return errors.Wrap(errors.IOError, "unpack finish failed", err)
	}
	return nil
}

func newPacker(buf []byte, dt *Datatype, count int) (Packer, *errors.Status) {
	if dt.Contiguous {
		logical, err := extractLogical(buf, dt, count)
		if err != nil {
			return nil, err
		}
		return &contiguousPacker{logical: logical}, nil
	}
	p, err := dt.Factory.NewPacker(buf, count)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidParam, "convertor factory rejected pack", err)
	}
	return p, nil
}

func newUnpacker(buf []byte, dt *Datatype, count int) (Unpacker, *errors.Status) {
	if dt.Contiguous {
		return &contiguousUnpacker{buf: buf, dt: dt, count: count}, nil
	}
	u, err := dt.Factory.NewUnpacker(buf, count)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidParam, "convertor factory rejected unpack", err)
	}
	return u, nil
}

// contiguousPacker/contiguousUnpacker implement the default
// straight-copy convertor used whenever dt.Extent == dt.Size: the
// logical stream is just buf laid out end to end.
type contiguousPacker struct {
	logical []byte
}

func (p *contiguousPacker) Pack(offset int, iobuf []byte) (int, error) {
	if offset < 0 || offset >= len(p.logical) {
		return 0, nil
	}
	return copy(iobuf, p.logical[offset:]), nil
}

func (p *contiguousPacker) Finish() error { return nil }

type contiguousUnpacker struct {
	buf   []byte
	dt    *Datatype
	count int
}

func (u *contiguousUnpacker) Unpack(offset int, iobuf []byte) (int, error) {
	total := u.count * int(u.dt.Size)
	if offset < 0 || offset >= total {
		return 0, nil
	}
	n := len(iobuf)
	if offset+n > total {
		n = total - offset
	}
	return copy(u.buf[offset:offset+n], iobuf[:n]), nil
}

func (u *contiguousUnpacker) Finish() error { return nil }

// extractLogical returns a tightly-packed copy of count elements of dt
// read from buf at stride dt.Extent. When Extent == Size this is a
// simple slice (no copy needed for the common case); strided extents
// only arise for user-defined contiguous types with padding, which
// this package supports but predefined types never use.
func extractLogical(buf []byte, dt *Datatype, count int) ([]byte, *errors.Status) {
	need := count * int(dt.Extent)
	if len(buf) < need {
		return nil, errors.New(errors.InvalidParam, "buffer shorter than count*extent")
	}
	if dt.Extent == dt.Size {
		return buf[:count*int(dt.Size)], nil
	}
	out := make([]byte, count*int(dt.Size))
	for i := 0; i < count; i++ {
		src := buf[i*int(dt.Extent) : i*int(dt.Extent)+int(dt.Size)]
		copy(out[i*int(dt.Size):], src)
	}
	return out, nil
}

// writeLogical writes a tightly-packed logical byte slice into dst at
// dt's element stride, honouring Extent > Size padding. Returns the
// number of whole elements written.
func writeLogical(dst []byte, dt *Datatype, count int, logical []byte) int {
	size := int(dt.Size)
	written := 0
	for i := 0; i < count; i++ {
		start := i * size
		if start+size > len(logical) {
			break
		}
		dstStart := i * int(dt.Extent)
		if dstStart+size > len(dst) {
			break
		}
		copy(dst[dstStart:dstStart+size], logical[start:start+size])
		written++
	}
	return written
}
