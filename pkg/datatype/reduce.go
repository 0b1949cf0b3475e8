package datatype

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ucg-engine/pkg/errors"
)

// OpTag names a reduction kind. Predefined ops are looked up by
// (OpTag, element Tag); user ops carry their own ReduceFunc.
type OpTag uint32

const (
	OpMax OpTag = iota
	OpMin
	OpSum
	OpProd
	OpUserDefined
)

// ReduceFunc computes dst[i] := f(dst[i], src[i]) for count elements
// of dt in place over dst.
type ReduceFunc func(src, dst []byte, count int, dt *Datatype) error

// Op is a reduction operator. Predefined ops (max/min/sum/prod) exist
// for every numeric predefined type except float16, for which CreateOp
// returns UNSUPPORTED; Commutative is true for all of them.
type Op struct {
	Tag         OpTag
	Predefined  bool
	Commutative bool
	Persistent  bool
	Fn          ReduceFunc
	UserPtr     interface{}
}

// OpCreateParams describes a user reduction operator.
type OpCreateParams struct {
	Commutative bool
	Persistent  bool
	Fn          ReduceFunc
	UserPtr     interface{}
}

// predefinedOps[opTag][dtTag] holds the builtin reduce function.
var predefinedOps = map[OpTag]map[Tag]ReduceFunc{
	OpSum:  numericOpTable(func(a, b float64) float64 { return a + b }, true),
	OpProd: numericOpTable(func(a, b float64) float64 { return a * b }, true),
	OpMax:  numericOpTable(math.Max, true),
	OpMin:  numericOpTable(math.Min, true),
}

// CreateOp returns the predefined operator for (tag, dt) if
// tag != OpUserDefined, otherwise constructs a user operator from
// params.
func CreateOp(tag OpTag, dt *Datatype, params OpCreateParams) (*Op, *errors.Status) {
	if tag != OpUserDefined {
		table, ok := predefinedOps[tag]
		if !ok {
			return nil, errors.New(errors.InvalidParam, fmt.Sprintf("unknown predefined op %v", tag))
		}
		fn, ok := table[dt.Tag]
		if !ok {
			return nil, errors.New(errors.Unsupported, fmt.Sprintf("op %v not defined for %v", tag, dt.Tag))
		}
		return &Op{Tag: tag, Predefined: true, Commutative: true, Fn: fn}, nil
	}

	if params.Fn == nil {
		return nil, errors.New(errors.InvalidParam, "user op requires a reduce function")
	}
	return &Op{
		Tag:         OpUserDefined,
		Predefined:  false,
		Commutative: params.Commutative,
		Persistent:  params.Persistent,
		Fn:          params.Fn,
		UserPtr:     params.UserPtr,
	}, nil
}

// DestroyOp releases a user operator; it is a no-op for predefined
// ones.
func DestroyOp(op *Op) { _ = op }

// Reduce computes dst[i] := op(dst[i], src[i]) elementwise over count
// elements of dt.
func Reduce(op *Op, src, dst []byte, count int, dt *Datatype) *errors.Status {
	need := count * int(dt.Size)
	if len(src) < need || len(dst) < need {
		return errors.New(errors.InvalidParam, "src/dst shorter than count*size")
	}
	if err := op.Fn(src, dst, count, dt); err != nil {
		return errors.Wrap(errors.InvalidParam, "reduce failed", err)
	}
	return errors.Ok()
}

// numericOpTable builds a ReduceFunc per numeric predefined Tag from a
// float64 combinator. commutative is currently unused per-entry
// (all builtin numeric ops are commutative) but kept as a parameter so
// a future non-commutative builtin doesn't need a table reshape.
func numericOpTable(combine func(a, b float64) float64, _ bool) map[Tag]ReduceFunc {
	return map[Tag]ReduceFunc{
		TagInt8:    reduceFixed(1, decodeInt8, encodeInt8, combine),
		TagUint8:   reduceFixed(1, decodeUint8, encodeUint8, combine),
		TagInt16:   reduceFixed(2, decodeInt16, encodeInt16, combine),
		TagUint16:  reduceFixed(2, decodeUint16, encodeUint16, combine),
		TagInt32:   reduceFixed(4, decodeInt32, encodeInt32, combine),
		TagUint32:  reduceFixed(4, decodeUint32, encodeUint32, combine),
		TagInt64:   reduceFixed(8, decodeInt64, encodeInt64, combine),
		TagUint64:  reduceFixed(8, decodeUint64, encodeUint64, combine),
		TagFloat32: reduceFixed(4, decodeFloat32, encodeFloat32, combine),
		TagFloat64: reduceFixed(8, decodeFloat64, encodeFloat64, combine),
	}
}

func reduceFixed(size int, decode func([]byte) float64, encode func([]byte, float64), combine func(a, b float64) float64) ReduceFunc {
	return func(src, dst []byte, count int, _ *Datatype) error {
		for i := 0; i < count; i++ {
			off := i * size
			a := decode(dst[off : off+size])
			b := decode(src[off : off+size])
			encode(dst[off:off+size], combine(a, b))
		}
		return nil
	}
}

func decodeInt8(b []byte) float64  { return float64(int8(b[0])) }
func encodeInt8(b []byte, v float64) { b[0] = byte(int8(v)) }

func decodeUint8(b []byte) float64   { return float64(b[0]) }
func encodeUint8(b []byte, v float64) { b[0] = byte(uint8(v)) }

func decodeInt16(b []byte) float64 { return float64(int16(binary.LittleEndian.Uint16(b))) }
func encodeInt16(b []byte, v float64) { binary.LittleEndian.PutUint16(b, uint16(int16(v))) }

func decodeUint16(b []byte) float64 { return float64(binary.LittleEndian.Uint16(b)) }
func encodeUint16(b []byte, v float64) { binary.LittleEndian.PutUint16(b, uint16(v)) }

func decodeInt32(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) }
func encodeInt32(b []byte, v float64) { binary.LittleEndian.PutUint32(b, uint32(int32(v))) }

func decodeUint32(b []byte) float64 { return float64(binary.LittleEndian.Uint32(b)) }
func encodeUint32(b []byte, v float64) { binary.LittleEndian.PutUint32(b, uint32(v)) }

func decodeInt64(b []byte) float64 { return float64(int64(binary.LittleEndian.Uint64(b))) }
func encodeInt64(b []byte, v float64) { binary.LittleEndian.PutUint64(b, uint64(int64(v))) }

func decodeUint64(b []byte) float64 { return float64(binary.LittleEndian.Uint64(b)) }
func encodeUint64(b []byte, v float64) { binary.LittleEndian.PutUint64(b, uint64(v)) }

func decodeFloat32(b []byte) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
}
func encodeFloat32(b []byte, v float64) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
}

func decodeFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
func encodeFloat64(b []byte, v float64) {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}
