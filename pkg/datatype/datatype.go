// Package datatype implements the predefined and user-defined element
// type registry: wire layout/memory footprint description, pack/unpack
// convertors for non-contiguous types, and dt_memcpy.
package datatype

import (
	"fmt"

	"github.com/ucg-engine/pkg/errors"
)

// Tag identifies a datatype's element kind. Predefined tags are
// process-global singletons; Tag for a user type is always
// TagUserDefined and identity is carried by the *Datatype pointer.
type Tag uint32

const (
	TagInt8 Tag = iota
	TagUint8
	TagInt16
	TagUint16
	TagInt32
	TagUint32
	TagInt64
	TagUint64
	TagFloat16
	TagFloat32
	TagFloat64
	TagUserDefined
)

func (t Tag) String() string {
	switch t {
	case TagInt8:
		return "int8"
	case TagUint8:
		return "uint8"
	case TagInt16:
		return "int16"
	case TagUint16:
		return "uint16"
	case TagInt32:
		return "int32"
	case TagUint32:
		return "uint32"
	case TagInt64:
		return "int64"
	case TagUint64:
		return "uint64"
	case TagFloat16:
		return "float16"
	case TagFloat32:
		return "float32"
	case TagFloat64:
		return "float64"
	default:
		return "user"
	}
}

// Datatype describes a value's wire layout and memory footprint, per
// §3's Datatype entry. Predefined instances are singletons returned by
// Create; they are never destroyed and identity comparison (==) on the
// pointer is the correct way to test "is this the predefined int32
// type".
type Datatype struct {
	Tag        Tag
	Predefined bool
	Contiguous bool
	Size       uint64 // wire bytes per element
	Extent     uint64 // memory stride per element
	TrueLB     int64
	TrueExtent uint64
	Factory    ConvertorFactory // non-nil only for non-contiguous types
	UserPtr    interface{}
}

// CreateParams describes a user-defined datatype. Leave Factory nil
// only when Size == Extent (a contiguous user type needs no
// convertor).
type CreateParams struct {
	Size       uint64
	Extent     uint64
	TrueLB     int64
	TrueExtent uint64
	Factory    ConvertorFactory
	UserPtr    interface{}
}

var predefinedSizes = map[Tag]uint64{
	TagInt8: 1, TagUint8: 1,
	TagInt16: 2, TagUint16: 2,
	TagInt32: 4, TagUint32: 4,
	TagInt64: 8, TagUint64: 8,
	TagFloat16: 2, TagFloat32: 4, TagFloat64: 8,
}

var predefined map[Tag]*Datatype

func init() {
	predefined = make(map[Tag]*Datatype, len(predefinedSizes))
	for tag, size := range predefinedSizes {
		predefined[tag] = &Datatype{
			Tag:        tag,
			Predefined: true,
			Contiguous: true,
			Size:       size,
			Extent:     size,
			TrueLB:     0,
			TrueExtent: size,
		}
	}
}

// Predefined returns the process-global singleton for tag, or nil if
// tag does not name a predefined type.
func Predefined(tag Tag) *Datatype {
	return predefined[tag]
}

// Create returns the predefined singleton for tag if tag != TagUserDefined,
// otherwise constructs a new user datatype from params.
func Create(tag Tag, params CreateParams) (*Datatype, *errors.Status) {
	if tag != TagUserDefined {
		dt := Predefined(tag)
		if dt == nil {
			return nil, errors.New(errors.InvalidParam, fmt.Sprintf("unknown predefined tag %v", tag))
		}
		return dt, nil
	}

	if params.Size == 0 {
		return nil, errors.New(errors.InvalidParam, "user datatype requires non-zero size")
	}
	if params.Extent == 0 {
		params.Extent = params.Size
	}
	if params.Extent < params.Size {
		return nil, errors.New(errors.InvalidParam, "extent must be >= size")
	}

	contiguous := params.Size == params.Extent
	if !contiguous && params.Factory == nil {
		return nil, errors.New(errors.InvalidParam, "non-contiguous datatype requires a convertor factory")
	}

	trueExtent := params.TrueExtent
	if trueExtent == 0 {
		trueExtent = params.Size
	}

	return &Datatype{
		Tag:        TagUserDefined,
		Predefined: false,
		Contiguous: contiguous,
		Size:       params.Size,
		Extent:     params.Extent,
		TrueLB:     params.TrueLB,
		TrueExtent: trueExtent,
		Factory:    params.Factory,
		UserPtr:    params.UserPtr,
	}, nil
}

// Destroy releases a user datatype. It is a no-op for predefined
// types, matching dt_destroy's contract.
func Destroy(dt *Datatype) {
	// Predefined types are interned and never freed; user types carry
	// no engine-owned resources beyond what the GC already reclaims.
	_ = dt
}
