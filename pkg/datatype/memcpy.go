package datatype

import "github.com/ucg-engine/pkg/errors"

// Memcpy implements dt_memcpy: copies scount elements of srcDt from
// src into dst, which has room for dcount elements of dstDt. Returns
// OK if every source byte fit, TRUNCATE with dst filled as far as
// possible if src was larger, or another status with nothing copied
// if a convertor failed.
func Memcpy(dst []byte, dcount int, dstDt *Datatype, src []byte, scount int, srcDt *Datatype) *errors.Status {
	srcLogical, err := packLogical(src, srcDt, scount)
	if err != nil {
		return err
	}

	srcTotal := scount * int(srcDt.Size)
	dstCap := dcount * int(dstDt.Size)

	n := srcTotal
	truncated := false
	if n > dstCap {
		n = dstCap
		truncated = true
	}
	// n must be a whole number of source elements for the convertor
	// boundary; a short destination that splits an element still only
	// delivers whole elements, matching the truncating-memcpy scenario.
	n -= n % int(srcDt.Size)

	if writeErr := unpackLogical(dst, dstDt, dcount, srcLogical[:n]); writeErr != nil {
		return writeErr
	}

	if truncated {
		return errors.New(errors.Truncate, "source larger than destination")
	}
	return errors.Ok()
}

// packLogical returns a tightly-packed byte slice of count elements of
// dt extracted from buf, producing it via dt's convertor for
// non-contiguous types.
func packLogical(buf []byte, dt *Datatype, count int) ([]byte, *errors.Status) {
	if dt.Contiguous {
		return extractLogical(buf, dt, count)
	}

	state, err := StartPack(buf, dt, count)
	if err != nil {
		return nil, err
	}
	defer FinishPack(state)

	total := count * int(dt.Size)
	out := make([]byte, 0, total)
	chunk := make([]byte, 4096)
	offset := 0
	for offset < total {
		n, perr := Pack(state, offset, chunk)
		if perr != nil {
			return nil, perr
		}
		if n == 0 {
			break
		}
		out = append(out, chunk[:n]...)
		offset += n
	}
	return out, nil
}

// unpackLogical writes a tightly-packed logical byte slice into buf
// (count elements of dt), via dt's convertor for non-contiguous types.
func unpackLogical(buf []byte, dt *Datatype, count int, logical []byte) *errors.Status {
	if dt.Contiguous {
		writeLogical(buf, dt, count, logical)
		return nil
	}

	state, err := StartUnpack(buf, dt, count)
	if err != nil {
		return err
	}
	defer FinishUnpack(state)

	offset := 0
	for offset < len(logical) {
		end := offset + 4096
		if end > len(logical) {
			end = len(logical)
		}
		n, uerr := Unpack(state, offset, logical[offset:end])
		if uerr != nil {
			return uerr
		}
		if n == 0 {
			break
		}
		offset += n
	}
	return nil
}
