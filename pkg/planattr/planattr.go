// Package planattr parses the plan-attribute override grammar used by
// the per-collective <COLL>_ATTR config option:
//
//	(I:<id> ( S:<score> | R:<lo>[-<hi>] | G:<lo>[-<hi>] )* )+
//
// The grammar has no whitespace requirement between clauses — the
// original ucg_plan_attr_update (ucg_plan.c) scans the string char by
// char with sscanf's "%n" to learn how much each field consumed, so
// "I:1G:100-200" and "I:1 G:100-200" parse identically. Parse mirrors
// that by ending each value at the next "<KEY>:" marker or at
// whitespace, whichever comes first.
package planattr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ucg-engine/pkg/errors"
)

// Bound is an inclusive [Lo, Hi) range with an optional upper bound;
// HasHi false means "unlimited".
type Bound struct {
	Lo    uint64
	Hi    uint64
	HasHi bool
}

// Override is one `I:<id>...` clause: the plan identified by ID gets
// its Score and/or message-size Range replaced, and is marked
// deprecated if the current group size falls outside GroupSize.
type Override struct {
	ID        string
	Score     *uint32
	Range     *Bound
	GroupSize *Bound
}

// Parse parses the full override string, which may name several plan
// ids back to back, with or without separating whitespace. Malformed
// tokens yield INVALID_PARAM, matching the grammar's error contract.
func Parse(s string) ([]Override, *errors.Status) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var overrides []Override
	var cur *Override
	i := 0
	for i < len(s) {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			break
		}
		if !isKeyLetter(s[i]) || i+1 >= len(s) || s[i+1] != ':' {
			return nil, errors.New(errors.InvalidParam, fmt.Sprintf("malformed token %q", s[i:]))
		}
		key := s[i]
		i += 2

		val, consumed := scanValue(s[i:])
		i += consumed

		switch key {
		case 'I':
			if val == "" {
				return nil, errors.New(errors.InvalidParam, "empty plan id")
			}
			if cur != nil {
				overrides = append(overrides, *cur)
			}
			cur = &Override{ID: val}
		case 'S':
			if cur == nil {
				return nil, errors.New(errors.InvalidParam, "S before any I:<id>")
			}
			score, perr := strconv.ParseUint(val, 10, 32)
			if perr != nil {
				return nil, errors.New(errors.InvalidParam, fmt.Sprintf("bad score %q", val))
			}
			s32 := uint32(score)
			cur.Score = &s32
		case 'R':
			if cur == nil {
				return nil, errors.New(errors.InvalidParam, "R before any I:<id>")
			}
			b, berr := parseBound(val, 64)
			if berr != nil {
				return nil, berr
			}
			cur.Range = b
		case 'G':
			if cur == nil {
				return nil, errors.New(errors.InvalidParam, "G before any I:<id>")
			}
			b, berr := parseBound(val, 32)
			if berr != nil {
				return nil, berr
			}
			cur.GroupSize = b
		}
	}
	if cur != nil {
		overrides = append(overrides, *cur)
	}
	return overrides, nil
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' }

func isKeyLetter(c byte) bool { return c == 'I' || c == 'S' || c == 'R' || c == 'G' }

// scanValue reads a clause's value: everything up to (but not
// including) the next whitespace, the next "<KEY>:" marker, or the end
// of the string. This is what lets a value run directly into the next
// clause with no separator, e.g. the "1" in "I:1G:100-200" stops right
// before "G:", while leftover text such as "Sfoo" is left for Parse to
// reject as a malformed token.
func scanValue(s string) (value string, consumed int) {
	for i := 0; i < len(s); i++ {
		if isSpace(s[i]) || (isKeyLetter(s[i]) && i+1 < len(s) && s[i+1] == ':') {
			return s[:i], i
		}
	}
	return s, len(s)
}

// parseBound parses "<lo>" or "<lo>-<hi>". An explicit range with
// hi <= lo (including "R:<lo>-<lo>") is invalid.
func parseBound(val string, bits int) (*Bound, *errors.Status) {
	parts := strings.SplitN(val, "-", 2)
	lo, err := strconv.ParseUint(parts[0], 10, bits)
	if err != nil {
		return nil, errors.New(errors.InvalidParam, fmt.Sprintf("bad bound %q", val))
	}
	if len(parts) == 1 {
		return &Bound{Lo: lo}, nil
	}
	hi, err := strconv.ParseUint(parts[1], 10, bits)
	if err != nil {
		return nil, errors.New(errors.InvalidParam, fmt.Sprintf("bad bound %q", val))
	}
	if hi <= lo {
		return nil, errors.New(errors.InvalidParam, fmt.Sprintf("empty range %q", val))
	}
	return &Bound{Lo: lo, Hi: hi, HasHi: true}, nil
}
