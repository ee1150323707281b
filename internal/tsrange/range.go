// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package tsrange implements closed numeric interval algebra over float64,
// including ±∞ boundaries. It has no dependencies beyond the standard
// library: the operations are pure arithmetic with no I/O, parsing, or
// protocol surface for a third-party library to usefully own (see
// DESIGN.md for this call).
package tsrange

import (
	"math"

	"github.com/erigontech/tscache/internal/tserr"
)

// Range is a closed interval [Min, Max]. The zero value is not a valid
// empty range; use Empty() or IsEmpty to test.
type Range struct {
	Min     float64
	Max     float64
	isEmpty bool
}

// Empty returns the empty-range sentinel.
func Empty() Range {
	return Range{isEmpty: true}
}

// New returns the closed range [min, max]. Callers must ensure min <= max;
// New does not validate this (callers build ranges incrementally via
// AddValue when bounds aren't known up front).
func New(min, max float64) Range {
	return Range{Min: min, Max: max}
}

// Unbounded returns the closed range [min, +Inf], the "open top" shape of a
// request that carries no max_revision.
func Unbounded(min float64) Range {
	return Range{Min: min, Max: math.Inf(1)}
}

// IsEmpty reports whether r has no values; its boundaries are undefined.
func (r Range) IsEmpty() bool { return r.isEmpty }

// AddValue extends r's bounds monotonically to include v. An empty range
// becomes [v, v].
func (r Range) AddValue(v float64) Range {
	if r.isEmpty {
		return Range{Min: v, Max: v}
	}
	out := r
	if v < out.Min {
		out.Min = v
	}
	if v > out.Max {
		out.Max = v
	}
	return out
}

// Duration returns Max-Min, or 0 for an empty range.
func (r Range) Duration() float64 {
	if r.isEmpty {
		return 0
	}
	return r.Max - r.Min
}

// FindIntersection returns the overlap of r and other, empty if either
// operand is empty or the bounds cross (no overlap).
func (r Range) FindIntersection(other Range) Range {
	if r.isEmpty || other.isEmpty {
		return Empty()
	}
	lo := math.Max(r.Min, other.Min)
	hi := math.Min(r.Max, other.Max)
	if lo > hi {
		return Empty()
	}
	return Range{Min: lo, Max: hi}
}

// FindDifference returns a \ b as 0, 1, or 2 disjoint ranges.
//
//   - Empty a yields [].
//   - Empty b yields [a].
//   - If b covers a entirely, yields [].
//   - If b lies strictly inside a, yields two ranges meeting at b's
//     boundaries: [a.Min, b.Min] and [b.Max, a.Max]. Neither is collapsed
//     to empty even when b.Min == b.Max (a single excluded point).
//
// The returned error is always nil: a Range value cannot be absent, and the
// zero value is the non-empty range [0, 0] (callers pass Empty() for "no
// range").
func FindDifference(a, b Range) ([]Range, error) {
	if a.isEmpty {
		return nil, nil
	}
	if b.isEmpty {
		return []Range{a}, nil
	}

	var out []Range
	if b.Min > a.Min {
		left := Range{Min: a.Min, Max: math.Min(b.Min, a.Max)}
		out = append(out, left)
	}
	if b.Max < a.Max {
		right := Range{Min: math.Max(b.Max, a.Min), Max: a.Max}
		out = append(out, right)
	}
	return out, nil
}

// MustFindDifference panics on error; for call sites that have already
// validated their operands are well-formed (never absent).
func MustFindDifference(a, b Range) []Range {
	out, err := FindDifference(a, b)
	if err != nil {
		panic(err)
	}
	return out
}

// MergeIntoArray returns the sorted, coalesced union of sorted ∪ {r}.
// sorted must already be sorted ascending by Min and pairwise disjoint
// (erigon-style: the caller owns ordering invariants, this function
// preserves them). Adjacent or overlapping ranges are merged into one.
func (r Range) MergeIntoArray(sorted []Range) []Range {
	if r.isEmpty {
		out := make([]Range, len(sorted))
		copy(out, sorted)
		return out
	}

	out := make([]Range, 0, len(sorted)+1)
	merged := r
	inserted := false
	for _, cur := range sorted {
		if inserted {
			out = append(out, cur)
			continue
		}
		if cur.Max < merged.Min {
			// cur is entirely before merged and doesn't touch it.
			out = append(out, cur)
			continue
		}
		if cur.Min > merged.Max {
			// cur is entirely after merged and doesn't touch it: insert
			// merged now, then keep the rest untouched.
			out = append(out, merged)
			out = append(out, cur)
			inserted = true
			continue
		}
		// Overlap or touch: absorb cur into merged.
		merged = Range{Min: math.Min(merged.Min, cur.Min), Max: math.Max(merged.Max, cur.Max)}
	}
	if !inserted {
		out = append(out, merged)
	}
	return out
}

// jsonRange is the wire shape: {"min":..,"max":..}. An empty range
// serializes to {} (both fields omitted).
type jsonRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// ToDict returns the JSON-serializable form described in spec.md §3:
// {min,max} or the well-defined empty form.
func (r Range) ToDict() any {
	if r.isEmpty {
		return jsonRange{}
	}
	min, max := r.Min, r.Max
	return jsonRange{Min: &min, Max: &max}
}

// FromDict is the inverse of ToDict; together they satisfy the round-trip
// law Range.fromDict(r.toDict()) == r for all ranges including empty.
func FromDict(v any) (Range, error) {
	jr, ok := v.(jsonRange)
	if !ok {
		return Empty(), tserr.ErrInvalidInput
	}
	if jr.Min == nil || jr.Max == nil {
		return Empty(), nil
	}
	return Range{Min: *jr.Min, Max: *jr.Max}, nil
}

// Equal reports whether r and other denote the same interval (both empty,
// or equal bounds).
func (r Range) Equal(other Range) bool {
	if r.isEmpty != other.isEmpty {
		return false
	}
	if r.isEmpty {
		return true
	}
	return r.Min == other.Min && r.Max == other.Max
}
