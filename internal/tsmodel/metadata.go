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

package tsmodel

import (
	"time"

	"github.com/erigontech/tscache/internal/tsrange"
)

// Well-known metadata keys (spec.md §3).
const (
	MetaImprovementDirection = "improvement_direction"
	MetaUnits                = "units"
	MetaMissingTimestamp     = "missingTimestamp"
	MetaAccessTime           = "_accessTime"
)

// Metadata is the free-form key/value bag stored per identity.
type Metadata map[string]any

// Clone returns a shallow copy of m.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MissingTimestamp returns the parsed MetaMissingTimestamp value, or the
// zero time and false if absent or unparsable.
func (m Metadata) MissingTimestamp() (time.Time, bool) {
	raw, ok := m[MetaMissingTimestamp]
	if !ok {
		return time.Time{}, false
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// AvailableRanges maps ColumnName to its ordered list of disjoint revision
// ranges, sorted ascending by Min; no two ranges overlap or touch
// (bordering ranges are merged at insertion, see Extend).
type AvailableRanges map[ColumnName][]tsrange.Range

// Clone returns a deep-enough copy (new map, new slices; Range values are
// themselves immutable).
func (a AvailableRanges) Clone() AvailableRanges {
	out := make(AvailableRanges, len(a))
	for col, ranges := range a {
		cp := make([]tsrange.Range, len(ranges))
		copy(cp, ranges)
		out[col] = cp
	}
	return out
}

// Extend merges r into the column's range list, preserving the sorted,
// disjoint invariant (spec.md §3).
func (a AvailableRanges) Extend(col ColumnName, r tsrange.Range) {
	a[col] = r.MergeIntoArray(a[col])
}

// FirstOverlap returns the first stored range for col whose intersection
// with request is non-empty, and that intersection, matching spec.md
// §4.E.3: "the first stored range whose intersection with the request
// range is non-empty; the value stored in the map is that intersection."
func (a AvailableRanges) FirstOverlap(col ColumnName, request tsrange.Range) (tsrange.Range, bool) {
	for _, stored := range a[col] {
		overlap := stored.FindIntersection(request)
		if !overlap.IsEmpty() {
			return overlap, true
		}
	}
	return tsrange.Empty(), false
}

// AvailableRangeByCol is the per-request derivative of AvailableRanges
// described in spec.md §4.E: for each requested column, the first
// intersecting stored range clipped to the request. Columns with no
// overlap are absent.
type AvailableRangeByCol map[ColumnName]tsrange.Range
