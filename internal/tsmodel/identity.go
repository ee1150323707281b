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

// Package tsmodel holds the data types shared across the cache, planner,
// coalescer and result generator: timeseries identity, column names, rows,
// and the per-column availability map.
package tsmodel

import "fmt"

// TimeseriesIdentity names one persistent store instance. TestCase and
// BuildType default to "".
type TimeseriesIdentity struct {
	TestSuite   string
	Measurement string
	Bot         string
	TestCase    string
	BuildType   string
}

// Validate enforces that TestSuite, Measurement and Bot are non-empty.
func (id TimeseriesIdentity) Validate() error {
	if id.TestSuite == "" {
		return fmt.Errorf("timeseries identity: test_suite is required")
	}
	if id.Measurement == "" {
		return fmt.Errorf("timeseries identity: measurement is required")
	}
	if id.Bot == "" {
		return fmt.Errorf("timeseries identity: bot is required")
	}
	return nil
}

// StoreName returns the persistent-store key template from spec.md §6:
// timeseries/{testSuite}/{measurement}/{bot}/{testCase}/{buildType}.
func (id TimeseriesIdentity) StoreName() string {
	return fmt.Sprintf("timeseries/%s/%s/%s/%s/%s", id.TestSuite, id.Measurement, id.Bot, id.TestCase, id.BuildType)
}

// ColumnName is a reserved-or-arbitrary data column.
type ColumnName string

// Reserved column names with special semantics (spec.md §3).
const (
	// ColumnRevision is the primary key. Never fetched alone, never marked
	// as an "available" column.
	ColumnRevision ColumnName = "revision"
	// ColumnAlert is always refetched; never marked available.
	ColumnAlert ColumnName = "alert"
	// ColumnHistogram is always requested in its own slices, separate from
	// every other column.
	ColumnHistogram ColumnName = "histogram"
)

// ColumnSet is a set of ColumnName, used throughout the planner.
type ColumnSet map[ColumnName]struct{}

// NewColumnSet builds a set from a slice, always including ColumnRevision.
func NewColumnSet(cols ...ColumnName) ColumnSet {
	s := make(ColumnSet, len(cols)+1)
	s[ColumnRevision] = struct{}{}
	for _, c := range cols {
		s[c] = struct{}{}
	}
	return s
}

// Clone returns a shallow copy of s.
func (s ColumnSet) Clone() ColumnSet {
	out := make(ColumnSet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// Has reports whether c is in s.
func (s ColumnSet) Has(c ColumnName) bool {
	_, ok := s[c]
	return ok
}

// Remove deletes c from s in place.
func (s ColumnSet) Remove(c ColumnName) {
	delete(s, c)
}

// Add inserts c into s in place.
func (s ColumnSet) Add(c ColumnName) {
	s[c] = struct{}{}
}

// Slice returns s's members in no particular order.
func (s ColumnSet) Slice() []ColumnName {
	out := make([]ColumnName, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out
}

// OnlyRevision reports whether s's sole member is ColumnRevision.
func (s ColumnSet) OnlyRevision() bool {
	return len(s) == 1 && s.Has(ColumnRevision)
}

// DataRow maps ColumnName to a primitive value. Every row must carry
// ColumnRevision.
type DataRow map[ColumnName]any

// Revision returns the row's revision key as a float64, the common type
// used by Range. It panics if the row has no revision field of a numeric
// type; callers are expected to have validated rows on ingest.
func (r DataRow) Revision() float64 {
	v, ok := r[ColumnRevision]
	if !ok {
		panic("tsmodel: row has no revision field")
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		panic(fmt.Sprintf("tsmodel: row revision field has unexpected type %T", v))
	}
}

// Clone returns a shallow copy of r.
func (r DataRow) Clone() DataRow {
	out := make(DataRow, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// MergeFieldsFrom shallow-merges src's fields into r in place, last write
// wins (src overrides r).
func (r DataRow) MergeFieldsFrom(src DataRow) {
	for k, v := range src {
		r[k] = v
	}
}
