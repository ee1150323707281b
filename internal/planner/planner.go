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

// Package planner implements the slice planner (spec.md §4.F): from cached
// availability, the request range and the requested columns, it produces
// the minimal set of remote slices needed to fill the request.
package planner

import (
	"github.com/erigontech/tscache/internal/tsmodel"
	"github.com/erigontech/tscache/internal/tsrange"
)

// PlannedSlice is one unit of missing work: a sub-range and the columns it
// needs to carry (always including ColumnRevision).
type PlannedSlice struct {
	Range   tsrange.Range
	Columns tsmodel.ColumnSet
}

// Plan computes the minimal slice set for requestColumns over
// revisionRange, given the per-column cached availability already
// intersected with the request (availableRangeByCol may be nil or
// partial: columns absent from it have no cached overlap at all).
func Plan(requestColumns tsmodel.ColumnSet, revisionRange tsrange.Range, availableRangeByCol tsmodel.AvailableRangeByCol) ([]PlannedSlice, error) {
	remaining := requestColumns.Clone()
	var out []PlannedSlice

	// Step 1: histograms are split off into their own slices. Its own
	// availability (absent entirely if nothing is cached) is differenced
	// against the request range to find what's missing.
	if remaining.Has(tsmodel.ColumnHistogram) {
		remaining.Remove(tsmodel.ColumnHistogram)
		available, ok := availableRangeByCol[tsmodel.ColumnHistogram]
		if !ok {
			available = tsrange.Empty()
		}
		missing, err := tsrange.FindDifference(revisionRange, available)
		if err != nil {
			return nil, err
		}
		for _, m := range missing {
			if m.IsEmpty() {
				continue
			}
			out = append(out, PlannedSlice{
				Range:   m,
				Columns: tsmodel.NewColumnSet(tsmodel.ColumnHistogram),
			})
		}
	}

	// Step 2: fully-cached non-revision, non-alert columns drop out.
	for _, col := range remaining.Slice() {
		if col == tsmodel.ColumnRevision || col == tsmodel.ColumnAlert {
			continue
		}
		overlap, ok := availableRangeByCol[col]
		if ok && overlap.Duration() == revisionRange.Duration() {
			remaining.Remove(col)
		}
	}

	// Step 3: all-cached short-circuit.
	if remaining.OnlyRevision() {
		return out, nil
	}

	// Step 4: common-intersection reduction over remaining non-revision
	// columns (alert included: it always participates, since it is never
	// marked available by the cache writer).
	var commonAvailable tsrange.Range
	first := true
	for _, col := range remaining.Slice() {
		if col == tsmodel.ColumnRevision {
			continue
		}
		overlap, ok := availableRangeByCol[col]
		if !ok || col == tsmodel.ColumnAlert {
			overlap = tsrange.Empty()
		}
		if first {
			commonAvailable = overlap
			first = false
			continue
		}
		commonAvailable = commonAvailable.FindIntersection(overlap)
	}
	if first {
		// No non-revision columns remained (shouldn't happen after step
		// 3's short-circuit, but guard defensively).
		return out, nil
	}

	missing, err := tsrange.FindDifference(revisionRange, commonAvailable)
	if err != nil {
		return nil, err
	}

	// Step 5: one slice per missing sub-range, carrying revision + all
	// remaining columns.
	for _, m := range missing {
		if m.IsEmpty() {
			continue
		}
		out = append(out, PlannedSlice{Range: m, Columns: remaining.Clone()})
	}
	return out, nil
}
