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

// Package cachereader implements the cache-read step (spec.md §4.E): in a
// single read transaction, load metadata, cached rows in the request
// range, and per-column availability clipped to the request.
package cachereader

import (
	"context"

	"github.com/erigontech/tscache/internal/tsmodel"
	"github.com/erigontech/tscache/internal/tsrange"
	"github.com/erigontech/tscache/internal/tsstore"
)

// Result is the cache-read outcome: metadata plus, when any requested
// column overlaps cached availability, the matching rows.
type Result struct {
	Metadata            tsmodel.Metadata
	AvailableRangeByCol tsmodel.AvailableRangeByCol
	Data                []tsmodel.DataRow // nil if no column overlaps
}

// Read performs the cache read described in spec.md §4.E.
func Read(ctx context.Context, store *tsstore.Store, req tsmodel.Request) (*Result, error) {
	var res Result
	err := store.Read(ctx, func(tx *tsstore.ReadTx) error {
		meta, err := tx.Metadata()
		if err != nil {
			return err
		}
		res.Metadata = meta

		res.AvailableRangeByCol = tsmodel.AvailableRangeByCol{}
		anyOverlap := false
		for col := range req.Columns {
			if col == tsmodel.ColumnRevision {
				continue
			}
			ranges, err := tx.RangesForColumn(col)
			if err != nil {
				return err
			}
			overlap, ok := firstOverlap(ranges, req.RevisionRange)
			if !ok {
				continue
			}
			res.AvailableRangeByCol[col] = overlap
			anyOverlap = true
		}

		if !anyOverlap {
			return nil
		}
		rows, err := tx.RowsInRange(req.RevisionRange)
		if err != nil {
			return err
		}
		res.Data = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// firstOverlap returns the first range in ranges whose intersection with
// request is non-empty, and that intersection (spec.md §4.E.3).
func firstOverlap(ranges []tsrange.Range, request tsrange.Range) (tsrange.Range, bool) {
	for _, stored := range ranges {
		overlap := stored.FindIntersection(request)
		if !overlap.IsEmpty() {
			return overlap, true
		}
	}
	return tsrange.Empty(), false
}
