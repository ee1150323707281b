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

// Package rowmerge implements the insertion-sort merge of row dictionaries
// keyed by revision (spec.md §4.B): merging each input row into a target
// slice that stays sorted ascending by key, last write wins per field.
package rowmerge

import "github.com/erigontech/tscache/internal/tsmodel"

// FindLowIndex returns the smallest index i such that keyFn(array[i]) >=
// loVal, or len(array) if no such index exists. Returns 0 on an empty
// array.
//
// The original source this was distilled from returns 1 on an empty
// array, which would make MergeObjectArrays splice at index 1 into a
// single-element target — spec.md §9 flags this as a bug. This
// implementation returns 0.
func FindLowIndex(array []tsmodel.DataRow, loVal float64) int {
	lo, hi := 0, len(array)
	for lo < hi {
		mid := (lo + hi) / 2
		if array[mid].Revision() >= loVal {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// MergeObjectArrays merges each of inputs into target in place, keeping
// target sorted ascending by revision. For each row in an input, it binary
// searches target for the first index whose revision is >= the row's
// revision: if equal, it shallow-merges the row's fields into the existing
// row (last write wins within this call, in input order); otherwise it
// splices a shallow copy of the row in at that index.
func MergeObjectArrays(target []tsmodel.DataRow, inputs ...[]tsmodel.DataRow) []tsmodel.DataRow {
	for _, input := range inputs {
		for _, row := range input {
			idx := FindLowIndex(target, row.Revision())
			if idx < len(target) && target[idx].Revision() == row.Revision() {
				target[idx].MergeFieldsFrom(row)
				continue
			}
			target = spliceAt(target, idx, row.Clone())
		}
	}
	return target
}

func spliceAt(target []tsmodel.DataRow, idx int, row tsmodel.DataRow) []tsmodel.DataRow {
	target = append(target, tsmodel.DataRow{})
	copy(target[idx+1:], target[idx:])
	target[idx] = row
	return target
}
