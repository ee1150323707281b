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

package rowmerge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/tscache/internal/tsmodel"
)

func row(rev float64, fields map[tsmodel.ColumnName]any) tsmodel.DataRow {
	r := tsmodel.DataRow{tsmodel.ColumnRevision: rev}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

func TestFindLowIndexEmptyReturnsZero(t *testing.T) {
	require.Equal(t, 0, FindLowIndex(nil, 5))
}

func TestFindLowIndexSingleElement(t *testing.T) {
	target := []tsmodel.DataRow{row(10, nil)}
	require.Equal(t, 0, FindLowIndex(target, 10))
	require.Equal(t, 0, FindLowIndex(target, 5))
	require.Equal(t, 1, FindLowIndex(target, 15))
}

func TestMergeObjectArraysInsertsInOrder(t *testing.T) {
	target := []tsmodel.DataRow{row(10, nil), row(30, nil)}
	input := []tsmodel.DataRow{row(20, map[tsmodel.ColumnName]any{"avg": 1.0})}
	out := MergeObjectArrays(target, input)
	require.Len(t, out, 3)
	require.Equal(t, float64(10), out[0].Revision())
	require.Equal(t, float64(20), out[1].Revision())
	require.Equal(t, float64(30), out[2].Revision())
	require.Equal(t, 1.0, out[1]["avg"])
}

func TestMergeObjectArraysLastWriteWins(t *testing.T) {
	target := []tsmodel.DataRow{row(10, map[tsmodel.ColumnName]any{"avg": 1.0})}
	input := []tsmodel.DataRow{row(10, map[tsmodel.ColumnName]any{"avg": 2.0, "units": "ms"})}
	out := MergeObjectArrays(target, input)
	require.Len(t, out, 1)
	require.Equal(t, 2.0, out[0]["avg"])
	require.Equal(t, "ms", out[0]["units"])
}

func TestMergeObjectArraysOrderSensitiveAcrossInputs(t *testing.T) {
	var target []tsmodel.DataRow
	a := []tsmodel.DataRow{row(10, map[tsmodel.ColumnName]any{"avg": 1.0})}
	b := []tsmodel.DataRow{row(10, map[tsmodel.ColumnName]any{"avg": 2.0})}
	out := MergeObjectArrays(target, a, b)
	require.Len(t, out, 1)
	require.Equal(t, 2.0, out[0]["avg"]) // b applied after a in the same call
}

func TestMergeObjectArraysStrictlySorted(t *testing.T) {
	var target []tsmodel.DataRow
	input := []tsmodel.DataRow{row(50, nil), row(10, nil), row(30, nil)}
	out := MergeObjectArrays(target, input)
	require.Len(t, out, 3)
	for i := 1; i < len(out); i++ {
		require.Less(t, out[i-1].Revision(), out[i].Revision())
	}
}
