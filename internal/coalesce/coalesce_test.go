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

package coalesce

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/tscache/internal/slice"
	"github.com/erigontech/tscache/internal/tsmodel"
	"github.com/erigontech/tscache/internal/tsrange"
)

func newSlice(r tsrange.Range, cols tsmodel.ColumnSet) *slice.Slice {
	return slice.New(tsmodel.TimeseriesIdentity{TestSuite: "s", Measurement: "m", Bot: "b"}, r, cols, "avg", "http://backend", nil, 3)
}

func TestJoinNoPeersReturnsAllOwn(t *testing.T) {
	reg := NewRegistry()
	s := newSlice(tsrange.New(0, 100), tsmodel.NewColumnSet("avg"))

	own, borrowed, dereg := reg.Join("store-a", []*slice.Slice{s})
	defer dereg()
	require.Len(t, own, 1)
	require.Empty(t, borrowed)
}

func TestJoinBorrowsCoveringPeerSlice(t *testing.T) {
	reg := NewRegistry()

	first := newSlice(tsrange.New(0, 100), tsmodel.NewColumnSet("avg"))
	_, _, dereg1 := reg.Join("store-a", []*slice.Slice{first})
	defer dereg1()

	second := newSlice(tsrange.New(50, 100), tsmodel.NewColumnSet("avg"))
	own, borrowed, dereg2 := reg.Join("store-a", []*slice.Slice{second})
	defer dereg2()

	require.Empty(t, own, "second slice should be fully covered and dropped")
	require.Len(t, borrowed, 1)
	require.Same(t, first, borrowed[0])
}

func TestJoinPartialColumnOverlapPrunesSharedColumnsOnly(t *testing.T) {
	reg := NewRegistry()

	first := newSlice(tsrange.New(0, 100), tsmodel.NewColumnSet("avg"))
	_, _, dereg1 := reg.Join("store-a", []*slice.Slice{first})
	defer dereg1()

	second := newSlice(tsrange.New(0, 100), tsmodel.NewColumnSet("avg", "std"))
	own, borrowed, dereg2 := reg.Join("store-a", []*slice.Slice{second})
	defer dereg2()

	require.Len(t, own, 1)
	require.False(t, own[0].Columns.Has("avg"))
	require.True(t, own[0].Columns.Has("std"))
	require.Len(t, borrowed, 1)
}

func TestDifferentStoreNamesDoNotCoalesce(t *testing.T) {
	reg := NewRegistry()

	first := newSlice(tsrange.New(0, 100), tsmodel.NewColumnSet("avg"))
	_, _, dereg1 := reg.Join("store-a", []*slice.Slice{first})
	defer dereg1()

	second := newSlice(tsrange.New(0, 100), tsmodel.NewColumnSet("avg"))
	own, borrowed, dereg2 := reg.Join("store-b", []*slice.Slice{second})
	defer dereg2()

	require.Len(t, own, 1)
	require.Empty(t, borrowed)
}

func TestDeregisterRemovesFromRegistry(t *testing.T) {
	reg := NewRegistry()

	first := newSlice(tsrange.New(0, 100), tsmodel.NewColumnSet("avg"))
	_, _, dereg1 := reg.Join("store-a", []*slice.Slice{first})
	dereg1()

	second := newSlice(tsrange.New(50, 100), tsmodel.NewColumnSet("avg"))
	own, borrowed, dereg2 := reg.Join("store-a", []*slice.Slice{second})
	defer dereg2()

	require.Len(t, own, 1, "first request already deregistered, nothing to borrow from")
	require.Empty(t, borrowed)
}
