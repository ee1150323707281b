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

package cachewriter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/tscache/internal/kv"
	"github.com/erigontech/tscache/internal/kv/memdb"
	"github.com/erigontech/tscache/internal/tsmodel"
	"github.com/erigontech/tscache/internal/tsstore"
)

func newTestStore(t *testing.T) *tsstore.Store {
	t.Helper()
	mgr := tsstore.NewManager(func(string) (kv.RwDB, error) {
		return memdb.Open(tsstore.Tables()), nil
	})
	s, err := mgr.For("timeseries/s/m/b//")
	require.NoError(t, err)
	return s
}

func row(rev float64, avg float64) tsmodel.DataRow {
	return tsmodel.DataRow{tsmodel.ColumnRevision: rev, "avg": avg}
}

func TestWritePersistsRowsAndExtendsRanges(t *testing.T) {
	store := newTestStore(t)
	req := Request{
		RequestMin: 0,
		Rows:       []tsmodel.DataRow{row(10, 1.0), row(20, 2.0)},
		Columns:    tsmodel.NewColumnSet("avg"),
	}
	require.NoError(t, Write(context.Background(), store, req))

	err := store.Read(context.Background(), func(tx *tsstore.ReadTx) error {
		ranges, err := tx.RangesForColumn("avg")
		require.NoError(t, err)
		require.Len(t, ranges, 1)
		require.Equal(t, float64(0), ranges[0].Min)
		require.Equal(t, float64(20), ranges[0].Max)

		meta, err := tx.Metadata()
		require.NoError(t, err)
		_, ok := meta[tsmodel.MetaAccessTime]
		require.True(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestWriteExcludesAlertFromRangeExtension(t *testing.T) {
	store := newTestStore(t)
	req := Request{
		RequestMin: 0,
		Rows:       []tsmodel.DataRow{{tsmodel.ColumnRevision: 10.0, tsmodel.ColumnAlert: "x"}},
		Columns:    tsmodel.NewColumnSet(tsmodel.ColumnAlert),
	}
	require.NoError(t, Write(context.Background(), store, req))

	err := store.Read(context.Background(), func(tx *tsstore.ReadTx) error {
		ranges, err := tx.RangesForColumn(tsmodel.ColumnAlert)
		require.NoError(t, err)
		require.Empty(t, ranges, "alert must never be marked available")
		return nil
	})
	require.NoError(t, err)
}

func TestWriteWithNoRowsSkipsRangeUpdate(t *testing.T) {
	store := newTestStore(t)
	req := Request{RequestMin: 0, Columns: tsmodel.NewColumnSet("avg")}
	require.NoError(t, Write(context.Background(), store, req))

	err := store.Read(context.Background(), func(tx *tsstore.ReadTx) error {
		ranges, err := tx.RangesForColumn("avg")
		require.NoError(t, err)
		require.Empty(t, ranges)
		return nil
	})
	require.NoError(t, err)
}

func TestWriteMissingTimestampRecorded(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, WriteMissingTimestamp(context.Background(), store, now))

	err := store.Read(context.Background(), func(tx *tsstore.ReadTx) error {
		meta, err := tx.Metadata()
		require.NoError(t, err)
		ts, ok := meta.MissingTimestamp()
		require.True(t, ok)
		require.True(t, ts.Equal(now))
		return nil
	})
	require.NoError(t, err)
}
