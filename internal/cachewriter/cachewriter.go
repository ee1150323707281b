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

// Package cachewriter implements the cache-write step (spec.md §4.I): rows,
// per-column ranges, access time and metadata are committed in a single
// read-write transaction. Writes are scheduled fire-and-forget by the result
// generator; they never surface errors to a caller.
package cachewriter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/erigontech/tscache/internal/tsmodel"
	"github.com/erigontech/tscache/internal/tsrange"
	"github.com/erigontech/tscache/internal/tsstore"
)

// Request is one write-back: the rows a response carried, the columns it
// covers, request.min (the start of the actually-covered range), and any
// additional metadata fields the response carried alongside data.
type Request struct {
	RequestMin float64
	Rows       []tsmodel.DataRow
	Columns    tsmodel.ColumnSet
	Metadata   tsmodel.Metadata
}

// Write commits req in a single read-write transaction (spec.md §4.I).
func Write(ctx context.Context, store *tsstore.Store, req Request) error {
	now := time.Now().UTC().Format(time.RFC3339)
	return store.Write(ctx, func(tx *tsstore.WriteTx) error {
		if err := tx.PutMetaKey(tsmodel.MetaAccessTime, now); err != nil {
			return err
		}

		for _, row := range req.Rows {
			if err := tx.PutRow(row); err != nil {
				return err
			}
		}

		if len(req.Rows) > 0 {
			lastRevision := req.Rows[len(req.Rows)-1].Revision()
			covered := tsrange.New(req.RequestMin, lastRevision)
			for _, col := range req.Columns.Slice() {
				if col == tsmodel.ColumnRevision || col == tsmodel.ColumnAlert {
					continue
				}
				if err := tx.ExtendRangeForColumn(col, covered); err != nil {
					return err
				}
			}
		}

		for k, v := range req.Metadata {
			if k == "data" {
				continue
			}
			if err := tx.PutMetaKey(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteMissingTimestamp records a negative result (spec.md §4.F, §4.H): a
// remote 404 stamps missingTimestamp with when, suppressing re-fetch within
// the retry window.
func WriteMissingTimestamp(ctx context.Context, store *tsstore.Store, when time.Time) error {
	return store.Write(ctx, func(tx *tsstore.WriteTx) error {
		return tx.PutMetaKey(tsmodel.MetaMissingTimestamp, when.UTC().Format(time.RFC3339))
	})
}

// Schedule runs Write in its own goroutine against a background context, so
// a caller that has gone away doesn't abort the write (spec.md §5: cache
// warming is a desirable side effect even then). Errors are logged, never
// surfaced.
func Schedule(store *tsstore.Store, logger *zap.SugaredLogger, req Request) {
	go func() {
		if err := Write(context.Background(), store, req); err != nil {
			logger.Errorw("cache write failed", "error", err)
		}
	}()
}

// ScheduleMissingTimestamp is Schedule's counterpart for negative results.
func ScheduleMissingTimestamp(store *tsstore.Store, logger *zap.SugaredLogger, when time.Time) {
	go func() {
		if err := WriteMissingTimestamp(context.Background(), store, when); err != nil {
			logger.Errorw("missing-timestamp write failed", "error", err)
		}
	}()
}
