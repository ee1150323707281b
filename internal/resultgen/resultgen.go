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

// Package resultgen implements the streaming result generator (spec.md
// §4.H): cached snapshot first, then one snapshot per completed slice in
// remote-completion order, merging incrementally and scheduling the final
// cache write.
package resultgen

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erigontech/tscache/internal/cachereader"
	"github.com/erigontech/tscache/internal/cachewriter"
	"github.com/erigontech/tscache/internal/coalesce"
	"github.com/erigontech/tscache/internal/planner"
	"github.com/erigontech/tscache/internal/rowmerge"
	"github.com/erigontech/tscache/internal/slice"
	"github.com/erigontech/tscache/internal/tserr"
	"github.com/erigontech/tscache/internal/tsmodel"
	"github.com/erigontech/tscache/internal/tsrange"
	"github.com/erigontech/tscache/internal/tsstore"
	"github.com/erigontech/tscache/internal/transport"
)

// MissingRetryWindow is the default negative-result suppression window
// (spec.md §6): 2.8 days.
const MissingRetryWindow = 2*24*time.Hour + 19*time.Hour + 12*time.Minute

// Snapshot is one emitted result: a consistent view of metadata and merged
// data, or an error carried from a non-retryable remote failure.
type Snapshot struct {
	Metadata tsmodel.Metadata
	Columns  tsmodel.ColumnSet
	Data     []tsmodel.DataRow
	Err      error
}

// Options configures one Generate call.
type Options struct {
	BackendURL         string
	Fetcher            transport.Fetcher
	Registry           *coalesce.Registry
	Logger             *zap.SugaredLogger
	MaxRetries         int
	MissingRetryWindow time.Duration
	Now                func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) missingWindow() time.Duration {
	if o.MissingRetryWindow > 0 {
		return o.MissingRetryWindow
	}
	return MissingRetryWindow
}

// Generate runs the full read-plan-coalesce-fetch-merge pipeline for req,
// calling emit once per snapshot in emission order. emit's return value only
// stops further emission (the caller's side channel went away); pending
// slices and their write-backs still run to completion, matching spec.md §5.
func Generate(ctx context.Context, store *tsstore.Store, req tsmodel.Request, opts Options, emit func(Snapshot) error) error {
	cached, err := cachereader.Read(ctx, store, req)
	if err != nil {
		return tserr.Wrap(err, "resultgen: cache read")
	}

	mergedData := append([]tsmodel.DataRow(nil), cached.Data...)
	finalColumns := req.Columns.Clone()

	channelOpen := true
	doEmit := func(snap Snapshot) {
		if !channelOpen {
			return
		}
		// Hand out copies: later merges mutate mergedData's rows and
		// finalColumns in place.
		snap.Columns = snap.Columns.Clone()
		if snap.Data != nil {
			rows := make([]tsmodel.DataRow, len(snap.Data))
			for i, row := range snap.Data {
				rows[i] = row.Clone()
			}
			snap.Data = rows
		}
		if emit(snap) != nil {
			channelOpen = false
		}
	}

	doEmit(Snapshot{Metadata: cached.Metadata, Columns: finalColumns, Data: mergedData})

	if ts, ok := cached.Metadata.MissingTimestamp(); ok && opts.now().Sub(ts) < opts.missingWindow() {
		return nil
	}

	planned, err := planner.Plan(req.Columns, req.RevisionRange, cached.AvailableRangeByCol)
	if err != nil {
		return tserr.Wrap(err, "resultgen: plan")
	}
	if len(planned) == 0 {
		if len(mergedData) > 0 {
			cachewriter.Schedule(store, opts.Logger, cachewriter.Request{
				RequestMin: req.RevisionRange.Min,
				Rows:       mergedData,
				Columns:    finalColumns,
			})
		}
		return nil
	}

	mine := make([]*slice.Slice, 0, len(planned))
	for _, p := range planned {
		mine = append(mine, slice.New(req.Identity, p.Range, p.Columns, req.Statistic, opts.BackendURL, opts.Fetcher, opts.MaxRetries))
	}

	own, borrowed, deregister := opts.Registry.Join(req.Identity.StoreName(), mine)
	defer deregister()

	all := make([]*slice.Slice, 0, len(own)+len(borrowed))
	all = append(all, own...)
	all = append(all, borrowed...)

	if len(all) > 0 {
		runSlices(all, req.RevisionRange, &mergedData, &finalColumns, cached.Metadata, store, opts, doEmit)
	}

	if len(mergedData) > 0 {
		cachewriter.Schedule(store, opts.Logger, cachewriter.Request{
			RequestMin: req.RevisionRange.Min,
			Rows:       mergedData,
			Columns:    finalColumns,
		})
	}
	return nil
}

type outcome struct {
	result *slice.Result
}

// runSlices fires every slice in all concurrently, merging each completed
// result into mergedData/finalColumns (by reference) and emitting a
// snapshot in completion order, exactly as spec.md §4.H.4 describes.
//
// Slices run against context.Background(), not the caller's request
// context: spec.md §5 says an abandoned response must not abort pending
// slices or their write-backs, since cache warming is a desirable side
// effect even then.
func runSlices(
	all []*slice.Slice,
	requestRange tsrange.Range,
	mergedData *[]tsmodel.DataRow,
	finalColumns *tsmodel.ColumnSet,
	metadata tsmodel.Metadata,
	store *tsstore.Store,
	opts Options,
	doEmit func(Snapshot),
) {
	results := make(chan outcome, len(all))
	g, gctx := errgroup.WithContext(context.Background())
	for _, s := range all {
		s := s
		g.Go(func() error {
			r := s.Result(gctx)
			results <- outcome{result: r}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	for oc := range results {
		r := oc.result
		if r == nil {
			continue
		}
		if tserr.Is(r.Err, tserr.ErrNegativeResult) {
			cachewriter.ScheduleMissingTimestamp(store, opts.Logger, opts.now())
			continue
		}
		if r.Err != nil {
			doEmit(Snapshot{Metadata: metadata, Columns: *finalColumns, Data: *mergedData, Err: r.Err})
			continue
		}

		if r.Columns.Has(tsmodel.ColumnAlert) {
			purgeColumnInRange(*mergedData, tsmodel.ColumnAlert, requestRange)
		}
		mergeColumns(finalColumns, r.Columns)
		filtered := filterRowsInRange(r.Rows, requestRange)
		*mergedData = rowmerge.MergeObjectArrays(*mergedData, filtered)

		doEmit(Snapshot{Metadata: metadata, Columns: *finalColumns, Data: *mergedData})
	}
}

func mergeColumns(dst *tsmodel.ColumnSet, src tsmodel.ColumnSet) {
	for _, c := range src.Slice() {
		dst.Add(c)
	}
}

func filterRowsInRange(rows []tsmodel.DataRow, r tsrange.Range) []tsmodel.DataRow {
	out := make([]tsmodel.DataRow, 0, len(rows))
	for _, row := range rows {
		rev := row.Revision()
		if r.IsEmpty() || (rev >= r.Min && rev <= r.Max) {
			out = append(out, row)
		}
	}
	return out
}

// purgeColumnInRange clears col from every row in data whose revision lies
// within r, in place (spec.md §4.H.4: alert fields may have been nudged
// server-side, so stale values must be cleared before the fresh ones merge
// in).
func purgeColumnInRange(data []tsmodel.DataRow, col tsmodel.ColumnName, r tsrange.Range) {
	for _, row := range data {
		rev := row.Revision()
		if r.IsEmpty() || (rev >= r.Min && rev <= r.Max) {
			delete(row, col)
		}
	}
}
