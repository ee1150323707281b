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

// Package slice implements the single pending remote fetch unit (spec.md
// §4.D): one sub-range, one column subset, lazy-fired with retry.
package slice

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/erigontech/tscache/internal/tserr"
	"github.com/erigontech/tscache/internal/tsmodel"
	"github.com/erigontech/tscache/internal/transport"
	"github.com/erigontech/tscache/internal/tsrange"
)

// Result is a Slice's outcome: either rows with their columns (HTTP 200), or
// a status/error pair. Rows is nil when Err is set.
type Result struct {
	Status  int
	Columns tsmodel.ColumnSet
	Rows    []tsmodel.DataRow
	Err     error
}

// Slice is one pending remote fetch: identity, sub-range, columns, retry
// state. Build via New; call Result to fire (or read the memoized fire).
type Slice struct {
	Identity  tsmodel.TimeseriesIdentity
	Range     tsrange.Range
	Columns   tsmodel.ColumnSet
	Statistic string
	Headers   http.Header
	URL       string
	Method    string

	fetcher    transport.Fetcher
	maxRetries int
	columnsWire []tsmodel.ColumnName

	once    sync.Once
	result  *Result
	retries int
}

// New builds a Slice. fetcher performs the actual HTTP call; maxRetries
// bounds HTTP-500 retries (spec.md §6: 3).
func New(identity tsmodel.TimeseriesIdentity, r tsrange.Range, cols tsmodel.ColumnSet, statistic, targetURL string, fetcher transport.Fetcher, maxRetries int) *Slice {
	// Revision first, then the remaining columns sorted, so the positional
	// zip in postProcess reads each tuple's leading value as the revision.
	wire := cols.Slice()
	sort.Slice(wire, func(i, j int) bool {
		if wire[i] == tsmodel.ColumnRevision || wire[j] == tsmodel.ColumnRevision {
			return wire[i] == tsmodel.ColumnRevision
		}
		return wire[i] < wire[j]
	})
	return &Slice{
		Identity:    identity,
		Range:       r,
		Columns:     cols.Clone(),
		Statistic:   statistic,
		Headers:     http.Header{},
		URL:         targetURL,
		Method:      http.MethodPost,
		fetcher:     fetcher,
		maxRetries:  maxRetries,
		columnsWire: wire,
	}
}

// Retries reports how many retries this slice has consumed so far (only
// meaningful after Result has been called).
func (s *Slice) Retries() int { return s.retries }

// Result fires the remote fetch on first call; every subsequent call
// (concurrent or not) observes the same memoized Result (spec.md §4.D
// "lazy fire").
func (s *Slice) Result(ctx context.Context) *Result {
	s.once.Do(func() { s.result = s.fire(ctx) })
	return s.result
}

func (s *Slice) fire(ctx context.Context) *Result {
	form := s.buildForm()
	var result *Result
	attempts := 0

	operation := func() error {
		attempts++
		resp, err := s.fetcher.Fetch(ctx, s.URL, s.Method, s.Headers, form)
		if err != nil {
			result = &Result{Err: err}
			return backoff.Permanent(err)
		}
		switch resp.Status {
		case http.StatusOK:
			rows, cols, perr := s.postProcess(resp.Body)
			if perr != nil {
				result = &Result{Status: resp.Status, Err: perr}
				return backoff.Permanent(perr)
			}
			result = &Result{Status: resp.Status, Columns: cols, Rows: rows}
			return nil
		case http.StatusNotFound:
			result = &Result{Status: resp.Status, Err: tserr.ErrNegativeResult}
			return nil
		case http.StatusInternalServerError:
			result = &Result{Status: resp.Status, Err: tserr.ErrTransientRemote}
			return tserr.ErrTransientRemote
		default:
			result = &Result{
				Status: resp.Status,
				Err:    tserr.Wrapf(tserr.ErrRemoteError, "remote status %d", resp.Status),
			}
			return backoff.Permanent(result.Err)
		}
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.maxRetries))
	_ = backoff.Retry(operation, backoff.WithContext(bo, ctx))
	if attempts > 0 {
		s.retries = attempts - 1
	}
	return result
}

// buildForm encodes the outbound fields per spec.md §4.D.
func (s *Slice) buildForm() url.Values {
	v := url.Values{}
	v.Set("test_suite", s.Identity.TestSuite)
	v.Set("measurement", s.Identity.Measurement)
	v.Set("bot", s.Identity.Bot)
	v.Set("statistic", s.Statistic)

	wire := make([]string, 0, len(s.columnsWire))
	for _, c := range s.columnsWire {
		wire = append(wire, string(c))
	}
	v.Set("columns", strings.Join(wire, ","))

	if s.Identity.BuildType != "" {
		v.Set("build_type", s.Identity.BuildType)
	}
	if s.Identity.TestCase != "" {
		v.Set("test_case", s.Identity.TestCase)
	}
	if s.Range.Min != 0 {
		v.Set("min_revision", formatRevision(s.Range.Min))
	}
	if !math.IsInf(s.Range.Max, 1) {
		v.Set("max_revision", formatRevision(s.Range.Max))
	}
	return v
}

func formatRevision(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type rawResponse struct {
	Data    [][]any  `json:"data"`
	Columns []string `json:"columns"`
}

// postProcess zips the returned 2-D table into row objects keyed by the
// columns this slice requested (positional zip, spec.md §4.D), and
// overwrites the response's columns field with the requested set.
func (s *Slice) postProcess(body []byte) ([]tsmodel.DataRow, tsmodel.ColumnSet, error) {
	var raw rawResponse
	if err := transport.DecodeJSON(body, &raw); err != nil {
		return nil, nil, fmt.Errorf("slice: decoding remote response: %w", err)
	}

	rows := make([]tsmodel.DataRow, 0, len(raw.Data))
	for _, tuple := range raw.Data {
		row := make(tsmodel.DataRow, len(s.columnsWire))
		for i, col := range s.columnsWire {
			if i < len(tuple) {
				row[col] = tuple[i]
			}
		}
		rows = append(rows, row)
	}

	cols := tsmodel.NewColumnSet(s.columnsWire...)
	return rows, cols, nil
}
