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

package slice

import (
	"context"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/tscache/internal/tserr"
	"github.com/erigontech/tscache/internal/tsmodel"
	"github.com/erigontech/tscache/internal/transport"
	"github.com/erigontech/tscache/internal/tsrange"
)

type stubFetcher struct {
	calls     int32
	responses []*transport.Response
	err       error
}

func (f *stubFetcher) Fetch(_ context.Context, _, _ string, _ http.Header, _ url.Values) (*transport.Response, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	idx := int(n) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func identity() tsmodel.TimeseriesIdentity {
	return tsmodel.TimeseriesIdentity{TestSuite: "suite", Measurement: "m", Bot: "bot"}
}

func TestSliceFireIsMemoized(t *testing.T) {
	fetcher := &stubFetcher{responses: []*transport.Response{
		{Status: http.StatusOK, Body: []byte(`{"data":[[10,1.0]],"columns":["revision","avg"]}`)},
	}}
	s := New(identity(), tsrange.New(0, 100), tsmodel.NewColumnSet("avg"), "avg", "http://backend/query", fetcher, 3)

	r1 := s.Result(context.Background())
	r2 := s.Result(context.Background())
	require.Same(t, r1, r2)
	require.EqualValues(t, 1, fetcher.calls)
}

func TestSlicePostProcessesRows(t *testing.T) {
	fetcher := &stubFetcher{responses: []*transport.Response{
		{Status: http.StatusOK, Body: []byte(`{"data":[[10,1.0],[20,2.0]],"columns":["ignored"]}`)},
	}}
	s := New(identity(), tsrange.New(0, 100), tsmodel.NewColumnSet("avg"), "avg", "http://backend/query", fetcher, 3)

	r := s.Result(context.Background())
	require.NoError(t, r.Err)
	require.Len(t, r.Rows, 2)
	require.Equal(t, float64(10), r.Rows[0].Revision())
	require.True(t, r.Columns.Has("avg"))
	require.True(t, r.Columns.Has(tsmodel.ColumnRevision))
}

func TestSliceRetriesOn500ThenSucceeds(t *testing.T) {
	fetcher := &stubFetcher{responses: []*transport.Response{
		{Status: http.StatusInternalServerError},
		{Status: http.StatusInternalServerError},
		{Status: http.StatusOK, Body: []byte(`{"data":[[10,1.0]],"columns":["revision","avg"]}`)},
	}}
	s := New(identity(), tsrange.New(0, 100), tsmodel.NewColumnSet("avg"), "avg", "http://backend/query", fetcher, 3)

	r := s.Result(context.Background())
	require.NoError(t, r.Err)
	require.EqualValues(t, 3, fetcher.calls)
	require.Equal(t, 2, s.Retries())
}

func TestSlice404IsNegativeResult(t *testing.T) {
	fetcher := &stubFetcher{responses: []*transport.Response{
		{Status: http.StatusNotFound},
	}}
	s := New(identity(), tsrange.New(0, 100), tsmodel.NewColumnSet("avg"), "avg", "http://backend/query", fetcher, 3)

	r := s.Result(context.Background())
	require.ErrorIs(t, r.Err, tserr.ErrNegativeResult)
	require.Nil(t, r.Rows)
}

func TestSliceOtherStatusIsRemoteError(t *testing.T) {
	fetcher := &stubFetcher{responses: []*transport.Response{
		{Status: http.StatusTeapot},
	}}
	s := New(identity(), tsrange.New(0, 100), tsmodel.NewColumnSet("avg"), "avg", "http://backend/query", fetcher, 3)

	r := s.Result(context.Background())
	require.ErrorIs(t, r.Err, tserr.ErrRemoteError)
	require.EqualValues(t, 1, fetcher.calls)
}

func TestSliceOmitsZeroMinAndUnboundedMax(t *testing.T) {
	s := New(identity(), tsrange.Unbounded(0), tsmodel.NewColumnSet("avg"), "avg", "http://backend/query", &stubFetcher{}, 3)
	form := s.buildForm()
	require.Empty(t, form.Get("min_revision"))
	require.Empty(t, form.Get("max_revision"))
}
