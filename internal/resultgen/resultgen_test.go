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

package resultgen

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/tscache/internal/coalesce"
	"github.com/erigontech/tscache/internal/kv"
	"github.com/erigontech/tscache/internal/kv/memdb"
	"github.com/erigontech/tscache/internal/tserr"
	"github.com/erigontech/tscache/internal/tslog"
	"github.com/erigontech/tscache/internal/tsmodel"
	"github.com/erigontech/tscache/internal/tsrange"
	"github.com/erigontech/tscache/internal/tsstore"
	"github.com/erigontech/tscache/internal/transport"
)

type stubFetcher struct {
	body   []byte
	status int
}

func (f *stubFetcher) Fetch(context.Context, string, string, http.Header, url.Values) (*transport.Response, error) {
	return &transport.Response{Status: f.status, Body: f.body}, nil
}

func newStore(t *testing.T) *tsstore.Store {
	t.Helper()
	mgr := tsstore.NewManager(func(string) (kv.RwDB, error) {
		return memdb.Open(tsstore.Tables()), nil
	})
	s, err := mgr.For("timeseries/s/m/b//")
	require.NoError(t, err)
	return s
}

// waitForScheduledWrite gives a cachewriter.Schedule goroutine time to land
// before the test's next read; writes are fire-and-forget by design
// (spec.md §4.H.5), so tests that depend on a prior write being visible
// must wait for it explicitly rather than assume synchronous completion.
func waitForScheduledWrite() {
	time.Sleep(20 * time.Millisecond)
}

func testRequest() tsmodel.Request {
	return tsmodel.Request{
		Identity:      tsmodel.TimeseriesIdentity{TestSuite: "s", Measurement: "m", Bot: "b"},
		Columns:       tsmodel.NewColumnSet("avg"),
		RevisionRange: tsrange.New(0, 100),
		Statistic:     "avg",
	}
}

func TestGenerateColdCacheEmitsCachedThenSliceSnapshot(t *testing.T) {
	store := newStore(t)
	fetcher := &stubFetcher{status: http.StatusOK, body: []byte(`{"data":[[10,1.0],[20,2.0]],"columns":["revision","avg"]}`)}
	opts := Options{
		BackendURL: "http://backend/query",
		Fetcher:    fetcher,
		Registry:   coalesce.NewRegistry(),
		Logger:     tslog.Nop(),
		MaxRetries: 3,
	}

	var snaps []Snapshot
	err := Generate(context.Background(), store, testRequest(), opts, func(s Snapshot) error {
		snaps = append(snaps, s)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Empty(t, snaps[0].Data)
	require.Len(t, snaps[1].Data, 2)
}

func TestGenerateWarmCacheEmitsSingleSnapshotNoFetch(t *testing.T) {
	store := newStore(t)
	fetcher := &stubFetcher{status: http.StatusOK, body: []byte(`{"data":[[10,1.0],[100,9.0]],"columns":["revision","avg"]}`)}
	opts := Options{
		BackendURL: "http://backend/query",
		Fetcher:    fetcher,
		Registry:   coalesce.NewRegistry(),
		Logger:     tslog.Nop(),
		MaxRetries: 3,
	}

	req := testRequest()
	require.NoError(t, Generate(context.Background(), store, req, opts, func(Snapshot) error { return nil }))
	waitForScheduledWrite()

	var secondSnaps []Snapshot
	err := Generate(context.Background(), store, req, opts, func(s Snapshot) error {
		secondSnaps = append(secondSnaps, s)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, secondSnaps, 1, "fully cached: only the cached snapshot is emitted")
	require.Len(t, secondSnaps[0].Data, 2)
}

func TestGenerateNegativeResultStopsAfterCachedSnapshot(t *testing.T) {
	store := newStore(t)
	fetcher := &stubFetcher{status: http.StatusNotFound}
	opts := Options{
		BackendURL: "http://backend/query",
		Fetcher:    fetcher,
		Registry:   coalesce.NewRegistry(),
		Logger:     tslog.Nop(),
		MaxRetries: 3,
	}

	var snaps []Snapshot
	err := Generate(context.Background(), store, testRequest(), opts, func(s Snapshot) error {
		snaps = append(snaps, s)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	waitForScheduledWrite()

	// A fetcher that would succeed: if a slice fired, it would add a snapshot.
	laterOpts := opts
	laterOpts.Fetcher = &stubFetcher{status: http.StatusOK, body: []byte(`{"data":[[10,1.0]],"columns":["revision","avg"]}`)}

	var secondSnaps []Snapshot
	err = Generate(context.Background(), store, testRequest(), laterOpts, func(s Snapshot) error {
		secondSnaps = append(secondSnaps, s)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, secondSnaps, 1, "within the retry window, no new slice should fire")
}

func TestGenerateRemoteErrorSnapshotCarriesErr(t *testing.T) {
	store := newStore(t)
	fetcher := &stubFetcher{status: http.StatusTeapot}
	opts := Options{
		BackendURL: "http://backend/query",
		Fetcher:    fetcher,
		Registry:   coalesce.NewRegistry(),
		Logger:     tslog.Nop(),
		MaxRetries: 3,
	}

	var snaps []Snapshot
	err := Generate(context.Background(), store, testRequest(), opts, func(s Snapshot) error {
		snaps = append(snaps, s)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.ErrorIs(t, snaps[1].Err, tserr.ErrRemoteError)
}

func TestGenerateMissingTimestampExpiresAfterWindow(t *testing.T) {
	store := newStore(t)
	fetcher := &stubFetcher{status: http.StatusNotFound}
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := Options{
		BackendURL:         "http://backend/query",
		Fetcher:            fetcher,
		Registry:           coalesce.NewRegistry(),
		Logger:             tslog.Nop(),
		MaxRetries:         3,
		MissingRetryWindow: MissingRetryWindow,
		Now:                func() time.Time { return fixedNow },
	}

	require.NoError(t, Generate(context.Background(), store, testRequest(), opts, func(Snapshot) error { return nil }))
	waitForScheduledWrite()

	laterOpts := opts
	laterOpts.Fetcher = &stubFetcher{status: http.StatusOK, body: []byte(`{"data":[[10,1.0]],"columns":["revision","avg"]}`)}
	laterOpts.Now = func() time.Time { return fixedNow.Add(3 * 24 * time.Hour) }

	var snaps []Snapshot
	err := Generate(context.Background(), store, testRequest(), laterOpts, func(s Snapshot) error {
		snaps = append(snaps, s)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, snaps, 2, "after the window expires, a slice should fire again")
}
