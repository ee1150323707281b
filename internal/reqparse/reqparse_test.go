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

package reqparse

import (
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/tscache/internal/tserr"
	"github.com/erigontech/tscache/internal/tsmodel"
)

func TestParseMissingColumnsIsMalformed(t *testing.T) {
	form := url.Values{"test_suite": {"s"}, "measurement": {"m"}, "bot": {"b"}}
	_, err := Parse(form)
	require.ErrorIs(t, err, tserr.ErrMalformedRequest)
}

func TestParseDefaultsStatisticAndUnboundedMax(t *testing.T) {
	form := url.Values{
		"columns":     {"revision,avg"},
		"test_suite":  {"s"},
		"measurement": {"m"},
		"bot":         {"b"},
	}
	req, err := Parse(form)
	require.NoError(t, err)
	require.Equal(t, "avg", req.Statistic)
	require.Equal(t, float64(0), req.RevisionRange.Min)
	require.True(t, math.IsInf(req.RevisionRange.Max, 1))
	require.True(t, req.Columns.Has("avg"))
	require.True(t, req.Columns.Has(tsmodel.ColumnRevision))
}

func TestParseOptionalFieldsOmittedWhenEmpty(t *testing.T) {
	form := url.Values{
		"columns":      {"avg"},
		"test_suite":   {"s"},
		"measurement":  {"m"},
		"bot":          {"b"},
		"min_revision": {"10"},
		"max_revision": {"20"},
		"build_type":   {"release"},
	}
	req, err := Parse(form)
	require.NoError(t, err)
	require.Equal(t, float64(10), req.RevisionRange.Min)
	require.Equal(t, float64(20), req.RevisionRange.Max)
	require.Equal(t, "release", req.Identity.BuildType)
	require.Equal(t, "", req.Identity.TestCase)
}

func TestParseMissingIdentityFieldIsMalformed(t *testing.T) {
	form := url.Values{"columns": {"avg"}}
	_, err := Parse(form)
	require.ErrorIs(t, err, tserr.ErrMalformedRequest)
}
