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

// Package reqparse parses the inbound form-encoded request body (spec.md
// §6) into a tsmodel.Request. This is the one collaborator spec.md leaves
// to "the surrounding framework"; internal/api calls it directly.
package reqparse

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/erigontech/tscache/internal/tserr"
	"github.com/erigontech/tscache/internal/tsmodel"
	"github.com/erigontech/tscache/internal/tsrange"
)

const defaultStatistic = "avg"

// Parse builds a Request from a form-encoded body. columns is required
// (spec.md §7: MalformedRequest otherwise); every other field is optional
// and defaults per spec.md §6.
func Parse(form url.Values) (tsmodel.Request, error) {
	rawColumns := strings.TrimSpace(form.Get("columns"))
	if rawColumns == "" {
		return tsmodel.Request{}, tserr.Wrap(tserr.ErrMalformedRequest, "columns is required")
	}

	var cols []tsmodel.ColumnName
	for _, c := range strings.Split(rawColumns, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		cols = append(cols, tsmodel.ColumnName(c))
	}

	minRevision, err := parseFloatDefault(form.Get("min_revision"), 0)
	if err != nil {
		return tsmodel.Request{}, tserr.Wrapf(tserr.ErrMalformedRequest, "min_revision: %v", err)
	}
	maxRevision, err := parseFloatDefault(form.Get("max_revision"), math.Inf(1))
	if err != nil {
		return tsmodel.Request{}, tserr.Wrapf(tserr.ErrMalformedRequest, "max_revision: %v", err)
	}

	statistic := form.Get("statistic")
	if statistic == "" {
		statistic = defaultStatistic
	}

	req := tsmodel.Request{
		Identity: tsmodel.TimeseriesIdentity{
			TestSuite:   form.Get("test_suite"),
			Measurement: form.Get("measurement"),
			Bot:         form.Get("bot"),
			TestCase:    form.Get("test_case"),
			BuildType:   form.Get("build_type"),
		},
		Columns:       tsmodel.NewColumnSet(cols...),
		RevisionRange: tsrange.New(minRevision, maxRevision),
		Statistic:     statistic,
	}
	if err := req.Identity.Validate(); err != nil {
		return tsmodel.Request{}, tserr.Wrap(tserr.ErrMalformedRequest, err.Error())
	}
	return req, nil
}

func parseFloatDefault(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseFloat(raw, 64)
}
