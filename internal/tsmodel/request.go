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

package tsmodel

import "github.com/erigontech/tscache/internal/tsrange"

// Request is the parsed inbound call (spec.md §6): an identity, a revision
// range, a requested column set and the backend "statistic" parameter.
type Request struct {
	Identity      TimeseriesIdentity
	Columns       ColumnSet
	RevisionRange tsrange.Range
	Statistic     string // default "avg"
}
