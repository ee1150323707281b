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

package tsstore

import (
	"math"

	"github.com/goccy/go-json"

	"github.com/erigontech/tscache/internal/kv"
	"github.com/erigontech/tscache/internal/tsmodel"
	"github.com/erigontech/tscache/internal/tsrange"
)

// ReadTx exposes typed reads over the data/metadata/ranges tables.
type ReadTx struct {
	tx kv.Tx
}

// RowsInRange iterates the data table and returns every row whose revision
// lies within r (inclusive). An empty r reads all rows; a range whose Min
// is -Inf starts at the first row and still stops at Max, so
// tsrange.Unbounded(math.Inf(-1)) also reads all rows.
func (t *ReadTx) RowsInRange(r tsrange.Range) ([]tsmodel.DataRow, error) {
	c, err := t.tx.Cursor(tableData)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var rows []tsmodel.DataRow
	var k, v []byte
	if r.IsEmpty() || math.IsInf(r.Min, -1) {
		k, v, err = c.First()
	} else {
		k, v, err = c.Seek(encodeRevisionKey(r.Min))
	}
	for ; k != nil; k, v, err = c.Next() {
		if err != nil {
			return nil, err
		}
		rev := decodeRevisionKey(k)
		if !r.IsEmpty() && rev > r.Max {
			break
		}
		var row tsmodel.DataRow
		if err := json.Unmarshal(v, &row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Metadata reads every stored metadata key.
func (t *ReadTx) Metadata() (tsmodel.Metadata, error) {
	c, err := t.tx.Cursor(tableMetadata)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	out := tsmodel.Metadata{}
	for k, v, err := c.First(); k != nil; k, v, err = c.Next() {
		if err != nil {
			return nil, err
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, err
		}
		out[string(k)] = val
	}
	return out, nil
}

// RangesForColumn returns col's stored, sorted availability list.
func (t *ReadTx) RangesForColumn(col tsmodel.ColumnName) ([]tsrange.Range, error) {
	v, err := t.tx.Get(tableRanges, []byte(col))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	var ranges []tsrange.Range
	if err := json.Unmarshal(v, &ranges); err != nil {
		return nil, err
	}
	return ranges, nil
}

// WriteTx adds typed writes on top of ReadTx.
type WriteTx struct {
	ReadTx
	rw kv.RwTx
}

// PutRow shallow-merges row's fields over any existing row at the same
// revision and writes the result back (spec.md §4.I).
func (t *WriteTx) PutRow(row tsmodel.DataRow) error {
	key := encodeRevisionKey(row.Revision())
	existingRaw, err := t.rw.Get(tableData, key)
	if err != nil {
		return err
	}
	merged := row.Clone()
	if existingRaw != nil {
		var existing tsmodel.DataRow
		if err := json.Unmarshal(existingRaw, &existing); err != nil {
			return err
		}
		existing.MergeFieldsFrom(row)
		merged = existing
	}
	buf, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return t.rw.Put(tableData, key, buf)
}

// PutMetaKey writes a single metadata key.
func (t *WriteTx) PutMetaKey(key string, value any) error {
	buf, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return t.rw.Put(tableMetadata, []byte(key), buf)
}

// ExtendRangeForColumn merges r into col's stored availability and writes
// the result back.
func (t *WriteTx) ExtendRangeForColumn(col tsmodel.ColumnName, r tsrange.Range) error {
	existing, err := t.RangesForColumn(col)
	if err != nil {
		return err
	}
	merged := r.MergeIntoArray(existing)
	buf, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return t.rw.Put(tableRanges, []byte(col), buf)
}
