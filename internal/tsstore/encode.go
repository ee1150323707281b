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

import "encoding/binary"

// Row keys are big-endian uint64 revisions, the same block_num_u64
// convention the teacher uses throughout erigon-lib/kv/tables.go
// ("block_num_u64 -> header hash", etc) so that a Cursor.Seek walks rows
// in ascending revision order.
func encodeRevisionKey(revision float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(revision))
	return buf
}

func decodeRevisionKey(key []byte) float64 {
	return float64(binary.BigEndian.Uint64(key))
}
