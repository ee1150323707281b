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

// Package kv is the store primitive spec.md treats as an external
// collaborator: a transactional key-value engine with named sub-stores
// ("tables" in erigon's own vocabulary). internal/tsstore is the adapter
// that turns this generic contract into the identity-scoped, three-table
// persistent store the rest of the cache talks to.
//
// The interface shape (table-name-addressed buckets, View/Update
// transaction scopes, a Seek-based Cursor) is modeled on erigon-lib's real
// kv.RwDB contract; the retrieved pack itself only carries
// erigon-lib/kv/tables.go, a flat list of table-name constants, not the
// transactional types, so this package's shape is not copied from
// anything in the pack — it follows the erigon-lib API as commonly used
// elsewhere in the teacher's own ecosystem.
package kv

import "context"

// Variable naming follows the teacher's own convention: tx - transaction,
// k/v - key/value, Ro/Rw - read-only/read-write.

// Getter reads within a transaction.
type Getter interface {
	// Get returns the value for key in table, or (nil, nil) if absent.
	Get(table string, key []byte) ([]byte, error)
	// Cursor opens a cursor over table for range iteration.
	Cursor(table string) (Cursor, error)
}

// Putter writes within a read-write transaction.
type Putter interface {
	Put(table string, key, value []byte) error
}

// Tx is a read-only transaction. It must not be used after Rollback.
type Tx interface {
	Getter
	Rollback()
}

// RwTx is a read-write transaction. Commit durably applies all writes made
// through it; Rollback discards them.
type RwTx interface {
	Tx
	Putter
	Commit() error
}

// Cursor walks a table in key order.
type Cursor interface {
	// First positions at the first key/value pair, (nil,nil,nil) if empty.
	First() (k, v []byte, err error)
	// Seek positions at the first key >= seek.
	Seek(seek []byte) (k, v []byte, err error)
	// Next advances to the next key/value pair, (nil,nil,nil) at end.
	Next() (k, v []byte, err error)
	Close()
}

// RoDB is a read-only database handle.
type RoDB interface {
	// View runs f in a read-only transaction. The transaction is rolled
	// back automatically after f returns.
	View(ctx context.Context, f func(tx Tx) error) error
	Close() error
}

// RwDB is a read-write database handle over a fixed set of named tables,
// created (schema version applied) on first open.
type RwDB interface {
	RoDB
	// Update runs f in a read-write transaction; f's writes are committed
	// if it returns nil, rolled back otherwise.
	Update(ctx context.Context, f func(tx RwTx) error) error
}

// Opener constructs an RwDB rooted at path, creating tables if they don't
// already exist. Neither backend implements this interface: memdb and
// mdbxdb each expose a package-level Open function, and cmd/tscache adapts
// them to a tsstore.Opener.
type Opener interface {
	Open(path string, tables []string) (RwDB, error)
}
