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

// Package memdb is an in-process kv.RwDB backend, indexed with
// google/btree for ordered cursor scans. It backs unit tests and
// `tscache serve --mem` local runs; internal/kv/mdbxdb backs production.
package memdb

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/erigontech/tscache/internal/kv"
)

type item struct {
	key, val []byte
}

func less(a, b item) bool { return bytes.Compare(a.key, b.key) < 0 }

// DB is a single-writer, multi-reader in-memory kv.RwDB. Linearizability at
// event-loop granularity is provided by mu: Update holds it exclusively for
// the duration of the callback (matching spec.md §5's "no cross-transaction
// locks held, but transactions execute atomically").
type DB struct {
	mu     sync.RWMutex
	tables map[string]*btree.BTreeG[item]
}

// Open creates a DB with the given tables pre-created (schema-version-1
// style: tables exist unconditionally after Open returns).
func Open(tables []string) *DB {
	db := &DB{tables: make(map[string]*btree.BTreeG[item], len(tables))}
	for _, t := range tables {
		db.tables[t] = btree.NewG(32, less)
	}
	return db
}

func (db *DB) Close() error { return nil }

func (db *DB) View(_ context.Context, f func(tx kv.Tx) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return f(&roTx{db: db})
}

func (db *DB) Update(_ context.Context, f func(tx kv.RwTx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	// memdb applies writes in place as they happen, so Commit is a no-op.
	// A copy-on-write clone of every table is taken first and restored if f
	// returns an error, which rolls back the in-place writes.
	snapshot := make(map[string]*btree.BTreeG[item], len(db.tables))
	for name, bt := range db.tables {
		snapshot[name] = bt.Clone()
	}
	if err := f(&rwTx{roTx: roTx{db: db}}); err != nil {
		db.tables = snapshot
		return err
	}
	return nil
}

type roTx struct{ db *DB }

func (t *roTx) Get(table string, key []byte) ([]byte, error) {
	bt, ok := t.db.tables[table]
	if !ok {
		return nil, kv.ErrUnknownTable(table)
	}
	it, found := bt.Get(item{key: key})
	if !found {
		return nil, nil
	}
	return it.val, nil
}

func (t *roTx) Cursor(table string) (kv.Cursor, error) {
	bt, ok := t.db.tables[table]
	if !ok {
		return nil, kv.ErrUnknownTable(table)
	}
	return &cursor{bt: bt}, nil
}

func (t *roTx) Rollback() {}

type rwTx struct{ roTx }

func (t *rwTx) Put(table string, key, value []byte) error {
	bt, ok := t.db.tables[table]
	if !ok {
		return kv.ErrUnknownTable(table)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	kc := make([]byte, len(key))
	copy(kc, key)
	bt.ReplaceOrInsert(item{key: kc, val: cp})
	return nil
}

func (t *rwTx) Commit() error { return nil }

// cursor implements kv.Cursor over a single btree snapshot. Concurrent
// writes during iteration are excluded by DB.mu (callers only ever hold a
// cursor inside a View/Update callback).
type cursor struct {
	bt      *btree.BTreeG[item]
	current item
	started bool
	done    bool
}

func (c *cursor) First() (k, v []byte, err error) {
	var found bool
	c.bt.Ascend(func(it item) bool {
		c.current = it
		found = true
		return false
	})
	c.started = true
	c.done = !found
	if !found {
		return nil, nil, nil
	}
	return c.current.key, c.current.val, nil
}

func (c *cursor) Seek(seek []byte) (k, v []byte, err error) {
	var found bool
	c.bt.AscendGreaterOrEqual(item{key: seek}, func(it item) bool {
		c.current = it
		found = true
		return false
	})
	c.started = true
	c.done = !found
	if !found {
		return nil, nil, nil
	}
	return c.current.key, c.current.val, nil
}

func (c *cursor) Next() (k, v []byte, err error) {
	if !c.started || c.done {
		return nil, nil, nil
	}
	var found bool
	first := true
	c.bt.AscendGreaterOrEqual(c.current, func(it item) bool {
		if first {
			// Skip the current position itself.
			first = false
			return true
		}
		c.current = it
		found = true
		return false
	})
	c.done = !found
	if !found {
		return nil, nil, nil
	}
	return c.current.key, c.current.val, nil
}

func (c *cursor) Close() {}
