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

// Package mdbxdb is the production kv.RwDB backend, wrapping the teacher's
// own embedded storage engine, github.com/erigontech/mdbx-go. It is the
// on-disk counterpart of internal/kv/memdb: same kv.RwDB contract, durable
// storage instead of an in-process btree.
package mdbxdb

import (
	"context"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/erigontech/tscache/internal/kv"
)

// DB wraps an *mdbx.Env opened over one or more named tables (MDBX calls
// these DBIs). Open applies schema version 1: every table name is created
// if missing.
type DB struct {
	env    *mdbx.Env
	tables map[string]mdbx.DBI
}

// Open creates or opens the MDBX environment rooted at path with the given
// tables, growing up to a generous default map size (erigon itself sizes
// its chaindata environment this way: large ceiling, small page increment).
func Open(path string, tables []string) (*DB, error) {
	env, err := mdbx.NewEnv(mdbx.Default)
	if err != nil {
		return nil, err
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(len(tables))); err != nil {
		env.Close()
		return nil, err
	}
	const (
		growStep  = 2 * 1024 * 1024
		pageSize  = 4 * 1024
		sizeUpper = 32 * 1024 * 1024 * 1024
	)
	if err := env.SetGeometry(-1, -1, sizeUpper, growStep, -1, pageSize); err != nil {
		env.Close()
		return nil, err
	}
	if err := env.Open(path, mdbx.Coalesce|mdbx.LifoReclaim, 0664); err != nil {
		env.Close()
		return nil, err
	}

	db := &DB{env: env, tables: make(map[string]mdbx.DBI, len(tables))}
	err = env.Update(func(txn *mdbx.Txn) error {
		for _, name := range tables {
			dbi, err := txn.OpenDBISimple(name, mdbx.Create)
			if err != nil {
				return err
			}
			db.tables[name] = dbi
		}
		return nil
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	db.env.Close()
	return nil
}

func (db *DB) View(_ context.Context, f func(tx kv.Tx) error) error {
	return db.env.View(func(txn *mdbx.Txn) error {
		return f(&roTx{db: db, txn: txn})
	})
}

func (db *DB) Update(_ context.Context, f func(tx kv.RwTx) error) error {
	return db.env.Update(func(txn *mdbx.Txn) error {
		return f(&rwTx{roTx: roTx{db: db, txn: txn}})
	})
}

type roTx struct {
	db  *DB
	txn *mdbx.Txn
}

func (t *roTx) dbi(table string) (mdbx.DBI, error) {
	dbi, ok := t.db.tables[table]
	if !ok {
		return 0, kv.ErrUnknownTable(table)
	}
	return dbi, nil
}

func (t *roTx) Get(table string, key []byte) ([]byte, error) {
	dbi, err := t.dbi(table)
	if err != nil {
		return nil, err
	}
	v, err := t.txn.Get(dbi, key)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (t *roTx) Cursor(table string) (kv.Cursor, error) {
	dbi, err := t.dbi(table)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(dbi)
	if err != nil {
		return nil, err
	}
	return &cursor{c: c}, nil
}

func (t *roTx) Rollback() {
	// mdbx.Env.View/Update manage the transaction lifecycle themselves;
	// nothing for the adapter to do here.
}

type rwTx struct{ roTx }

func (t *rwTx) Put(table string, key, value []byte) error {
	dbi, err := t.dbi(table)
	if err != nil {
		return err
	}
	return t.txn.Put(dbi, key, value, 0)
}

func (t *rwTx) Commit() error { return nil } // committed by env.Update on f's return

type cursor struct{ c *mdbx.Cursor }

func (c *cursor) First() (k, v []byte, err error) {
	k, v, err = c.c.Get(nil, nil, mdbx.First)
	if mdbx.IsNotFound(err) {
		return nil, nil, nil
	}
	return k, v, err
}

func (c *cursor) Seek(seek []byte) (k, v []byte, err error) {
	k, v, err = c.c.Get(seek, nil, mdbx.SetRange)
	if mdbx.IsNotFound(err) {
		return nil, nil, nil
	}
	return k, v, err
}

func (c *cursor) Next() (k, v []byte, err error) {
	k, v, err = c.c.Get(nil, nil, mdbx.Next)
	if mdbx.IsNotFound(err) {
		return nil, nil, nil
	}
	return k, v, err
}

func (c *cursor) Close() { c.c.Close() }
