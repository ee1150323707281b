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

// Package tsstore is the persistent store adapter (spec.md §4.C): scoped
// read-only/read-write transactions over one identity's three sub-stores
// (data, metadata, ranges), built on top of the generic internal/kv
// transactional engine.
package tsstore

import (
	"context"
	"sync"

	"github.com/erigontech/tscache/internal/kv"
)

// SchemaVersion is the persistent layout version (spec.md §6): 1.
const SchemaVersion = 1

const (
	tableData     = "data"
	tableMetadata = "metadata"
	tableRanges   = "ranges"
)

var tables = []string{tableData, tableMetadata, tableRanges}

// Opener creates the underlying kv.RwDB for one identity's store name.
// cmd/tscache supplies one backed by memdb (a fresh in-memory DB per store
// name) or by mdbxdb (a directory per store name); Manager caches the
// result, so each store name is opened once.
type Opener func(storeName string) (kv.RwDB, error)

// Manager opens and caches one Store per identity, so repeated requests
// for the same timeseries reuse the same underlying kv.RwDB handle
// (spec.md §3: "Store is created on first access").
type Manager struct {
	open Opener

	mu     sync.Mutex
	stores map[string]*Store
}

// NewManager builds a Manager that lazily opens stores via open.
func NewManager(open Opener) *Manager {
	return &Manager{open: open, stores: make(map[string]*Store)}
}

// For returns the Store for storeName, opening it on first access.
func (m *Manager) For(storeName string) (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stores[storeName]; ok {
		return s, nil
	}
	db, err := m.open(storeName)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, name: storeName}
	m.stores[storeName] = s
	return s, nil
}

// Close closes every store the Manager has opened.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, s := range m.stores {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Tables is the fixed three-table schema every identity's store is opened
// with (schema version 1).
func Tables() []string {
	out := make([]string, len(tables))
	copy(out, tables)
	return out
}

// Store scopes transactions to one identity's three sub-stores.
type Store struct {
	db   kv.RwDB
	name string
}

// Read runs f in a read-only transaction.
func (s *Store) Read(ctx context.Context, f func(tx *ReadTx) error) error {
	return s.db.View(ctx, func(t kv.Tx) error {
		return f(&ReadTx{tx: t})
	})
}

// Write runs f in a read-write transaction.
func (s *Store) Write(ctx context.Context, f func(tx *WriteTx) error) error {
	return s.db.Update(ctx, func(t kv.RwTx) error {
		return f(&WriteTx{ReadTx: ReadTx{tx: t}, rw: t})
	})
}
