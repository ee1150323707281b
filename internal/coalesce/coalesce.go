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

// Package coalesce implements the process-wide in-flight request registry
// (spec.md §4.G): requests with the same store name share overlapping
// slices instead of re-fetching them.
package coalesce

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/tscache/internal/slice"
	"github.com/erigontech/tscache/internal/tsmodel"
)

// recentEmptyCacheSize bounds the "store names with no live peers" hint
// cache; it only ever makes Join take the slow (but always correct) path
// one lookup too many, never an incorrect one.
const recentEmptyCacheSize = 4096

type entry struct {
	slices []*slice.Slice
}

// Registry is the live-request registry. The zero value is not usable; use
// NewRegistry.
type Registry struct {
	mu    sync.Mutex
	peers map[string][]*entry

	// recentEmpty remembers store names that had no live peers the last
	// time Join was called for them, so a burst of single-flight requests
	// against distinct identities doesn't force a full map read under lock
	// each time (spec.md §5: lookups need only be safe at event-loop
	// scheduling granularity, not free of all bookkeeping).
	recentEmpty *lru.Cache[string, struct{}]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	c, _ := lru.New[string, struct{}](recentEmptyCacheSize)
	return &Registry{peers: make(map[string][]*entry), recentEmpty: c}
}

// Join registers mine under storeName, then prunes each of mine's slices
// against every slice of every already-registered peer request sharing the
// same store name: a peer slice whose range covers a slice of ours
// (intersection duration >= ours) has its shared columns removed from ours,
// and is added to the borrowed set. Slices that shrink to just {revision}
// are dropped entirely.
//
// The returned deregister func must be called exactly once, when the
// caller's request completes (success or failure), to remove it from the
// registry.
func (r *Registry) Join(storeName string, mine []*slice.Slice) (own, borrowed []*slice.Slice, deregister func()) {
	r.mu.Lock()
	var peers []*entry
	if _, empty := r.recentEmpty.Get(storeName); !empty {
		peers = append(peers, r.peers[storeName]...)
	}
	me := &entry{slices: mine}
	r.peers[storeName] = append(r.peers[storeName], me)
	// storeName now has a live entry again: any earlier "no peers" hint is
	// stale and must not keep later concurrent Joins from seeing me.
	r.recentEmpty.Remove(storeName)
	r.mu.Unlock()

	borrowedSet := make(map[*slice.Slice]struct{})
	own = make([]*slice.Slice, 0, len(mine))
	for _, s := range mine {
		for _, peer := range peers {
			for _, peerSlice := range peer.slices {
				if peerSlice == s {
					continue
				}
				overlap := peerSlice.Range.FindIntersection(s.Range)
				if overlap.IsEmpty() || overlap.Duration() < s.Range.Duration() {
					continue
				}
				shared := sharedColumns(s.Columns, peerSlice.Columns)
				if len(shared) == 0 {
					continue
				}
				for _, c := range shared {
					s.Columns.Remove(c)
				}
				borrowedSet[peerSlice] = struct{}{}
			}
		}
		if !s.Columns.OnlyRevision() {
			own = append(own, s)
		}
	}

	borrowed = make([]*slice.Slice, 0, len(borrowedSet))
	for s := range borrowedSet {
		borrowed = append(borrowed, s)
	}

	deregister = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		list := r.peers[storeName]
		for i, e := range list {
			if e == me {
				r.peers[storeName] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(r.peers[storeName]) == 0 {
			delete(r.peers, storeName)
			r.recentEmpty.Add(storeName, struct{}{})
		}
	}
	return own, borrowed, deregister
}

func sharedColumns(a, b tsmodel.ColumnSet) []tsmodel.ColumnName {
	var out []tsmodel.ColumnName
	for _, c := range a.Slice() {
		if c == tsmodel.ColumnRevision {
			// Every slice carries revision; it is never pruned.
			continue
		}
		if b.Has(c) {
			out = append(out, c)
		}
	}
	return out
}
