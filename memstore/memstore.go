// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Package memstore is the production types.MemStore implementation: the
// external in-memory log the Log Manager reconstructs during recovery and
// mutates on every AppendToMemStore call (spec §4.4). It is a plain slice
// rather than the teacher's immutable.SortedMap because the store here is
// single-writer, single-reader-at-a-time by contract (spec §5) — there's no
// concurrent-readers-during-mutation case to protect against the way the
// Log Manager's own segment directory has to.
package memstore

import (
	"fmt"

	"github.com/flowraft/wal/types"
)

// Store is the default types.MemStore.
type Store struct {
	entries []types.Entry
	hs      types.HardState
}

var _ types.MemStore = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

func (s *Store) Append(e types.Entry) {
	s.entries = append(s.entries, e)
}

func (s *Store) Entries() []types.Entry {
	return s.entries
}

func (s *Store) SetEntries(es []types.Entry) {
	s.entries = es
}

func (s *Store) SetHardState(hs types.HardState) {
	s.hs = hs
}

func (s *Store) HardState() types.HardState {
	return s.hs
}

// LastIndex returns the index of the last entry, or 0 if empty.
func (s *Store) LastIndex() uint64 {
	if len(s.entries) == 0 {
		return 0
	}
	return s.entries[len(s.entries)-1].Index
}

// AppendToMemStore implements the suffix-truncation rule of spec §4.4: a
// new entry e may never have a lower term than the currently retained last
// entry (that is a Raft protocol violation, surfaced as types.ErrYARaft);
// otherwise every retained entry at or after e.Index is discarded before e
// is appended. This is what makes replaying overlapping segments during
// recovery idempotent — a later segment's entries always win over an
// earlier segment's at the same index.
func AppendToMemStore(ms types.MemStore, e types.Entry) error {
	entries := ms.Entries()
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		if e.Term < last.Term {
			return fmt.Errorf("%w: new entry at index %d has term %d, lower than retained last entry's term %d",
				types.ErrYARaft, e.Index, e.Term, last.Term)
		}
	}

	// Suffix truncation: discard every retained entry whose index >= e.Index.
	cut := len(entries)
	for cut > 0 && entries[cut-1].Index >= e.Index {
		cut--
	}
	if cut != len(entries) {
		entries = entries[:cut]
	}

	ms.SetEntries(append(entries, e))
	return nil
}
