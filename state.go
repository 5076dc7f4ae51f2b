// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package wal

import (
	"github.com/benbjohnson/immutable"

	"github.com/flowraft/wal/types"
)

// state is an immutable snapshot of the sealed-segment directory, published
// through Manager.s (an atomic.Value) exactly the way the teacher's WAL
// publishes its own *state: readers (Manager.Segments) load a snapshot
// without taking writeMu, while writeMu-holding mutators (sealing a writer,
// GC) build a new snapshot from a fresh Set/Delete and then swap it in. There
// is deliberately no reference-counted finalizer machinery here (unlike the
// teacher's): this WAL never hands a segment's file handle to a reader
// concurrently with a mutator freeing it — recovery is the only reader of
// segment contents and it never overlaps with live writes (spec §5) — so
// the plain copy-on-write map is enough.
type state struct {
	segments *immutable.SortedMap[uint64, types.SegmentMetaData]
}

func newEmptyState() *state {
	return &state{segments: &immutable.SortedMap[uint64, types.SegmentMetaData]{}}
}

func (s *state) clone() *state {
	return &state{segments: s.segments}
}

// sortedMetas returns every segment's metadata ordered by SegStart.
func (s *state) sortedMetas() []types.SegmentMetaData {
	out := make([]types.SegmentMetaData, 0, s.segments.Len())
	it := s.segments.Iterator()
	for !it.Done() {
		_, meta, _ := it.Next()
		out = append(out, meta)
	}
	return out
}
