// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package wal

import (
	"math/rand"
	"testing"

	"github.com/google/gofuzz"
	"github.com/stretchr/testify/require"

	"github.com/flowraft/wal/memstore"
	"github.com/flowraft/wal/types"
)

// TestProperty_WriteThenRecoverMatchesMemStoreReplay checks the universal
// invariant from spec §8: write sequences W1..Wn followed by sync, close,
// recover must equal applying W1..Wn in order to a fresh memstore via
// AppendToMemStore. gofuzz drives randomized batches of monotonically
// increasing-index entries, mirroring how a real Raft leader would call
// write (spec §9 never asks the implementer to fuzz non-monotonic batches
// within one call; cross-batch term regression is covered separately by
// TestScenario_TermRegressionRejected).
func TestProperty_WriteThenRecoverMatchesMemStoreReplay(t *testing.T) {
	seed := int64(42)
	// NilChance(0): a nil and an empty payload encode to the same bytes, and
	// recovery always returns a non-nil Data slice.
	fz := fuzz.NewWithSeed(seed).NilChance(0)
	rng := rand.New(rand.NewSource(seed))

	dir := tempDir(t)
	m, _, err := Recover(dir, WithSegmentSize(512))
	require.NoError(t, err)

	reference := memstore.New()
	nextIndex := uint64(1)
	term := uint64(1)

	numBatches := 25
	for b := 0; b < numBatches; b++ {
		if rng.Intn(10) == 0 {
			term++ // occasional term advance, never regresses.
		}
		batchSize := 1 + rng.Intn(5)
		es := make([]types.Entry, batchSize)
		for i := range es {
			var payload []byte
			fz.NumElements(0, 64).Fuzz(&payload)
			es[i] = types.Entry{Index: nextIndex, Term: term, Data: payload}
			nextIndex++
			require.NoError(t, memstore.AppendToMemStore(reference, es[i]))
		}

		require.NoError(t, m.Write(es, nil))
		if rng.Intn(3) == 0 {
			require.NoError(t, m.Sync())
		}
	}
	require.NoError(t, m.Close())

	recovered, ms, err := Recover(dir)
	require.NoError(t, err)
	defer recovered.Close()

	require.Equal(t, reference.Entries(), ms.Entries())
}

// TestProperty_SegmentNamesAreInjectiveAndIDsIncrease checks the second
// universal invariant from spec §8 by driving enough rollovers to produce
// many segments and asserting every (seg_id, seg_start) pair is unique and
// seg_id strictly increases with file order.
func TestProperty_SegmentNamesAreInjectiveAndIDsIncrease(t *testing.T) {
	dir := tempDir(t)
	m, _, err := Recover(dir, WithSegmentSize(64))
	require.NoError(t, err)

	es := make([]types.Entry, 200)
	for i := range es {
		es[i] = types.Entry{Index: uint64(i + 1), Term: 1, Data: make([]byte, 16)}
	}
	require.NoError(t, m.Write(es, nil))
	require.NoError(t, m.Close())

	segs := m.Segments()
	require.NotEmpty(t, segs)

	seen := map[types.SegmentInfo]bool{}
	var lastID uint64
	for _, seg := range segs {
		info := seg.Info()
		require.False(t, seen[info], "duplicate segment info %+v", info)
		seen[info] = true
		require.Greater(t, info.ID, lastID)
		lastID = info.ID
	}
}
