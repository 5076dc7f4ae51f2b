// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package segment

import (
	"testing"

	"github.com/flowraft/wal/fs"
	"github.com/flowraft/wal/types"
	"github.com/stretchr/testify/require"
)

func TestWriterAppendAndReadBack(t *testing.T) {
	dir := t.TempDir()
	fsys := fs.OS{}

	w, err := New(fsys, dir, types.SegmentInfo{ID: 1, Start: 1}, types.DefaultSegmentSizeBytes)
	require.NoError(t, err)

	entries := []types.Entry{
		{Index: 1, Term: 1, Data: []byte("a")},
		{Index: 2, Term: 1, Data: []byte("b")},
	}
	hs := types.HardState{Term: 1, Vote: 1, Commit: 0}
	stopped, err := w.Append(entries, 0, &hs)
	require.NoError(t, err)
	require.Equal(t, len(entries), stopped)
	require.NoError(t, w.Sync())

	meta, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, uint64(2), meta.LastIndexWritten)
	require.Equal(t, "1-1.wal", meta.FileName)

	r, err := Open(fsys, w.Path(), types.DefaultMaxRecordBytes, true)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, types.SegmentInfo{ID: 1, Start: 1}, r.Info())

	rec, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, types.RecordHardState, rec.Type)

	rec, err = r.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, types.RecordEntry, rec.Type)

	rec, err = r.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)

	rec, err = r.Next()
	require.NoError(t, err)
	require.Nil(t, rec)
	require.True(t, r.EOF())
}

func TestWriterRolloverNeverSplitsAnEntry(t *testing.T) {
	dir := t.TempDir()
	fsys := fs.OS{}

	w, err := New(fsys, dir, types.SegmentInfo{ID: 1, Start: 1}, 64)
	require.NoError(t, err)

	entries := make([]types.Entry, 10)
	for i := range entries {
		entries[i] = types.Entry{Index: uint64(i + 1), Term: 1, Data: make([]byte, 32)}
	}

	stopped, err := w.Append(entries, 0, nil)
	require.NoError(t, err)
	require.Greater(t, stopped, 0)
	require.Less(t, stopped, len(entries))

	_, err = w.Finish()
	require.NoError(t, err)

	r, err := Open(fsys, w.Path(), types.DefaultMaxRecordBytes, true)
	require.NoError(t, err)
	defer r.Close()

	count := 0
	for {
		rec, err := r.Next()
		require.NoError(t, err)
		if rec == nil {
			break
		}
		count++
	}
	require.Equal(t, stopped, count)
}

func TestWriterAlwaysMakesProgress(t *testing.T) {
	dir := t.TempDir()
	fsys := fs.OS{}

	// Segment budget smaller than a single entry's frame: writer must still
	// write exactly one entry rather than stall forever.
	w, err := New(fsys, dir, types.SegmentInfo{ID: 1, Start: 1}, 4)
	require.NoError(t, err)

	entries := []types.Entry{
		{Index: 1, Term: 1, Data: make([]byte, 100)},
		{Index: 2, Term: 1, Data: make([]byte, 100)},
	}
	stopped, err := w.Append(entries, 0, nil)
	require.NoError(t, err)
	require.Equal(t, 1, stopped)
}
