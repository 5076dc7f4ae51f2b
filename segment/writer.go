// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package segment

import (
	"path/filepath"

	"github.com/flowraft/wal/record"
	"github.com/flowraft/wal/types"
)

// Writer owns exactly one open segment file: the Log Writer of spec §4.3.
// The teacher's LogWriter held a back-pointer to its owning LogManager to
// ask for the next (seg_id, seg_start) pair (spec §9, Design Notes: Cyclic
// ownership); we resolve that the way the Design Notes suggest — the
// manager already owns the id counter, so it simply passes the already
// allocated types.SegmentInfo into New rather than Writer calling back into
// it.
type Writer struct {
	fsys types.Filesystem
	path string
	info types.SegmentInfo

	f types.WritableFile

	segmentSizeBytes int
	bytesWritten     int64
	lastIndexWritten uint64
	wroteAny         bool
}

// New creates the segment file, writes its header record, and returns a
// Writer ready to Append. segmentSizeBytes is the rollover threshold (spec
// §4.3, §6).
func New(fsys types.Filesystem, dir string, info types.SegmentInfo, segmentSizeBytes int) (*Writer, error) {
	path := joinPath(dir, info)
	f, err := fsys.OpenForAppend(path)
	if err != nil {
		return nil, err
	}

	hdr := record.Encode(record.Record{Type: types.RecordSegmentHeader, Payload: record.EncodeSegmentHeader(info)})
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		return nil, err
	}

	return &Writer{
		fsys:             fsys,
		path:             path,
		info:             info,
		f:                f,
		segmentSizeBytes: segmentSizeBytes,
		bytesWritten:     int64(len(hdr)),
	}, nil
}

// Path returns the segment's on-disk path.
func (w *Writer) Path() string { return w.path }

// Info returns this writer's {seg_id, seg_start}.
func (w *Writer) Info() types.SegmentInfo { return w.info }

// ByteSize returns the number of bytes written to the file so far,
// including the header.
func (w *Writer) ByteSize() int64 { return w.bytesWritten }

// Append encodes and writes hardState (if non-nil, written before any
// entry, per spec §4.3's hard-state ordering invariant) followed by
// entries[start:], stopping either when entries is exhausted or when
// bytesWritten would exceed segmentSizeBytes after the next entry. It
// returns the index into entries of the first entry NOT written (== len
// (entries) if all were written). At least one entry is always written
// while entries[start:] is non-empty, guaranteeing forward progress even if
// a single entry is itself larger than the rollover threshold.
func (w *Writer) Append(entries []types.Entry, start int, hardState *types.HardState) (int, error) {
	if hardState != nil {
		hsBuf := record.Encode(record.Record{Type: types.RecordHardState, Payload: record.EncodeHardState(*hardState)})
		if _, err := w.f.Write(hsBuf); err != nil {
			return start, err
		}
		w.bytesWritten += int64(len(hsBuf))
	}

	i := start
	for ; i < len(entries); i++ {
		buf := record.Encode(record.Record{Type: types.RecordEntry, Payload: record.EncodeEntry(entries[i])})

		if i > start && w.bytesWritten+int64(len(buf)) > int64(w.segmentSizeBytes) {
			// Rollover: stop before writing this entry, caller seals and
			// opens a new writer to continue from i.
			break
		}

		if _, err := w.f.Write(buf); err != nil {
			return i, err
		}
		w.bytesWritten += int64(len(buf))
		w.lastIndexWritten = entries[i].Index
		w.wroteAny = true
	}
	return i, nil
}

// Sync flushes the OS write buffer (fdatasync semantics, spec §4.3).
func (w *Writer) Sync() error {
	return w.f.Sync()
}

// Finish flushes, closes the file, and returns the segment's final
// metadata. The Writer is consumed and must not be used again.
func (w *Writer) Finish() (types.SegmentMetaData, error) {
	if err := w.f.Sync(); err != nil {
		return types.SegmentMetaData{}, err
	}
	if err := w.f.Close(); err != nil {
		return types.SegmentMetaData{}, err
	}
	return types.SegmentMetaData{
		SegID:            w.info.ID,
		SegStart:         w.info.Start,
		LastIndexWritten: w.lastIndexWritten,
		FileName:         w.info.FileName(),
		ByteSize:         w.bytesWritten,
	}, nil
}

func joinPath(dir string, info types.SegmentInfo) string {
	return filepath.Join(dir, info.FileName())
}
