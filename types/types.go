// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Package types holds the data model and the external collaborator
// interfaces shared by the record, segment and wal packages. Keeping them
// here (rather than in the root wal package) lets segment and record stay
// free of an import cycle back to wal, mirroring the layering of the
// original raft-wal types package.
package types

import (
	"errors"
	"fmt"
)

// RecordType identifies the kind of payload carried by a single frame.
type RecordType uint8

const (
	// RecordInvalid is the zero value; it never appears on disk.
	RecordInvalid RecordType = 0
	// RecordEntry frames carry an encoded Entry.
	RecordEntry RecordType = 1
	// RecordHardState frames carry an encoded HardState.
	RecordHardState RecordType = 2
	// RecordSegmentHeader frames are always the first record of a segment file.
	RecordSegmentHeader RecordType = 3
)

func (t RecordType) String() string {
	switch t {
	case RecordEntry:
		return "Entry"
	case RecordHardState:
		return "HardState"
	case RecordSegmentHeader:
		return "SegmentHeader"
	default:
		return fmt.Sprintf("RecordType(%d)", uint8(t))
	}
}

// SegmentHeaderMagic and SegmentHeaderVersion are the fixed values every
// segment header payload must carry. See spec §6.
const (
	SegmentHeaderMagic   uint32 = 0x57414C5F // "WAL_"
	SegmentHeaderVersion uint16 = 1
)

// Defaults for WriteAheadLogOptions (spec §6).
const (
	DefaultSegmentSizeBytes = 64 * 1024 * 1024
	DefaultMaxRecordBytes   = 64 * 1024 * 1024
	DefaultVerifyChecksum   = true
)

// Entry is one Raft log record. It is opaque to the WAL beyond Index and
// Term: Data is whatever the state machine encoded.
type Entry struct {
	Index uint64
	Term  uint64
	Data  []byte
}

// HardState is the replica's persistent vote/term/commit snapshot.
type HardState struct {
	Term   uint64
	Vote   uint64
	Commit uint64
}

// IsEmpty reports whether hs is the zero value, i.e. "no hard state to write".
func (hs HardState) IsEmpty() bool {
	return hs == HardState{}
}

// SegmentInfo identifies a segment independent of its contents, parsed
// either from its file name or from its header.
type SegmentInfo struct {
	ID    uint64
	Start uint64
}

// FileName returns the canonical on-disk name for this segment: spec §3,
// literal "{seg_id}-{seg_start}.wal", decimal, unpadded.
func (si SegmentInfo) FileName() string {
	return fmt.Sprintf("%d-%d.wal", si.ID, si.Start)
}

// SegmentMetaData is the in-memory descriptor the Log Manager keeps for
// every sealed segment (spec §3).
type SegmentMetaData struct {
	SegID            uint64
	SegStart         uint64
	LastIndexWritten uint64
	FileName         string
	ByteSize         int64
}

// Info extracts the SegmentInfo embedded in this metadata.
func (m SegmentMetaData) Info() SegmentInfo {
	return SegmentInfo{ID: m.SegID, Start: m.SegStart}
}

// CompactionHint is an opaque policy input to Manager.GC. The core only
// understands MaxIndex: "segments entirely below this index may be
// retired". Callers may embed this in a richer type of their own; GC type
// asserts to *CompactionHint internally is not required, only the exported
// field is read.
type CompactionHint struct {
	// MaxIndex: any sealed segment whose LastIndexWritten is strictly below
	// MaxIndex is eligible for retirement.
	MaxIndex uint64
}

// MemStore is the external in-memory entry store the Log Manager drives
// during recovery and consults for suffix truncation (spec §6).
type MemStore interface {
	// Append adds e to the end of the in-memory log. Callers are expected to
	// have already performed suffix truncation; Append itself does not
	// truncate.
	Append(e Entry)

	// Entries exposes the backing slice so callers (principally
	// AppendToMemStore) can inspect and truncate its tail in place.
	Entries() []Entry

	// SetEntries replaces the in-memory log wholesale, e.g. after a suffix
	// truncation has computed the new tail.
	SetEntries(es []Entry)

	// SetHardState overwrites the current hard state.
	SetHardState(hs HardState)

	// HardState returns the current hard state.
	HardState() HardState
}

// Filesystem is the storage abstraction the Log Manager and Log Writer are
// built against (spec §6). Any implementation of this set suffices; fs.OS
// is the production implementation.
type Filesystem interface {
	// MkdirAll creates dir and any missing parents.
	MkdirAll(dir string) error
	// ReadDir lists the base names of dir's immediate children.
	ReadDir(dir string) ([]string, error)
	// OpenForAppend opens path for writing at its current end (or creates it
	// if missing) and returns a handle positioned for sequential appends.
	OpenForAppend(path string) (WritableFile, error)
	// OpenForRead opens path read-only from the beginning.
	OpenForRead(path string) (ReadableFile, error)
	// Remove unlinks path. Missing files are not an error.
	Remove(path string) error
	// Size returns the current byte length of path.
	Size(path string) (int64, error)
}

// WritableFile is the subset of *os.File the Log Writer needs.
type WritableFile interface {
	Write(p []byte) (int, error)
	Sync() error
	Close() error
}

// ReadableFile is the subset of *os.File the Readable Segment needs.
type ReadableFile interface {
	Read(p []byte) (int, error)
	Close() error
}

// MetaStore persists the handful of facts recovery cannot cheaply re-derive
// by scanning the log directory alone: the next segment id to allocate, and
// (redundantly, for fast-path recovery and GC bookkeeping) the list of
// sealed segments. metastore.Bolt is the production implementation.
type MetaStore interface {
	// Load returns the persisted state, or the zero value if none exists yet.
	Load() (PersistentState, error)
	// CommitState durably overwrites the persisted state.
	CommitState(PersistentState) error
	// Close releases any resources (e.g. the underlying database handle).
	Close() error
}

// PersistentState is what MetaStore durably tracks.
type PersistentState struct {
	NextSegmentID uint64
	Segments      []SegmentMetaData
}

// Sentinel errors, spec §7. All are wrapped with fmt.Errorf("...: %w", ...)
// at the call site and should be compared with errors.Is.
var (
	ErrCorruptSegmentHeader = errors.New("wal: corrupt segment header")
	ErrCorruptRecord        = errors.New("wal: corrupt record")
	ErrTornTail             = errors.New("wal: torn tail")
	ErrYARaft               = errors.New("wal: raft protocol invariant violated")
	ErrClosed               = errors.New("wal: manager is closed")
	ErrUnknownRecordType    = errors.New("wal: unknown record type")
	ErrRecordTooLarge       = errors.New("wal: record payload exceeds max_record_bytes")
)

// IOError wraps an *os or I/O error so callers can still errors.Is against
// the underlying cause while the WAL attaches its own context.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("wal: %s: %v", e.Op, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// WrapIO is a small helper used throughout to build IOError consistently.
func WrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Err: err}
}
