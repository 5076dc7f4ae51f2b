// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Package wal is the Log Manager of spec §4.4: the durable directory of
// segments and the entry point for recovery, write, sync, close and GC. Its
// shape — an atomic.Value snapshot of segment metadata guarded by a single
// writeMu, with recovery driven by a directory scan — is grounded directly
// on the teacher's WAL type in wal.go, adapted to this spec's simpler
// single-writer-per-segment record format instead of the teacher's
// block-indexed one.
package wal

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/flowraft/wal/fs"
	"github.com/flowraft/wal/memstore"
	"github.com/flowraft/wal/metastore"
	"github.com/flowraft/wal/record"
	"github.com/flowraft/wal/segment"
	"github.com/flowraft/wal/types"
)

// Re-exported sentinel errors, matching the teacher's var block at the top
// of wal.go that re-exports its types package's errors for callers that
// only import the root package.
var (
	ErrCorruptSegmentHeader = types.ErrCorruptSegmentHeader
	ErrCorruptRecord        = types.ErrCorruptRecord
	ErrTornTail             = types.ErrTornTail
	ErrYARaft               = types.ErrYARaft
	ErrClosed               = types.ErrClosed
)

// Manager is the Log Manager (spec §4.4). The zero value is not usable;
// construct one with Recover.
type Manager struct {
	closed uint32 // atomic; first field for alignment, as in the teacher.

	dir  string
	fsys types.Filesystem
	meta types.MetaStore

	reg     prometheus.Registerer
	metrics *walMetrics
	logger  log.Logger

	segmentSizeBytes int
	maxRecordBytes   uint32
	verifyChecksum   bool

	// s holds the immutable snapshot of sealed-segment metadata. Readers
	// (Segments) load it without taking writeMu; writeMu-holding mutators
	// (finishCurrentWriterLocked, GC) swap in a new snapshot.
	s atomic.Value // *state

	// writeMu serializes the single writer this WAL supports (spec §5).
	writeMu sync.Mutex

	writer        *segment.Writer
	nextSegmentID uint64
	lastIndex     uint64
	empty         bool
}

// Recover implements the recovery algorithm of spec §4.4: it creates dir if
// missing, lists and orders its segment files, replays every record into a
// fresh MemStore (applying suffix truncation and hard-state overwrites),
// tolerates a torn tail only in the last segment, and returns a Manager
// ready for Write/Sync/Close/GC alongside the reconstructed MemStore.
func Recover(dir string, opts ...Option) (*Manager, types.MemStore, error) {
	m := &Manager{
		dir:              dir,
		fsys:             fs.OS{},
		segmentSizeBytes: types.DefaultSegmentSizeBytes,
		maxRecordBytes:   types.DefaultMaxRecordBytes,
		verifyChecksum:   types.DefaultVerifyChecksum,
		logger:           log.NewNopLogger(),
		reg:              prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dir == "" {
		return nil, nil, errors.New("wal: log_dir is required")
	}
	m.metrics = newWALMetrics(m.reg)

	if err := m.fsys.MkdirAll(m.dir); err != nil {
		return nil, nil, err
	}
	if m.meta == nil {
		bolt, err := metastore.Open(m.dir)
		if err != nil {
			return nil, nil, err
		}
		m.meta = bolt
	}

	persisted, err := m.meta.Load()
	if err != nil {
		return nil, nil, err
	}

	names, err := m.fsys.ReadDir(m.dir)
	if err != nil {
		return nil, nil, err
	}
	var infos []types.SegmentInfo
	for _, name := range names {
		if info, ok := segment.ParseName(name); ok {
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	ms := memstore.New()
	st := newEmptyState()

	if len(infos) == 0 {
		m.nextSegmentID = persisted.NextSegmentID
		if m.nextSegmentID == 0 {
			m.nextSegmentID = 1
		}
		m.empty = true
		m.s.Store(st)
		m.metrics.recoveries.Inc()
		return m, ms, nil
	}

	if err := segment.ValidateOrder(infos); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", types.ErrCorruptRecord, err)
	}

	for i, info := range infos {
		path := filepath.Join(m.dir, info.FileName())
		isLast := i == len(infos)-1

		lastIdx, size, err := m.recoverSegment(path, info, isLast, ms)
		if err != nil {
			return nil, nil, err
		}
		m.metrics.recoverySegmentsRead.Inc()

		st.segments = st.segments.Set(info.Start, types.SegmentMetaData{
			SegID:            info.ID,
			SegStart:         info.Start,
			LastIndexWritten: lastIdx,
			FileName:         info.FileName(),
			ByteSize:         size,
		})
	}

	m.nextSegmentID = infos[len(infos)-1].ID + 1
	if persisted.NextSegmentID > m.nextSegmentID {
		m.nextSegmentID = persisted.NextSegmentID
	}
	m.lastIndex = ms.LastIndex()
	m.empty = len(ms.Entries()) == 0
	m.s.Store(st)
	m.metrics.recoveries.Inc()

	// The directory scan we just did is authoritative; refresh the
	// metastore cache so the next Recover doesn't need to re-derive
	// nextSegmentID purely from file names (e.g. after a GC retires the
	// highest-id segment, only the metastore remembers how high we got).
	if err := m.meta.CommitState(m.persistentStateLocked()); err != nil {
		return nil, nil, err
	}

	return m, ms, nil
}

// recoverSegment drains one segment file into ms, returning the last entry
// index physically written to this segment (regardless of later suffix
// truncation by a subsequent segment) and the file's byte size.
func (m *Manager) recoverSegment(path string, info types.SegmentInfo, isLast bool, ms types.MemStore) (uint64, int64, error) {
	r, err := segment.Open(m.fsys, path, m.maxRecordBytes, m.verifyChecksum)
	if err != nil {
		return 0, 0, err
	}
	defer r.Close()

	if r.Info() != info {
		return 0, 0, fmt.Errorf("%w: %s header {%d,%d} does not match file name {%d,%d}",
			types.ErrCorruptSegmentHeader, path, r.Info().ID, r.Info().Start, info.ID, info.Start)
	}

	var lastIdx uint64
	for {
		rec, err := r.Next()
		if err != nil {
			if isLast && record.IsTornOrEOF(err) {
				var de *record.DecodeError
				if errors.As(err, &de) && de.Kind == "checksum_mismatch" {
					// A bad checksum is a torn tail only if no record follows it.
					if next, nerr := r.Next(); nerr == nil && next != nil {
						return 0, 0, fmt.Errorf("%w: %s: %v", types.ErrCorruptRecord, path, err)
					}
				}
				level.Info(m.logger).Log("msg", "discarding torn tail", "segment", info.FileName(), "err", err)
				m.metrics.tornTailsSwallowed.Inc()
				break
			}
			return 0, 0, fmt.Errorf("%w: %s: %v", types.ErrCorruptRecord, path, err)
		}
		if rec == nil {
			break
		}

		switch rec.Type {
		case types.RecordEntry:
			e, err := record.DecodeEntry(rec.Payload)
			if err != nil {
				return 0, 0, err
			}
			if err := memstore.AppendToMemStore(ms, e); err != nil {
				return 0, 0, err
			}
			lastIdx = e.Index
		case types.RecordHardState:
			hs, err := record.DecodeHardState(rec.Payload)
			if err != nil {
				return 0, 0, err
			}
			ms.SetHardState(hs)
		default:
			return 0, 0, fmt.Errorf("%w: unexpected record type %v mid-segment in %s", types.ErrCorruptRecord, rec.Type, path)
		}
	}

	size, err := m.fsys.Size(path)
	if err != nil {
		return 0, 0, err
	}
	return lastIdx, size, nil
}

func (m *Manager) loadState() *state {
	return m.s.Load().(*state)
}

func (m *Manager) persistentStateLocked() types.PersistentState {
	return types.PersistentState{
		NextSegmentID: m.nextSegmentID,
		Segments:      m.loadState().sortedMetas(),
	}
}

func (m *Manager) checkClosed() error {
	if atomic.LoadUint32(&m.closed) != 0 {
		return types.ErrClosed
	}
	return nil
}

// Write implements spec §4.4's write(entries, hard_state?): empty entries is
// a no-op; if the manager has never held an entry, lastIndex is
// initialized to entries[0].Index-1; appends are driven through the
// current Log Writer, sealing and opening a fresh one on rollover. hardState
// (if non-nil) is consumed by the first writer used for this batch only,
// per the Log Writer's hard-state ordering invariant (spec §4.3).
func (m *Manager) Write(entries []types.Entry, hardState *types.HardState) error {
	if err := m.checkClosed(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.empty {
		m.lastIndex = entries[0].Index - 1
		m.empty = false
	}

	idx := 0
	hs := hardState
	var nBytes uint64
	for _, e := range entries {
		nBytes += uint64(len(e.Data))
	}

	for {
		if m.writer == nil {
			if err := m.openNewWriterLocked(entries[idx].Index); err != nil {
				return err
			}
		}

		stopped, err := m.writer.Append(entries, idx, hs)
		if err != nil {
			return types.WrapIO("append", err)
		}
		hs = nil // spec §4.3: hard state written exactly once, by the first segment.
		idx = stopped

		if idx >= len(entries) {
			break
		}
		if err := m.finishCurrentWriterLocked(); err != nil {
			return err
		}
	}

	m.lastIndex = entries[len(entries)-1].Index
	m.metrics.appends.Inc()
	m.metrics.entriesWritten.Add(float64(len(entries)))
	m.metrics.bytesWritten.Add(float64(nBytes))
	return nil
}

// WriteHardState persists a hard-state record on its own, without requiring
// an accompanying entry. spec.md §9 flags Write's silent no-op on
// (empty entries, non-nil hard_state) as a possible bug and asks the
// implementer not to silently change Write's contract; this is the
// distinct entry point SPEC_FULL.md's SUPPLEMENTED FEATURES section adds to
// resolve that without touching Write itself.
func (m *Manager) WriteHardState(hs types.HardState) error {
	if err := m.checkClosed(); err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.writer == nil {
		// No live segment to attach the hard state to; start one rooted at
		// the next index this log would accept.
		if err := m.openNewWriterLocked(m.lastIndex + 1); err != nil {
			return err
		}
	}
	if _, err := m.writer.Append(nil, 0, &hs); err != nil {
		return types.WrapIO("append_hard_state", err)
	}
	return nil
}

// openNewWriterLocked allocates the next segment id, durably commits it to
// the metastore before creating the file (so a crash never reuses an id
// whose file might already half-exist — grounded on the teacher's
// "persist meta to commit it even before we create the file" comment in
// Open), and opens the new Writer.
func (m *Manager) openNewWriterLocked(start uint64) error {
	info := types.SegmentInfo{ID: m.nextSegmentID, Start: start}
	m.nextSegmentID++

	if err := m.meta.CommitState(m.persistentStateLocked()); err != nil {
		m.nextSegmentID--
		return err
	}

	w, err := segment.New(m.fsys, m.dir, info, m.segmentSizeBytes)
	if err != nil {
		return err
	}
	m.writer = w
	return nil
}

// finishCurrentWriterLocked seals the current writer (if any), recording
// its metadata into the sealed-segment directory.
func (m *Manager) finishCurrentWriterLocked() error {
	if m.writer == nil {
		return nil
	}
	meta, err := m.writer.Finish()
	if err != nil {
		return err
	}
	m.writer = nil

	st := m.loadState().clone()
	st.segments = st.segments.Set(meta.SegStart, meta)
	m.s.Store(st)
	m.metrics.segmentRotations.Inc()

	return m.meta.CommitState(m.persistentStateLocked())
}

// Sync forwards to the current writer's Sync; no-op if no writer is open
// (spec §4.4).
func (m *Manager) Sync() error {
	if err := m.checkClosed(); err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if m.writer == nil {
		return nil
	}
	return m.writer.Sync()
}

// Close seals any open writer and releases the metastore. Idempotent (spec
// §4.4 state machine: Writing|Empty --(close)--> Closed, and Close is safe
// to call more than once).
func (m *Manager) Close() error {
	if old := atomic.SwapUint32(&m.closed, 1); old != 0 {
		return nil
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.finishCurrentWriterLocked(); err != nil {
		return err
	}
	return m.meta.Close()
}

// GC retires every sealed segment whose LastIndexWritten is strictly below
// hint.MaxIndex, per the default compaction policy SPEC_FULL.md's
// SUPPLEMENTED FEATURES section decides on for the open question in
// spec §9 ("whether GC is supposed to unlink files ... is unspecified").
// The currently open segment is never a GC candidate.
func (m *Manager) GC(hint types.CompactionHint) error {
	if err := m.checkClosed(); err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	st := m.loadState().clone()
	var toDelete []types.SegmentMetaData

	it := st.segments.Iterator()
	for !it.Done() {
		_, meta, _ := it.Next()
		if meta.LastIndexWritten < hint.MaxIndex {
			toDelete = append(toDelete, meta)
		}
	}
	for _, meta := range toDelete {
		st.segments = st.segments.Delete(meta.SegStart)
	}
	m.s.Store(st)

	if err := m.meta.CommitState(m.persistentStateLocked()); err != nil {
		return err
	}

	for _, meta := range toDelete {
		path := filepath.Join(m.dir, meta.FileName)
		if err := m.fsys.Remove(path); err != nil {
			m.metrics.segmentsGCed.WithLabelValues("false").Inc()
			level.Error(m.logger).Log("msg", "failed to remove gc'd segment", "file", meta.FileName, "err", err)
			continue
		}
		m.metrics.segmentsGCed.WithLabelValues("true").Inc()
	}
	return nil
}

// LastIndex returns the index of the last durably appended entry, or 0 if
// the manager has never accepted an entry (spec §3).
func (m *Manager) LastIndex() uint64 {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.lastIndex
}

// Segments returns a snapshot of the sealed-segment directory, for GC
// policy decisions and tests.
func (m *Manager) Segments() []types.SegmentMetaData {
	return m.loadState().sortedMetas()
}
