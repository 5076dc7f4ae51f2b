// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package wal

import (
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/flowraft/wal/types"
)

// Option configures a Manager at Recover time, mirroring the teacher's
// walOpt functional-options pattern (and the bench file's observed
// wal.WithSegmentSize(512) call site).
type Option func(*Manager)

// WithSegmentSize overrides the default rollover threshold
// (types.DefaultSegmentSizeBytes), spec §6 segment_size_bytes.
func WithSegmentSize(bytes int) Option {
	return func(m *Manager) { m.segmentSizeBytes = bytes }
}

// WithMaxRecordBytes overrides the default hard cap on a single record
// payload (types.DefaultMaxRecordBytes), spec §6 max_record_bytes.
func WithMaxRecordBytes(bytes uint32) Option {
	return func(m *Manager) { m.maxRecordBytes = bytes }
}

// WithVerifyChecksum overrides the default verify_checksum option (spec §6).
func WithVerifyChecksum(verify bool) Option {
	return func(m *Manager) { m.verifyChecksum = verify }
}

// WithLogger installs a structured logger (spec §7: "Logging of errors uses
// a structured logger supplied by the host").
func WithLogger(logger log.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithRegisterer installs a prometheus.Registerer for the Manager's
// metrics. Defaults to a fresh prometheus.NewRegistry() private to this
// Manager, so constructing more than one Manager in a process (the normal
// recover/write/close/recover lifecycle, and every test) never collides on
// promauto's fixed metric names against the process-global
// prometheus.DefaultRegisterer. Pass WithRegisterer(prometheus.
// DefaultRegisterer) explicitly to opt into global scraping for a single
// long-lived Manager.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Manager) { m.reg = reg }
}

// WithFilesystem overrides the production fs.OS filesystem, primarily for
// tests.
func WithFilesystem(fsys types.Filesystem) Option {
	return func(m *Manager) { m.fsys = fsys }
}

// WithMetaStore overrides the production metastore.Bolt store, primarily
// for tests.
func WithMetaStore(meta types.MetaStore) Option {
	return func(m *Manager) { m.meta = meta }
}
