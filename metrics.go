// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package wal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// walMetrics mirrors the teacher's metrics.go structure and naming
// conventions, trimmed of the truncation/random-read counters this spec's
// Log Manager doesn't support (no TruncateFront/Back, no GetLog) and
// extended with the recovery/GC observability SPEC_FULL.md's AMBIENT STACK
// section calls for.
type walMetrics struct {
	bytesWritten     prometheus.Counter
	entriesWritten   prometheus.Counter
	appends          prometheus.Counter
	segmentRotations prometheus.Counter

	recoveries           prometheus.Counter
	recoverySegmentsRead prometheus.Counter
	tornTailsSwallowed   prometheus.Counter
	segmentsGCed         *prometheus.CounterVec
}

func newWALMetrics(reg prometheus.Registerer) *walMetrics {
	return &walMetrics{
		bytesWritten: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wal_entry_bytes_written",
			Help: "wal_entry_bytes_written counts the bytes of log entry data (Entry.Data)." +
				" Actual bytes written to disk is slightly higher as it includes index," +
				" term, frame headers and checksums.",
		}),
		entriesWritten: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wal_entries_written",
			Help: "wal_entries_written counts the number of entries written.",
		}),
		appends: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wal_appends",
			Help: "wal_appends counts the number of calls to Write, i.e. the number" +
				" of batches of entries appended.",
		}),
		segmentRotations: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wal_segment_rotations",
			Help: "wal_segment_rotations counts how many segment files the manager" +
				" sealed, on rollover or on Close.",
		}),
		recoveries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wal_recoveries",
			Help: "wal_recoveries is incremented once when Recover finishes building" +
				" the Manager.",
		}),
		recoverySegmentsRead: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wal_recovery_segments_read",
			Help: "wal_recovery_segments_read counts segments drained during recovery.",
		}),
		tornTailsSwallowed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wal_torn_tails_swallowed",
			Help: "wal_torn_tails_swallowed counts how many times recovery discarded" +
				" a partially written record at the end of the last segment.",
		}),
		segmentsGCed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wal_segments_gced",
				Help: "wal_segments_gced counts segments retired by GC, labeled by" +
					" whether the unlink succeeded.",
			},
			[]string{"success"},
		),
	}
}
