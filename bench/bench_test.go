// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Package bench holds throughput/latency benchmarks for the Log Manager,
// adapted from the teacher's bench/bench_test.go. The teacher's version
// compares against raft-boltdb via github.com/hashicorp/raft and
// github.com/hashicorp/raft-boltdb, neither of which is grounded anywhere in
// the retrieved pack; this version benchmarks Manager.Write directly and
// records latency distributions with github.com/HdrHistogram/hdrhistogram-go,
// the same role DESIGN.md assigns that dependency.
package bench

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/stretchr/testify/require"

	wal "github.com/flowraft/wal"
	"github.com/flowraft/wal/types"
)

func BenchmarkAppend(b *testing.B) {
	sizes := []int{10, 1024, 100 * 1024, 1024 * 1024}
	sizeNames := []string{"10", "1k", "100k", "1m"}
	batchSizes := []int{1, 10}

	for i, s := range sizes {
		for _, bSize := range batchSizes {
			b.Run(fmt.Sprintf("entrySize=%s/batchSize=%d", sizeNames[i], bSize), func(b *testing.B) {
				m, done := openManager(b)
				defer done()
				runAppendBench(b, m, s, bSize)
			})
		}
	}
}

func openManager(b *testing.B) (*wal.Manager, func()) {
	b.Helper()
	tmpDir, err := os.MkdirTemp("", "wal-bench-*")
	require.NoError(b, err)

	// Force rotation every 64k appended to profile segment rotation under
	// benchmark load, mirroring the teacher's WithSegmentSize(512) call site
	// for a smaller-scale bench run.
	m, _, err := wal.Recover(tmpDir, wal.WithSegmentSize(64*1024))
	require.NoError(b, err)

	return m, func() {
		m.Close()
		os.RemoveAll(tmpDir)
	}
}

func runAppendBench(b *testing.B, m *wal.Manager, entrySize, batchSize int) {
	b.Helper()
	data := make([]byte, entrySize)

	hist := hdrhistogram.New(1, 10_000_000, 3)
	b.ReportAllocs()
	b.ResetTimer()

	idx := uint64(1)
	for n := 0; n < b.N; n++ {
		entries := make([]types.Entry, batchSize)
		for i := range entries {
			entries[i] = types.Entry{Index: idx, Term: 1, Data: data}
			idx++
		}

		start := time.Now()
		require.NoError(b, m.Write(entries, nil))
		require.NoError(b, m.Sync())
		elapsedUs := time.Since(start).Microseconds()
		_ = hist.RecordValue(elapsedUs)
	}
	b.StopTimer()

	b.ReportMetric(float64(hist.ValueAtQuantile(50)), "p50-us")
	b.ReportMetric(float64(hist.ValueAtQuantile(99)), "p99-us")
}
