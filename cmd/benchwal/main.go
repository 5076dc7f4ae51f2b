// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Command benchwal drives a Log Manager with a configurable write workload
// and reports append/sync latency distributions, the load-test tool
// SPEC_FULL.md's DOMAIN STACK section assigns to
// github.com/HdrHistogram/hdrhistogram-go.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	wal "github.com/flowraft/wal"
	"github.com/flowraft/wal/types"
)

func main() {
	var (
		dir         = flag.String("dir", "", "log directory (temp dir if empty)")
		n           = flag.Int("n", 100_000, "number of entries to write")
		batch       = flag.Int("batch", 1, "entries per Write call")
		entrySize   = flag.Int("entry-size", 256, "bytes per entry payload")
		segmentSize = flag.Int("segment-size", types.DefaultSegmentSizeBytes, "segment rollover threshold in bytes")
		syncEvery   = flag.Int("sync-every", 1, "call Sync every N batches (0 disables sync)")
	)
	flag.Parse()

	dirPath := *dir
	if dirPath == "" {
		tmp, err := os.MkdirTemp("", "benchwal-*")
		if err != nil {
			log.Fatal(err)
		}
		dirPath = tmp
		defer os.RemoveAll(tmp)
	}

	m, _, err := wal.Recover(dirPath, wal.WithSegmentSize(*segmentSize))
	if err != nil {
		log.Fatalf("recover: %v", err)
	}
	defer m.Close()

	data := make([]byte, *entrySize)
	appendHist := hdrhistogram.New(1, 60_000_000, 3)
	syncHist := hdrhistogram.New(1, 60_000_000, 3)

	idx := uint64(1)
	written := 0
	batchesSinceSync := 0
	start := time.Now()

	for written < *n {
		count := *batch
		if remaining := *n - written; count > remaining {
			count = remaining
		}

		entries := make([]types.Entry, count)
		for i := range entries {
			entries[i] = types.Entry{Index: idx, Term: 1, Data: data}
			idx++
		}

		t0 := time.Now()
		if err := m.Write(entries, nil); err != nil {
			log.Fatalf("write: %v", err)
		}
		_ = appendHist.RecordValue(time.Since(t0).Microseconds())
		written += count

		batchesSinceSync++
		if *syncEvery > 0 && batchesSinceSync >= *syncEvery {
			t1 := time.Now()
			if err := m.Sync(); err != nil {
				log.Fatalf("sync: %v", err)
			}
			_ = syncHist.RecordValue(time.Since(t1).Microseconds())
			batchesSinceSync = 0
		}
	}

	elapsed := time.Since(start)
	fmt.Printf("wrote %d entries (%d bytes each) in %d batches over %s (%.0f entries/sec)\n",
		*n, *entrySize, (*n+*batch-1)/(*batch), elapsed, float64(*n)/elapsed.Seconds())
	fmt.Printf("append latency (us): p50=%d p90=%d p99=%d p999=%d max=%d\n",
		appendHist.ValueAtQuantile(50), appendHist.ValueAtQuantile(90),
		appendHist.ValueAtQuantile(99), appendHist.ValueAtQuantile(99.9), appendHist.Max())
	if syncHist.TotalCount() > 0 {
		fmt.Printf("sync latency (us):   p50=%d p90=%d p99=%d p999=%d max=%d\n",
			syncHist.ValueAtQuantile(50), syncHist.ValueAtQuantile(90),
			syncHist.ValueAtQuantile(99), syncHist.ValueAtQuantile(99.9), syncHist.Max())
	}
}
