// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Package metastore is the production types.MetaStore implementation. It
// keeps the next segment id to allocate and the sealed-segment list in a
// single-bucket go.etcd.io/bbolt database sitting alongside the segment
// files, so Recover does not have to re-derive nextSegmentID purely from
// directory listings (which would be ambiguous after a GC has retired the
// highest-id segment). go.etcd.io/bbolt is a direct dependency the teacher
// repo declares but whose call sites weren't present in the retrieved
// fragment; this is the natural home for it (see DESIGN.md).
package metastore

import (
	"encoding/json"
	"path/filepath"

	"github.com/flowraft/wal/types"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("meta")
var stateKey = []byte("state")

// Bolt is the production types.MetaStore.
type Bolt struct {
	db *bolt.DB
}

var _ types.MetaStore = (*Bolt)(nil)

// Open opens (creating if missing) the meta database at
// "{dir}/meta.bolt".
func Open(dir string) (*Bolt, error) {
	db, err := bolt.Open(filepath.Join(dir, "meta.bolt"), 0o600, nil)
	if err != nil {
		return nil, types.WrapIO("open_metastore", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, types.WrapIO("init_metastore_bucket", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Load() (types.PersistentState, error) {
	var ps types.PersistentState
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		raw := bucket.Get(stateKey)
		if raw == nil {
			return nil // zero value: no prior state.
		}
		return json.Unmarshal(raw, &ps)
	})
	if err != nil {
		return types.PersistentState{}, types.WrapIO("load_metastore", err)
	}
	return ps, nil
}

func (b *Bolt) CommitState(ps types.PersistentState) error {
	raw, err := json.Marshal(ps)
	if err != nil {
		return err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(stateKey, raw)
	})
	if err != nil {
		return types.WrapIO("commit_metastore", err)
	}
	return nil
}

func (b *Bolt) Close() error {
	if err := b.db.Close(); err != nil {
		return types.WrapIO("close_metastore", err)
	}
	return nil
}
