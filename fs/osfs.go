// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Package fs is the production types.Filesystem implementation, backed
// directly by the os package. Every exit path closes what it opened,
// mirroring the scoped-acquisition discipline the teacher uses around
// os.OpenFile in wal.go's Open and rotateSegmentLocked.
package fs

import (
	"os"

	"github.com/flowraft/wal/types"
)

// OS is the default types.Filesystem, a thin wrapper over the os package.
type OS struct{}

var _ types.Filesystem = OS{}

func (OS) MkdirAll(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.WrapIO("mkdir_all", err)
	}
	return nil
}

func (OS) ReadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, types.WrapIO("read_dir", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (OS) OpenForAppend(path string) (types.WritableFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, types.WrapIO("open_for_append", err)
	}
	if _, err := f.Seek(0, os.SEEK_END); err != nil {
		f.Close()
		return nil, types.WrapIO("seek_end", err)
	}
	return &osFile{f: f}, nil
}

func (OS) OpenForRead(path string) (types.ReadableFile, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0o600)
	if err != nil {
		return nil, types.WrapIO("open_for_read", err)
	}
	return f, nil
}

func (OS) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return types.WrapIO("remove", err)
	}
	return nil
}

func (OS) Size(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, types.WrapIO("stat", err)
	}
	return fi.Size(), nil
}

// osFile adapts *os.File to types.WritableFile.
type osFile struct {
	f *os.File
}

func (o *osFile) Write(p []byte) (int, error) {
	n, err := o.f.Write(p)
	if err != nil {
		return n, types.WrapIO("write", err)
	}
	return n, nil
}

func (o *osFile) Sync() error {
	if err := o.f.Sync(); err != nil {
		return types.WrapIO("fdatasync", err)
	}
	return nil
}

func (o *osFile) Close() error {
	if err := o.f.Close(); err != nil {
		return types.WrapIO("close", err)
	}
	return nil
}
