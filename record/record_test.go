// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package record

import (
	"bytes"
	"io"
	"testing"

	"github.com/flowraft/wal/types"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := Record{Type: types.RecordEntry, Payload: EncodeEntry(types.Entry{Index: 5, Term: 2, Data: []byte("hello")})}
	buf := Encode(rec)

	got, err := Decode(bytes.NewReader(buf), types.DefaultMaxRecordBytes, true)
	require.NoError(t, err)
	require.Equal(t, rec.Type, got.Type)

	e, err := DecodeEntry(got.Payload)
	require.NoError(t, err)
	require.Equal(t, uint64(5), e.Index)
	require.Equal(t, uint64(2), e.Term)
	require.Equal(t, []byte("hello"), e.Data)
}

func TestDecodeCleanEOF(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil), types.DefaultMaxRecordBytes, true)
	require.ErrorIs(t, err, io.EOF)
}

func TestDecodeTornTail(t *testing.T) {
	buf := Encode(Record{Type: types.RecordEntry, Payload: []byte("payload")})
	torn := buf[:len(buf)-2] // chop off part of the checksum

	_, err := Decode(bytes.NewReader(torn), types.DefaultMaxRecordBytes, true)
	require.True(t, IsTornOrEOF(err))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeChecksumMismatch(t *testing.T) {
	buf := Encode(Record{Type: types.RecordEntry, Payload: []byte("payload")})
	buf[len(buf)-1] ^= 0xFF // flip a bit in the checksum

	_, err := Decode(bytes.NewReader(buf), types.DefaultMaxRecordBytes, true)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "checksum_mismatch", de.Kind)
}

func TestDecodeChecksumMismatchIgnoredWhenVerifyDisabled(t *testing.T) {
	buf := Encode(Record{Type: types.RecordEntry, Payload: []byte("payload")})
	buf[len(buf)-1] ^= 0xFF

	_, err := Decode(bytes.NewReader(buf), types.DefaultMaxRecordBytes, false)
	require.NoError(t, err)
}

func TestDecodeUnknownType(t *testing.T) {
	buf := Encode(Record{Type: types.RecordType(99), Payload: []byte("x")})

	_, err := Decode(bytes.NewReader(buf), types.DefaultMaxRecordBytes, true)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "unknown_type", de.Kind)
}

func TestDecodeLengthTooLarge(t *testing.T) {
	buf := Encode(Record{Type: types.RecordEntry, Payload: make([]byte, 1024)})

	_, err := Decode(bytes.NewReader(buf), 16, true)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "length_too_large", de.Kind)
	require.True(t, IsTornOrEOF(err))
}

func TestSegmentHeaderRoundTrip(t *testing.T) {
	si := types.SegmentInfo{ID: 7, Start: 42}
	payload := EncodeSegmentHeader(si)

	got, err := DecodeSegmentHeader(payload)
	require.NoError(t, err)
	require.Equal(t, si, got)
}

func TestSegmentHeaderBadMagic(t *testing.T) {
	payload := EncodeSegmentHeader(types.SegmentInfo{ID: 1, Start: 1})
	payload[0] ^= 0xFF

	_, err := DecodeSegmentHeader(payload)
	require.ErrorIs(t, err, types.ErrCorruptSegmentHeader)
}

func TestHardStateRoundTrip(t *testing.T) {
	hs := types.HardState{Term: 7, Vote: 2, Commit: 5}
	payload := EncodeHardState(hs)

	got, err := DecodeHardState(payload)
	require.NoError(t, err)
	require.Equal(t, hs, got)
}
