// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Package record implements the on-disk framing for a single WAL record:
// encode/decode of the length-prefixed, checksummed frame described in
// spec §3/§4.1. The checksum technique (CRC32C over a length-prefixed
// buffer, read back through a small scratch header) is grounded on
// ulysseses-wal's frame.go; the frame layout itself (type byte,
// payload_len, payload, trailing crc32c) and the taxonomy of decode
// failures are specified directly by the WAL spec.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/flowraft/wal/types"
)

// frameHeaderLen is len(type) + len(payload_len).
const frameHeaderLen = 1 + 4

// crcLen is the trailing checksum length.
const crcLen = 4

// castagnoli is the CRC32C polynomial table (0x1EDC6F41), spec §6.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Record is a single decoded frame.
type Record struct {
	Type    types.RecordType
	Payload []byte
}

// DecodeError enumerates why Decode failed to produce a Record, spec §4.1.
type DecodeError struct {
	Kind string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("record: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("record: %s", e.Kind)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// The five DecodeError kinds named by spec §4.1. Eof and Torn both carry
// Err == io.EOF/io.ErrUnexpectedEOF respectively so callers that only care
// about "is there more data" can still use errors.Is(err, io.EOF).
var (
	ErrEOF              = &DecodeError{Kind: "eof", Err: io.EOF}
	ErrTorn             = &DecodeError{Kind: "torn", Err: io.ErrUnexpectedEOF}
	ErrChecksumMismatch = &DecodeError{Kind: "checksum_mismatch"}
	ErrUnknownType      = &DecodeError{Kind: "unknown_type"}
	ErrLengthTooLarge   = &DecodeError{Kind: "length_too_large"}
)

// IsTornOrEOF reports whether err is one of the decode outcomes that are
// only tolerable at the tail of the last segment (spec §4.1, §7). A
// checksum mismatch is included: spec §7 maps CorruptRecord to TornTail
// specifically "when it is the last record of the last segment" — a crash
// during a partial-sector flush can leave a full-length frame on disk with
// a bad CRC, which looks identical to an intentionally torn write from the
// recovery algorithm's point of view. The recovery caller consults this
// function only for the last segment, and there accepts a checksum mismatch
// as a torn tail only when no further record follows it; anywhere else a
// checksum mismatch surfaces as fatal.
func IsTornOrEOF(err error) bool {
	var de *DecodeError
	if !errors.As(err, &de) {
		return false
	}
	switch de.Kind {
	case "eof", "torn", "length_too_large", "checksum_mismatch":
		return true
	default:
		return false
	}
}

// Encode serializes rec into a single buffer suitable for one Write call.
// Encode cannot fail beyond out-of-memory, per spec §4.1.
func Encode(rec Record) []byte {
	buf := make([]byte, frameHeaderLen+len(rec.Payload)+crcLen)
	buf[0] = byte(rec.Type)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(rec.Payload)))
	n := copy(buf[frameHeaderLen:], rec.Payload)

	h := crc32.New(castagnoli)
	h.Write(buf[:frameHeaderLen+n])
	binary.LittleEndian.PutUint32(buf[frameHeaderLen+n:], h.Sum32())
	return buf
}

// Decode parses exactly one record from r. maxPayload is the configured
// max_record_bytes cap (spec §6); verifyChecksum controls whether the CRC
// is actually checked or merely consumed (spec's verify_checksum option).
func Decode(r io.Reader, maxPayload uint32, verifyChecksum bool) (Record, error) {
	var hdr [frameHeaderLen]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		return Record{}, classifyShortRead(n, err, 0)
	}

	typ := types.RecordType(hdr[0])
	payloadLen := binary.LittleEndian.Uint32(hdr[1:5])
	if payloadLen > maxPayload {
		return Record{}, ErrLengthTooLarge
	}

	body := make([]byte, int(payloadLen)+crcLen)
	n, err = io.ReadFull(r, body)
	if err != nil {
		return Record{}, classifyShortRead(n, err, frameHeaderLen)
	}

	payload := body[:payloadLen]
	wantCRC := binary.LittleEndian.Uint32(body[payloadLen:])

	if verifyChecksum {
		h := crc32.New(castagnoli)
		h.Write(hdr[:])
		h.Write(payload)
		if h.Sum32() != wantCRC {
			return Record{}, &DecodeError{Kind: "checksum_mismatch", Err: fmt.Errorf("want %d got %d", wantCRC, h.Sum32())}
		}
	}

	switch typ {
	case types.RecordEntry, types.RecordHardState, types.RecordSegmentHeader:
	default:
		return Record{}, &DecodeError{Kind: "unknown_type", Err: fmt.Errorf("type byte %d", hdr[0])}
	}

	return Record{Type: typ, Payload: payload}, nil
}

// classifyShortRead turns an io.ReadFull outcome into Eof (clean boundary,
// zero bytes read so far in this frame) or Torn (1..frame_size-1 bytes).
// alreadyRead accounts for bytes consumed by an earlier ReadFull call within
// the same Decode invocation (the header) so Torn is reported whenever any
// part of the frame landed on disk.
func classifyShortRead(n int, err error, alreadyRead int) error {
	if errors.Is(err, io.EOF) && n == 0 && alreadyRead == 0 {
		return ErrEOF
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTorn
	}
	return &DecodeError{Kind: "io", Err: err}
}

// EncodeSegmentHeader builds the payload for the fixed first record of
// every segment file (spec §3).
func EncodeSegmentHeader(si types.SegmentInfo) []byte {
	buf := make([]byte, 4+2+8+8)
	binary.LittleEndian.PutUint32(buf[0:4], types.SegmentHeaderMagic)
	binary.LittleEndian.PutUint16(buf[4:6], types.SegmentHeaderVersion)
	binary.LittleEndian.PutUint64(buf[6:14], si.ID)
	binary.LittleEndian.PutUint64(buf[14:22], si.Start)
	return buf
}

// DecodeSegmentHeader parses the payload written by EncodeSegmentHeader,
// failing with types.ErrCorruptSegmentHeader if magic/version don't match
// (spec §4.2).
func DecodeSegmentHeader(payload []byte) (types.SegmentInfo, error) {
	if len(payload) != 22 {
		return types.SegmentInfo{}, fmt.Errorf("%w: short header payload (%d bytes)", types.ErrCorruptSegmentHeader, len(payload))
	}
	magic := binary.LittleEndian.Uint32(payload[0:4])
	version := binary.LittleEndian.Uint16(payload[4:6])
	if magic != types.SegmentHeaderMagic {
		return types.SegmentInfo{}, fmt.Errorf("%w: bad magic %#x", types.ErrCorruptSegmentHeader, magic)
	}
	if version != types.SegmentHeaderVersion {
		return types.SegmentInfo{}, fmt.Errorf("%w: unsupported version %d", types.ErrCorruptSegmentHeader, version)
	}
	return types.SegmentInfo{
		ID:    binary.LittleEndian.Uint64(payload[6:14]),
		Start: binary.LittleEndian.Uint64(payload[14:22]),
	}, nil
}

// EncodeEntry and DecodeEntry implement the wire format for types.Entry:
// index and term as fixed-width little-endian prefixes followed by the
// opaque payload. The WAL never interprets Data.
func EncodeEntry(e types.Entry) []byte {
	buf := make([]byte, 8+8+len(e.Data))
	binary.LittleEndian.PutUint64(buf[0:8], e.Index)
	binary.LittleEndian.PutUint64(buf[8:16], e.Term)
	copy(buf[16:], e.Data)
	return buf
}

func DecodeEntry(payload []byte) (types.Entry, error) {
	if len(payload) < 16 {
		return types.Entry{}, fmt.Errorf("%w: entry payload too short (%d bytes)", types.ErrCorruptRecord, len(payload))
	}
	data := make([]byte, len(payload)-16)
	copy(data, payload[16:])
	return types.Entry{
		Index: binary.LittleEndian.Uint64(payload[0:8]),
		Term:  binary.LittleEndian.Uint64(payload[8:16]),
		Data:  data,
	}, nil
}

// EncodeHardState and DecodeHardState implement the wire format for
// types.HardState: three fixed-width little-endian fields.
func EncodeHardState(hs types.HardState) []byte {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf[0:8], hs.Term)
	binary.LittleEndian.PutUint64(buf[8:16], hs.Vote)
	binary.LittleEndian.PutUint64(buf[16:24], hs.Commit)
	return buf
}

func DecodeHardState(payload []byte) (types.HardState, error) {
	if len(payload) != 24 {
		return types.HardState{}, fmt.Errorf("%w: hard state payload wrong size (%d bytes)", types.ErrCorruptRecord, len(payload))
	}
	return types.HardState{
		Term:   binary.LittleEndian.Uint64(payload[0:8]),
		Vote:   binary.LittleEndian.Uint64(payload[8:16]),
		Commit: binary.LittleEndian.Uint64(payload[16:24]),
	}, nil
}
