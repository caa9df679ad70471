// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package batchrepr provides the primitives for reading and writing the
// binary batch representation: a 12-byte header (base sequence number plus
// record count) followed by a stream of tagged, length-prefixed records.
// This representation is used in-memory while a WriteBatch is being built
// and is the wire format replayed during recovery.
package batchrepr

import (
	"encoding/binary"

	"github.com/cockroachdb/batchkv/internal/base"
)

// maxVarint32Len is the largest number of bytes a base-128 varint encoding of
// a uint32 may occupy. A 32-bit value never needs a 6th continuation byte;
// encountering one without terminating means the input is corrupt.
const maxVarint32Len = 5

// maxVarint64Len is the largest number of bytes a base-128 varint encoding of
// a uint64 may occupy.
const maxVarint64Len = 10

// PutFixed32 writes v to dst[:4] in little-endian order.
func PutFixed32(dst []byte, v uint32) {
	binary.LittleEndian.PutUint32(dst, v)
}

// PutFixed64 writes v to dst[:8] in little-endian order.
func PutFixed64(dst []byte, v uint64) {
	binary.LittleEndian.PutUint64(dst, v)
}

// GetFixed32 reads a little-endian uint32 from src[:4].
func GetFixed32(src []byte) uint32 {
	return binary.LittleEndian.Uint32(src)
}

// GetFixed64 reads a little-endian uint64 from src[:8].
func GetFixed64(src []byte) uint64 {
	return binary.LittleEndian.Uint64(src)
}

// AppendVarint32 appends the base-128 varint encoding of v to dst and
// returns the extended slice.
func AppendVarint32(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// GetVarint32 decodes a base-128 varint from the front of src. It fails
// (ok=false) if the varint would require more than 5 bytes, or if src is
// exhausted before a terminating byte is found; in either failure case src
// is returned unmodified, matching the codec's no-partial-consumption
// failure contract.
func GetVarint32(src []byte) (v uint32, rest []byte, ok bool) {
	var shift uint
	for i := 0; i < maxVarint32Len && i < len(src); i++ {
		b := src[i]
		if b < 0x80 {
			v |= uint32(b) << shift
			return v, src[i+1:], true
		}
		v |= uint32(b&0x7f) << shift
		shift += 7
	}
	return 0, src, false
}

// AppendVarint64 appends the base-128 varint encoding of v to dst and
// returns the extended slice.
func AppendVarint64(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// GetVarint64 decodes a base-128 varint from the front of src. It fails
// (ok=false) if the varint would require more than 10 bytes, or if src is
// exhausted before a terminating byte is found; in either failure case src
// is returned unmodified, matching the codec's no-partial-consumption
// failure contract.
func GetVarint64(src []byte) (v uint64, rest []byte, ok bool) {
	var shift uint
	for i := 0; i < maxVarint64Len && i < len(src); i++ {
		b := src[i]
		if b < 0x80 {
			v |= uint64(b) << shift
			return v, src[i+1:], true
		}
		v |= uint64(b&0x7f) << shift
		shift += 7
	}
	return 0, src, false
}

// AppendLengthPrefixed appends s to dst as a varint32 length followed by the
// raw bytes, and returns the extended slice.
func AppendLengthPrefixed(dst []byte, s []byte) []byte {
	dst = AppendVarint32(dst, uint32(len(s)))
	return append(dst, s...)
}

// GetLengthPrefixed decodes a varint32 length followed by that many raw
// bytes from the front of src, returning the decoded slice (a subslice of
// src, not a copy) and the remainder. It fails without consuming src if the
// length varint is malformed or claims more bytes than remain.
func GetLengthPrefixed(src []byte) (s []byte, rest []byte, ok bool) {
	n, after, ok := GetVarint32(src)
	if !ok {
		return nil, src, false
	}
	if uint64(n) > uint64(len(after)) {
		return nil, src, false
	}
	return after[:n], after[n:], true
}

// AppendTag appends a single record tag byte to dst.
func AppendTag(dst []byte, kind base.RecordKind) []byte {
	return append(dst, byte(kind))
}
