// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package batchrepr

import (
	"fmt"

	"github.com/cockroachdb/batchkv/internal/base"
	"github.com/cockroachdb/errors"
)

// ErrInvalidBatch indicates that a batch is invalid or otherwise corrupted.
var ErrInvalidBatch = base.MarkCorruptionError(errors.New("batchkv: invalid batch"))

const (
	// HeaderLen is the length of the batch header in bytes: an 8-byte base
	// sequence number followed by a 4-byte count.
	HeaderLen = 12
	// countOffset is the index into the batch representation where the
	// count is stored, encoded as a little-endian uint32.
	countOffset = 8
)

// IsEmpty returns true iff repr holds no bytes after its header. The
// header's count is not consulted, and uncounted records such as LogData
// make a batch non-empty.
func IsEmpty(repr []byte) bool {
	return len(repr) <= HeaderLen
}

// Header describes the contents of a batch header.
type Header struct {
	// SeqNum is the sequence number assigned to the batch's first counted
	// record. A batch that has not yet been assigned a sequence number (for
	// instance, one still being constructed by its owner) has SeqNum zero.
	SeqNum base.SeqNum
	// Count is the number of counted records encoded in the payload. It
	// excludes uncounted records: LogData, Noop, and the BeginPrepareXID,
	// EndPrepareXID, CommitXID and RollbackXID markers.
	Count uint32
}

// String returns a string representation of the header's contents.
func (h Header) String() string {
	return fmt.Sprintf("[seqNum=%d,count=%d]", h.SeqNum, h.Count)
}

// ReadHeader reads the contents of the batch header. If repr is too small to
// contain a valid header, ReadHeader returns ok=false.
func ReadHeader(repr []byte) (h Header, ok bool) {
	if len(repr) < HeaderLen {
		return h, false
	}
	return Header{
		SeqNum: ReadSeqNum(repr),
		Count:  GetFixed32(repr[countOffset:HeaderLen]),
	}, true
}

// ReadSeqNum reads the sequence number encoded within the batch without
// validating the rest of the header. It's exported for performance-sensitive
// callers (e.g. WAL replay) that need only the sequence number.
func ReadSeqNum(repr []byte) base.SeqNum {
	return base.SeqNum(GetFixed64(repr[:countOffset]))
}

// Read constructs a Reader over the records that follow repr's header,
// ignoring the header's own contents. It returns nil if repr is too short to
// contain any records (including the case where it's exactly HeaderLen,
// i.e. the empty batch).
func Read(repr []byte) (r Reader) {
	if len(repr) <= HeaderLen {
		return nil
	}
	return repr[HeaderLen:]
}

// Reader iterates over the records contained in a batch's payload, one tag
// at a time. It does not track how many counted records it has emitted;
// Iterate (in the parent package) compares against the header's Count.
type Reader []byte

// Record is a single decoded entry from a batch's payload. Which fields are
// meaningful depends on Kind:
//
//   - Value, CFValue: Key, Value
//   - Deletion, CFDeletion, SingleDeletion, CFSingleDeletion: Key
//   - RangeDeletion, CFRangeDeletion: Key (begin), Value (end)
//   - Merge, CFMerge: Key, Value
//   - LogData: Blob
//   - Noop, BeginPrepareXID: no payload
//   - EndPrepareXID, CommitXID, RollbackXID: XID
//
// CFID is always populated (zero for the non-CF-qualified tag variants).
type Record struct {
	Kind  base.RecordKind
	CFID  uint32
	Key   []byte
	Value []byte
	Blob  []byte
	XID   []byte
}

// Next decodes and returns the next record in the reader. If the reader has
// been fully consumed, Next returns ok=false and a nil error. If the next
// record is malformed, Next returns ok=false and a non-nil error; the
// reader's position is left at the start of the offending record (it is not
// advanced), matching the decoder's no-partial-consumption contract.
func (r *Reader) Next() (rec Record, ok bool, err error) {
	if len(*r) == 0 {
		return Record{}, false, nil
	}
	start := *r
	tag := base.RecordKind(start[0])
	if tag > base.RecordKindMax {
		return Record{}, false, errors.Wrapf(ErrInvalidBatch, "unknown tag 0x%x", start[0])
	}
	cur := start[1:]
	rec.Kind = tag

	if tag.IsColumnFamilyQualified() {
		var cfid uint32
		var cfok bool
		cfid, cur, cfok = GetVarint32(cur)
		if !cfok {
			return Record{}, false, errors.Wrapf(ErrInvalidBatch, "decoding column family id for %s", tag)
		}
		rec.CFID = cfid
	}

	switch tag {
	case base.RecordKindValue, base.RecordKindColumnFamilyValue,
		base.RecordKindMerge, base.RecordKindColumnFamilyMerge:
		var key, val []byte
		var kok, vok bool
		key, cur, kok = GetLengthPrefixed(cur)
		if kok {
			val, cur, vok = GetLengthPrefixed(cur)
		}
		if !kok || !vok {
			return Record{}, false, errors.Wrapf(ErrInvalidBatch, "decoding %s", tag)
		}
		rec.Key, rec.Value = key, val

	case base.RecordKindDeletion, base.RecordKindColumnFamilyDeletion,
		base.RecordKindSingleDeletion, base.RecordKindColumnFamilySingleDeletion:
		key, after, kok := GetLengthPrefixed(cur)
		if !kok {
			return Record{}, false, errors.Wrapf(ErrInvalidBatch, "decoding %s", tag)
		}
		rec.Key = key
		cur = after

	case base.RecordKindRangeDeletion, base.RecordKindColumnFamilyRangeDeletion:
		begin, after, bok := GetLengthPrefixed(cur)
		var end []byte
		var eok bool
		if bok {
			end, after, eok = GetLengthPrefixed(after)
		}
		if !bok || !eok {
			return Record{}, false, errors.Wrapf(ErrInvalidBatch, "decoding %s", tag)
		}
		rec.Key, rec.Value = begin, end
		cur = after

	case base.RecordKindLogData:
		blob, after, bok := GetLengthPrefixed(cur)
		if !bok {
			return Record{}, false, errors.Wrapf(ErrInvalidBatch, "decoding log data")
		}
		rec.Blob = blob
		cur = after

	case base.RecordKindNoop, base.RecordKindBeginPrepareXID:
		// No payload.

	case base.RecordKindEndPrepareXID, base.RecordKindCommitXID, base.RecordKindRollbackXID:
		xid, after, xok := GetLengthPrefixed(cur)
		if !xok {
			return Record{}, false, errors.Wrapf(ErrInvalidBatch, "decoding xid for %s", tag)
		}
		rec.XID = xid
		cur = after

	default:
		return Record{}, false, errors.Wrapf(ErrInvalidBatch, "unknown tag %s", tag)
	}

	*r = cur
	return rec, true, nil
}
