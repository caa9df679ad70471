// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package batchrepr

import "github.com/cockroachdb/batchkv/internal/base"

// NewPayload returns a fresh batch payload containing only the zeroed
// 12-byte header.
func NewPayload() []byte {
	return make([]byte, HeaderLen)
}

// SetSeqNum mutates the provided batch representation, storing the provided
// sequence number in its header. repr must already be at least HeaderLen
// bytes long or SetSeqNum will panic.
func SetSeqNum(repr []byte, seqNum base.SeqNum) {
	PutFixed64(repr[:countOffset], uint64(seqNum))
}

// SetCount mutates the provided batch representation, storing the provided
// count in its header. repr must already be at least HeaderLen bytes long or
// SetCount will panic.
func SetCount(repr []byte, count uint32) {
	PutFixed32(repr[countOffset:HeaderLen], count)
}

// AppendValue appends a Value (or ColumnFamilyValue, if cfID != 0) record to
// dst and returns the extended slice.
func AppendValue(dst []byte, cfID uint32, key, value []byte) []byte {
	if cfID == 0 {
		dst = AppendTag(dst, base.RecordKindValue)
	} else {
		dst = AppendTag(dst, base.RecordKindColumnFamilyValue)
		dst = AppendVarint32(dst, cfID)
	}
	dst = AppendLengthPrefixed(dst, key)
	return AppendLengthPrefixed(dst, value)
}

// AppendDeletion appends a Deletion (or ColumnFamilyDeletion) record.
func AppendDeletion(dst []byte, cfID uint32, key []byte) []byte {
	if cfID == 0 {
		dst = AppendTag(dst, base.RecordKindDeletion)
	} else {
		dst = AppendTag(dst, base.RecordKindColumnFamilyDeletion)
		dst = AppendVarint32(dst, cfID)
	}
	return AppendLengthPrefixed(dst, key)
}

// AppendSingleDeletion appends a SingleDeletion (or
// ColumnFamilySingleDeletion) record.
func AppendSingleDeletion(dst []byte, cfID uint32, key []byte) []byte {
	if cfID == 0 {
		dst = AppendTag(dst, base.RecordKindSingleDeletion)
	} else {
		dst = AppendTag(dst, base.RecordKindColumnFamilySingleDeletion)
		dst = AppendVarint32(dst, cfID)
	}
	return AppendLengthPrefixed(dst, key)
}

// AppendRangeDeletion appends a RangeDeletion (or ColumnFamilyRangeDeletion)
// record covering [begin, end).
func AppendRangeDeletion(dst []byte, cfID uint32, begin, end []byte) []byte {
	if cfID == 0 {
		dst = AppendTag(dst, base.RecordKindRangeDeletion)
	} else {
		dst = AppendTag(dst, base.RecordKindColumnFamilyRangeDeletion)
		dst = AppendVarint32(dst, cfID)
	}
	dst = AppendLengthPrefixed(dst, begin)
	return AppendLengthPrefixed(dst, end)
}

// AppendMerge appends a Merge (or ColumnFamilyMerge) record.
func AppendMerge(dst []byte, cfID uint32, key, value []byte) []byte {
	if cfID == 0 {
		dst = AppendTag(dst, base.RecordKindMerge)
	} else {
		dst = AppendTag(dst, base.RecordKindColumnFamilyMerge)
		dst = AppendVarint32(dst, cfID)
	}
	dst = AppendLengthPrefixed(dst, key)
	return AppendLengthPrefixed(dst, value)
}

// AppendLogData appends an uncounted LogData record.
func AppendLogData(dst []byte, blob []byte) []byte {
	dst = AppendTag(dst, base.RecordKindLogData)
	return AppendLengthPrefixed(dst, blob)
}

// AppendNoop appends an uncounted Noop record. WriteBatch uses this to
// reserve the byte that MarkEndPrepare later rewrites in place to
// BeginPrepareXID.
func AppendNoop(dst []byte) []byte {
	return AppendTag(dst, base.RecordKindNoop)
}

// AppendEndPrepare appends an EndPrepareXID record naming xid.
func AppendEndPrepare(dst []byte, xid []byte) []byte {
	dst = AppendTag(dst, base.RecordKindEndPrepareXID)
	return AppendLengthPrefixed(dst, xid)
}

// AppendCommit appends a CommitXID record naming xid.
func AppendCommit(dst []byte, xid []byte) []byte {
	dst = AppendTag(dst, base.RecordKindCommitXID)
	return AppendLengthPrefixed(dst, xid)
}

// AppendRollback appends a RollbackXID record naming xid.
func AppendRollback(dst []byte, xid []byte) []byte {
	dst = AppendTag(dst, base.RecordKindRollbackXID)
	return AppendLengthPrefixed(dst, xid)
}
