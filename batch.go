// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package batchkv

import (
	"sync/atomic"

	"github.com/cockroachdb/batchkv/batchrepr"
	"github.com/cockroachdb/batchkv/internal/base"
	"github.com/cockroachdb/errors"
)

// savePoint is the immutable tuple captured by SetSavePoint and
// MarkWALTerminationPoint: everything needed to roll payload, count, and
// content_flags back to an earlier point in a batch's construction.
type savePoint struct {
	payloadSize int
	count       uint32
	flags       contentFlag
}

// WriteBatch accumulates a sequence of mutations in the binary format
// defined by batchrepr, for later replay (via Iterate, or a
// memtable.MemTableInserter) or WAL persistence. It is not safe for
// concurrent mutation; only the content-flags memo tolerates concurrent
// access.
type WriteBatch struct {
	payload []byte
	// maxBytes bounds payload growth from the counted append operations.
	// Zero means unbounded.
	maxBytes int
	// contentFlags is the only field WriteBatch permits concurrent access
	// to, via atomic load/store with relaxed-equivalent semantics: the
	// memoized value is idempotent, so a racing recomputation is benign.
	contentFlags atomic.Uint32
	savePoints   []savePoint
	walTerm      *savePoint
}

// New returns an empty WriteBatch: just the 12-byte header, sequence number
// and count both zero.
func New() *WriteBatch {
	return &WriteBatch{payload: batchrepr.NewPayload()}
}

// NewWithMaxBytes returns an empty WriteBatch whose counted append
// operations fail with ErrBatchTooLarge once the payload would exceed
// maxBytes.
func NewWithMaxBytes(maxBytes int) *WriteBatch {
	b := New()
	b.maxBytes = maxBytes
	return b
}

// Repr returns the batch's full wire-format payload, header included. The
// returned slice aliases the batch's internal buffer and must not be
// retained across a subsequent mutation of b.
func (b *WriteBatch) Repr() []byte { return b.payload }

// DataSize returns the total size in bytes of the batch's payload,
// including the 12-byte header.
func (b *WriteBatch) DataSize() int { return len(b.payload) }

// Count returns the number of counted records currently encoded in the
// batch.
func (b *WriteBatch) Count() uint32 {
	return batchrepr.GetFixed32(b.payload[8:batchrepr.HeaderLen])
}

// SetCount overwrites the batch header's count field directly, bypassing
// the normal append bookkeeping. Most callers should prefer the typed
// append operations; SetCount exists for WAL replay code that has already
// validated a raw payload's count.
func (b *WriteBatch) SetCount(n uint32) {
	batchrepr.SetCount(b.payload, n)
}

// SeqNum returns the sequence number assigned to the batch's first counted
// record, or zero if none has been assigned yet.
func (b *WriteBatch) SeqNum() base.SeqNum {
	return batchrepr.ReadSeqNum(b.payload)
}

// SetSeqNum overwrites the batch header's base sequence number.
func (b *WriteBatch) SetSeqNum(seq base.SeqNum) {
	batchrepr.SetSeqNum(b.payload, seq)
}

// SetContents replaces the batch's payload wholesale with repr, which must
// be at least long enough to contain the fixed header. Because the
// contents' record kinds are now unknown, content_flags is marked Deferred:
// the first Has* query iterates repr to compute real flags.
func (b *WriteBatch) SetContents(repr []byte) error {
	if len(repr) < batchrepr.HeaderLen {
		return errors.Wrapf(ErrMalformedTooSmall, "payload length %d", len(repr))
	}
	b.payload = append(b.payload[:0:0], repr...)
	b.contentFlags.Store(uint32(flagDeferred))
	b.savePoints = b.savePoints[:0]
	b.walTerm = nil
	return nil
}

// Clone returns an independent copy of b; mutating the clone never affects
// b and vice versa.
func (b *WriteBatch) Clone() *WriteBatch {
	nb := &WriteBatch{
		payload:  append([]byte(nil), b.payload...),
		maxBytes: b.maxBytes,
	}
	nb.contentFlags.Store(b.contentFlags.Load())
	if len(b.savePoints) > 0 {
		nb.savePoints = append([]savePoint(nil), b.savePoints...)
	}
	if b.walTerm != nil {
		sp := *b.walTerm
		nb.walTerm = &sp
	}
	return nb
}

// Clear resets the batch to its just-constructed state: payload truncated
// to the header (sequence number and count zeroed), content_flags zeroed
// (not Deferred — the batch really is empty), the save-point stack emptied,
// and any WAL termination point forgotten.
func (b *WriteBatch) Clear() {
	b.payload = batchrepr.NewPayload()
	b.contentFlags.Store(0)
	b.savePoints = b.savePoints[:0]
	b.walTerm = nil
}

// Iterate decodes the batch's payload and dispatches each record to h.
func (b *WriteBatch) Iterate(h Handler) error {
	return Iterate(b.payload, h)
}

// appendCounted implements the scoped-acquisition protocol every counted
// append operation follows: snapshot payload size, count, and flags;
// encode; set the flag bit; and on a max_bytes overflow, restore every
// piece of the snapshot so the failed call leaves the batch unchanged.
func (b *WriteBatch) appendCounted(flag contentFlag, encode func([]byte) []byte) error {
	savedSize := len(b.payload)
	savedCount := b.Count()
	savedFlags := b.contentFlags.Load()

	b.payload = encode(b.payload)
	b.SetCount(savedCount + 1)
	b.contentFlags.Store(savedFlags | uint32(flag))

	if b.maxBytes > 0 && len(b.payload) > b.maxBytes {
		b.payload = b.payload[:savedSize]
		b.SetCount(savedCount)
		b.contentFlags.Store(savedFlags)
		return ErrBatchTooLarge
	}
	return nil
}

// Put appends a Value record for key on the default column family.
func (b *WriteBatch) Put(key, value []byte) error { return b.PutCF(0, key, value) }

// PutCF appends a Value (or ColumnFamilyValue, if cfID != 0) record.
func (b *WriteBatch) PutCF(cfID uint32, key, value []byte) error {
	return b.appendCounted(flagPut, func(dst []byte) []byte {
		return batchrepr.AppendValue(dst, cfID, key, value)
	})
}

// Delete appends a Deletion record for key on the default column family.
func (b *WriteBatch) Delete(key []byte) error { return b.DeleteCF(0, key) }

// DeleteCF appends a Deletion (or ColumnFamilyDeletion) record.
func (b *WriteBatch) DeleteCF(cfID uint32, key []byte) error {
	return b.appendCounted(flagDelete, func(dst []byte) []byte {
		return batchrepr.AppendDeletion(dst, cfID, key)
	})
}

// SingleDelete appends a SingleDeletion record for key on the default
// column family.
func (b *WriteBatch) SingleDelete(key []byte) error { return b.SingleDeleteCF(0, key) }

// SingleDeleteCF appends a SingleDeletion (or ColumnFamilySingleDeletion)
// record.
func (b *WriteBatch) SingleDeleteCF(cfID uint32, key []byte) error {
	return b.appendCounted(flagSingleDelete, func(dst []byte) []byte {
		return batchrepr.AppendSingleDeletion(dst, cfID, key)
	})
}

// DeleteRange appends a RangeDeletion record covering [begin, end) on the
// default column family.
func (b *WriteBatch) DeleteRange(begin, end []byte) error {
	return b.DeleteRangeCF(0, begin, end)
}

// DeleteRangeCF appends a RangeDeletion (or ColumnFamilyRangeDeletion)
// record covering [begin, end).
func (b *WriteBatch) DeleteRangeCF(cfID uint32, begin, end []byte) error {
	return b.appendCounted(flagRangeDelete, func(dst []byte) []byte {
		return batchrepr.AppendRangeDeletion(dst, cfID, begin, end)
	})
}

// Merge appends a Merge record for key on the default column family.
func (b *WriteBatch) Merge(key, value []byte) error { return b.MergeCF(0, key, value) }

// MergeCF appends a Merge (or ColumnFamilyMerge) record.
func (b *WriteBatch) MergeCF(cfID uint32, key, value []byte) error {
	return b.appendCounted(flagMerge, func(dst []byte) []byte {
		return batchrepr.AppendMerge(dst, cfID, key, value)
	})
}

// PutLogData appends an uncounted LogData record carrying an opaque
// annotation. It does not increment count and sets no content flag; by
// default Iterate's LogData callback is a no-op, so callers that care about
// log data must supply a Handler that overrides it.
func (b *WriteBatch) PutLogData(blob []byte) {
	b.payload = batchrepr.AppendLogData(b.payload, blob)
}

// ReserveBeginPrepare appends the uncounted Noop placeholder byte that a
// later MarkEndPrepare call rewrites in place to BeginPrepareXID. It must
// be the first record appended to an otherwise-empty batch destined to
// become a prepared transaction.
func (b *WriteBatch) ReserveBeginPrepare() {
	b.payload = batchrepr.AppendNoop(b.payload)
}

// MarkEndPrepare closes a prepare section: it rewrites the reserved Noop
// byte at the start of the payload to BeginPrepareXID, appends an
// EndPrepareXID record naming xid, and clears the save-point stack (a
// sealed prepare section cannot be rolled back to a point predating it).
func (b *WriteBatch) MarkEndPrepare(xid []byte) error {
	if len(b.payload) <= batchrepr.HeaderLen {
		return ErrNoReservedNoop
	}
	if base.RecordKind(b.payload[batchrepr.HeaderLen]) != base.RecordKindNoop {
		return errors.Wrapf(ErrNoReservedNoop, "found %s at offset %d",
			base.RecordKind(b.payload[batchrepr.HeaderLen]), batchrepr.HeaderLen)
	}
	b.payload[batchrepr.HeaderLen] = byte(base.RecordKindBeginPrepareXID)
	b.payload = batchrepr.AppendEndPrepare(b.payload, xid)
	b.contentFlags.Store(b.contentFlags.Load() | uint32(flagBeginPrepare) | uint32(flagEndPrepare))
	b.savePoints = b.savePoints[:0]
	return nil
}

// MarkCommit appends a CommitXID record naming xid. It does not affect
// count or the save-point stack.
func (b *WriteBatch) MarkCommit(xid []byte) error {
	b.payload = batchrepr.AppendCommit(b.payload, xid)
	b.contentFlags.Store(b.contentFlags.Load() | uint32(flagCommit))
	return nil
}

// MarkRollback appends a RollbackXID record naming xid. It does not affect
// count or the save-point stack.
func (b *WriteBatch) MarkRollback(xid []byte) error {
	b.payload = batchrepr.AppendRollback(b.payload, xid)
	b.contentFlags.Store(b.contentFlags.Load() | uint32(flagRollback))
	return nil
}

// SetSavePoint pushes the batch's current (payload size, count,
// content_flags) onto the save-point stack.
func (b *WriteBatch) SetSavePoint() {
	b.savePoints = append(b.savePoints, savePoint{
		payloadSize: len(b.payload),
		count:       b.Count(),
		flags:       contentFlag(b.contentFlags.Load()),
	})
}

// RollbackToSavePoint truncates the batch back to the most recently pushed
// save point, restoring payload length, count, and content_flags, and pops
// that save point off the stack. It returns ErrNoSavePoint if the stack is
// empty.
func (b *WriteBatch) RollbackToSavePoint() error {
	if len(b.savePoints) == 0 {
		return ErrNoSavePoint
	}
	sp := b.savePoints[len(b.savePoints)-1]
	b.savePoints = b.savePoints[:len(b.savePoints)-1]
	b.payload = b.payload[:sp.payloadSize]
	b.SetCount(sp.count)
	b.contentFlags.Store(uint32(sp.flags))
	return nil
}

// PopSavePoint discards the most recently pushed save point without rolling
// back to it. It returns ErrNoSavePoint if the stack is empty.
func (b *WriteBatch) PopSavePoint() error {
	if len(b.savePoints) == 0 {
		return ErrNoSavePoint
	}
	b.savePoints = b.savePoints[:len(b.savePoints)-1]
	return nil
}

// MarkWALTerminationPoint captures the batch's current (payload size,
// count, content_flags) as the prefix that Append should use when its
// caller requests a WAL-only append.
func (b *WriteBatch) MarkWALTerminationPoint() {
	b.walTerm = &savePoint{
		payloadSize: len(b.payload),
		count:       b.Count(),
		flags:       contentFlag(b.contentFlags.Load()),
	}
}

// ensureClassified returns the batch's content_flags, computing them by
// iteration (and memoizing the result) if they're currently Deferred. The
// memoization races benignly with a concurrent call: both compute the same
// value.
func (b *WriteBatch) ensureClassified() contentFlag {
	flags := contentFlag(b.contentFlags.Load())
	if flags&flagDeferred == 0 {
		return flags
	}
	c := &classifier{}
	// A malformed payload simply stops contributing further bits; this is
	// a best-effort memoization, not a validating pass.
	_ = Iterate(b.payload, c)
	b.contentFlags.Store(uint32(c.flags))
	return c.flags
}

// HasPut reports whether the batch contains at least one Put/PutCF record.
func (b *WriteBatch) HasPut() bool { return b.ensureClassified()&flagPut != 0 }

// HasDelete reports whether the batch contains at least one Delete/DeleteCF
// record.
func (b *WriteBatch) HasDelete() bool { return b.ensureClassified()&flagDelete != 0 }

// HasSingleDelete reports whether the batch contains at least one
// SingleDelete/SingleDeleteCF record.
func (b *WriteBatch) HasSingleDelete() bool { return b.ensureClassified()&flagSingleDelete != 0 }

// HasRangeDelete reports whether the batch contains at least one
// DeleteRange/DeleteRangeCF record.
func (b *WriteBatch) HasRangeDelete() bool { return b.ensureClassified()&flagRangeDelete != 0 }

// HasMerge reports whether the batch contains at least one Merge/MergeCF
// record.
func (b *WriteBatch) HasMerge() bool { return b.ensureClassified()&flagMerge != 0 }

// HasBeginPrepare reports whether the batch contains a BeginPrepareXID
// record.
func (b *WriteBatch) HasBeginPrepare() bool { return b.ensureClassified()&flagBeginPrepare != 0 }

// HasEndPrepare reports whether the batch contains an EndPrepareXID record.
func (b *WriteBatch) HasEndPrepare() bool { return b.ensureClassified()&flagEndPrepare != 0 }

// HasCommit reports whether the batch contains a CommitXID record.
func (b *WriteBatch) HasCommit() bool { return b.ensureClassified()&flagCommit != 0 }

// HasRollback reports whether the batch contains a RollbackXID record.
func (b *WriteBatch) HasRollback() bool { return b.ensureClassified()&flagRollback != 0 }

// AppendedByteSize returns the payload size of a batch formed by appending
// one batch of size b onto one of size a, both sizes including their own
// 12-byte header. If either is zero, the result is simply their sum;
// otherwise the merged batch carries exactly one header, so the header size
// is subtracted once.
func AppendedByteSize(a, b int) int {
	if a == 0 || b == 0 {
		return a + b
	}
	return a + b - batchrepr.HeaderLen
}

// Append concatenates src's records onto dst. If walOnly is true and src has
// a WAL termination point set (via MarkWALTerminationPoint), only the
// prefix up to that point is appended. dst's count and content_flags are
// updated to reflect the appended records; dst's own save-point stack and
// WAL termination point are left untouched.
func (dst *WriteBatch) Append(src *WriteBatch, walOnly bool) error {
	srcPayload := src.payload
	srcCount := src.Count()
	srcFlags := contentFlag(src.contentFlags.Load())
	if walOnly && src.walTerm != nil {
		srcPayload = src.payload[:src.walTerm.payloadSize]
		srcCount = src.walTerm.count
		srcFlags = src.walTerm.flags
	}
	if len(srcPayload) <= batchrepr.HeaderLen {
		return nil
	}

	newSize := AppendedByteSize(len(dst.payload), len(srcPayload))
	grown := make([]byte, 0, newSize)
	grown = append(grown, dst.payload...)
	grown = append(grown, srcPayload[batchrepr.HeaderLen:]...)
	dst.payload = grown

	dst.SetCount(dst.Count() + srcCount)
	dst.contentFlags.Store(dst.contentFlags.Load() | uint32(srcFlags))
	return nil
}
