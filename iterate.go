// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package batchkv

import (
	"github.com/cockroachdb/batchkv/batchrepr"
	"github.com/cockroachdb/batchkv/internal/base"
	"github.com/cockroachdb/errors"
)

// Iterate decodes repr's records in order and dispatches each to h. It
// operates directly on a raw payload so that it can be reused both by
// WriteBatch.Iterate and by the recovery-time re-iteration of a rebuilt
// prepared-transaction payload (memtable.MemTableInserter.MarkCommit).
func Iterate(repr []byte, h Handler) error {
	hdr, ok := batchrepr.ReadHeader(repr)
	if !ok {
		return errors.Wrapf(ErrMalformedTooSmall, "payload length %d", len(repr))
	}
	r := batchrepr.Read(repr)
	var counted uint32
	for h.ShouldContinue() {
		rec, ok, err := r.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if rec.Kind.Counted() {
			counted++
		}
		if err := dispatch(h, rec); err != nil {
			return err
		}
	}
	if counted != hdr.Count {
		return errors.Wrapf(ErrWrongCount, "header declares %d records, decoded %d", hdr.Count, counted)
	}
	return nil
}

func dispatch(h Handler, rec batchrepr.Record) error {
	switch rec.Kind {
	case base.RecordKindValue, base.RecordKindColumnFamilyValue:
		return h.PutCF(rec.CFID, rec.Key, rec.Value)
	case base.RecordKindDeletion, base.RecordKindColumnFamilyDeletion:
		return h.DeleteCF(rec.CFID, rec.Key)
	case base.RecordKindSingleDeletion, base.RecordKindColumnFamilySingleDeletion:
		return h.SingleDeleteCF(rec.CFID, rec.Key)
	case base.RecordKindRangeDeletion, base.RecordKindColumnFamilyRangeDeletion:
		return h.DeleteRangeCF(rec.CFID, rec.Key, rec.Value)
	case base.RecordKindMerge, base.RecordKindColumnFamilyMerge:
		return h.MergeCF(rec.CFID, rec.Key, rec.Value)
	case base.RecordKindLogData:
		return h.LogData(rec.Blob)
	case base.RecordKindBeginPrepareXID:
		return h.MarkBeginPrepare()
	case base.RecordKindEndPrepareXID:
		return h.MarkEndPrepare(rec.XID)
	case base.RecordKindCommitXID:
		return h.MarkCommit(rec.XID)
	case base.RecordKindRollbackXID:
		return h.MarkRollback(rec.XID)
	case base.RecordKindNoop:
		return nil
	default:
		return errors.Wrapf(batchrepr.ErrInvalidBatch, "no dispatch for record kind %s", rec.Kind)
	}
}
