// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"

	"github.com/cockroachdb/redact"
)

// RecordKind enumerates the tag byte that prefixes every record in a batch's
// payload. These constants are part of the on-disk and wire format: a batch
// serialized with one version of this package must decode identically with
// any other, so the numeric values must never change once assigned.
//
// Pebble's own internal/base.InternalKeyKind carries these same numbers in
// its const block, commented out, because Pebble repurposed the single-CF
// leveldb/rocksdb format and never needed column-family or prepared-
// transaction tags on the wire. This package restores them to their
// original numbering so that multi-column-family batches and two-phase
// commit can round-trip.
type RecordKind uint8

const (
	// RecordKindDeletion removes a key: kTypeDeletion.
	RecordKindDeletion RecordKind = 0
	// RecordKindValue sets a key to a value: kTypeValue.
	RecordKindValue RecordKind = 1
	// RecordKindMerge folds a new operand onto a key via the merge operator:
	// kTypeMerge.
	RecordKindMerge RecordKind = 2
	// RecordKindLogData is an uncounted, opaque annotation carried alongside
	// the batch: kTypeLogData.
	RecordKindLogData RecordKind = 3
	// RecordKindColumnFamilyDeletion is RecordKindDeletion qualified with an
	// explicit column family id.
	RecordKindColumnFamilyDeletion RecordKind = 4
	// RecordKindColumnFamilyValue is RecordKindValue qualified with an
	// explicit column family id.
	RecordKindColumnFamilyValue RecordKind = 5
	// RecordKindColumnFamilyMerge is RecordKindMerge qualified with an
	// explicit column family id.
	RecordKindColumnFamilyMerge RecordKind = 6
	// RecordKindSingleDeletion removes a key that is known to have at most
	// one prior Value record: kTypeSingleDeletion.
	RecordKindSingleDeletion RecordKind = 7
	// RecordKindColumnFamilySingleDeletion is RecordKindSingleDeletion
	// qualified with an explicit column family id.
	RecordKindColumnFamilySingleDeletion RecordKind = 8
	// RecordKindBeginPrepareXID opens a two-phase-commit prepare section. It
	// carries no payload; it is produced by rewriting a previously emitted
	// RecordKindNoop byte in place when the batch is sealed (see
	// WriteBatch.MarkEndPrepare).
	RecordKindBeginPrepareXID RecordKind = 9
	// RecordKindEndPrepareXID closes a prepare section, naming the
	// transaction id that the section belongs to.
	RecordKindEndPrepareXID RecordKind = 10
	// RecordKindCommitXID marks a previously prepared transaction as
	// committed.
	RecordKindCommitXID RecordKind = 11
	// RecordKindRollbackXID marks a previously prepared transaction as
	// rolled back.
	RecordKindRollbackXID RecordKind = 12
	// RecordKindNoop is a placeholder record that carries no payload and is
	// not counted. WriteBatch reserves one as the first record of a batch
	// destined to become a prepare section; MarkEndPrepare rewrites it to
	// RecordKindBeginPrepareXID.
	RecordKindNoop RecordKind = 13
	// RecordKindColumnFamilyRangeDeletion is RecordKindRangeDeletion
	// qualified with an explicit column family id.
	RecordKindColumnFamilyRangeDeletion RecordKind = 14
	// RecordKindRangeDeletion removes all keys in [begin, end).
	RecordKindRangeDeletion RecordKind = 15

	// RecordKindMax is the largest tag value in the catalog. Any byte
	// greater than this is corrupt.
	RecordKindMax = RecordKindRangeDeletion
)

var recordKindNames = [...]string{
	RecordKindDeletion:                    "DELETION",
	RecordKindValue:                       "VALUE",
	RecordKindMerge:                       "MERGE",
	RecordKindLogData:                     "LOG_DATA",
	RecordKindColumnFamilyDeletion:        "CF_DELETION",
	RecordKindColumnFamilyValue:           "CF_VALUE",
	RecordKindColumnFamilyMerge:           "CF_MERGE",
	RecordKindSingleDeletion:              "SINGLE_DELETION",
	RecordKindColumnFamilySingleDeletion:  "CF_SINGLE_DELETION",
	RecordKindBeginPrepareXID:             "BEGIN_PREPARE",
	RecordKindEndPrepareXID:               "END_PREPARE",
	RecordKindCommitXID:                   "COMMIT",
	RecordKindRollbackXID:                 "ROLLBACK",
	RecordKindNoop:                        "NOOP",
	RecordKindColumnFamilyRangeDeletion:   "CF_RANGE_DELETION",
	RecordKindRangeDeletion:               "RANGE_DELETION",
}

// String implements fmt.Stringer.
func (k RecordKind) String() string {
	if int(k) < len(recordKindNames) {
		if name := recordKindNames[k]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
}

// SafeFormat implements redact.SafeFormatter.
func (k RecordKind) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(k.String()))
}

// IsColumnFamilyQualified reports whether the tag carries an explicit
// varint32 column family id immediately after the tag byte.
func (k RecordKind) IsColumnFamilyQualified() bool {
	switch k {
	case RecordKindColumnFamilyDeletion, RecordKindColumnFamilyValue,
		RecordKindColumnFamilyMerge, RecordKindColumnFamilySingleDeletion,
		RecordKindColumnFamilyRangeDeletion:
		return true
	default:
		return false
	}
}

// Counted reports whether a record of this kind is included in the batch
// header's count field.
func (k RecordKind) Counted() bool {
	switch k {
	case RecordKindValue, RecordKindDeletion, RecordKindSingleDeletion,
		RecordKindRangeDeletion, RecordKindMerge,
		RecordKindColumnFamilyValue, RecordKindColumnFamilyDeletion,
		RecordKindColumnFamilySingleDeletion, RecordKindColumnFamilyRangeDeletion,
		RecordKindColumnFamilyMerge:
		return true
	default:
		return false
	}
}
