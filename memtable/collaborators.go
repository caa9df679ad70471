// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package memtable

import (
	"github.com/cockroachdb/batchkv"
	"github.com/cockroachdb/batchkv/internal/base"
)

// ColumnFamilyHandle identifies a column family the inserter can route
// records to.
type ColumnFamilyHandle interface {
	ID() uint32
	Name() string
}

// ColumnFamilyMemTables is a stateful cursor over the set of live column
// families: Seek repositions it, and the remaining accessors describe
// whatever column family it's currently positioned on.
type ColumnFamilyMemTables interface {
	// Seek positions the cursor on the column family identified by cfID. It
	// returns false if no such column family is registered.
	Seek(cfID uint32) bool
	// Current returns the memtable that new records for the current column
	// family should be added to.
	Current() MemTable
	// ColumnFamilyHandle returns a handle identifying the current column
	// family.
	ColumnFamilyHandle() ColumnFamilyHandle
	// LogNumber returns the earliest WAL log number whose records the
	// current column family still needs. During recovery, records from a
	// lower-numbered log have already been captured by the on-disk state
	// and are skipped; records from this log or a later one are replayed.
	LogNumber() uint64
}

// InplaceCallbackResult is the verdict an InplaceCallback returns.
type InplaceCallbackResult int

const (
	// InplaceCallbackFailed indicates the callback declined to apply the
	// operand; the memtable is left unmodified.
	InplaceCallbackFailed InplaceCallbackResult = iota
	// InplaceCallbackUpdatedInPlace indicates the callback already wrote
	// its result into the existing value's buffer; no new memtable entry
	// is needed.
	InplaceCallbackUpdatedInPlace
	// InplaceCallbackUpdated indicates the callback computed a new value
	// that the caller should add to the memtable as an ordinary Value
	// record.
	InplaceCallbackUpdated
)

// InplaceCallback is the user-supplied merge function for a column family
// configured with MemTableOptions.InplaceCallback. existing is nil if
// neither the memtable nor (if consulted) the DB had a prior value for the
// key.
type InplaceCallback func(existing, operand []byte) (result InplaceCallbackResult, merged []byte)

// MergeOperator folds a sequence of merge operands (and an optional
// existing value) into a single materialized value, the collaborator named
// and used by merge folding.
type MergeOperator interface {
	FullMerge(key, existing []byte, operands [][]byte) (merged []byte, ok bool)
}

// Statistics records named event counters. MemTableOptions.Statistics is
// used by the inserter to record notable events.
type Statistics interface {
	RecordTick(key string)
}

// Options bundles the per-column-family behavior the inserter consults:
// the per-column-family behavior the inserter consults.
type Options struct {
	// InplaceUpdateSupport enables update-in-place instead of appending a
	// new Value record for every Put.
	InplaceUpdateSupport bool
	// InplaceCallback, if non-nil, is consulted instead of a raw
	// byte-for-byte overwrite whenever InplaceUpdateSupport is set.
	InplaceCallback InplaceCallback
	// MaxSuccessiveMerges is the number of unfolded Merge entries already
	// present for a key that triggers eager merge folding on the next
	// Merge. Zero disables folding.
	MaxSuccessiveMerges int
	// MergeOperator folds merge operands together. Required if
	// MaxSuccessiveMerges > 0.
	MergeOperator MergeOperator
	// Statistics receives RecordTick calls for notable events (e.g.
	// in-place updates). May be nil.
	Statistics Statistics
	// InfoLog receives progress and fatal-invariant messages. May be nil,
	// in which case the inserter uses base.NoopLogger.
	InfoLog base.Logger
	// RangeDeletionSupported reports whether the column family's
	// underlying table format can store range tombstones.
	RangeDeletionSupported bool
}

// AddOptions is passed to MemTable.Add, carrying the concurrent-writes mode
// bookkeeping.
type AddOptions struct {
	Concurrent      bool
	PostProcessInfo *PostProcessInfo
}

// PostProcessInfo accumulates per-memtable counters recorded by Add calls
// made under concurrent-writes mode; MemTable.PostProcess applies them
// exactly once after the inserter finishes.
type PostProcessInfo struct {
	NumEntries  uint64
	NumDeletes  uint64
	MemoryUsage uint64
}

// MemTable is the in-memory buffer the inserter writes a single column
// family's records into. The real memtable (a concurrent skip list) is an
// external collaborator outside this package's scope; this interface is
// the entirety of what the inserter requires from it.
type MemTable interface {
	// Add inserts a tagged entry. kind is one of RecordKindValue,
	// RecordKindDeletion, RecordKindSingleDeletion, RecordKindRangeDeletion
	// (value holds the range's end key in that case), or RecordKindMerge.
	Add(seq base.SeqNum, kind base.RecordKind, key, value []byte, opts AddOptions) error
	// UpdateInPlace overwrites the existing entry for key with value
	// without allocating a new entry, used when Options.InplaceUpdateSupport
	// is set and InplaceCallback is nil.
	UpdateInPlace(seq base.SeqNum, key, value []byte) error
	// TryUpdateCallback looks for an existing entry for key already in the
	// memtable and, if found, applies cb to it in place. found is false if
	// no matching entry exists, in which case the caller falls back to a
	// DB read.
	TryUpdateCallback(seq base.SeqNum, key, operand []byte, cb InplaceCallback) (found bool, err error)
	// CountSuccessiveMergeEntries reports how many unfolded Merge entries
	// the memtable currently holds for key, most recent first, before
	// hitting a Value/Deletion/SingleDeletion entry or running out.
	CountSuccessiveMergeEntries(key []byte) int
	// Options returns this memtable's configuration.
	Options() *Options
	// ShouldScheduleFlush reports whether the memtable has crossed its
	// flush threshold.
	ShouldScheduleFlush() bool
	// MarkFlushScheduled attempts to claim the right to schedule this
	// memtable's flush, returning true exactly once across however many
	// callers race to call it.
	MarkFlushScheduled() bool
	// RefLogContainingPrepSection records that logNumber's WAL file holds a
	// prepared transaction referencing this memtable, so it cannot be
	// deleted until the memtable is durable.
	RefLogContainingPrepSection(logNumber uint64)
	// PostProcess applies accumulated concurrent-writes counters.
	PostProcess(info *PostProcessInfo)
}

// RecoveredTransaction is a prepared transaction reconstructed from the WAL
// during recovery, keyed by its transaction id in the DB collaborator.
type RecoveredTransaction struct {
	Batch     *batchkv.WriteBatch
	LogNumber uint64
}

// DB is the optional collaborator consulted for update-in-place DB reads,
// merge folding, and two-phase-commit recovery.
type DB interface {
	// Get looks up key in cf as of seq, the snapshot the write currently
	// being inserted was taken at.
	Get(cf ColumnFamilyHandle, key []byte, seq base.SeqNum) (value []byte, found bool, err error)
	// DefaultColumnFamily returns a handle to column family 0.
	DefaultColumnFamily() ColumnFamilyHandle
	// Allow2PC reports whether the DB accepts prepared transactions. If
	// false, a prepare section encountered during recovery is a not-
	// supported error.
	Allow2PC() bool
	// InsertRecoveredTransaction records a fully reconstructed prepared
	// transaction, keyed by xid, for a later MarkCommit or MarkRollback to
	// resolve.
	InsertRecoveredTransaction(logNumber uint64, xid string, batch *batchkv.WriteBatch)
	// GetRecoveredTransaction looks up a previously inserted transaction.
	GetRecoveredTransaction(xid string) (RecoveredTransaction, bool)
	// DeleteRecoveredTransaction removes a transaction after it has been
	// committed or rolled back.
	DeleteRecoveredTransaction(xid string)
}

// FlushScheduler receives column families that have crossed their flush
// threshold.
type FlushScheduler interface {
	ScheduleFlush(cf ColumnFamilyHandle)
}
