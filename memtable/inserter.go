// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package memtable

import (
	"github.com/cockroachdb/batchkv"
	"github.com/cockroachdb/batchkv/internal/base"
	"github.com/cockroachdb/errors"
	pkgerrors "github.com/pkg/errors"
)

// InserterOptions bundles MemTableInserter's construction parameters.
type InserterOptions struct {
	// SeqNum is the sequence number assigned to the first counted record
	// the inserter processes.
	SeqNum base.SeqNum
	// ColumnFamilyMemTables is the stateful column-family cursor the
	// inserter seeks on every record.
	ColumnFamilyMemTables ColumnFamilyMemTables
	// FlushScheduler is consulted after every memtable mutation. May be
	// nil, in which case flushes are never scheduled by this inserter.
	FlushScheduler FlushScheduler
	// IgnoreMissingColumnFamilies, if set, treats a record targeting an
	// unregistered column family as filtered rather than an error.
	IgnoreMissingColumnFamilies bool
	// RecoveringLogNumber is zero for ordinary writes and the log number
	// being replayed during WAL recovery otherwise.
	RecoveringLogNumber uint64
	// DB is the optional collaborator used for update-in-place reads,
	// merge folding, and two-phase-commit recovery.
	DB DB
	// ConcurrentWrites indicates this inserter is one of several running
	// concurrently over shared memtables. Merge and in-place updates are
	// statically excluded in this mode.
	ConcurrentWrites bool
	// LogNumberRef, if non-zero, is attached to every memtable the
	// inserter touches via MemTable.RefLogContainingPrepSection.
	LogNumberRef uint64
	// HasValidWrites, if non-nil, is set to true the first time a record
	// successfully seeks to a live, unfiltered column family.
	HasValidWrites *bool
}

// MemTableInserter is the batchkv.Handler that replays a batch's records
// into live memtables. It is not safe for concurrent use by more
// than one goroutine, except insofar as the underlying MemTable
// implementations support ConcurrentWrites mode across independent
// MemTableInserter instances.
type MemTableInserter struct {
	seq                 base.SeqNum
	cfMems              ColumnFamilyMemTables
	flushScheduler      FlushScheduler
	ignoreMissingCF     bool
	recoveringLogNumber uint64
	db                  DB
	concurrentWrites    bool
	logNumberRef        uint64
	hasValidWrites      *bool

	rebuildingTrx          *batchkv.WriteBatch
	rebuildingTrxLogNumber uint64

	postMap map[MemTable]*PostProcessInfo
}

// NewMemTableInserter constructs an inserter ready to have a batch iterated
// through it via batchkv.Iterate(repr, inserter) or batch.Iterate(inserter).
func NewMemTableInserter(opts InserterOptions) *MemTableInserter {
	return &MemTableInserter{
		seq:                 opts.SeqNum,
		cfMems:              opts.ColumnFamilyMemTables,
		flushScheduler:      opts.FlushScheduler,
		ignoreMissingCF:     opts.IgnoreMissingColumnFamilies,
		recoveringLogNumber: opts.RecoveringLogNumber,
		db:                  opts.DB,
		concurrentWrites:    opts.ConcurrentWrites,
		logNumberRef:        opts.LogNumberRef,
		hasValidWrites:      opts.HasValidWrites,
	}
}

// SeqNum returns the inserter's current sequence number: the value that
// will be assigned to the next counted record it processes. After fully
// replaying a batch of n counted records starting at seq0 with no
// filtering, SeqNum returns seq0 + n.
func (m *MemTableInserter) SeqNum() base.SeqNum { return m.seq }

// seekToColumnFamily resolves a column family, handling missing-CF and recovery-time log-cutoff filtering.
func (m *MemTableInserter) seekToColumnFamily(cfID uint32) (mem MemTable, filtered bool, err error) {
	if !m.cfMems.Seek(cfID) {
		if m.ignoreMissingCF {
			return nil, true, nil
		}
		return nil, false, errors.Wrapf(ErrMissingColumnFamily, "column family %d", cfID)
	}
	mem = m.cfMems.Current()
	if m.recoveringLogNumber > 0 && m.cfMems.LogNumber() > m.recoveringLogNumber {
		// This column family was already flushed past the log we're
		// recovering; it already contains this record on disk.
		m.infoLog(mem).Infof("column family %d already durable through log %d, skipping record replayed from log %d",
			cfID, m.cfMems.LogNumber(), m.recoveringLogNumber)
		return nil, true, nil
	}
	if m.hasValidWrites != nil {
		*m.hasValidWrites = true
	}
	if m.logNumberRef > 0 {
		mem.RefLogContainingPrepSection(m.logNumberRef)
	}
	return mem, false, nil
}

// infoLog returns the Logger configured on mem's options, falling back to
// base.NoopLogger when mem is nil or left its InfoLog unset.
func (m *MemTableInserter) infoLog(mem MemTable) base.Logger {
	if mem != nil {
		if log := mem.Options().InfoLog; log != nil {
			return log
		}
	}
	return base.NoopLogger{}
}

// bookkeepingLog resolves a Logger for prepare/commit/rollback bookkeeping,
// which isn't scoped to any single record's column family. It uses the
// default column family's configured InfoLog, matching the convention that
// two-phase-commit bookkeeping is DB-wide rather than per-column-family.
func (m *MemTableInserter) bookkeepingLog() base.Logger {
	if m.db == nil {
		return base.NoopLogger{}
	}
	cf := m.db.DefaultColumnFamily()
	if cf == nil || !m.cfMems.Seek(cf.ID()) {
		return base.NoopLogger{}
	}
	return m.infoLog(m.cfMems.Current())
}

func (m *MemTableInserter) addOptions(mem MemTable) AddOptions {
	if !m.concurrentWrites {
		return AddOptions{}
	}
	return AddOptions{Concurrent: true, PostProcessInfo: m.postProcessInfoFor(mem)}
}

func (m *MemTableInserter) postProcessInfoFor(mem MemTable) *PostProcessInfo {
	if m.postMap == nil {
		m.postMap = make(map[MemTable]*PostProcessInfo)
	}
	info, ok := m.postMap[mem]
	if !ok {
		info = &PostProcessInfo{}
		m.postMap[mem] = info
	}
	return info
}

// PostProcess applies every memtable's accumulated concurrent-writes
// counters exactly once. Callers running in ConcurrentWrites mode must call
// this after the inserter finishes replaying its batch.
func (m *MemTableInserter) PostProcess() {
	for mem, info := range m.postMap {
		mem.PostProcess(info)
	}
}

func (m *MemTableInserter) maybeScheduleFlush(mem MemTable) {
	if m.flushScheduler == nil {
		return
	}
	if mem.ShouldScheduleFlush() && mem.MarkFlushScheduled() {
		m.flushScheduler.ScheduleFlush(m.cfMems.ColumnFamilyHandle())
	}
}

// PutCF implements batchkv.Handler.
func (m *MemTableInserter) PutCF(cfID uint32, key, value []byte) error {
	if m.rebuildingTrx != nil {
		return m.rebuildingTrx.PutCF(cfID, key, value)
	}
	mem, filtered, err := m.seekToColumnFamily(cfID)
	if err != nil {
		return err
	}
	if filtered {
		m.seq++
		return nil
	}

	opts := mem.Options()
	switch {
	case opts.InplaceUpdateSupport && opts.InplaceCallback != nil:
		if err := m.putInplaceCallback(mem, key, value); err != nil {
			return err
		}
	case opts.InplaceUpdateSupport:
		if err := mem.UpdateInPlace(m.seq, key, value); err != nil {
			return err
		}
		if opts.Statistics != nil {
			opts.Statistics.RecordTick("number.keys.updated")
		}
	default:
		if err := mem.Add(m.seq, base.RecordKindValue, key, value, m.addOptions(mem)); err != nil {
			return err
		}
	}
	m.seq++
	m.maybeScheduleFlush(mem)
	return nil
}

// putInplaceCallback implements the "inplace-update, with callback" branch:
// it first asks the memtable to apply the callback to an entry already
// present there, and only falls back to a DB read when no such entry
// exists and a live DB read is safe (not during WAL recovery replay).
func (m *MemTableInserter) putInplaceCallback(mem MemTable, key, value []byte) error {
	opts := mem.Options()
	found, err := mem.TryUpdateCallback(m.seq, key, value, opts.InplaceCallback)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	var existing []byte
	if m.db != nil && m.recoveringLogNumber == 0 {
		v, ok, err := m.db.Get(m.cfMems.ColumnFamilyHandle(), key, m.seq)
		if err != nil {
			return err
		}
		if ok {
			existing = v
		}
	}
	result, merged := opts.InplaceCallback(existing, value)
	switch result {
	case InplaceCallbackUpdatedInPlace, InplaceCallbackUpdated:
		return mem.Add(m.seq, base.RecordKindValue, key, merged, m.addOptions(mem))
	default:
		return nil
	}
}

// DeleteCF implements batchkv.Handler.
func (m *MemTableInserter) DeleteCF(cfID uint32, key []byte) error {
	return m.deleteImpl(cfID, key, base.RecordKindDeletion)
}

// SingleDeleteCF implements batchkv.Handler.
func (m *MemTableInserter) SingleDeleteCF(cfID uint32, key []byte) error {
	return m.deleteImpl(cfID, key, base.RecordKindSingleDeletion)
}

func (m *MemTableInserter) deleteImpl(cfID uint32, key []byte, kind base.RecordKind) error {
	if m.rebuildingTrx != nil {
		if kind == base.RecordKindSingleDeletion {
			return m.rebuildingTrx.SingleDeleteCF(cfID, key)
		}
		return m.rebuildingTrx.DeleteCF(cfID, key)
	}
	mem, filtered, err := m.seekToColumnFamily(cfID)
	if err != nil {
		return err
	}
	if filtered {
		m.seq++
		return nil
	}
	if err := mem.Add(m.seq, kind, key, nil, m.addOptions(mem)); err != nil {
		return err
	}
	m.seq++
	m.maybeScheduleFlush(mem)
	return nil
}

// DeleteRangeCF implements batchkv.Handler.
func (m *MemTableInserter) DeleteRangeCF(cfID uint32, begin, end []byte) error {
	if m.rebuildingTrx != nil {
		return m.rebuildingTrx.DeleteRangeCF(cfID, begin, end)
	}
	mem, filtered, err := m.seekToColumnFamily(cfID)
	if err != nil {
		return err
	}
	if filtered {
		m.seq++
		return nil
	}
	if !mem.Options().RangeDeletionSupported {
		return errors.Wrapf(ErrRangeDeletionUnsupported, "column family %d", cfID)
	}
	if err := mem.Add(m.seq, base.RecordKindRangeDeletion, begin, end, m.addOptions(mem)); err != nil {
		return err
	}
	m.seq++
	m.maybeScheduleFlush(mem)
	return nil
}

// MergeCF implements batchkv.Handler.
func (m *MemTableInserter) MergeCF(cfID uint32, key, value []byte) error {
	if m.concurrentWrites {
		return errors.AssertionFailedf("merge is not supported under concurrent-writes mode")
	}
	if m.rebuildingTrx != nil {
		return m.rebuildingTrx.MergeCF(cfID, key, value)
	}
	mem, filtered, err := m.seekToColumnFamily(cfID)
	if err != nil {
		return err
	}
	if filtered {
		m.seq++
		return nil
	}

	opts := mem.Options()
	if opts.MaxSuccessiveMerges > 0 && m.db != nil && m.recoveringLogNumber == 0 &&
		mem.CountSuccessiveMergeEntries(key) >= opts.MaxSuccessiveMerges {
		if folded, ok := m.tryFoldMerge(mem, key, value); ok {
			if err := mem.Add(m.seq, base.RecordKindValue, key, folded, m.addOptions(mem)); err != nil {
				return err
			}
			m.seq++
			m.maybeScheduleFlush(mem)
			return nil
		}
		// Folding failed; fall through and add the Merge record as-is, to
		// be retried at compaction time.
	}

	if err := mem.Add(m.seq, base.RecordKindMerge, key, value, m.addOptions(mem)); err != nil {
		return err
	}
	m.seq++
	m.maybeScheduleFlush(mem)
	return nil
}

func (m *MemTableInserter) tryFoldMerge(mem MemTable, key, value []byte) (merged []byte, ok bool) {
	opts := mem.Options()
	if opts.MergeOperator == nil {
		return nil, false
	}
	existing, found, err := m.db.Get(m.cfMems.ColumnFamilyHandle(), key, m.seq)
	if err != nil {
		return nil, false
	}
	var base []byte
	if found {
		base = existing
	}
	return opts.MergeOperator.FullMerge(key, base, [][]byte{value})
}

// LogData implements batchkv.Handler. The inserter has no use for opaque
// annotations; callers that need to observe them should run a separate
// classifying Handler over the batch before (or instead of) the inserter.
func (m *MemTableInserter) LogData([]byte) error { return nil }

// MarkBeginPrepare implements batchkv.Handler.
func (m *MemTableInserter) MarkBeginPrepare() error {
	if m.recoveringLogNumber == 0 {
		// Normal-mode writes insert prepare-scoped mutations directly,
		// using the current seq; there's nothing to set up.
		return nil
	}
	if m.db == nil || !m.db.Allow2PC() {
		return ErrPreparedTransactionsDisabled
	}
	m.bookkeepingLog().Infof("reconstructing prepared transaction from log %d", m.recoveringLogNumber)
	m.rebuildingTrx = batchkv.New()
	m.rebuildingTrxLogNumber = m.recoveringLogNumber
	return nil
}

// MarkEndPrepare implements batchkv.Handler.
func (m *MemTableInserter) MarkEndPrepare(xid []byte) error {
	if m.recoveringLogNumber == 0 {
		return nil
	}
	if m.rebuildingTrx == nil {
		return errors.AssertionFailedf("end-prepare(%q) seen without a matching begin-prepare", xid)
	}
	trx := m.rebuildingTrx
	logNumber := m.rebuildingTrxLogNumber
	m.rebuildingTrx = nil
	m.rebuildingTrxLogNumber = 0
	if m.db != nil {
		m.db.InsertRecoveredTransaction(logNumber, string(xid), trx)
		m.bookkeepingLog().Infof("registered recovered transaction %q from log %d, awaiting commit or rollback", xid, logNumber)
	}
	return nil
}

// MarkCommit implements batchkv.Handler. In recovery mode
// it re-enters this same inserter over the rebuilt transaction's batch, so
// that the buffered puts/deletes/merges are finally applied to memtables at
// the inserter's current sequence number.
func (m *MemTableInserter) MarkCommit(xid []byte) error {
	if m.recoveringLogNumber == 0 || m.db == nil {
		return nil
	}
	rt, ok := m.db.GetRecoveredTransaction(string(xid))
	if !ok {
		// The prepare section's log may already have been released after a
		// prior flush confirmed the commit; a missing xid is not an error.
		m.bookkeepingLog().Infof("commit of %q seen with no matching recovered transaction, already applied", xid)
		return nil
	}

	savedRef := m.logNumberRef
	m.logNumberRef = rt.LogNumber
	err := batchkv.Iterate(rt.Batch.Repr(), m)
	m.logNumberRef = savedRef
	if err != nil {
		return pkgerrors.Wrapf(err, "applying recovered transaction %q", xid)
	}
	m.db.DeleteRecoveredTransaction(string(xid))
	m.bookkeepingLog().Infof("applied recovered transaction %q from log %d", xid, rt.LogNumber)
	return nil
}

// MarkRollback implements batchkv.Handler.
func (m *MemTableInserter) MarkRollback(xid []byte) error {
	if m.recoveringLogNumber == 0 || m.db == nil {
		return nil
	}
	if _, ok := m.db.GetRecoveredTransaction(string(xid)); ok {
		m.db.DeleteRecoveredTransaction(string(xid))
		m.bookkeepingLog().Infof("discarded rolled-back transaction %q", xid)
	}
	return nil
}

// ShouldContinue implements batchkv.Handler. The inserter never stops
// iteration on its own; a caller wanting to cap replay work should wrap the
// inserter in a Handler that overrides this.
func (m *MemTableInserter) ShouldContinue() bool { return true }
