// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package memtable

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/batchkv"
	"github.com/cockroachdb/batchkv/internal/base"
	"github.com/cockroachdb/swiss"
)

// fakeEntry is one record a fakeMemTable has accepted, in insertion order.
type fakeEntry struct {
	seq   base.SeqNum
	kind  base.RecordKind
	key   []byte
	value []byte
	// prevForKey is the entries index of the previous entry for the same
	// key, or -1 if this is the first. It threads a per-key chain through
	// the flat entries slice so CountSuccessiveMergeEntries can walk only
	// entries for its key.
	prevForKey int
}

// fakeMemTable is a minimal MemTable good enough to drive MemTableInserter
// through every branch without a real skip-list memtable, which is
// out of this module's scope. Lookups by key use a swiss.Map keyed by the
// xxhash of the key, standing in for the real memtable's key index.
type fakeMemTable struct {
	mu sync.Mutex

	opts    Options
	entries []fakeEntry
	// latestByHash maps xxhash(key) to the index (in entries) of the most
	// recently added entry for that key, for TryUpdateCallback and
	// CountSuccessiveMergeEntries.
	latestByHash swiss.Map[uint64, int]

	flushThreshold int
	scheduled      bool

	refdLogNumbers []uint64
	post           PostProcessInfo
}

func newFakeMemTable(opts Options, flushThreshold int) *fakeMemTable {
	m := &fakeMemTable{opts: opts, flushThreshold: flushThreshold}
	m.latestByHash.Init(16)
	return m
}

func hashKey(key []byte) uint64 { return xxhash.Sum64(key) }

func (m *fakeMemTable) Add(seq base.SeqNum, kind base.RecordKind, key, value []byte, opts AddOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.entries)
	prev := -1
	if kind != base.RecordKindRangeDeletion {
		if p, ok := m.latestByHash.Get(hashKey(key)); ok {
			prev = p
		}
	}
	m.entries = append(m.entries, fakeEntry{
		seq: seq, kind: kind,
		key: append([]byte(nil), key...), value: append([]byte(nil), value...),
		prevForKey: prev,
	})
	if kind != base.RecordKindRangeDeletion {
		m.latestByHash.Put(hashKey(key), idx)
	}
	if opts.PostProcessInfo != nil {
		opts.PostProcessInfo.NumEntries++
		if kind == base.RecordKindDeletion || kind == base.RecordKindSingleDeletion {
			opts.PostProcessInfo.NumDeletes++
		}
	}
	return nil
}

func (m *fakeMemTable) UpdateInPlace(seq base.SeqNum, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, ok := m.latestByHash.Get(hashKey(key)); ok {
		m.entries[idx].value = append([]byte(nil), value...)
		m.entries[idx].seq = seq
		return nil
	}
	idx := len(m.entries)
	m.entries = append(m.entries, fakeEntry{seq: seq, kind: base.RecordKindValue, key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	m.latestByHash.Put(hashKey(key), idx)
	return nil
}

func (m *fakeMemTable) TryUpdateCallback(seq base.SeqNum, key, operand []byte, cb InplaceCallback) (found bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.latestByHash.Get(hashKey(key))
	if !ok {
		return false, nil
	}
	result, merged := cb(m.entries[idx].value, operand)
	switch result {
	case InplaceCallbackUpdatedInPlace:
		m.entries[idx].value = merged
		m.entries[idx].seq = seq
	case InplaceCallbackUpdated:
		newIdx := len(m.entries)
		m.entries = append(m.entries, fakeEntry{seq: seq, kind: base.RecordKindValue, key: append([]byte(nil), key...), value: merged})
		m.latestByHash.Put(hashKey(key), newIdx)
	}
	return true, nil
}

func (m *fakeMemTable) CountSuccessiveMergeEntries(key []byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.latestByHash.Get(hashKey(key))
	if !ok {
		return 0
	}
	count := 0
	for i := idx; i >= 0 && m.entries[i].kind == base.RecordKindMerge; i = m.entries[i].prevForKey {
		count++
	}
	return count
}

func (m *fakeMemTable) Options() *Options { return &m.opts }

func (m *fakeMemTable) ShouldScheduleFlush() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushThreshold > 0 && len(m.entries) >= m.flushThreshold
}

func (m *fakeMemTable) MarkFlushScheduled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scheduled {
		return false
	}
	m.scheduled = true
	return true
}

func (m *fakeMemTable) RefLogContainingPrepSection(logNumber uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refdLogNumbers = append(m.refdLogNumbers, logNumber)
}

func (m *fakeMemTable) PostProcess(info *PostProcessInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.post.NumEntries += info.NumEntries
	m.post.NumDeletes += info.NumDeletes
	m.post.MemoryUsage += info.MemoryUsage
}

// fakeColumnFamily bundles a fakeMemTable with a handle and a log number.
type fakeColumnFamily struct {
	id        uint32
	name      string
	mem       *fakeMemTable
	logNumber uint64
}

func (f *fakeColumnFamily) ID() uint32     { return f.id }
func (f *fakeColumnFamily) Name() string   { return f.name }

// fakeColumnFamilies is a ColumnFamilyMemTables over a small, fixed set of
// column families, keyed by id in a swiss.Map the way a real registry might
// index its live column families.
type fakeColumnFamilies struct {
	byID    swiss.Map[uint32, *fakeColumnFamily]
	current *fakeColumnFamily
}

func newFakeColumnFamilies(cfs ...*fakeColumnFamily) *fakeColumnFamilies {
	r := &fakeColumnFamilies{}
	r.byID.Init(8)
	for _, cf := range cfs {
		r.byID.Put(cf.id, cf)
	}
	return r
}

func (r *fakeColumnFamilies) Seek(cfID uint32) bool {
	cf, ok := r.byID.Get(cfID)
	if !ok {
		return false
	}
	r.current = cf
	return true
}

func (r *fakeColumnFamilies) Current() MemTable                     { return r.current.mem }
func (r *fakeColumnFamilies) ColumnFamilyHandle() ColumnFamilyHandle { return r.current }
func (r *fakeColumnFamilies) LogNumber() uint64                     { return r.current.logNumber }

// fakeDB is a minimal DB collaborator backing update-in-place reads, merge
// folding, and two-phase-commit recovery in tests.
type fakeDB struct {
	mu           sync.Mutex
	values       map[string][]byte
	allow2PC     bool
	recovered    map[string]RecoveredTransaction
	defaultCF    *fakeColumnFamily
}

func newFakeDB(defaultCF *fakeColumnFamily, allow2PC bool) *fakeDB {
	return &fakeDB{
		values:    make(map[string][]byte),
		recovered: make(map[string]RecoveredTransaction),
		allow2PC:  allow2PC,
		defaultCF: defaultCF,
	}
}

func (db *fakeDB) Get(cf ColumnFamilyHandle, key []byte, seq base.SeqNum) ([]byte, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	v, ok := db.values[string(key)]
	return v, ok, nil
}

func (db *fakeDB) DefaultColumnFamily() ColumnFamilyHandle { return db.defaultCF }

func (db *fakeDB) Allow2PC() bool { return db.allow2PC }

func (db *fakeDB) InsertRecoveredTransaction(logNumber uint64, xid string, batch *batchkv.WriteBatch) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.recovered[xid] = RecoveredTransaction{Batch: batch, LogNumber: logNumber}
}

func (db *fakeDB) GetRecoveredTransaction(xid string) (RecoveredTransaction, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	rt, ok := db.recovered[xid]
	return rt, ok
}

func (db *fakeDB) DeleteRecoveredTransaction(xid string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.recovered, xid)
}

// fakeFlushScheduler records the column families it was asked to schedule.
type fakeFlushScheduler struct {
	mu        sync.Mutex
	scheduled []uint32
}

func (s *fakeFlushScheduler) ScheduleFlush(cf ColumnFamilyHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, cf.ID())
}

// fakeMergeOperator concatenates operands onto the existing value with a
// "+" separator, enough to exercise merge folding without a real operator.
type fakeMergeOperator struct{}

func (fakeMergeOperator) FullMerge(key, existing []byte, operands [][]byte) ([]byte, bool) {
	out := append([]byte(nil), existing...)
	for _, op := range operands {
		if len(out) > 0 {
			out = append(out, '+')
		}
		out = append(out, op...)
	}
	return out, true
}
