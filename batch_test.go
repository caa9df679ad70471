// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package batchkv

import (
	"fmt"
	randv1 "math/rand"
	"testing"

	"github.com/cockroachdb/batchkv/batchrepr"
	"github.com/cockroachdb/metamorphic"
	"github.com/kr/pretty"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"
)

// recorder captures every callback Iterate invokes, in order, so tests can
// assert on the exact callback sequence rather than just on the underlying
// bytes.
type recorder struct {
	BaseHandler
	calls []string
}

func (r *recorder) PutCF(cfID uint32, key, value []byte) error {
	r.calls = append(r.calls, fmt.Sprintf("put_cf(%d,%q,%q)", cfID, key, value))
	return nil
}
func (r *recorder) DeleteCF(cfID uint32, key []byte) error {
	r.calls = append(r.calls, fmt.Sprintf("delete_cf(%d,%q)", cfID, key))
	return nil
}
func (r *recorder) SingleDeleteCF(cfID uint32, key []byte) error {
	r.calls = append(r.calls, fmt.Sprintf("single_delete_cf(%d,%q)", cfID, key))
	return nil
}
func (r *recorder) DeleteRangeCF(cfID uint32, begin, end []byte) error {
	r.calls = append(r.calls, fmt.Sprintf("delete_range_cf(%d,%q,%q)", cfID, begin, end))
	return nil
}
func (r *recorder) MergeCF(cfID uint32, key, value []byte) error {
	r.calls = append(r.calls, fmt.Sprintf("merge_cf(%d,%q,%q)", cfID, key, value))
	return nil
}
func (r *recorder) MarkBeginPrepare() error {
	r.calls = append(r.calls, "mark_begin_prepare()")
	return nil
}
func (r *recorder) MarkEndPrepare(xid []byte) error {
	r.calls = append(r.calls, fmt.Sprintf("mark_end_prepare(%q)", xid))
	return nil
}
func (r *recorder) MarkCommit(xid []byte) error {
	r.calls = append(r.calls, fmt.Sprintf("mark_commit(%q)", xid))
	return nil
}
func (r *recorder) MarkRollback(xid []byte) error {
	r.calls = append(r.calls, fmt.Sprintf("mark_rollback(%q)", xid))
	return nil
}

func requireCalls(t *testing.T, b *WriteBatch, want ...string) {
	t.Helper()
	r := &recorder{}
	require.NoError(t, b.Iterate(r))
	if diff := pretty.Diff(want, r.calls); len(diff) > 0 {
		t.Fatalf("callback sequence mismatch: %v\ngot:  %#v\nwant: %#v", diff, r.calls, want)
	}
}

// TestScenarioS1 through TestScenarioS4 exercise the concrete scenarios in
// a handful of golden-byte and callback-sequence assertions.
func TestScenarioS1_PutDefaultCF(t *testing.T) {
	b := New()
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	require.Equal(t, []byte{0x01, 0x01, 0x61, 0x01, 0x31}, b.Repr()[batchrepr.HeaderLen:])
	requireCalls(t, b, `put_cf(0,"a","1")`)
}

func TestScenarioS2_PutColumnFamily(t *testing.T) {
	b := New()
	require.NoError(t, b.PutCF(7, []byte("k"), []byte("v")))
	require.Equal(t, []byte{0x05, 0x07, 0x01, 0x6b, 0x01, 0x76}, b.Repr()[batchrepr.HeaderLen:])
	requireCalls(t, b, `put_cf(7,"k","v")`)
}

func TestScenarioS3_DeleteDefaultCF(t *testing.T) {
	b := New()
	require.NoError(t, b.Delete([]byte("x")))
	requireCalls(t, b, `delete_cf(0,"x")`)
}

func TestScenarioS4_RollbackDiscardsLaterPut(t *testing.T) {
	b := New()
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	before := append([]byte(nil), b.Repr()...)

	b.SetSavePoint()
	require.NoError(t, b.Put([]byte("b"), []byte("2")))
	require.NoError(t, b.RollbackToSavePoint())

	require.Equal(t, before, b.Repr())
	require.Equal(t, uint32(1), b.Count())
	requireCalls(t, b, `put_cf(0,"a","1")`)
}

// TestScenarioS5_PrepareSectionRewrite exercises the Noop-rewrite protocol
// MarkEndPrepare implements: the byte reserved by ReserveBeginPrepare is
// rewritten in place to BeginPrepareXID once the section is sealed.
func TestScenarioS5_PrepareSectionRewrite(t *testing.T) {
	b := New()
	b.ReserveBeginPrepare()
	require.NoError(t, b.Put([]byte("k"), []byte("v")))
	require.NoError(t, b.MarkEndPrepare([]byte("tx1")))

	requireCalls(t, b,
		"mark_begin_prepare()",
		`put_cf(0,"k","v")`,
		`mark_end_prepare("tx1")`,
	)
	require.True(t, b.HasBeginPrepare())
	require.True(t, b.HasEndPrepare())
}

// TestScenarioS6_LazyClassificationMemoizes covers property/scenario S6: a
// batch constructed wholesale from raw bytes classifies lazily, and a
// second query doesn't need to re-iterate to get the right answer for a bit
// it didn't previously compute.
func TestScenarioS6_LazyClassificationMemoizes(t *testing.T) {
	src := New()
	require.NoError(t, src.Put([]byte("a"), []byte("1")))
	require.NoError(t, src.Put([]byte("b"), []byte("2")))

	b := New()
	require.NoError(t, b.SetContents(src.Repr()))

	require.True(t, b.HasPut())
	require.False(t, b.HasDelete())
	require.False(t, b.HasMerge())
}

// TestProperty1_ClassifierMatchesIncrementalFlags covers: for any
// sequence of appends, iterating the resulting batch into a classifier
// produces content_flags equal to the incrementally maintained value.
func TestProperty1_ClassifierMatchesIncrementalFlags(t *testing.T) {
	ops := randomAppendOps()
	rng := randv1.New(randv1.NewSource(1))
	nextOp := ops.RandomDeck(rng)

	for trial := 0; trial < 200; trial++ {
		b := New()
		for i := 0; i < 20; i++ {
			nextOp()(b)
		}
		incremental := contentFlag(b.contentFlags.Load())

		c := &classifier{}
		require.NoError(t, Iterate(b.Repr(), c))
		require.Equal(t, incremental, c.flags, "trial %d", trial)
	}
}

// TestProperty2_SetContentsRoundTrip covers set_contents into an
// empty batch followed by iteration yields the same callback sequence as
// iterating the original batch.
func TestProperty2_SetContentsRoundTrip(t *testing.T) {
	ops := randomAppendOps()
	rng := randv1.New(randv1.NewSource(2))
	nextOp := ops.RandomDeck(rng)

	original := New()
	for i := 0; i < 30; i++ {
		nextOp()(original)
	}

	clone := New()
	require.NoError(t, clone.SetContents(original.Repr()))

	r1, r2 := &recorder{}, &recorder{}
	require.NoError(t, original.Iterate(r1))
	require.NoError(t, clone.Iterate(r2))
	if diff := pretty.Diff(r1.calls, r2.calls); len(diff) > 0 {
		unified, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:       difflib.SplitLines(joinLines(r1.calls)),
			B:       difflib.SplitLines(joinLines(r2.calls)),
			Context: 2,
		})
		t.Fatalf("set_contents round-trip mismatch: %v\n%s", diff, unified)
	}
}

// TestProperty3_AppendConcatenates covers iterating Append(A, B)
// produces the concatenation of iterating A then iterating B.
func TestProperty3_AppendConcatenates(t *testing.T) {
	ops := randomAppendOps()
	rng := randv1.New(randv1.NewSource(3))
	nextOp := ops.RandomDeck(rng)

	a, b := New(), New()
	for i := 0; i < 10; i++ {
		nextOp()(a)
	}
	for i := 0; i < 10; i++ {
		nextOp()(b)
	}

	ra, rb := &recorder{}, &recorder{}
	require.NoError(t, a.Iterate(ra))
	require.NoError(t, b.Iterate(rb))
	want := append(append([]string(nil), ra.calls...), rb.calls...)

	dst := a.Clone()
	require.NoError(t, dst.Append(b, false))
	requireCalls(t, dst, want...)
	require.Equal(t, a.Count()+b.Count(), dst.Count())
}

// TestProperty4_SavePointRollbackIsNoop covers set_save_point; X;
// rollback_to_save_point leaves the batch bitwise identical to before X, for
// any sequence X of append operations that did not itself clear the stack.
func TestProperty4_SavePointRollbackIsNoop(t *testing.T) {
	ops := randomAppendOps()
	rng := randv1.New(randv1.NewSource(4))
	nextOp := ops.RandomDeck(rng)

	for trial := 0; trial < 200; trial++ {
		b := New()
		for i := 0; i < 10; i++ {
			nextOp()(b)
		}
		before := append([]byte(nil), b.Repr()...)
		beforeCount := b.Count()
		beforeFlags := b.contentFlags.Load()

		b.SetSavePoint()
		for i := 0; i < 10; i++ {
			nextOp()(b)
		}
		require.NoError(t, b.RollbackToSavePoint())

		require.Equal(t, before, b.Repr(), "trial %d", trial)
		require.Equal(t, beforeCount, b.Count(), "trial %d", trial)
		require.Equal(t, beforeFlags, b.contentFlags.Load(), "trial %d", trial)
	}
}

// TestProperty5_EmptyBatchSavePointIsNoop covers set_save_point on an empty batch.
func TestProperty5_EmptyBatchSavePointIsNoop(t *testing.T) {
	b := New()
	before := append([]byte(nil), b.Repr()...)
	b.SetSavePoint()
	require.NoError(t, b.RollbackToSavePoint())
	require.Equal(t, before, b.Repr())
}

// TestProperty6_RollbackWithoutSavePointFails covers rollback/pop without a matching set_save_point.
func TestProperty6_RollbackWithoutSavePointFails(t *testing.T) {
	b := New()
	require.ErrorIs(t, b.RollbackToSavePoint(), ErrNoSavePoint)
	require.ErrorIs(t, b.PopSavePoint(), ErrNoSavePoint)
}

// TestBoundary9_EmptyPayloadHasNoCallbacks covers an empty payload.
func TestBoundary9_EmptyPayloadHasNoCallbacks(t *testing.T) {
	b := New()
	require.Equal(t, uint32(0), b.Count())
	r := &recorder{}
	require.NoError(t, b.Iterate(r))
	require.Empty(t, r.calls)
}

// TestBoundary10_UnknownTagIsCorruption covers an unrecognized tag byte.
func TestBoundary10_UnknownTagIsCorruption(t *testing.T) {
	repr := batchrepr.NewPayload()
	repr = append(repr, 0xFF)
	batchrepr.SetCount(repr, 1)
	require.ErrorIs(t, Iterate(repr, &BaseHandler{}), batchrepr.ErrInvalidBatch)
}

// TestBoundary11_WrongCountIsCorruption covers a header count that disagrees with the decoded record count.
func TestBoundary11_WrongCountIsCorruption(t *testing.T) {
	b := New()
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	b.SetCount(b.Count() + 1)
	require.ErrorIs(t, Iterate(b.Repr(), &BaseHandler{}), ErrWrongCount)
}

func TestMaxBytesAppendIsTransactional(t *testing.T) {
	b := NewWithMaxBytes(batchrepr.HeaderLen + 10)
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	before := append([]byte(nil), b.Repr()...)

	err := b.Put([]byte("this key is way too long"), []byte("value"))
	require.ErrorIs(t, err, ErrBatchTooLarge)
	require.Equal(t, before, b.Repr())
	require.Equal(t, uint32(1), b.Count())
}

func TestMarkEndPrepareRequiresReservedNoop(t *testing.T) {
	b := New()
	require.ErrorIs(t, b.MarkEndPrepare([]byte("tx1")), ErrNoReservedNoop)

	b2 := New()
	require.NoError(t, b2.Put([]byte("a"), []byte("1")))
	require.ErrorIs(t, b2.MarkEndPrepare([]byte("tx1")), ErrNoReservedNoop)
}

func TestAppendedByteSize(t *testing.T) {
	require.Equal(t, 0, AppendedByteSize(0, 0))
	require.Equal(t, 12, AppendedByteSize(0, 12))
	require.Equal(t, 12, AppendedByteSize(12, 0))
	require.Equal(t, 20, AppendedByteSize(12, 20))
}

func joinLines(calls []string) string {
	var out string
	for _, c := range calls {
		out += c + "\n"
	}
	return out
}

// randomAppendOps returns the weighted deck of mutating operations used by
// the property tests above, mirroring the way pebble's own metamorphic test
// suite builds a weighted operation mix (see open_test.go's randomOps).
// MarkEndPrepare is deliberately excluded: it clears the save-point stack,
// which the save-point rollback-is-a-no-op property above explicitly carves out.
func randomAppendOps() metamorphic.Weighted[func(*WriteBatch)] {
	return metamorphic.Weighted[func(*WriteBatch)]{
		{Weight: 5, Item: func(b *WriteBatch) { _ = b.Put([]byte("a"), []byte("1")) }},
		{Weight: 5, Item: func(b *WriteBatch) { _ = b.PutCF(3, []byte("b"), []byte("2")) }},
		{Weight: 3, Item: func(b *WriteBatch) { _ = b.Delete([]byte("c")) }},
		{Weight: 3, Item: func(b *WriteBatch) { _ = b.SingleDelete([]byte("d")) }},
		{Weight: 2, Item: func(b *WriteBatch) { _ = b.DeleteRange([]byte("e"), []byte("f")) }},
		{Weight: 3, Item: func(b *WriteBatch) { _ = b.Merge([]byte("g"), []byte("3")) }},
		{Weight: 1, Item: func(b *WriteBatch) { b.PutLogData([]byte("annotation")) }},
	}
}
