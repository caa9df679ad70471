// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package batchkv

import (
	"github.com/cockroachdb/batchkv/internal/base"
	"github.com/cockroachdb/errors"
)

// ErrMalformedTooSmall indicates that a batch's payload is shorter than the
// fixed 12-byte header and cannot be iterated.
var ErrMalformedTooSmall = base.MarkCorruptionError(errors.New("batchkv: payload smaller than header"))

// ErrWrongCount indicates that a batch's header count disagreed with the
// number of counted records actually decoded while iterating its payload.
var ErrWrongCount = base.MarkCorruptionError(errors.New("batchkv: header count disagrees with decoded record count"))

// ErrBatchTooLarge is returned by an append operation that would grow a
// batch's payload past its configured max_bytes. The batch is left exactly
// as it was before the call.
var ErrBatchTooLarge = errors.New("batchkv: append would exceed max_bytes")

// ErrNoReservedNoop is returned by MarkEndPrepare when the batch does not
// begin with the reserved Noop byte that ReserveBeginPrepare is expected to
// have written.
var ErrNoReservedNoop = errors.New("batchkv: no reserved Noop byte to rewrite for prepare")

// ErrNoSavePoint is returned by RollbackToSavePoint and PopSavePoint when
// the save-point stack is empty.
var ErrNoSavePoint = base.ErrNotFound
