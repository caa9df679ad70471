// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned by SavePoint operations (RollbackToSavePoint,
// PopSavePoint) when the save-point stack is empty.
var ErrNotFound = errors.New("batchkv: not found")

// ErrCorruption is a marker error wrapped around any error indicating that a
// batch's payload could not be decoded: a truncated header, an unknown tag
// byte, a length-prefixed field whose length runs past the end of the
// buffer, or a header count that disagrees with the number of records
// actually decoded.
var ErrCorruption = errors.New("batchkv: corruption")

// MarkCorruptionError wraps err so that errors.Is(err, ErrCorruption) holds,
// without altering err's message. Batch decoding uses this to let callers
// distinguish "this batch is corrupt" from other failure modes (a missing
// column family, an oversized append) using the standard errors.Is idiom.
func MarkCorruptionError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrCorruption)
}
