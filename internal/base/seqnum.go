// Copyright 2023 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"

	"github.com/cockroachdb/redact"
)

// SeqNum is a sequence number defining precedence among mutations applied to
// the same key. A key written with a higher sequence number takes precedence
// over an equal user key written with a lower one. Sequence numbers are
// assigned to a batch's records in order, starting from the batch's base
// sequence number, so a batch's i'th counted record always carries sequence
// number base+i.
type SeqNum uint64

const (
	// SeqNumZero is the sequence number stored in the header of a batch that
	// has not yet been assigned a base sequence number (i.e. it has not been
	// committed).
	SeqNumZero SeqNum = 0

	// SeqNumStart is the first sequence number ordinarily handed out to
	// committed batches. Values below it are reserved for future use.
	SeqNumStart SeqNum = 1

	// SeqNumMax is the largest representable sequence number.
	SeqNumMax SeqNum = 1<<64 - 1
)

// String implements fmt.Stringer.
func (s SeqNum) String() string {
	return fmt.Sprintf("%d", uint64(s))
}

// SafeFormat implements redact.SafeFormatter, so sequence numbers may be
// logged without being treated as sensitive user data.
func (s SeqNum) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(s.String()))
}
