// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package memtable

import "github.com/cockroachdb/errors"

// ErrMissingColumnFamily is returned when a record targets a column family
// id that ColumnFamilyMemTables.Seek doesn't recognize and the inserter was
// not configured to ignore missing column families.
var ErrMissingColumnFamily = errors.New("memtable: column family not found")

// ErrRangeDeletionUnsupported is returned when a RangeDeletion record
// targets a column family whose table format cannot store range
// tombstones.
var ErrRangeDeletionUnsupported = errors.New("memtable: column family does not support range deletions")

// ErrPreparedTransactionsDisabled is returned when recovery encounters a
// begin-prepare marker but the DB collaborator reports two-phase commit is
// disabled.
var ErrPreparedTransactionsDisabled = errors.New("memtable: recovered a prepared transaction but two-phase commit is disabled")
