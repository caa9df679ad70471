// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package memtable implements MemTableInserter, the batchkv.Handler that
// replays a WriteBatch's records into live memtables: it assigns sequence
// numbers, routes records to their column family, optionally performs
// update-in-place or merge folding, schedules flushes, and — when running
// over a log being recovered — reconstructs prepared transactions that were
// written to the WAL but never committed.
//
// The memtable itself, the column-family registry, the owning DB, and the
// flush scheduler are all external collaborators outside this package's
// scope; this package defines only the interfaces the inserter calls
// against them.
package memtable
