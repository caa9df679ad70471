// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package batchkv implements the write-batch core of an embedded LSM-tree
// key-value store: a WriteBatch serializes a group of mutations into the
// binary format defined by batchrepr, supports save-point rollback and
// two-phase-commit markers, and can be replayed by a visitor implementing
// the Handler interface. The memtable subpackage provides the visitor that
// replays a batch into live memtables during ordinary writes and during WAL
// recovery.
package batchkv
