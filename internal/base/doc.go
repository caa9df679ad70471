// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines the fundamental types shared by the batch wire format,
// the write batch itself, and the memtable-insertion visitor: sequence
// numbers, record kinds, and the small set of sentinel errors that the rest
// of the module wraps with additional context.
package base
