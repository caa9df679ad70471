// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package batchkv

// Handler receives one typed callback per record as a batch is iterated.
// Non-column-family tags dispatch with cfID 0. Implementations that only
// care about a subset of record kinds should embed BaseHandler and override
// only the methods they need.
type Handler interface {
	PutCF(cfID uint32, key, value []byte) error
	DeleteCF(cfID uint32, key []byte) error
	SingleDeleteCF(cfID uint32, key []byte) error
	DeleteRangeCF(cfID uint32, begin, end []byte) error
	MergeCF(cfID uint32, key, value []byte) error
	LogData(blob []byte) error
	MarkBeginPrepare() error
	MarkEndPrepare(xid []byte) error
	MarkCommit(xid []byte) error
	MarkRollback(xid []byte) error
	// ShouldContinue is queried before each record is decoded. Returning
	// false stops iteration; Iterate still compares the counted records
	// decoded so far against the header count, so stopping before the last
	// counted record makes it return ErrWrongCount.
	ShouldContinue() bool
}

// BaseHandler implements every Handler method as a no-op, ShouldContinue
// always returning true. Embed it to pick up defaults for the callbacks you
// don't care about.
type BaseHandler struct{}

func (BaseHandler) PutCF(cfID uint32, key, value []byte) error         { return nil }
func (BaseHandler) DeleteCF(cfID uint32, key []byte) error             { return nil }
func (BaseHandler) SingleDeleteCF(cfID uint32, key []byte) error       { return nil }
func (BaseHandler) DeleteRangeCF(cfID uint32, begin, end []byte) error { return nil }
func (BaseHandler) MergeCF(cfID uint32, key, value []byte) error       { return nil }
func (BaseHandler) LogData(blob []byte) error                         { return nil }
func (BaseHandler) MarkBeginPrepare() error                           { return nil }
func (BaseHandler) MarkEndPrepare(xid []byte) error                   { return nil }
func (BaseHandler) MarkCommit(xid []byte) error                       { return nil }
func (BaseHandler) MarkRollback(xid []byte) error                     { return nil }
func (BaseHandler) ShouldContinue() bool                              { return true }
