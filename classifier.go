// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package batchkv

// contentFlag is a bit in a WriteBatch's lazily-computed content_flags
// bitset.
type contentFlag uint32

const (
	flagPut contentFlag = 1 << iota
	flagDelete
	flagSingleDelete
	flagRangeDelete
	flagMerge
	flagBeginPrepare
	flagEndPrepare
	flagCommit
	flagRollback
	// flagDeferred means "contents unknown, re-scan on query." It is set
	// whenever a batch's payload was supplied wholesale via SetContents
	// rather than built up through the typed append operations, and is
	// cleared the first time any Has* accessor forces classification.
	flagDeferred
)

// classifier is a Handler that implements only the informative callbacks,
// folding the record stream into a contentFlag bitset. It never fails: an
// unparseable batch simply stops contributing further bits, mirroring the
// classification's role as a best-effort memoization rather than a
// validating pass.
type classifier struct {
	BaseHandler
	flags contentFlag
}

func (c *classifier) PutCF(uint32, []byte, []byte) error {
	c.flags |= flagPut
	return nil
}

func (c *classifier) DeleteCF(uint32, []byte) error {
	c.flags |= flagDelete
	return nil
}

func (c *classifier) SingleDeleteCF(uint32, []byte) error {
	c.flags |= flagSingleDelete
	return nil
}

func (c *classifier) DeleteRangeCF(uint32, []byte, []byte) error {
	c.flags |= flagRangeDelete
	return nil
}

func (c *classifier) MergeCF(uint32, []byte, []byte) error {
	c.flags |= flagMerge
	return nil
}

func (c *classifier) MarkBeginPrepare() error {
	c.flags |= flagBeginPrepare
	return nil
}

func (c *classifier) MarkEndPrepare([]byte) error {
	c.flags |= flagEndPrepare
	return nil
}

func (c *classifier) MarkCommit([]byte) error {
	c.flags |= flagCommit
	return nil
}

func (c *classifier) MarkRollback([]byte) error {
	c.flags |= flagRollback
	return nil
}
