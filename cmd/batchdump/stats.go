// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/cockroachdb/batchkv"
	"github.com/cockroachdb/batchkv/batchrepr"
	"github.com/cockroachdb/errors"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "plot a per-column-family record-count histogram for a batch file",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

// cfCounter is a batchkv.Handler that tallies counted records per column
// family, the input to the histogram statsCmd renders.
type cfCounter struct {
	batchkv.BaseHandler
	counts map[uint32]int
}

func newCFCounter() *cfCounter { return &cfCounter{counts: make(map[uint32]int)} }

func (c *cfCounter) PutCF(cfID uint32, key, value []byte) error {
	c.counts[cfID]++
	return nil
}
func (c *cfCounter) DeleteCF(cfID uint32, key []byte) error {
	c.counts[cfID]++
	return nil
}
func (c *cfCounter) SingleDeleteCF(cfID uint32, key []byte) error {
	c.counts[cfID]++
	return nil
}
func (c *cfCounter) DeleteRangeCF(cfID uint32, begin, end []byte) error {
	c.counts[cfID]++
	return nil
}
func (c *cfCounter) MergeCF(cfID uint32, key, value []byte) error {
	c.counts[cfID]++
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	repr, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrapf(err, "reading %s", args[0])
	}
	c := newCFCounter()
	if err := batchkv.Iterate(repr, c); err != nil {
		return errors.Wrapf(err, "decoding %s", args[0])
	}

	cfIDs := make([]uint32, 0, len(c.counts))
	for cfID := range c.counts {
		cfIDs = append(cfIDs, cfID)
	}
	sort.Slice(cfIDs, func(i, j int) bool { return cfIDs[i] < cfIDs[j] })

	hdr, _ := batchrepr.ReadHeader(repr)
	fmt.Printf("%s, %d column families with counted records\n", hdr, len(cfIDs))
	if len(cfIDs) == 0 {
		return nil
	}

	values := make([]float64, len(cfIDs))
	for i, cfID := range cfIDs {
		values[i] = float64(c.counts[cfID])
	}
	graph := asciigraph.Plot(values,
		asciigraph.Height(10),
		asciigraph.Caption("records per column family, ordered by id"))
	fmt.Println(graph)
	return nil
}
