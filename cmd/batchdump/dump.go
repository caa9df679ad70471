// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"github.com/cockroachdb/batchkv"
	"github.com/cockroachdb/batchkv/batchrepr"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/ghemawat/stream"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	showValues  bool
	grepPattern string
)

var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "decode a batch file and render its records as a table",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().BoolVar(&showValues, "show-values", false,
		"print raw key/value bytes instead of a redacted placeholder")
	dumpCmd.Flags().StringVar(&grepPattern, "grep", "", "only print rows whose rendered line matches this regexp")
}

// dumpRow is one rendered table row. keyRedacted/valueRedacted hold the
// as-displayed text: either the raw bytes (--show-values) or the output of
// redacting them as a user's data, decided once up front so the --grep
// filter operates on exactly what will be printed.
type dumpRow struct {
	seq                        uint64
	kind                       string
	cfID                       uint32
	keyRedacted, valueRedacted string
}

type dumpCollector struct {
	batchkv.BaseHandler
	seq  uint64
	rows []dumpRow
}

// redactedOrRaw renders b the way it will appear in the dump: verbatim under
// --show-values, or passed through redact.Sprintf and Redact() otherwise, so
// that by default a batchdump transcript is safe to paste into a bug report
// without leaking user data.
func redactedOrRaw(b []byte) string {
	if showValues {
		return fmt.Sprintf("%q", b)
	}
	return string(redact.Sprintf("%x", b).Redact().StripMarkers())
}

func (c *dumpCollector) add(kind string, cfID uint32, key, value []byte) {
	c.rows = append(c.rows, dumpRow{
		seq:           c.seq,
		kind:          kind,
		cfID:          cfID,
		keyRedacted:   redactedOrRaw(key),
		valueRedacted: redactedOrRaw(value),
	})
	c.seq++
}

func (c *dumpCollector) PutCF(cfID uint32, key, value []byte) error {
	c.add("PUT", cfID, key, value)
	return nil
}

func (c *dumpCollector) DeleteCF(cfID uint32, key []byte) error {
	c.add("DELETE", cfID, key, nil)
	return nil
}

func (c *dumpCollector) SingleDeleteCF(cfID uint32, key []byte) error {
	c.add("SINGLE_DELETE", cfID, key, nil)
	return nil
}

func (c *dumpCollector) DeleteRangeCF(cfID uint32, begin, end []byte) error {
	c.add("RANGE_DELETE", cfID, begin, end)
	return nil
}

func (c *dumpCollector) MergeCF(cfID uint32, key, value []byte) error {
	c.add("MERGE", cfID, key, value)
	return nil
}

func (c *dumpCollector) MarkBeginPrepare() error {
	c.rows = append(c.rows, dumpRow{seq: c.seq, kind: "BEGIN_PREPARE"})
	return nil
}

func (c *dumpCollector) MarkEndPrepare(xid []byte) error {
	c.rows = append(c.rows, dumpRow{seq: c.seq, kind: "END_PREPARE", keyRedacted: fmt.Sprintf("xid=%q", xid)})
	return nil
}

func (c *dumpCollector) MarkCommit(xid []byte) error {
	c.rows = append(c.rows, dumpRow{seq: c.seq, kind: "COMMIT", keyRedacted: fmt.Sprintf("xid=%q", xid)})
	return nil
}

func (c *dumpCollector) MarkRollback(xid []byte) error {
	c.rows = append(c.rows, dumpRow{seq: c.seq, kind: "ROLLBACK", keyRedacted: fmt.Sprintf("xid=%q", xid)})
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	repr, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrapf(err, "reading %s", args[0])
	}
	hdr, ok := batchrepr.ReadHeader(repr)
	if !ok {
		return errors.Newf("%s: too short to contain a batch header", args[0])
	}
	fmt.Printf("%s\n", hdr)

	c := &dumpCollector{seq: uint64(hdr.SeqNum)}
	if err := batchkv.Iterate(repr, c); err != nil {
		return errors.Wrapf(err, "decoding %s", args[0])
	}

	var lineBuf bytes.Buffer
	for _, row := range c.rows {
		fmt.Fprintf(&lineBuf, "%d\t%s\t%d\t%s\t%s\n",
			row.seq, row.kind, row.cfID, row.keyRedacted, row.valueRedacted)
	}

	filter := stream.ReadLines(bytes.NewReader(lineBuf.Bytes()))
	if grepPattern != "" {
		if _, err := regexp.Compile(grepPattern); err != nil {
			return errors.Wrapf(err, "invalid --grep pattern %q", grepPattern)
		}
		filter = stream.Sequence(filter, stream.Grep(grepPattern))
	}

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{"Seq", "Kind", "CF", "Key", "Value"})
	if err := stream.ForEach(filter, func(line string) {
		fields := splitTabs(line)
		if len(fields) != 5 {
			return
		}
		tbl.Append(fields)
	}); err != nil {
		return err
	}
	tbl.Render()
	return nil
}

func splitTabs(s string) []string {
	var fields []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\t' {
			fields = append(fields, s[start:i])
			start = i + 1
		}
	}
	fields = append(fields, s[start:])
	return fields
}
