// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Command batchdump decodes a write-batch file from disk and renders its
// records, in the style of pebble's own cmd/pebble and cmd/ldbdump tools.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "batchdump [command] (flags)",
	Short: "decode and inspect batchkv write-batch files",
	Long:  ``,
}

func main() {
	log.SetFlags(0)
	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(dumpCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
