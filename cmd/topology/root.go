// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	configPath string
	envFile    string
	debug      bool

	// logOutput replaces stderr for console logs. Tests set it.
	logOutput io.Writer
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootOptions{})
}

func newRootCmdWith(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "topology",
		Short: "Explore SL1 device topology neighborhoods",
		Long: `topology serves an HTTP API that expands selected SL1 devices into
their parent/child neighborhood, and offers a one-shot explore command
for the same traversal from the shell.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to a .env file (ignored if missing)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging and gin debug mode")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newExploreCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "topology %s (commit %s)\n", version, commit)
			return err
		},
	}
}
