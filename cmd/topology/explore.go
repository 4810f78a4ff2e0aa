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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rudipoppes/SL1-TOPOLOGY-sub000/services/topology/datatypes"
)

type exploreOptions struct {
	depth     int
	direction string
	compact   bool
}

func newExploreCmd(root *rootOptions) *cobra.Command {
	opts := &exploreOptions{}
	cmd := &cobra.Command{
		Use:   "explore <device-id>...",
		Short: "Run one topology exploration and print it as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			resp, err := a.service.Explore(ctx, datatypes.TopologyRequest{
				DeviceIDs: args,
				Depth:     opts.depth,
				Direction: opts.direction,
			})
			if err != nil {
				return fmt.Errorf("explore: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !opts.compact {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(resp)
		},
	}
	cmd.Flags().IntVarP(&opts.depth, "depth", "d", 1, "hops to explore, clamped to 1..5")
	cmd.Flags().StringVar(&opts.direction, "direction", "both", "parents, children or both")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "print JSON on one line")
	return cmd
}
