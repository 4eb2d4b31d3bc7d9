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
	"strings"

	"github.com/spf13/cobra"
)

func newLayersCmd(a *app) *cobra.Command {
	var (
		asJSON  bool
		resolve []int
	)
	cmd := &cobra.Command{
		Use:   "layers",
		Short: "List the available layers",
		Example: `  layerfix layers
  layerfix layers --resolve 3,5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := a.buildEngine(false)
			if err != nil {
				return err
			}
			defer cleanup()

			if cmd.Flags().Changed("resolve") {
				res, err := eng.Resolve(toIDs(resolve))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(a, res)
				}
				a.printer.Info("Execution order: " + joinIDs(fromIDs(res.Layers)))
				if len(res.AutoAdded) > 0 {
					a.printer.Info("Added as dependencies: " + joinIDs(fromIDs(res.AutoAdded)))
				}
				return nil
			}

			descs := eng.DescribeLayers()
			if asJSON {
				return writeJSON(a, descs)
			}
			a.printer.Layers(layerInfos(descs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().IntSliceVar(&resolve, "resolve", nil, "show the execution order for these layers")
	return cmd
}

func writeJSON(a *app, v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, " → ")
}

