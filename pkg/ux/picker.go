// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/huh"
)

// ErrNoLayersSelected is returned when the picker is submitted empty.
var ErrNoLayersSelected = errors.New("no layers selected")

// PickLayers shows a multi-select of layers with preselected ticked and
// returns the chosen ids in ascending order.
func PickLayers(layers []LayerInfo, preselected []int) ([]int, error) {
	options := make([]huh.Option[int], len(layers))
	for i, l := range layers {
		label := fmt.Sprintf("%d %s  %s", l.ID, l.Name, l.Description)
		options[i] = huh.NewOption(label, l.ID).Selected(len(preselected) == 0 || slices.Contains(preselected, l.ID))
	}

	var chosen []int
	form := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[int]().
			Title("Layers to run").
			Description("Missing dependencies are added automatically.").
			Options(options...).
			Value(&chosen),
	))
	if err := form.Run(); err != nil {
		return nil, err
	}
	if len(chosen) == 0 {
		return nil, ErrNoLayersSelected
	}
	slices.Sort(chosen)
	return chosen, nil
}
