// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layer

import (
	"fmt"
	"slices"
)

// Resolution is the outcome of dependency resolution.
type Resolution struct {
	// Layers is the corrected layer list, deduplicated and ascending.
	Layers []ID `json:"layers"`

	// AutoAdded lists dependencies that were not requested, ascending.
	AutoAdded []ID `json:"auto_added,omitempty"`

	// Warnings explain each auto-added layer.
	Warnings []string `json:"warnings,omitempty"`
}

// Resolver computes the dependency closure of a requested layer set.
//
// Thread Safety: Safe for concurrent use.
type Resolver struct {
	registry *Registry
}

// NewResolver creates a resolver over the given registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve returns the minimal superset of requested that satisfies every
// transitive dependency.
//
// Description:
//
//	Every requested id is validated first; an unknown id fails the whole
//	call with an *UnknownLayerError and no partial result. Missing
//	dependencies are then added transitively, each producing a warning
//	that names the requiring layer and the added dependency. An empty
//	request selects every registered layer.
//
// Inputs:
//
//	requested - Requested layer ids in any order, duplicates allowed.
//
// Outputs:
//
//	Resolution - Sorted, deduplicated layers plus auto-add bookkeeping.
//	error - Non-nil (wrapping ErrUnknownLayer) if any id is unregistered.
func (r *Resolver) Resolve(requested []ID) (Resolution, error) {
	if len(requested) == 0 {
		return Resolution{Layers: r.registry.IDs()}, nil
	}

	for _, id := range requested {
		if !r.registry.Has(id) {
			return Resolution{}, &UnknownLayerError{ID: id}
		}
	}

	selected := make(map[ID]bool, len(requested))
	for _, id := range requested {
		selected[id] = true
	}

	var res Resolution

	// Walk in ascending order so warnings and AutoAdded are deterministic.
	queue := slices.Clone(requested)
	slices.Sort(queue)
	queue = slices.Compact(queue)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		l, _ := r.registry.Get(id)
		deps := slices.Clone(l.Descriptor.Dependencies)
		slices.Sort(deps)
		for _, dep := range deps {
			if selected[dep] {
				continue
			}
			selected[dep] = true
			res.AutoAdded = append(res.AutoAdded, dep)
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"layer %d (%s) requires layer %d; added automatically", id, l.Descriptor.Name, dep))
			queue = append(queue, dep)
		}
	}

	res.Layers = make([]ID, 0, len(selected))
	for id := range selected {
		res.Layers = append(res.Layers, id)
	}
	slices.Sort(res.Layers)
	slices.Sort(res.AutoAdded)

	return res, nil
}
