// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package strategy

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/layerfix/services/layerfix/syntax"
)

// ParseForEdit parses text for a structural transform.
//
// Description:
//
//	A tree with ERROR or MISSING nodes cannot be edited reliably, so it is
//	reported as a parse-phase *StructuralError and the caller's tree is
//	never returned. File types without a grammar are reported the same way.
//
// Outputs:
//
//	*sitter.Tree - A clean tree. Caller must Close it.
//	error - A *StructuralError on any failure.
func ParseForEdit(ctx context.Context, text, filename string) (*sitter.Tree, error) {
	tree, err := syntax.Parse(ctx, text, filename)
	if err != nil {
		return nil, NewStructuralError(PhaseParse, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		tree.Close()
		report, checkErr := syntax.Check(ctx, text, filename)
		if checkErr == nil && report.Message() != "" {
			return nil, NewStructuralError(PhaseParse, fmt.Errorf("input has syntax errors: %s", report.Message()))
		}
		return nil, NewStructuralError(PhaseParse, fmt.Errorf("input has syntax errors"))
	}
	return tree, nil
}
