// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package safety

// VerdictKind is the validator's decision for one layer transition.
type VerdictKind string

const (
	VerdictAccept            VerdictKind = "accept"
	VerdictRevert            VerdictKind = "revert"
	VerdictAcceptWithWarning VerdictKind = "accept_with_warning"
)

// Verdict is produced fresh for every layer transition.
type Verdict struct {
	Kind VerdictKind `json:"kind"`

	// Reason is empty for a plain accept.
	Reason string `json:"reason,omitempty"`
}

// Accept returns an accept verdict.
func Accept() Verdict {
	return Verdict{Kind: VerdictAccept}
}

// Revert returns a revert verdict with the given reason.
func Revert(reason string) Verdict {
	return Verdict{Kind: VerdictRevert, Reason: reason}
}

// AcceptWithWarning returns an accept verdict carrying a warning.
func AcceptWithWarning(reason string) Verdict {
	return Verdict{Kind: VerdictAcceptWithWarning, Reason: reason}
}

// Accepted reports whether the change may be kept.
func (v Verdict) Accepted() bool {
	return v.Kind != VerdictRevert
}
