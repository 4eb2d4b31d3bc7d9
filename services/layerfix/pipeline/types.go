// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"slices"
	"time"

	"github.com/AleutianAI/layerfix/services/layerfix/diagnostic"
	"github.com/AleutianAI/layerfix/services/layerfix/layer"
	"github.com/AleutianAI/layerfix/services/layerfix/strategy"
)

// DefaultTimeout bounds one layer's transform when a request sets none.
const DefaultTimeout = 30 * time.Second

// Options tune a single run.
type Options struct {
	// DryRun is recorded on the result; callers use it to skip writing.
	DryRun bool `json:"dry_run"`

	// Verbose raises per-layer logs from debug to info.
	Verbose bool `json:"verbose"`

	// Timeout bounds each layer's transform. Zero uses DefaultTimeout.
	Timeout time.Duration `json:"timeout"`

	// CacheEnabled lets the caller consult the result cache.
	CacheEnabled bool `json:"cache_enabled"`
}

// Request is one invocation. It is not modified by Run.
type Request struct {
	Text string

	// Layers may be unordered and contain duplicates. Empty selects all.
	Layers []layer.ID

	// Filename is a hint for grammar selection and layer applicability.
	Filename string

	Options Options
}

// Status is a layer's state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAttempted Status = "attempted"
	StatusAccepted  Status = "accepted"
	StatusReverted  Status = "reverted"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusReverted || s == StatusFailed
}

// LayerOutcome is the result of one layer attempt.
type LayerOutcome struct {
	LayerID layer.ID `json:"layer_id"`
	Name    string   `json:"name"`
	Status  Status   `json:"status"`

	// Success is true only for accepted outcomes.
	Success bool `json:"success"`

	// Text is the layer's accepted output, or its input when the layer
	// failed or was reverted.
	Text string `json:"text"`

	Elapsed time.Duration `json:"elapsed"`

	// Changes counts discrete edits. Zero for anything not accepted.
	Changes      int      `json:"changes"`
	Improvements []string `json:"improvements,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`

	// Strategy is empty for skipped and failed layers.
	Strategy       strategy.Kind `json:"strategy,omitempty"`
	FallbackReason string        `json:"fallback_reason,omitempty"`

	Error        string                 `json:"error,omitempty"`
	RevertReason string                 `json:"revert_reason,omitempty"`
	Diagnostic   *diagnostic.Diagnostic `json:"diagnostic,omitempty"`

	// Skipped is true when the layer does not apply to the file type.
	Skipped bool `json:"skipped,omitempty"`

	// Critical mirrors the layer's descriptor.
	Critical bool `json:"critical,omitempty"`

	err error
}

// Err returns the underlying error of a failed outcome.
func (o LayerOutcome) Err() error {
	return o.err
}

// Reason returns the explanation for a non-accepted outcome.
func (o LayerOutcome) Reason() string {
	switch o.Status {
	case StatusReverted:
		return o.RevertReason
	case StatusFailed:
		return o.Error
	default:
		return ""
	}
}

func (o LayerOutcome) clone() LayerOutcome {
	o.Improvements = slices.Clone(o.Improvements)
	o.Warnings = slices.Clone(o.Warnings)
	if o.Diagnostic != nil {
		d := *o.Diagnostic
		d.RecoveryOptions = slices.Clone(d.RecoveryOptions)
		o.Diagnostic = &d
	}
	return o
}

// Snapshot records the current text after an accepted or reverted step.
type Snapshot struct {
	LayerID layer.ID `json:"layer_id"`
	Status  Status   `json:"status"`
	Text    string   `json:"text"`
}

// Result is the aggregate of one run. It is never modified after Run
// returns; use Clone before changing a copy.
type Result struct {
	RunID        string           `json:"run_id"`
	OriginalText string           `json:"original_text"`
	FinalText    string           `json:"final_text"`
	Outcomes     []LayerOutcome   `json:"outcomes"`
	Snapshots    []Snapshot       `json:"snapshots"`
	Resolution   layer.Resolution `json:"resolution"`
	Elapsed      time.Duration    `json:"elapsed"`
	SuccessCount int              `json:"success_count"`

	// Aborted is true when a critical failure or cancellation stopped the run.
	Aborted     bool   `json:"aborted,omitempty"`
	AbortReason string `json:"abort_reason,omitempty"`

	DryRun bool `json:"dry_run,omitempty"`
}

// HasCriticalFailure reports whether a critical layer failed.
func (r *Result) HasCriticalFailure() bool {
	for _, o := range r.Outcomes {
		if o.Critical && o.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Changed reports whether the final text differs from the original.
func (r *Result) Changed() bool {
	return r.FinalText != r.OriginalText
}

// TotalChanges sums the change counts of accepted layers.
func (r *Result) TotalChanges() int {
	total := 0
	for _, o := range r.Outcomes {
		total += o.Changes
	}
	return total
}

// Outcome returns the outcome for id.
func (r *Result) Outcome(id layer.ID) (LayerOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.LayerID == id {
			return o, true
		}
	}
	return LayerOutcome{}, false
}

// Clone returns a deep copy.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	c.Outcomes = make([]LayerOutcome, len(r.Outcomes))
	for i, o := range r.Outcomes {
		c.Outcomes[i] = o.clone()
	}
	c.Snapshots = slices.Clone(r.Snapshots)
	c.Resolution = layer.Resolution{
		Layers:    slices.Clone(r.Resolution.Layers),
		AutoAdded: slices.Clone(r.Resolution.AutoAdded),
		Warnings:  slices.Clone(r.Resolution.Warnings),
	}
	return &c
}
