// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package progress maps free-text status phrases onto the fixed pipeline
// stages shown while an answer is produced.
package progress

import "strings"

// Stage is one step of the answer pipeline, in pipeline order.
type Stage int

const (
	StageAnalyzing Stage = iota
	StageRetrieving
	StageResponding
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageAnalyzing, StageRetrieving, StageResponding}

func (s Stage) String() string {
	switch s {
	case StageAnalyzing:
		return "analyzing"
	case StageRetrieving:
		return "retrieving"
	case StageResponding:
		return "responding"
	default:
		return "unknown"
	}
}

// Label is the title-cased name shown in the timeline.
func (s Stage) Label() string {
	switch s {
	case StageAnalyzing:
		return "Analyzing"
	case StageRetrieving:
		return "Retrieving"
	case StageResponding:
		return "Responding"
	default:
		return "Unknown"
	}
}

// Keyword families, checked in priority order: a phrase that mentions both
// a retrieving and a responding word is responding.
var (
	respondingKeywords = []string{"think", "format", "generat", "writ"}
	retrievingKeywords = []string{"search", "retriev", "intent"}
)

// Classify maps a status phrase to a stage. Matching is a case-insensitive
// substring test; anything unmatched, including "", is StageAnalyzing.
func Classify(status string) Stage {
	lower := strings.ToLower(status)
	if containsAny(lower, respondingKeywords) {
		return StageResponding
	}
	if containsAny(lower, retrievingKeywords) {
		return StageRetrieving
	}
	return StageAnalyzing
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// =============================================================================
// Timeline
// =============================================================================

// Mark is the display state of one stage.
type Mark int

const (
	MarkInactive Mark = iota
	MarkActive
	MarkComplete
)

func (m Mark) String() string {
	switch m {
	case MarkActive:
		return "active"
	case MarkComplete:
		return "complete"
	default:
		return "inactive"
	}
}

// Status texts used by the controller.
const (
	StatusIdle       = "Ready to help"
	StatusProcessing = "Processing Request"
	StatusAnalyzing  = "Analyzing Query"
	StatusWorking    = "Working"
)

// Timeline is the progress display. When Idle is set no stage is active and
// Active is meaningless.
type Timeline struct {
	Active Stage
	Idle   bool
	Status string
}

// IdleTimeline is the resting display between turns.
func IdleTimeline() Timeline {
	return Timeline{Idle: true, Status: StatusIdle}
}

// At returns a timeline with stage active and the given status text.
func At(stage Stage, status string) Timeline {
	return Timeline{Active: stage, Status: status}
}

// FromStatus classifies status and keeps it as the display text. An empty
// phrase shows StatusWorking.
func FromStatus(status string) Timeline {
	text := status
	if text == "" {
		text = StatusWorking
	}
	return Timeline{Active: Classify(status), Status: text}
}

// Mark returns the display state of stage: stages before the active one
// are complete, the active one is active, the rest inactive.
func (t Timeline) Mark(stage Stage) Mark {
	switch {
	case t.Idle:
		return MarkInactive
	case stage < t.Active:
		return MarkComplete
	case stage == t.Active:
		return MarkActive
	default:
		return MarkInactive
	}
}

// Marks returns Mark for every stage in pipeline order.
func (t Timeline) Marks() []Mark {
	marks := make([]Mark, len(Stages))
	for i, s := range Stages {
		marks[i] = t.Mark(s)
	}
	return marks
}
