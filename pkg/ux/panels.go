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
	"fmt"
	"strings"
)

// =============================================================================
// Profile Panel
// =============================================================================

// ProfileTitle heads the profile panel.
const ProfileTitle = "Your Profile"

// ProfileLine is one labelled profile field. An empty Value is not shown.
type ProfileLine struct {
	Label string
	Value string
}

// RenderProfile formats the profile panel. When no line has a value the
// placeholder is shown instead.
func RenderProfile(lines []ProfileLine, placeholder string, level PersonalityLevel) string {
	var filled []ProfileLine
	for _, l := range lines {
		if strings.TrimSpace(l.Value) != "" {
			filled = append(filled, l)
		}
	}

	switch level {
	case PersonalityMachine:
		if len(filled) == 0 {
			return "PROFILE: " + placeholder
		}
		parts := make([]string, len(filled))
		for i, l := range filled {
			parts[i] = l.Label + "=" + l.Value
		}
		return "PROFILE: " + strings.Join(parts, "; ")
	case PersonalityMinimal, PersonalityStandard:
		if len(filled) == 0 {
			return Styles.Muted.Render(placeholder)
		}
		parts := make([]string, len(filled))
		for i, l := range filled {
			parts[i] = l.Label + ": " + l.Value
		}
		return Styles.Muted.Render("Profile") + " " + strings.Join(parts, " | ")
	}

	var b strings.Builder
	b.WriteString(Styles.Title.Render(ProfileTitle))
	if len(filled) == 0 {
		b.WriteString("\n")
		b.WriteString(Styles.Muted.Render(placeholder))
		return Styles.ProfileBox.Render(b.String())
	}

	width := 0
	for _, l := range filled {
		if len(l.Label) > width {
			width = len(l.Label)
		}
	}
	for _, l := range filled {
		b.WriteString("\n")
		b.WriteString(Styles.Muted.Render(fmt.Sprintf("%-*s", width, l.Label)))
		b.WriteString("  ")
		b.WriteString(l.Value)
	}
	return Styles.ProfileBox.Render(b.String())
}

// =============================================================================
// Progress Timeline
// =============================================================================

// StepMark is the display state of one timeline step.
type StepMark int

const (
	StepInactive StepMark = iota
	StepActive
	StepComplete
)

// TimelineStep is one labelled stage of the progress timeline.
type TimelineStep struct {
	Label string
	Mark  StepMark
}

// TimelineView is what the timeline shows: the steps in order and the
// current status phrase.
type TimelineView struct {
	Steps  []TimelineStep
	Status string
	Idle   bool
}

// RenderTimeline formats the progress timeline on one line, e.g.
//
//	✓ Analyzing → ● Retrieving → ○ Responding  Searching catalog...
//
// An idle timeline shows the status phrase alone.
func RenderTimeline(v TimelineView, level PersonalityLevel) string {
	if level == PersonalityMachine {
		if v.Idle {
			return "STATUS: " + v.Status
		}
		active := ""
		for _, s := range v.Steps {
			if s.Mark == StepActive {
				active = strings.ToLower(s.Label)
			}
		}
		return fmt.Sprintf("STAGE: %s %s", active, v.Status)
	}

	if v.Idle {
		return Styles.Muted.Render(v.Status)
	}

	parts := make([]string, len(v.Steps))
	for i, s := range v.Steps {
		switch s.Mark {
		case StepComplete:
			parts[i] = IconSuccess.Render() + " " + Styles.Muted.Render(s.Label)
		case StepActive:
			parts[i] = IconActive.Render() + " " + Styles.Highlight.Render(s.Label)
		default:
			parts[i] = IconPending.Render() + " " + Styles.Muted.Render(s.Label)
		}
	}
	sep := " " + Styles.Muted.Render(string(IconArrow)) + " "
	return strings.Join(parts, sep) + "  " + StatusText(v.Status)
}

// StatusText is the status phrase as the timeline shows it, with a
// trailing ellipsis.
func StatusText(status string) string {
	if status == "" {
		return ""
	}
	return status + "..."
}

// =============================================================================
// Connection Badge
// =============================================================================

// Connection badge texts.
const (
	BadgeOnline  = "Connected"
	BadgeOffline = "Connection Offline"
)

// ConnectionBadge renders the online/offline indicator.
func ConnectionBadge(online bool, level PersonalityLevel) string {
	text := BadgeOffline
	if online {
		text = BadgeOnline
	}
	switch level {
	case PersonalityMachine:
		return "CONNECTION: " + text
	case PersonalityMinimal:
		return text
	}
	if online {
		return Styles.Success.Render(string(IconActive) + " " + text)
	}
	return Styles.Error.Render(string(IconActive) + " " + text)
}
