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
	"github.com/AleutianAI/genie/cmd/genie/internal/profile"
	"github.com/AleutianAI/genie/cmd/genie/internal/progress"
	"github.com/AleutianAI/genie/cmd/genie/internal/protocol"
	"github.com/AleutianAI/genie/cmd/genie/internal/router"
	"github.com/AleutianAI/genie/cmd/genie/internal/session"
	"github.com/AleutianAI/genie/pkg/ux"
)

// =============================================================================
// Presenter
// =============================================================================

// renderPresenter translates session events into ux.ChatRenderer calls.
// It is the only place that knows both the event set and the display.
type renderPresenter struct {
	renderer ux.ChatRenderer
}

func newRenderPresenter(renderer ux.ChatRenderer) *renderPresenter {
	return &renderPresenter{renderer: renderer}
}

// Present implements session.Presenter.
func (p *renderPresenter) Present(ev router.Event) {
	switch e := ev.(type) {
	case router.UserMessage:
		p.renderer.OnUserMessage(e.Text)
	case router.TurnStarted:
		p.renderer.OnStage(timelineView(e.Timeline))
	case router.StageChanged:
		p.renderer.OnStage(timelineView(e.Timeline))
	case router.ProfileUpdated:
		p.renderer.OnProfile(profileLines(e.Profile), profile.Placeholder)
	case router.AnswerDelta:
		p.renderer.OnAnswer(e.Delta)
	case router.ContextItem:
		p.renderer.OnCard(ux.NewCard(cardFields(e.Item)))
	case router.TurnCompleted:
		p.renderer.OnTurnDone(e.Answer)
	case router.Error:
		p.renderer.OnError(e.Message)
	case router.ConnectionRestored:
		p.renderer.OnConnection(true, false)
	case router.ConnectionLost:
		p.renderer.OnConnection(false, e.Abandoned)
	}
}

var _ session.Presenter = (*renderPresenter)(nil)

// =============================================================================
// Conversions
// =============================================================================

func timelineView(t progress.Timeline) ux.TimelineView {
	steps := make([]ux.TimelineStep, len(progress.Stages))
	for i, stage := range progress.Stages {
		steps[i] = ux.TimelineStep{Label: stage.Label(), Mark: stepMark(t.Mark(stage))}
	}
	return ux.TimelineView{Steps: steps, Status: t.Status, Idle: t.Idle}
}

func stepMark(m progress.Mark) ux.StepMark {
	switch m {
	case progress.MarkActive:
		return ux.StepActive
	case progress.MarkComplete:
		return ux.StepComplete
	default:
		return ux.StepInactive
	}
}

func profileLines(s profile.Snapshot) []ux.ProfileLine {
	fields := s.Fields()
	lines := make([]ux.ProfileLine, len(fields))
	for i, f := range fields {
		lines[i] = ux.ProfileLine{Label: f.Label, Value: f.Value}
	}
	return lines
}

func cardFields(item protocol.ContextItem) ux.CardFields {
	return ux.CardFields{
		Name:          item.Name,
		Institution:   item.InstitutionName(),
		Location:      item.Location.String(),
		Fee:           item.ApproxAnnualFee.String(),
		Currency:      item.Currency,
		CourseSummary: item.CourseSummary,
		Description:   item.Description,
	}
}
