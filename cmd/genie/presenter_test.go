// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/genie/cmd/genie/internal/profile"
	"github.com/AleutianAI/genie/cmd/genie/internal/progress"
	"github.com/AleutianAI/genie/cmd/genie/internal/protocol"
	"github.com/AleutianAI/genie/cmd/genie/internal/router"
	"github.com/AleutianAI/genie/pkg/ux"
)

func TestRenderPresenter_Turn(t *testing.T) {
	renderer := ux.NewBufferChatRenderer()
	p := newRenderPresenter(renderer)

	acc := profile.NewAccumulator()
	snap, _ := acc.Merge(map[string]any{profile.KeyDestination: "Canada", profile.KeySubjects: []any{"AI", "ML"}})

	events := []router.Event{
		router.ConnectionRestored{},
		router.UserMessage{Text: "Masters in Canada"},
		router.TurnStarted{Timeline: progress.At(progress.StageAnalyzing, progress.StatusProcessing)},
		router.StageChanged{Timeline: progress.FromStatus("Searching programs")},
		router.StageChanged{Timeline: progress.IdleTimeline()},
		router.AnswerDelta{TurnID: "t1", Text: "Here are ", Delta: "Here are "},
		router.AnswerDelta{TurnID: "t1", Text: "Here are options.", Delta: "options."},
		router.ProfileUpdated{Profile: snap},
		router.ContextItem{TurnID: "t1", Origin: router.OriginItem, Item: protocol.ContextItem{Name: "MSc AI"}},
		router.ContextItem{TurnID: "t1", Origin: router.OriginSource, Item: protocol.ContextItem{
			Institution: &protocol.Institution{Name: "UBC"},
			ApproxAnnualFee: "42000",
			Currency:        "CAD",
		}},
		router.TurnCompleted{TurnID: "t1", Answer: "Here are options.", InputEnabled: true},
	}
	for _, ev := range events {
		p.Present(ev)
	}

	tr := renderer.Transcript()
	assert.True(t, tr.Online)
	assert.Equal(t, "Here are options.", tr.LastAnswer())
	assert.Equal(t, progress.StatusIdle, tr.Status)
	assert.Equal(t, []ux.ProfileLine{
		{Label: "Destination", Value: "Canada"},
		{Label: "Study Subject", Value: "AI, ML"},
	}, tr.Profile)

	require.Len(t, tr.Cards, 2)
	assert.Equal(t, "UBC", tr.Cards[0].Title)
	assert.Equal(t, "CAD 42000", tr.Cards[0].Fee)
	assert.Equal(t, "MSc AI", tr.Cards[1].Title)

	stages := ux.Stages(renderer)
	require.Len(t, stages, 3)
	assert.Equal(t, ux.StepActive, stages[1].Steps[1].Mark)
	assert.Equal(t, ux.StepComplete, stages[1].Steps[0].Mark)
	assert.True(t, stages[2].Idle)
}

func TestRenderPresenter_ErrorsAndConnection(t *testing.T) {
	renderer := ux.NewBufferChatRenderer()
	p := newRenderPresenter(renderer)

	p.Present(router.UserMessage{Text: "hi"})
	p.Present(router.AnswerDelta{Text: "par", Delta: "par"})
	p.Present(router.ConnectionLost{Abandoned: true, InputEnabled: true})
	p.Present(router.Error{Message: router.ServerErrorMessage, Origin: router.OriginServer, InputEnabled: true})

	tr := renderer.Transcript()
	assert.False(t, tr.Online)
	require.Len(t, tr.Messages, 2)
	assert.Equal(t, ux.RoleError, tr.Messages[1].Role)
	assert.Equal(t, router.ServerErrorMessage, tr.Messages[1].Text)
}

func TestTimelineView(t *testing.T) {
	v := timelineView(progress.At(progress.StageResponding, "Generating"))
	require.Len(t, v.Steps, len(progress.Stages))
	assert.Equal(t, "Analyzing", v.Steps[0].Label)
	assert.Equal(t, []ux.StepMark{ux.StepComplete, ux.StepComplete, ux.StepActive},
		[]ux.StepMark{v.Steps[0].Mark, v.Steps[1].Mark, v.Steps[2].Mark})
	assert.Equal(t, "Generating", v.Status)
	assert.False(t, v.Idle)

	idle := timelineView(progress.IdleTimeline())
	assert.True(t, idle.Idle)
	for _, s := range idle.Steps {
		assert.Equal(t, ux.StepInactive, s.Mark)
	}
}

func TestCardFields(t *testing.T) {
	got := cardFields(protocol.ContextItem{
		Name:            "BSc Law",
		Institution:     &protocol.Institution{Name: "LSE"},
		Location:        "London",
		ApproxAnnualFee: "25000",
		Currency:        "GBP",
		CourseSummary:   "Common law.",
		Description:     "desc",
	})
	assert.Equal(t, ux.CardFields{
		Name:          "BSc Law",
		Institution:   "LSE",
		Location:      "London",
		Fee:           "25000",
		Currency:      "GBP",
		CourseSummary: "Common law.",
		Description:   "desc",
	}, got)

	assert.Equal(t, ux.CardFields{}, cardFields(protocol.ContextItem{}))
}
