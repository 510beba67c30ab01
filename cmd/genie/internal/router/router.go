// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package router turns decoded stream frames into presentation events.
//
// The router owns the in-flight answer, the progress timeline, and the
// profile accumulator. Every trigger (frame, channel lifecycle change,
// submission) is one method call that returns the events it produced.
//
// # Turn Lifecycle
//
//	processing_started ──▶ discard previous answer, stage analyzing
//	content_chunk      ──▶ create answer lazily, append, AnswerDelta
//	stream_end         ──▶ fallback text, profile, items, sources, TurnCompleted
//	error              ──▶ Error, input re-enabled
//	channel lost       ──▶ abandon answer, ConnectionLost, input re-enabled
//
// # Thread Safety
//
// Not safe for concurrent use. The session controller calls it from its
// single event loop goroutine.
package router

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/AleutianAI/genie/cmd/genie/internal/answer"
	"github.com/AleutianAI/genie/cmd/genie/internal/profile"
	"github.com/AleutianAI/genie/cmd/genie/internal/progress"
	"github.com/AleutianAI/genie/cmd/genie/internal/protocol"
	"github.com/AleutianAI/genie/pkg/telemetry"
)

// Options configures a Router. Every field is optional.
type Options struct {
	Profile   *profile.Accumulator
	NewTurnID func() string
	Logger    *slog.Logger
	Metrics   *telemetry.ClientMetrics
}

// Router is the stream event router.
type Router struct {
	profile   *profile.Accumulator
	newTurnID func() string
	logger    *slog.Logger
	metrics   *telemetry.ClientMetrics

	turn         *answer.Assembler
	timeline     progress.Timeline
	inputEnabled bool
}

// New builds a router with an idle timeline and input enabled.
func New(opts Options) *Router {
	r := &Router{
		profile:      opts.Profile,
		newTurnID:    opts.NewTurnID,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		timeline:     progress.IdleTimeline(),
		inputEnabled: true,
	}
	if r.profile == nil {
		r.profile = profile.NewAccumulator()
	}
	if r.newTurnID == nil {
		r.newTurnID = uuid.NewString
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	r.logger = r.logger.With("component", "router")
	return r
}

// =============================================================================
// Accessors
// =============================================================================

// Timeline returns the current progress display.
func (r *Router) Timeline() progress.Timeline { return r.timeline }

// InputEnabled reports whether the user may submit.
func (r *Router) InputEnabled() bool { return r.inputEnabled }

// InFlight reports whether an answer is being assembled.
func (r *Router) InFlight() bool { return r.turn != nil }

// Answer returns the in-flight answer text, "" when none.
func (r *Router) Answer() string {
	if r.turn == nil {
		return ""
	}
	return r.turn.Snapshot()
}

// Profile returns the merged profile.
func (r *Router) Profile() profile.Snapshot { return r.profile.Current() }

// =============================================================================
// Frames
// =============================================================================

// HandlePayload decodes one frame payload and routes it.
//
// Malformed frames are logged and dropped. A malformed frame whose type tag
// was readable and ends a turn still closes the turn, so input is never
// left disabled by a broken terminal frame.
func (r *Router) HandlePayload(ctx context.Context, payload []byte) []Event {
	frame, err := protocol.Decode(payload)
	if err == nil {
		return r.HandleFrame(ctx, frame)
	}

	r.metrics.RecordDecodeError(ctx)
	var decodeErr *protocol.DecodeError
	wireType := ""
	if errors.As(err, &decodeErr) {
		wireType = decodeErr.Type
	}
	r.logger.Warn("dropping malformed frame",
		"bytes", len(payload),
		"type", wireType,
		"error", err,
	)

	if !protocol.IsTerminalType(wireType) {
		return nil
	}
	if wireType == protocol.TypeError {
		return r.serverError(protocol.ServerError{})
	}
	return r.complete(ctx, protocol.TurnCompleted{Type: wireType})
}

// HandleFrame routes one decoded frame.
func (r *Router) HandleFrame(ctx context.Context, frame protocol.Frame) []Event {
	r.metrics.RecordFrame(ctx, frame.WireType())

	switch f := frame.(type) {
	case protocol.TurnStarted:
		return r.turnStarted()
	case protocol.StatusUpdate:
		r.timeline = progress.FromStatus(f.Message)
		return []Event{StageChanged{Timeline: r.timeline}}
	case protocol.InitialEntities:
		return r.mergeProfile(nil, f.Entities)
	case protocol.ContentDelta:
		return r.contentDelta(f)
	case protocol.TurnCompleted:
		return r.complete(ctx, f)
	case protocol.ServerError:
		return r.serverError(f)
	case protocol.Unknown:
		r.logger.Debug("ignoring unknown frame", "type", f.Type)
		return nil
	default:
		r.logger.Debug("ignoring unhandled frame", "type", frame.WireType())
		return nil
	}
}

func (r *Router) turnStarted() []Event {
	if r.turn != nil {
		r.logger.Debug("discarding unfinished answer", "turn_id", r.turn.TurnID(), "bytes", r.turn.Len())
	}
	r.turn = nil
	r.timeline = progress.At(progress.StageAnalyzing, progress.StatusProcessing)
	return []Event{TurnStarted{Timeline: r.timeline}}
}

func (r *Router) contentDelta(f protocol.ContentDelta) []Event {
	events := r.setTimeline(nil, progress.IdleTimeline())
	turn := r.ensureTurn()
	text := turn.Append(f.Text)
	return append(events, AnswerDelta{TurnID: turn.TurnID(), Text: text, Delta: f.Text})
}

func (r *Router) complete(ctx context.Context, f protocol.TurnCompleted) []Event {
	var events []Event

	final, usedFallback := r.turn.Final(f.Text)
	turnID := ""
	if r.turn != nil {
		turnID = r.turn.TurnID()
	}
	if usedFallback {
		if turnID == "" {
			turnID = r.newTurnID()
		}
		events = append(events, AnswerDelta{TurnID: turnID, Text: final, Delta: final, Fallback: true})
	}

	events = r.mergeProfile(events, f.Entities)

	for _, item := range f.Items {
		r.metrics.RecordContextItem(ctx, string(OriginItem))
		events = append(events, ContextItem{TurnID: turnID, Origin: OriginItem, Item: item})
	}
	for _, item := range f.Sources {
		r.metrics.RecordContextItem(ctx, string(OriginSource))
		events = append(events, ContextItem{TurnID: turnID, Origin: OriginSource, Item: item})
	}
	if f.Rejected > 0 {
		r.logger.Warn("skipped malformed context items", "count", f.Rejected)
	}

	events = r.setTimeline(events, progress.IdleTimeline())
	r.turn = nil
	r.inputEnabled = true
	r.metrics.RecordTurnCompleted(ctx)

	return append(events, TurnCompleted{
		TurnID:       turnID,
		Answer:       final,
		Fallback:     usedFallback,
		InputEnabled: true,
	})
}

func (r *Router) serverError(f protocol.ServerError) []Event {
	events := r.setTimeline(nil, progress.IdleTimeline())
	message := f.Message
	if message == "" {
		message = ServerErrorMessage
	}
	r.inputEnabled = true
	return append(events, Error{Message: message, Origin: OriginServer, InputEnabled: true})
}

// =============================================================================
// Submission and Channel Triggers
// =============================================================================

// BeginSubmission records an accepted user message: input is disabled and
// the timeline moves to analyzing.
func (r *Router) BeginSubmission(text string) []Event {
	r.inputEnabled = false
	events := []Event{UserMessage{Text: text}}
	return r.setTimeline(events, progress.At(progress.StageAnalyzing, progress.StatusAnalyzing))
}

// SubmissionFailed reports a submission that never reached the server.
func (r *Router) SubmissionFailed(err error) []Event {
	r.logger.Error("submission failed", "error", err)
	events := r.setTimeline(nil, progress.IdleTimeline())
	r.inputEnabled = true
	return append(events, Error{Message: SubmissionFailedMessage, Origin: OriginSubmission, InputEnabled: true})
}

// ConnectionOpened reports a freshly opened push channel.
func (r *Router) ConnectionOpened() []Event {
	return []Event{ConnectionRestored{}}
}

// ConnectionLost abandons any in-flight answer and returns to an
// interactive state. The new channel starts a fresh event sequence; there
// is nothing to resume.
func (r *Router) ConnectionLost(ctx context.Context) []Event {
	abandoned := r.turn != nil || !r.inputEnabled
	if abandoned {
		reason := "no_answer"
		if r.turn != nil {
			reason = "mid_answer"
		}
		r.metrics.RecordTurnAbandoned(ctx, reason)
		r.logger.Warn("abandoning in-flight turn", "reason", reason)
	}
	r.turn = nil
	r.inputEnabled = true
	events := r.setTimeline(nil, progress.IdleTimeline())
	return append(events, ConnectionLost{Abandoned: abandoned, InputEnabled: true})
}

// =============================================================================
// Helpers
// =============================================================================

func (r *Router) ensureTurn() *answer.Assembler {
	if r.turn == nil {
		r.turn = answer.New(r.newTurnID())
	}
	return r.turn
}

// setTimeline appends StageChanged only when the display actually changes.
func (r *Router) setTimeline(events []Event, tl progress.Timeline) []Event {
	if tl == r.timeline {
		return events
	}
	r.timeline = tl
	return append(events, StageChanged{Timeline: tl})
}

func (r *Router) mergeProfile(events []Event, partial map[string]any) []Event {
	snap, changed := r.profile.Merge(partial)
	if !changed {
		return events
	}
	return append(events, ProfileUpdated{Profile: snap})
}
