// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package router

import (
	"github.com/AleutianAI/genie/cmd/genie/internal/profile"
	"github.com/AleutianAI/genie/cmd/genie/internal/progress"
	"github.com/AleutianAI/genie/cmd/genie/internal/protocol"
)

// Event is one normalized, presentation-facing output. The set is closed.
type Event interface {
	isEvent()
}

// ErrorOrigin says where an Error event came from.
type ErrorOrigin string

const (
	OriginServer     ErrorOrigin = "server"
	OriginSubmission ErrorOrigin = "submission"
	OriginDecode     ErrorOrigin = "decode"
)

// ItemOrigin says which completion list a context item came from.
type ItemOrigin string

const (
	OriginItem   ItemOrigin = "item"
	OriginSource ItemOrigin = "source"
)

// User-facing fallback texts.
const (
	SubmissionFailedMessage = "Connection interrupted. Please check your internet or retry."
	ServerErrorMessage      = "I'm having trouble connecting to my brain. Please try again."
)

// UserMessage echoes an accepted submission. Input is disabled from here
// until the turn completes or fails.
type UserMessage struct {
	Text string
}

// TurnStarted reports that the server began a new turn. Any previous
// in-flight answer has been discarded.
type TurnStarted struct {
	Timeline progress.Timeline
}

// StageChanged carries the new progress display.
type StageChanged struct {
	Timeline progress.Timeline
}

// ProfileUpdated carries the merged profile after a non-empty update.
type ProfileUpdated struct {
	Profile profile.Snapshot
}

// AnswerDelta carries the full answer text assembled so far. Fallback is
// set when the text is a complete answer delivered at completion time
// because no delta ever arrived.
type AnswerDelta struct {
	TurnID   string
	Text     string
	Delta    string
	Fallback bool
}

// ContextItem is one recommendation or source attached to a completed turn.
type ContextItem struct {
	TurnID string
	Origin ItemOrigin
	Item   protocol.ContextItem
}

// TurnCompleted closes a turn and re-enables input. Answer is "" when the
// turn produced no text at all.
type TurnCompleted struct {
	TurnID       string
	Answer       string
	Fallback     bool
	InputEnabled bool
}

// Error is a server-reported, submission, or broken-terminal-frame error.
// Input is always re-enabled.
type Error struct {
	Message      string
	Origin       ErrorOrigin
	InputEnabled bool
}

// ConnectionRestored reports a freshly opened push channel.
type ConnectionRestored struct{}

// ConnectionLost reports a channel failure. Abandoned is set when an
// in-flight turn was dropped; input is re-enabled either way.
type ConnectionLost struct {
	Abandoned    bool
	InputEnabled bool
}

func (UserMessage) isEvent()        {}
func (TurnStarted) isEvent()        {}
func (StageChanged) isEvent()       {}
func (ProfileUpdated) isEvent()     {}
func (AnswerDelta) isEvent()        {}
func (ContextItem) isEvent()        {}
func (TurnCompleted) isEvent()      {}
func (Error) isEvent()              {}
func (ConnectionRestored) isEvent() {}
func (ConnectionLost) isEvent()     {}

// InputState reports whether ev changes input availability, and to what.
func InputState(ev Event) (enabled bool, changes bool) {
	switch e := ev.(type) {
	case UserMessage:
		return false, true
	case TurnCompleted:
		return e.InputEnabled, true
	case Error:
		return e.InputEnabled, true
	case ConnectionLost:
		return e.InputEnabled, true
	}
	return false, false
}
