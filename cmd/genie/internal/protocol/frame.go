// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package protocol

// Wire type tags.
const (
	TypeProcessingStarted  = "processing_started"
	TypeStatusUpdate       = "status_update"
	TypeInitialProcessing  = "initial_processing_complete"
	TypeContentChunk       = "content_chunk"
	TypeAIResponse         = "ai_response"
	TypeAIResponseComplete = "ai_response_completed"
	TypeStreamEnd          = "stream_end"
	TypeError              = "error"
)

// Frame is one decoded stream frame. The set of implementations is closed;
// callers switch on the concrete type.
type Frame interface {
	// WireType is the "type" tag the frame arrived with.
	WireType() string
	isFrame()
}

// TurnStarted opens a new turn and discards any previous one.
type TurnStarted struct{}

// StatusUpdate carries a free-text progress phrase. Message may be empty.
type StatusUpdate struct {
	Message string
}

// InitialEntities carries the first profile partial extracted from the
// user's message. Entities is nil when the payload had neither "entities"
// nor "current_slots".
type InitialEntities struct {
	Entities map[string]any
}

// ContentDelta is one fragment of answer text.
type ContentDelta struct {
	Type string
	Text string
}

// TurnCompleted closes the current turn.
type TurnCompleted struct {
	Type string

	// Text is the full answer, used only when no delta arrived.
	Text string

	Entities map[string]any
	Items    []ContextItem
	Sources  []ContextItem

	// Rejected counts list entries that were not valid item objects.
	Rejected int
}

// ServerError is an error reported by the server. Message may be empty.
type ServerError struct {
	Message string
}

// Unknown is any frame whose type tag is not recognised.
type Unknown struct {
	Type string
}

func (TurnStarted) WireType() string     { return TypeProcessingStarted }
func (StatusUpdate) WireType() string    { return TypeStatusUpdate }
func (InitialEntities) WireType() string { return TypeInitialProcessing }
func (f ContentDelta) WireType() string  { return f.Type }
func (f TurnCompleted) WireType() string { return f.Type }
func (ServerError) WireType() string     { return TypeError }
func (f Unknown) WireType() string       { return f.Type }

func (TurnStarted) isFrame()     {}
func (StatusUpdate) isFrame()    {}
func (InitialEntities) isFrame() {}
func (ContentDelta) isFrame()    {}
func (TurnCompleted) isFrame()   {}
func (ServerError) isFrame()     {}
func (Unknown) isFrame()         {}

// IsTerminalType reports whether a wire type ends a turn.
func IsTerminalType(wireType string) bool {
	switch wireType {
	case TypeAIResponseComplete, TypeStreamEnd, TypeError:
		return true
	}
	return false
}
