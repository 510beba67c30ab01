// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package protocol decodes the assistant's server-push stream.
//
// Two layers live here:
//
//	HTTP body → EventScanner → Event{Name, Data} → Decode → Frame
//
// EventScanner understands Server-Sent Events framing (multi-line data,
// comments, named events). Decode turns one event payload, a JSON object
// of the form {"type": "...", "data": {...}}, into one of the closed set of
// Frame variants:
//
//	processing_started                 → TurnStarted
//	status_update                      → StatusUpdate
//	initial_processing_complete        → InitialEntities
//	content_chunk, ai_response         → ContentDelta
//	ai_response_completed, stream_end  → TurnCompleted
//	error                              → ServerError
//	anything else                      → Unknown (ignored by callers)
//
// Malformed payloads produce a *DecodeError and never a partial Frame.
//
// Single Responsibility:
//
//	This package only parses. It performs no I/O of its own and holds no
//	session state, so it is safe for concurrent use.
package protocol
