// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session is the streaming session controller.
//
// A Controller owns one session: the connection supervisor, the stream
// event router (with its answer assembler, progress timeline, and profile
// accumulator), and the submission client. It has an explicit constructor
// and an explicit, idempotent Close.
//
// # Architecture
//
//	┌──────────────┐  frames, open/lost   ┌──────────────────────────────┐
//	│  Supervisor  │─────────────────────▶│                              │
//	└──────────────┘                      │   inbox ──▶ event loop       │
//	┌──────────────┐  start / failed      │             │                │
//	│   Submit()   │─────────────────────▶│             ▼                │
//	└──────┬───────┘                      │           Router ──▶ events   │
//	       │ POST /chat                   └─────────────────────┬────────┘
//	       ▼                                                    ▼
//	    server ─────────── push stream ───────────────▶    Presenter
//
// # Concurrency
//
// Every trigger is a message on one inbox channel. A single loop goroutine
// takes them in arrival order and processes each to completion, so router
// state is only ever touched by that goroutine. Submit blocks only on the
// outbound POST. State, Profile and SessionID may be called from any
// goroutine.
//
// # Known Limitation
//
// The stream has no resume cursor. When the channel drops, an in-flight
// answer is abandoned and the reconnected channel starts fresh.
package session
