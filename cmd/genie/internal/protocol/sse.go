// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package protocol

import (
	"bufio"
	"io"
	"strings"
)

// MaxEventLineBytes bounds a single SSE line. Answers arrive as many small
// deltas, but completion frames carrying item lists can be large.
const MaxEventLineBytes = 1 << 20

// Event is one dispatched Server-Sent Event.
type Event struct {
	// Name is the "event:" field, "message" when absent.
	Name string

	// Data is the "data:" lines joined with "\n".
	Data string

	// ID is the last "id:" field seen. The stream has no resume cursor, so
	// it is informational only.
	ID string
}

// IsMessage reports whether the event is an unnamed message event, the
// only kind that carries protocol frames.
func (e Event) IsMessage() bool {
	return e.Name == "" || e.Name == "message"
}

// EventScanner splits an SSE byte stream into events.
//
// Lines starting with ":" are comments. "retry:" is accepted and ignored:
// the reconnect delay is owned by the supervisor. Not safe for concurrent
// use; one scanner per stream.
type EventScanner struct {
	scanner *bufio.Scanner
	lastID  string
}

// NewEventScanner reads events from r. The caller closes r.
func NewEventScanner(r io.Reader) *EventScanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxEventLineBytes)
	return &EventScanner{scanner: scanner}
}

// Next returns the next event with a non-empty data buffer. It returns
// io.EOF when the stream ends cleanly; a trailing event without its blank
// line terminator is discarded, matching browser EventSource behavior.
func (s *EventScanner) Next() (Event, error) {
	var name string
	var data strings.Builder
	hasData := false

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if !hasData {
				name = ""
				continue
			}
			return Event{Name: eventName(name), Data: data.String(), ID: s.lastID}, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			name = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				s.lastID = value
			}
		case "retry":
		}
	}

	if err := s.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

func splitField(line string) (string, string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}

func eventName(name string) string {
	if name == "" {
		return "message"
	}
	return name
}
