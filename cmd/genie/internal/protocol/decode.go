// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingType is wrapped by DecodeError when "type" is absent or empty.
	ErrMissingType = errors.New("frame has no type")

	// ErrNotObject is wrapped by DecodeError when the frame or its "data"
	// member is not a JSON object.
	ErrNotObject = errors.New("expected JSON object")
)

// DecodeError reports a frame that could not be decoded. Type is the wire
// type tag when it could be read, so callers can still react to a broken
// terminal frame.
type DecodeError struct {
	Type string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("decode frame: %v", e.Err)
	}
	return fmt.Sprintf("decode %s frame: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses one frame payload.
//
// Unknown type tags decode to Unknown with a nil error. Every other failure
// is a *DecodeError.
func Decode(payload []byte) (Frame, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if envelope == nil {
		return nil, &DecodeError{Err: ErrNotObject}
	}

	var wireType string
	if raw, ok := envelope["type"]; ok {
		if err := json.Unmarshal(raw, &wireType); err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("type: %w", err)}
		}
	}
	if wireType == "" {
		return nil, &DecodeError{Err: ErrMissingType}
	}

	frame, err := decodeKind(wireType, envelope)
	if err != nil {
		return nil, &DecodeError{Type: wireType, Err: err}
	}
	return frame, nil
}

func decodeKind(wireType string, envelope map[string]json.RawMessage) (Frame, error) {
	data, err := dataMember(envelope)
	if err != nil {
		return nil, err
	}

	switch wireType {
	case TypeProcessingStarted:
		return TurnStarted{}, nil

	case TypeStatusUpdate:
		var body struct {
			Message string `json:"message"`
		}
		if err := unmarshal(data, &body); err != nil {
			return nil, err
		}
		return StatusUpdate{Message: body.Message}, nil

	case TypeInitialProcessing:
		var body struct {
			Entities     map[string]any `json:"entities"`
			CurrentSlots map[string]any `json:"current_slots"`
		}
		if err := unmarshal(data, &body); err != nil {
			return nil, err
		}
		entities := body.Entities
		if entities == nil {
			entities = body.CurrentSlots
		}
		return InitialEntities{Entities: entities}, nil

	case TypeContentChunk, TypeAIResponse:
		var body struct {
			Text      string `json:"text"`
			TextChunk string `json:"text_chunk"`
		}
		if err := unmarshal(data, &body); err != nil {
			return nil, err
		}
		outer, err := stringMember(envelope, "text_chunk")
		if err != nil {
			return nil, err
		}
		return ContentDelta{Type: wireType, Text: firstNonEmpty(body.Text, body.TextChunk, outer)}, nil

	case TypeAIResponseComplete, TypeStreamEnd:
		return decodeCompleted(wireType, data)

	case TypeError:
		var body struct {
			Message string `json:"message"`
		}
		if err := unmarshal(data, &body); err != nil {
			return nil, err
		}
		outer, err := stringMember(envelope, "message")
		if err != nil {
			return nil, err
		}
		return ServerError{Message: firstNonEmpty(body.Message, outer)}, nil

	default:
		return Unknown{Type: wireType}, nil
	}
}

func decodeCompleted(wireType string, data json.RawMessage) (Frame, error) {
	var body struct {
		Text     string            `json:"text"`
		Entities map[string]any    `json:"entities"`
		Items    []json.RawMessage `json:"items"`
		Sources  []json.RawMessage `json:"sources"`
	}
	if err := unmarshal(data, &body); err != nil {
		return nil, err
	}

	frame := TurnCompleted{
		Type:     wireType,
		Text:     body.Text,
		Entities: body.Entities,
	}
	var rejected int
	frame.Items, rejected = decodeItems(body.Items)
	frame.Rejected += rejected
	frame.Sources, rejected = decodeItems(body.Sources)
	frame.Rejected += rejected
	return frame, nil
}

// decodeItems keeps list order. Null entries are skipped silently, entries
// that are not item objects are skipped and counted.
func decodeItems(raw []json.RawMessage) ([]ContextItem, int) {
	if len(raw) == 0 {
		return nil, 0
	}
	items := make([]ContextItem, 0, len(raw))
	rejected := 0
	for _, entry := range raw {
		trimmed := bytes.TrimSpace(entry)
		if bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		if len(trimmed) == 0 || trimmed[0] != '{' {
			rejected++
			continue
		}
		var item ContextItem
		if err := json.Unmarshal(trimmed, &item); err != nil {
			rejected++
			continue
		}
		items = append(items, item)
	}
	return items, rejected
}

// dataMember returns the "data" object, or "{}" when it is absent or null.
func dataMember(envelope map[string]json.RawMessage) (json.RawMessage, error) {
	raw, ok := envelope["data"]
	if !ok {
		return json.RawMessage("{}"), nil
	}
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}"), nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("data: %w", ErrNotObject)
	}
	return trimmed, nil
}

// stringMember reads an optional top-level string member.
func stringMember(envelope map[string]json.RawMessage, key string) (string, error) {
	raw, ok := envelope[key]
	if !ok {
		return "", nil
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}

// unmarshal decodes with UseNumber so numeric entity values such as an
// intake year keep their exact text.
func unmarshal(data json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
