// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package profile accumulates the user's profile from partial entity
// updates.
//
// Merges are key-wise overwrites: a key absent from an update keeps its
// previous value, and an empty update changes nothing. After each merge the
// derived intake description is recomputed from month and year.
//
// # Thread Safety
//
// Accumulator.Merge must be called from a single goroutine. Current may be
// called from any goroutine; snapshots are immutable.
package profile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Known field keys, as the server names them.
const (
	KeyNationality  = "studentNationality"
	KeyDestination  = "desiredLocation"
	KeyCourseLevel  = "preferredCourseLevel"
	KeySubjects     = "subjects"
	KeyIntakeMonth  = "preferredIntakeMonth"
	KeyIntakeYear   = "preferredIntakeYear"
	KeyIntakeDerive = "intake_display"
)

// Field is one labelled line of the profile panel.
type Field struct {
	Key   string
	Label string
	Value string
}

// fieldLabels is the panel order.
var fieldLabels = []Field{
	{Key: KeyNationality, Label: "Nationality"},
	{Key: KeyDestination, Label: "Destination"},
	{Key: KeyCourseLevel, Label: "Degree Level"},
	{Key: KeySubjects, Label: "Study Subject"},
	{Key: KeyIntakeDerive, Label: "Preferred Intake"},
}

// Placeholder is shown while no known field has a value.
const Placeholder = "Building your profile..."

// =============================================================================
// Value
// =============================================================================

// Value is a scalar or a list of scalars. The zero Value is an empty scalar.
type Value struct {
	scalar string
	list   []string
	isList bool
}

// Scalar builds a scalar Value.
func Scalar(s string) Value { return Value{scalar: s} }

// List builds a list Value. The slice is copied.
func List(items ...string) Value {
	return Value{list: append([]string(nil), items...), isList: true}
}

// IsList reports whether the value was supplied as a list.
func (v Value) IsList() bool { return v.isList }

// Items returns the list elements, or the scalar as a one-element list when
// it is non-empty.
func (v Value) Items() []string {
	if v.isList {
		return append([]string(nil), v.list...)
	}
	if v.scalar == "" {
		return nil
	}
	return []string{v.scalar}
}

// String renders lists comma-joined.
func (v Value) String() string {
	if v.isList {
		return strings.Join(v.list, ", ")
	}
	return v.scalar
}

// IsEmpty reports whether the value renders as nothing.
func (v Value) IsEmpty() bool {
	return v.String() == ""
}

// MarshalJSON keeps the scalar-or-list shape.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.isList {
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	}
	return json.Marshal(v.scalar)
}

// valueOf converts a decoded JSON value. Numbers keep their text, null
// becomes an empty scalar, nested objects are rendered as compact JSON.
func valueOf(raw any) Value {
	switch x := raw.(type) {
	case []any:
		items := make([]string, 0, len(x))
		for _, elem := range x {
			if elem == nil {
				continue
			}
			items = append(items, scalarText(elem))
		}
		return Value{list: items, isList: true}
	case []string:
		return List(x...)
	default:
		return Scalar(scalarText(raw))
	}
}

func scalarText(raw any) string {
	switch x := raw.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot is an immutable view of the merged profile.
type Snapshot struct {
	values map[string]Value
}

// Get returns the value stored under key.
func (s Snapshot) Get(key string) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Text is Get rendered as display text; "" when absent.
func (s Snapshot) Text(key string) string {
	return s.values[key].String()
}

// Len is the number of stored keys, including the derived one.
func (s Snapshot) Len() int { return len(s.values) }

// Keys returns the stored keys sorted.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fields returns the labelled panel fields that currently have a value, in
// panel order.
func (s Snapshot) Fields() []Field {
	var out []Field
	for _, f := range fieldLabels {
		if text := s.Text(f.Key); text != "" {
			f.Value = text
			out = append(out, f)
		}
	}
	return out
}

// IsEmpty reports whether no panel field has a value.
func (s Snapshot) IsEmpty() bool {
	return len(s.Fields()) == 0
}

// Map returns a copy suitable for JSON encoding.
func (s Snapshot) Map() map[string]Value {
	out := make(map[string]Value, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the snapshot as an object.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// =============================================================================
// Accumulator
// =============================================================================

// Accumulator holds the running profile.
type Accumulator struct {
	values  map[string]Value
	current atomic.Pointer[Snapshot]
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	a := &Accumulator{values: make(map[string]Value)}
	a.publish()
	return a
}

// Merge overwrites the keys present in partial and recomputes the derived
// intake description. It reports false, and changes nothing, when partial
// is empty. A supplied intake_display is ignored; it is always derived.
func (a *Accumulator) Merge(partial map[string]any) (Snapshot, bool) {
	if len(partial) == 0 {
		return a.Current(), false
	}

	for key, raw := range partial {
		if key == KeyIntakeDerive {
			continue
		}
		a.values[key] = valueOf(raw)
	}
	a.deriveIntake()
	return a.publish(), true
}

// Current returns the latest snapshot. Safe from any goroutine.
func (a *Accumulator) Current() Snapshot {
	return *a.current.Load()
}

func (a *Accumulator) deriveIntake() {
	month := a.values[KeyIntakeMonth].String()
	year := a.values[KeyIntakeYear].String()
	if month == "" && year == "" {
		return
	}
	a.values[KeyIntakeDerive] = Scalar(strings.TrimSpace(month + " " + year))
}

func (a *Accumulator) publish() Snapshot {
	values := make(map[string]Value, len(a.values))
	for k, v := range a.values {
		values[k] = v
	}
	snap := &Snapshot{values: values}
	a.current.Store(snap)
	return *snap
}
