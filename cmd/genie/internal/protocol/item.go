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
	"fmt"
	"strconv"
)

// ContextItem is one recommendation or source record. Every field is
// optional and items carry no identity: two equal items are still two
// items.
type ContextItem struct {
	Name            string       `json:"name,omitempty"`
	Institution     *Institution `json:"institution,omitempty"`
	Location        FlexString   `json:"location,omitempty"`
	ApproxAnnualFee FlexString   `json:"approxAnnualFee,omitempty"`
	Currency        string       `json:"currency,omitempty"`
	CourseSummary   string       `json:"courseSummary,omitempty"`
	Description     string       `json:"description,omitempty"`
}

// Institution is the nested provider of a ContextItem.
type Institution struct {
	Name string `json:"name,omitempty"`
}

// InstitutionName returns the nested institution name or "".
func (c ContextItem) InstitutionName() string {
	if c.Institution == nil {
		return ""
	}
	return c.Institution.Name
}

// FlexString accepts a JSON string, number, or boolean and keeps its text.
// Fees in particular arrive either as 18500 or "18,500".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case 't', 'f':
		b, err := strconv.ParseBool(string(data))
		if err != nil {
			return fmt.Errorf("flex string: %w", err)
		}
		*f = FlexString(strconv.FormatBool(b))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("flex string: expected scalar, got %s", data)
		}
		*f = FlexString(n.String())
	}
	return nil
}

func (f FlexString) String() string { return string(f) }
