// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"strings"
)

// Card defaults for fields a recommendation does not carry.
const (
	CardHeader          = "Course Opportunity"
	DefaultCardTitle    = "Academic Listing"
	DefaultCardSubtitle = "Recommendation"
	DefaultCurrency     = "GBP"
	VariableFees        = "Variable Fees"
	DefaultCardSummary  = "Matching your professional and educational goals."

	// SummaryLimit is the number of characters of summary a card shows.
	SummaryLimit = 100
)

// CardFields is the raw, all-optional input for a recommendation card.
type CardFields struct {
	Name          string
	Institution   string
	Location      string
	Fee           string
	Currency      string
	CourseSummary string
	Description   string
}

// Card is the display form of one recommendation. Every field is non-empty.
type Card struct {
	Title    string
	Subtitle string
	Fee      string
	Summary  string
}

// NewCard fills display fields from f, falling back field by field:
//
//	Title:    Name, Institution, "Academic Listing"
//	Subtitle: Institution, Location, "Recommendation"
//	Fee:      "<Currency or GBP> <Fee>", or "Variable Fees" without a fee
//	Summary:  CourseSummary, Description, default text; cut to SummaryLimit
//	          characters and always followed by "..."
func NewCard(f CardFields) Card {
	c := Card{
		Title:    firstNonEmpty(f.Name, f.Institution, DefaultCardTitle),
		Subtitle: firstNonEmpty(f.Institution, f.Location, DefaultCardSubtitle),
		Fee:      VariableFees,
	}
	if fee := strings.TrimSpace(f.Fee); fee != "" {
		c.Fee = firstNonEmpty(f.Currency, DefaultCurrency) + " " + fee
	}
	summary := firstNonEmpty(f.CourseSummary, f.Description, DefaultCardSummary)
	c.Summary = truncateRunes(summary, SummaryLimit) + "..."
	return c
}

// RenderCard formats a card for the given personality level. Machine output
// is a single CARD line with tab-separated fields.
func RenderCard(c Card, level PersonalityLevel) string {
	switch level {
	case PersonalityMachine:
		return fmt.Sprintf("CARD: %s\t%s\t%s\t%s", c.Title, c.Subtitle, c.Fee, c.Summary)
	case PersonalityMinimal:
		return fmt.Sprintf("%s %s (%s) %s", IconBullet, c.Title, c.Subtitle, c.Fee)
	}

	var b strings.Builder
	b.WriteString(Styles.Muted.Render(CardHeader))
	b.WriteString("\n")
	b.WriteString(Styles.Highlight.Render(c.Title))
	b.WriteString("\n")
	b.WriteString(Styles.Subtitle.Render(c.Subtitle))
	b.WriteString("\n\n")
	b.WriteString(c.Summary)
	b.WriteString("\n\n")
	b.WriteString(Styles.Success.Render("Est. Fee: " + c.Fee))
	return Styles.CardBox.Render(b.String())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
