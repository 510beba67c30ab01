// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ClientMetrics holds the instruments recorded by the session controller.
//
// All Record* methods are nil-safe so callers can hold a nil *ClientMetrics
// when metrics are disabled.
type ClientMetrics struct {
	FramesTotal        metric.Int64Counter
	DecodeErrorsTotal  metric.Int64Counter
	ConnectsTotal      metric.Int64Counter
	DisconnectsTotal   metric.Int64Counter
	SubmissionsTotal   metric.Int64Counter
	SubmitDuration     metric.Float64Histogram
	ContextItemsTotal  metric.Int64Counter
	TurnsCompleted     metric.Int64Counter
	AbandonedTurnTotal metric.Int64Counter
}

// NewClientMetrics creates every instrument on meter.
func NewClientMetrics(meter metric.Meter) (*ClientMetrics, error) {
	m := &ClientMetrics{}
	var err error

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
		unit   string
	}{
		{&m.FramesTotal, "genie_stream_frames_total", "Stream frames received by type", "{frame}"},
		{&m.DecodeErrorsTotal, "genie_stream_decode_errors_total", "Stream frames that failed to decode", "{frame}"},
		{&m.ConnectsTotal, "genie_stream_connects_total", "Successful push channel opens", "{connection}"},
		{&m.DisconnectsTotal, "genie_stream_disconnects_total", "Push channel failures", "{connection}"},
		{&m.SubmissionsTotal, "genie_submissions_total", "Outbound message submissions by outcome", "{request}"},
		{&m.ContextItemsTotal, "genie_context_items_total", "Context items delivered to the presenter", "{item}"},
		{&m.TurnsCompleted, "genie_turns_completed_total", "Turns closed by a completion frame", "{turn}"},
		{&m.AbandonedTurnTotal, "genie_turns_abandoned_total", "In-flight turns dropped by a reset or connection loss", "{turn}"},
	}
	for _, c := range counters {
		*c.target, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", c.name, err)
		}
	}

	m.SubmitDuration, err = meter.Float64Histogram(
		"genie_submit_duration_seconds",
		metric.WithDescription("Outbound submission round-trip time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create genie_submit_duration_seconds: %w", err)
	}

	return m, nil
}

// NewGlobalClientMetrics builds instruments on the global meter provider.
// Before Init runs the global provider is a no-op, which is fine.
func NewGlobalClientMetrics() (*ClientMetrics, error) {
	return NewClientMetrics(otel.Meter(InstrumentationName))
}

func (m *ClientMetrics) RecordFrame(ctx context.Context, frameType string) {
	if m == nil {
		return
	}
	m.FramesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", frameType)))
}

func (m *ClientMetrics) RecordDecodeError(ctx context.Context) {
	if m == nil {
		return
	}
	m.DecodeErrorsTotal.Add(ctx, 1)
}

func (m *ClientMetrics) RecordConnect(ctx context.Context, transport string) {
	if m == nil {
		return
	}
	m.ConnectsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transport)))
}

func (m *ClientMetrics) RecordDisconnect(ctx context.Context, transport string) {
	if m == nil {
		return
	}
	m.DisconnectsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transport)))
}

// RecordSubmission records one outbound POST; outcome is "ok" or "error".
func (m *ClientMetrics) RecordSubmission(ctx context.Context, outcome string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.SubmissionsTotal.Add(ctx, 1, attrs)
	m.SubmitDuration.Record(ctx, seconds, attrs)
}

// RecordContextItem records one item; origin is "items" or "sources".
func (m *ClientMetrics) RecordContextItem(ctx context.Context, origin string) {
	if m == nil {
		return
	}
	m.ContextItemsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("origin", origin)))
}

func (m *ClientMetrics) RecordTurnCompleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.TurnsCompleted.Add(ctx, 1)
}

func (m *ClientMetrics) RecordTurnAbandoned(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.AbandonedTurnTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
