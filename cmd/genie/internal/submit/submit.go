// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package submit posts user messages to the assistant.
//
// A submission is fire-and-forget: the response body is never read. The
// answer arrives later on the push stream, so the only thing Send reports is
// whether the request reached the server.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/genie/pkg/telemetry"
)

// ChatPath is the submission endpoint under the base URL.
const ChatPath = "/chat"

// Defaults for the request metadata.
const (
	DefaultPlatform = "genie-pro-v3"
	DefaultTier     = "premium"
)

var (
	// ErrEmptyMessage is returned for blank input. Nothing is sent.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrUnexpectedStatus is wrapped by StatusError.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat endpoint returned %s", e.Status)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Metadata tags every request with the client's platform and tier.
type Metadata struct {
	Platform string `json:"platform" validate:"required"`
	Tier     string `json:"tier" validate:"required"`
}

// Request is the JSON body of a submission.
type Request struct {
	SessionID string   `json:"session_id" validate:"required"`
	Message   string   `json:"message" validate:"required"`
	Metadata  Metadata `json:"metadata"`
}

// Normalize trims text and rejects blank input.
func Normalize(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	return trimmed, nil
}

// Config configures a Client. BaseURL is required.
type Config struct {
	BaseURL  string
	Client   *http.Client
	Metadata Metadata

	// RatePerSecond and Burst throttle submissions client-side. Zero
	// RatePerSecond disables throttling.
	RatePerSecond float64
	Burst         int

	Logger  *slog.Logger
	Metrics *telemetry.ClientMetrics
}

// Client sends submissions. Safe for concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
	metadata Metadata
	limiter  *rate.Limiter
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *telemetry.ClientMetrics
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("submit: base url is required")
	}

	c := &Client{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + ChatPath,
		http:     cfg.Client,
		metadata: cfg.Metadata,
		validate: validator.New(),
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.metadata.Platform == "" {
		c.metadata.Platform = DefaultPlatform
	}
	if c.metadata.Tier == "" {
		c.metadata.Tier = DefaultTier
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	c.logger = c.logger.With("component", "submit")
	return c, nil
}

// Endpoint is the URL submissions are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// Send posts message for sessionID. Any 2xx status is success; the body is
// discarded unread.
func (c *Client) Send(ctx context.Context, sessionID, message string) (err error) {
	message, err = Normalize(message)
	if err != nil {
		return err
	}

	req := Request{SessionID: sessionID, Message: message, Metadata: c.metadata}
	if err := c.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid submission: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("submission throttled: %w", err)
		}
	}

	ctx, span := telemetry.StartSpan(ctx, "submit.send")
	defer span.End()
	span.SetAttributes(attribute.Int("genie.message_bytes", len(message)))

	start := time.Now()
	defer func() {
		outcome := "ok"
		var statusErr *StatusError
		switch {
		case errors.As(err, &statusErr):
			outcome = "status"
		case err != nil:
			outcome = "error"
		}
		c.metrics.RecordSubmission(ctx, outcome, time.Since(start).Seconds())
		if err != nil {
			telemetry.RecordError(span, err)
			c.logger.Error("submission failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
			return
		}
		telemetry.SetSpanOK(span)
		c.logger.Info("submission accepted", "bytes", len(message), "duration_ms", time.Since(start).Milliseconds())
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build submission request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	telemetry.InjectContext(ctx, httpReq.Header)

	c.logger.Debug("posting message", "message", message)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}
