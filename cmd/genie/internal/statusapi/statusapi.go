// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package statusapi serves a small local HTTP endpoint describing a running
// chat session: connection health, the merged profile, and metrics.
//
// Routes:
//
//	GET /healthz   connection and turn state
//	GET /profile   merged profile snapshot with display labels
//	GET /metrics   Prometheus exposition
//
// The server binds to loopback by default and is read-only.
package statusapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/genie/cmd/genie/internal/profile"
	"github.com/AleutianAI/genie/cmd/genie/internal/session"
)

// Source is the session being described. *session.Controller implements it.
type Source interface {
	SessionID() string
	State() session.State
	Profile() profile.Snapshot
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	SessionID    string `json:"session_id"`
	Connection   string `json:"connection"`
	InputEnabled bool   `json:"input_enabled"`
	InFlight     bool   `json:"in_flight"`
	Stage        string `json:"stage"`
	StageStatus  string `json:"stage_status"`
}

// FieldView is one labelled profile field.
type FieldView struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ProfileResponse is the body of GET /profile.
type ProfileResponse struct {
	SessionID   string           `json:"session_id"`
	Fields      []FieldView      `json:"fields"`
	Placeholder string           `json:"placeholder,omitempty"`
	Values      profile.Snapshot `json:"values"`
}

// NewRouter builds the gin engine. metrics may be nil, in which case
// /metrics is not registered.
func NewRouter(src Source, metrics http.Handler, version string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("genie-status"))

	router.GET("/healthz", func(c *gin.Context) {
		st := src.State()
		stage := "idle"
		if !st.Timeline.Idle {
			stage = st.Timeline.Active.String()
		}
		c.JSON(http.StatusOK, HealthResponse{
			Status:       "ok",
			Version:      version,
			SessionID:    src.SessionID(),
			Connection:   st.Connection.String(),
			InputEnabled: st.InputEnabled,
			InFlight:     st.InFlight,
			Stage:        stage,
			StageStatus:  st.Timeline.Status,
		})
	})

	router.GET("/profile", func(c *gin.Context) {
		snap := src.Profile()
		resp := ProfileResponse{
			SessionID: src.SessionID(),
			Fields:    []FieldView{},
			Values:    snap,
		}
		for _, f := range snap.Fields() {
			resp.Fields = append(resp.Fields, FieldView{Label: f.Label, Value: f.Value})
		}
		if len(resp.Fields) == 0 {
			resp.Placeholder = profile.Placeholder
		}
		c.JSON(http.StatusOK, resp)
	})

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	return router
}

// Server runs the status endpoint.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer binds handler to addr.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With("component", "statusapi"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status endpoint listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
