// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package identity manages the installation's session identifier: generated
// once, persisted locally, and sent with every request.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/genie/cmd/genie/internal/store"
)

const (
	// StorageKey is the one key the client persists.
	StorageKey = "genie_session_id"

	// Prefix starts every generated identifier.
	Prefix = "genie-user-"
)

// KV is the subset of the state store identity needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetIfAbsent(ctx context.Context, key, value string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Generate returns a fresh identifier.
func Generate() string {
	return Prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Load returns the persisted identifier, creating and persisting one on
// first use. A stored empty value is treated as missing.
func Load(ctx context.Context, kv KV) (string, error) {
	id, err := kv.Get(ctx, StorageKey)
	switch {
	case err == nil && strings.TrimSpace(id) != "":
		return id, nil
	case err == nil:
		id = Generate()
		if err := kv.Set(ctx, StorageKey, id); err != nil {
			return "", fmt.Errorf("replace empty session id: %w", err)
		}
		return id, nil
	case errors.Is(err, store.ErrNotFound):
		id, err = kv.SetIfAbsent(ctx, StorageKey, Generate())
		if err != nil {
			return "", fmt.Errorf("persist session id: %w", err)
		}
		return id, nil
	default:
		return "", fmt.Errorf("read session id: %w", err)
	}
}

// Peek returns the persisted identifier without creating one.
func Peek(ctx context.Context, kv KV) (string, bool, error) {
	id, err := kv.Get(ctx, StorageKey)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read session id: %w", err)
	}
	return id, strings.TrimSpace(id) != "", nil
}

// Reset discards the identifier and persists a new one. The server treats
// the new identifier as a different user.
func Reset(ctx context.Context, kv KV) (string, error) {
	if err := kv.Delete(ctx, StorageKey); err != nil {
		return "", fmt.Errorf("delete session id: %w", err)
	}
	id := Generate()
	if err := kv.Set(ctx, StorageKey, id); err != nil {
		return "", fmt.Errorf("persist session id: %w", err)
	}
	return id, nil
}
