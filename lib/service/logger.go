// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

// Package service provides the HTTP surface of the archive ingestion
// pipeline: listener lifecycle, request routing, and the mapping from
// pipeline failures to HTTP status codes.
package service

import (
	"log/slog"
	"os"
)

// NewLogger creates the standard service logger: structured JSON to
// stderr at info level. Also installs it as the slog default so
// library code logging through slog ends up in the same place.
func NewLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}
