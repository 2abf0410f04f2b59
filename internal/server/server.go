// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/nishisan-dev/mini-redis/internal/config"
	"github.com/nishisan-dev/mini-redis/internal/store"
)

// Run listens on cfg's configured port and blocks until ctx is canceled.
func Run(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) error {
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	defer ln.Close()

	logger.Info("server listening", "address", ln.Addr().String())
	return RunWithListener(ctx, ln, cfg, logger)
}

// RunWithListener runs the server against an already-open listener, letting
// tests bind an ephemeral port (127.0.0.1:0) ahead of time.
func RunWithListener(ctx context.Context, ln net.Listener, cfg *config.ServerConfig, logger *slog.Logger) error {
	mode, err := store.ParseMode(cfg.Compression.Mode)
	if err != nil {
		return fmt.Errorf("configuring compression: %w", err)
	}
	st := store.NewWithCompressor(store.NewCompressor(mode, cfg.Compression.MinSizeBytes))

	interval := time.Duration(cfg.Stats.IntervalSeconds) * time.Second
	reporter := NewStatsReporter(st, interval, cfg.Stats.CronExpr, logger)
	go reporter.Run(ctx)

	rl := RateLimitConfig{
		CommandsPerSecond: cfg.RateLimit.CommandsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}
	l := NewListener(ln, st, cfg.Server.MaxConnections, rl, logger)
	return l.Run(ctx)
}
