// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/nishisan-dev/mini-redis/internal/store"
	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const defaultStatsInterval = 15 * time.Second

// StatsReporter logs store size and host CPU/memory usage on a schedule.
// It never touches the store's mutex for longer than a single snapshot read
// and never appears on the wire.
type StatsReporter struct {
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration
	cronExpr string
}

// NewStatsReporter builds a reporter. When cronExpr is empty, Run falls back
// to a fixed-interval ticker using interval (or defaultStatsInterval when
// interval is zero).
func NewStatsReporter(st *store.Store, interval time.Duration, cronExpr string, logger *slog.Logger) *StatsReporter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = defaultStatsInterval
	}
	return &StatsReporter{store: st, logger: logger, interval: interval, cronExpr: cronExpr}
}

// Run blocks until ctx is canceled, reporting on the configured schedule.
func (r *StatsReporter) Run(ctx context.Context) {
	if r.cronExpr != "" {
		r.runCron(ctx)
		return
	}
	r.runTicker(ctx)
}

func (r *StatsReporter) runTicker(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *StatsReporter) runCron(ctx context.Context) {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(r.cronExpr, r.report); err != nil {
		r.logger.Error("invalid stats cron expression, falling back to ticker", "expr", r.cronExpr, "error", err)
		r.runTicker(ctx)
		return
	}
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
}

func (r *StatsReporter) report() {
	keys, bytes := r.store.Len(), r.store.EstimatedBytes()

	fields := []any{"keys", keys, "estimated_bytes", bytes}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		fields = append(fields, "cpu_percent", pct[0])
	}
	if v, err := mem.VirtualMemory(); err == nil {
		fields = append(fields, "mem_percent", v.UsedPercent)
	}
	r.logger.Info("store stats", fields...)
}
