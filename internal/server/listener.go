// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/nishisan-dev/mini-redis/internal/protocol"
	"github.com/nishisan-dev/mini-redis/internal/shutdown"
	"github.com/nishisan-dev/mini-redis/internal/store"
	"golang.org/x/time/rate"
)

// maxAcceptBackoff is the ceiling on the exponential accept-retry delay;
// once a failed accept would have to wait longer than this, Listener.accept
// gives up and returns the error instead of retrying indefinitely.
const maxAcceptBackoff = 64 * time.Second

// Listener accepts inbound TCP connections, bounds concurrent connections
// with a permit channel, and spawns a Handler per connection.
type Listener struct {
	ln        net.Listener
	dbGuard   store.DbDropGuard
	permits   chan struct{}
	notifier  *shutdown.Notifier
	rateLimit RateLimitConfig
	logger    *slog.Logger
}

// RateLimitConfig mirrors config.RateLimitConfig without importing the
// config package, keeping internal/server decoupled from internal/config.
type RateLimitConfig struct {
	CommandsPerSecond float64
	Burst             int
}

// NewListener wraps ln with the bookkeeping needed to run connections
// against store, bounding concurrency to maxConnections.
func NewListener(ln net.Listener, st *store.Store, maxConnections int, rl RateLimitConfig, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConnections <= 0 {
		maxConnections = 250
	}
	return &Listener{
		ln:        ln,
		dbGuard:   store.NewDbDropGuard(st, logger),
		permits:   make(chan struct{}, maxConnections),
		notifier:  shutdown.New(),
		rateLimit: rl,
		logger:    logger,
	}
}

// Run accepts connections until ctx is canceled. It blocks until every
// spawned handler has returned.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("accepting inbound connections", "address", l.ln.Addr().String())

	go func() {
		<-ctx.Done()
		l.logger.Info("shutting down listener")
		l.notifier.Shutdown()
		l.ln.Close()
	}()

	var runErr error
	for {
		select {
		case l.permits <- struct{}{}:
		case <-ctx.Done():
			l.notifier.Wait()
			l.dbGuard.Close()
			return runErr
		}

		conn, err := l.accept(ctx)
		if err != nil {
			<-l.permits
			if ctx.Err() != nil {
				l.notifier.Wait()
				l.dbGuard.Close()
				return runErr
			}
			runErr = err
			l.notifier.Wait()
			l.dbGuard.Close()
			return runErr
		}

		done := l.notifier.Track()
		go l.serve(ctx, conn, done)
	}
}

func (l *Listener) serve(ctx context.Context, conn net.Conn, done func()) {
	defer done()
	defer func() { <-l.permits }()
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	protoConn := protocol.NewConn(conn)
	view := l.notifier.View()

	var limiter *rate.Limiter
	if l.rateLimit.CommandsPerSecond > 0 {
		burst := l.rateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(l.rateLimit.CommandsPerSecond), burst)
	}

	h := NewHandler(l.dbGuard.Db(), protoConn, view, limiter, l.logger)
	if err := h.Run(ctx); err != nil {
		l.logger.Error("connection error", "error", err, "remote", conn.RemoteAddr())
	}
}

// accept retries on transient errors with exponential backoff: 1s, 2s, 4s,
// ... doubling after each failure. Once the next delay would exceed
// maxAcceptBackoff, the last error is returned instead of retried.
func (l *Listener) accept(ctx context.Context) (net.Conn, error) {
	backoff := 1 * time.Second
	for {
		conn, err := l.ln.Accept()
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, err
		}
		if backoff > maxAcceptBackoff {
			l.logger.Error("accept has failed too many times", "error", err)
			return nil, fmt.Errorf("accepting connections: %w", err)
		}
		l.logger.Error("failed to accept socket", "error", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, err
		}
		backoff *= 2
	}
}
