// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package server accepts TCP connections and dispatches RESP commands
// against a shared store.
package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nishisan-dev/mini-redis/internal/command"
	"github.com/nishisan-dev/mini-redis/internal/protocol"
	"github.com/nishisan-dev/mini-redis/internal/shutdown"
	"github.com/nishisan-dev/mini-redis/internal/store"
	"golang.org/x/time/rate"
)

// Handler processes one connection's commands against db, until the peer
// disconnects or shutdown is signaled.
type Handler struct {
	db      store.Db
	conn    *protocol.Conn
	sd      *shutdown.View
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewHandler builds a Handler for one accepted connection. limiter may be
// nil, in which case commands are never rate-limited.
func NewHandler(db store.Db, conn *protocol.Conn, sd *shutdown.View, limiter *rate.Limiter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{db: db, conn: conn, sd: sd, limiter: limiter, logger: logger}
}

// Run reads frames from the connection and applies them as commands until
// the peer closes the socket, a command enters subscriber submode and that
// submode exits, or the shutdown view fires.
func (h *Handler) Run(ctx context.Context) error {
	for !h.sd.IsShutdown() {
		frame, err := h.readFrameOrShutdown()
		if err != nil {
			if errors.Is(err, errShutdownDuringRead) {
				return nil
			}
			return err
		}
		if frame == nil {
			h.logger.Debug("peer closed the socket")
			return nil
		}

		cmd, err := command.FromFrame(*frame)
		if err != nil {
			return err
		}
		h.logger.Debug("received command", "name", cmd.Name())

		if h.limiter != nil {
			if err := h.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		if err := cmd.Apply(ctx, h.db, h.conn, h.sd); err != nil {
			return err
		}
	}
	return nil
}

var errShutdownDuringRead = errors.New("shutdown signaled while waiting for a frame")

// readFrameOrShutdown races a blocking frame read against the shutdown
// signal, mirroring the select used around Connection::read_frame in the
// original server.
func (h *Handler) readFrameOrShutdown() (*protocol.Frame, error) {
	type result struct {
		frame *protocol.Frame
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		frame, err := h.conn.ReadFrame()
		ch <- result{frame: frame, err: err}
	}()

	select {
	case r := <-ch:
		return r.frame, r.err
	case <-h.sd.Done():
		return nil, errShutdownDuringRead
	}
}
