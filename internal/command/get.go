// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package command

import (
	"context"
	"log/slog"

	"github.com/nishisan-dev/mini-redis/internal/protocol"
	"github.com/nishisan-dev/mini-redis/internal/shutdown"
	"github.com/nishisan-dev/mini-redis/internal/store"
)

// Get fetches key's value, or Null if absent.
type Get struct {
	key string
}

// NewGet builds a Get for key.
func NewGet(key string) Get { return Get{key: key} }

// Key returns the key being read.
func (c Get) Key() string { return c.key }

func parseGet(p *protocol.Parse) (Command, error) {
	key, err := p.NextString()
	if err != nil {
		return nil, err
	}
	return Get{key: key}, nil
}

func (c Get) Name() string { return "get" }

func (c Get) Apply(_ context.Context, db store.Db, conn *protocol.Conn, _ *shutdown.View) error {
	var resp protocol.Frame
	if value, ok := db.Get(c.key); ok {
		resp = protocol.Bulk(value)
	} else {
		resp = protocol.Null()
	}
	slog.Debug("get cmd applied", "response", resp.String())
	return conn.WriteFrame(&resp)
}

// IntoFrame encodes the command for the client side.
func (c Get) IntoFrame() (protocol.Frame, error) {
	frame := protocol.Array()
	if err := frame.PushBulk([]byte("get")); err != nil {
		return protocol.Frame{}, err
	}
	if err := frame.PushBulk([]byte(c.key)); err != nil {
		return protocol.Frame{}, err
	}
	return frame, nil
}
