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

// Ping checks the connection is alive, or round-trips an optional message.
type Ping struct {
	msg    string
	hasMsg bool
}

// NewPing builds a Ping, optionally carrying msg back in the response.
func NewPing(msg string, hasMsg bool) Ping { return Ping{msg: msg, hasMsg: hasMsg} }

func parsePing(p *protocol.Parse) (Command, error) {
	msg, err := p.NextString()
	switch err {
	case nil:
		return Ping{msg: msg, hasMsg: true}, nil
	case protocol.ErrEndOfStream:
		return Ping{}, nil
	default:
		return nil, err
	}
}

func (c Ping) Name() string { return "ping" }

func (c Ping) Apply(_ context.Context, _ store.Db, conn *protocol.Conn, _ *shutdown.View) error {
	var resp protocol.Frame
	if c.hasMsg {
		resp = protocol.Bulk([]byte(c.msg))
	} else {
		resp = protocol.Simple("PONG")
	}
	slog.Debug("ping cmd applied", "response", resp.String())
	return conn.WriteFrame(&resp)
}

// IntoFrame encodes the command for the client side.
func (c Ping) IntoFrame() (protocol.Frame, error) {
	frame := protocol.Array()
	if err := frame.PushBulk([]byte("ping")); err != nil {
		return protocol.Frame{}, err
	}
	if c.hasMsg {
		if err := frame.PushBulk([]byte(c.msg)); err != nil {
			return protocol.Frame{}, err
		}
	}
	return frame, nil
}
