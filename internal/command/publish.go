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

// Publish sends message to every current subscriber of channel.
type Publish struct {
	channel string
	message []byte
}

// NewPublish builds a Publish for channel/message.
func NewPublish(channel string, message []byte) Publish {
	return Publish{channel: channel, message: message}
}

func parsePublish(p *protocol.Parse) (Command, error) {
	channel, err := p.NextString()
	if err != nil {
		return nil, err
	}
	message, err := p.NextBytes()
	if err != nil {
		return nil, err
	}
	return Publish{channel: channel, message: message}, nil
}

func (c Publish) Name() string { return "publish" }

func (c Publish) Apply(_ context.Context, db store.Db, conn *protocol.Conn, _ *shutdown.View) error {
	n := db.Publish(c.channel, c.message)
	resp := protocol.Integer(uint64(n))
	slog.Debug("publish cmd applied", "response", resp.String())
	return conn.WriteFrame(&resp)
}

// IntoFrame encodes the command for the client side.
func (c Publish) IntoFrame() (protocol.Frame, error) {
	frame := protocol.Array()
	if err := frame.PushBulk([]byte("publish")); err != nil {
		return protocol.Frame{}, err
	}
	if err := frame.PushBulk([]byte(c.channel)); err != nil {
		return protocol.Frame{}, err
	}
	if err := frame.PushBulk(c.message); err != nil {
		return protocol.Frame{}, err
	}
	return frame, nil
}
