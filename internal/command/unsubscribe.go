// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package command

import (
	"context"
	"errors"

	"github.com/nishisan-dev/mini-redis/internal/protocol"
	"github.com/nishisan-dev/mini-redis/internal/shutdown"
	"github.com/nishisan-dev/mini-redis/internal/store"
)

// Unsubscribe removes the client from one or more channels. An empty
// channel list means "unsubscribe from everything currently subscribed",
// resolved by Subscribe's apply loop since only it knows the current set.
//
// Unsubscribe only makes sense inside a Subscribe apply loop; Apply exists
// to satisfy the Command interface for a bare UNSUBSCRIBE sent outside one,
// which is always an error.
type Unsubscribe struct {
	Channels []string
}

// NewUnsubscribe builds an Unsubscribe for the given channels.
func NewUnsubscribe(channels []string) Unsubscribe { return Unsubscribe{Channels: channels} }

func parseUnsubscribe(p *protocol.Parse) (Command, error) {
	var channels []string
	for {
		ch, err := p.NextString()
		switch err {
		case nil:
			channels = append(channels, ch)
		case protocol.ErrEndOfStream:
			return Unsubscribe{Channels: channels}, nil
		default:
			return nil, err
		}
	}
}

func (c Unsubscribe) Name() string { return "unsubscribe" }

func (c Unsubscribe) Apply(context.Context, store.Db, *protocol.Conn, *shutdown.View) error {
	return errors.New("`unsubscribe` is unsupported in this context")
}

// IntoFrame encodes the command for the client side.
func (c Unsubscribe) IntoFrame() (protocol.Frame, error) {
	frame := protocol.Array()
	if err := frame.PushBulk([]byte("unsubscribe")); err != nil {
		return protocol.Frame{}, err
	}
	for _, ch := range c.Channels {
		if err := frame.PushBulk([]byte(ch)); err != nil {
			return protocol.Frame{}, err
		}
	}
	return frame, nil
}

// MakeUnsubscribeFrame builds the server's unsubscribe-ack frame.
func MakeUnsubscribeFrame(channel string, numSubs int) (protocol.Frame, error) {
	resp := protocol.Array()
	if err := resp.PushBulk([]byte("unsubscribe")); err != nil {
		return protocol.Frame{}, err
	}
	if err := resp.PushBulk([]byte(channel)); err != nil {
		return protocol.Frame{}, err
	}
	if err := resp.PushInt(uint64(numSubs)); err != nil {
		return protocol.Frame{}, err
	}
	return resp, nil
}
