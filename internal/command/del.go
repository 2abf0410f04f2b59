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

// Del removes key. A missing key is not an error: the response simply
// reports 0 keys removed.
type Del struct {
	key string
}

// NewDel builds a Del for key.
func NewDel(key string) Del { return Del{key: key} }

// Key returns the key being removed.
func (c Del) Key() string { return c.key }

func parseDel(p *protocol.Parse) (Command, error) {
	key, err := p.NextString()
	if err != nil {
		return nil, err
	}
	return Del{key: key}, nil
}

func (c Del) Name() string { return "del" }

func (c Del) Apply(_ context.Context, db store.Db, conn *protocol.Conn, _ *shutdown.View) error {
	n := db.Del(c.key)
	resp := protocol.Integer(uint64(n))
	slog.Debug("del cmd applied", "response", resp.String())
	return conn.WriteFrame(&resp)
}

// IntoFrame encodes the command for the client side.
func (c Del) IntoFrame() (protocol.Frame, error) {
	frame := protocol.Array()
	if err := frame.PushBulk([]byte("del")); err != nil {
		return protocol.Frame{}, err
	}
	if err := frame.PushBulk([]byte(c.key)); err != nil {
		return protocol.Frame{}, err
	}
	return frame, nil
}
