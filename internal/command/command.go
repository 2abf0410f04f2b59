// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package command implements the supported RESP commands: parsing them out
// of a received Frame, applying them against a Store, and encoding them back
// to a Frame for the client side.
package command

import (
	"context"
	"strings"

	"github.com/nishisan-dev/mini-redis/internal/protocol"
	"github.com/nishisan-dev/mini-redis/internal/shutdown"
	"github.com/nishisan-dev/mini-redis/internal/store"
)

// Command is any parsed request the server can apply. Apply writes the
// response to conn. sd is only consulted by Subscribe, which runs its own
// receive loop and needs to notice a server shutdown mid-stream; every other
// command ignores it.
type Command interface {
	Name() string
	Apply(ctx context.Context, db store.Db, conn *protocol.Conn, sd *shutdown.View) error
}

// FromFrame parses frame into a Command. frame must be an Array whose first
// element is the command name; anything else is a protocol error. An
// unrecognized command name is not an error here: it becomes an Unknown
// command whose Apply reports the error to the client.
func FromFrame(frame protocol.Frame) (Command, error) {
	p, err := protocol.NewParse(frame)
	if err != nil {
		return nil, err
	}

	name, err := p.NextString()
	if err != nil {
		return nil, err
	}
	name = strings.ToLower(name)

	var cmd Command
	switch name {
	case "get":
		cmd, err = parseGet(p)
	case "ping":
		cmd, err = parsePing(p)
	case "publish":
		cmd, err = parsePublish(p)
	case "set":
		cmd, err = parseSet(p)
	case "subscribe":
		cmd, err = parseSubscribe(p)
	case "unsubscribe":
		cmd, err = parseUnsubscribe(p)
	case "del":
		cmd, err = parseDel(p)
	default:
		return Unknown{name: name}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := p.Finish(); err != nil {
		return nil, err
	}
	return cmd, nil
}
