// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nishisan-dev/mini-redis/internal/protocol"
	"github.com/nishisan-dev/mini-redis/internal/shutdown"
	"github.com/nishisan-dev/mini-redis/internal/store"
)

// Unknown represents an unrecognized command name. It is not a real
// command: applying it always reports an error to the client.
type Unknown struct {
	name string
}

// NewUnknown builds an Unknown for the given (unrecognized) command name.
func NewUnknown(name string) Unknown { return Unknown{name: name} }

func (c Unknown) Name() string { return c.name }

func (c Unknown) Apply(_ context.Context, _ store.Db, conn *protocol.Conn, _ *shutdown.View) error {
	resp := protocol.Err(fmt.Sprintf("err unknown command '%s'", c.name))
	slog.Debug("apply unknown command", "response", resp.String())
	return conn.WriteFrame(&resp)
}
