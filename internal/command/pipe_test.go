// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package command

import (
	"net"
	"testing"

	"github.com/nishisan-dev/mini-redis/internal/protocol"
)

// newPipeConn returns a connected client/server Conn pair backed by
// net.Pipe, for tests that need two ends of a real read/write stream rather
// than the write-only loopback used by simple Apply assertions.
func newPipeConn(t *testing.T) (client *protocol.Conn, server *protocol.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return protocol.NewConn(a), protocol.NewConn(b)
}
