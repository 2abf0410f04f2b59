// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nishisan-dev/mini-redis/internal/config"
	"github.com/nishisan-dev/mini-redis/internal/protocol"
)

func startTestServer(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	cfg := &config.ServerConfig{}
	cfg.Server.MaxConnections = 16

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunWithListener(ctx, ln, cfg, nil)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not shut down in time")
		}
	})

	return ln
}

func dial(t *testing.T, addr string) *protocol.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return protocol.NewConn(conn)
}

func sendCommand(t *testing.T, conn *protocol.Conn, parts ...string) *protocol.Frame {
	t.Helper()
	frame := protocol.Array()
	for _, p := range parts {
		if err := frame.PushBulk([]byte(p)); err != nil {
			t.Fatalf("building frame: %v", err)
		}
	}
	if err := conn.WriteFrame(&frame); err != nil {
		t.Fatalf("writing frame: %v", err)
	}
	resp, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	return resp
}

func TestServer_PingSetGet(t *testing.T) {
	ln := startTestServer(t)
	conn := dial(t, ln.Addr().String())

	if resp := sendCommand(t, conn, "ping"); resp.Text != "PONG" {
		t.Fatalf("ping response = %+v", resp)
	}

	if resp := sendCommand(t, conn, "set", "greeting", "hello"); resp.Text != "OK" {
		t.Fatalf("set response = %+v", resp)
	}

	resp := sendCommand(t, conn, "get", "greeting")
	if string(resp.Bytes) != "hello" {
		t.Fatalf("get response = %+v", resp)
	}
}

func TestServer_UnknownCommand(t *testing.T) {
	ln := startTestServer(t)
	conn := dial(t, ln.Addr().String())

	resp := sendCommand(t, conn, "frobnicate")
	if resp.Kind != protocol.KindError {
		t.Fatalf("expected error reply, got %+v", resp)
	}
}

func TestServer_ConnectionCapIsBounded(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	cfg := &config.ServerConfig{}
	cfg.Server.MaxConnections = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunWithListener(ctx, ln, cfg, nil)

	conns := make([]*protocol.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, ln.Addr().String())
	}

	// The third connection's permit is still pending; PING on the first two
	// must still complete promptly.
	if resp := sendCommand(t, conns[0], "ping"); resp.Text != "PONG" {
		t.Fatalf("ping response = %+v", resp)
	}
	if resp := sendCommand(t, conns[1], "ping"); resp.Text != "PONG" {
		t.Fatalf("ping response = %+v", resp)
	}
}
