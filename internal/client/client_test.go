// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package client

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/nishisan-dev/mini-redis/internal/config"
	"github.com/nishisan-dev/mini-redis/internal/server"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	cfg := &config.ServerConfig{}
	cfg.Server.MaxConnections = 16

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.RunWithListener(ctx, ln, cfg, nil) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not shut down in time")
		}
	})

	return ln.Addr().String()
}

func dialClient(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_PingSetGetDel(t *testing.T) {
	addr := startTestServer(t)
	c := dialClient(t, addr)

	pong, err := c.Ping("", false)
	if err != nil || string(pong) != "PONG" {
		t.Fatalf("ping = %q, %v", pong, err)
	}

	if err := c.Set("k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, ok, err := c.Get("k")
	if err != nil || !ok || !bytes.Equal(value, []byte("v")) {
		t.Fatalf("get = %q, %v, %v", value, ok, err)
	}

	n, err := c.Del("k")
	if err != nil || n != 1 {
		t.Fatalf("del = %d, %v", n, err)
	}

	_, ok, err = c.Get("k")
	if err != nil || ok {
		t.Fatalf("expected missing key after del, ok=%v err=%v", ok, err)
	}
}

func TestClient_SetExpire(t *testing.T) {
	addr := startTestServer(t)
	c := dialClient(t, addr)

	if err := c.SetExpire("k", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatalf("set_expire: %v", err)
	}
	if _, ok, _ := c.Get("k"); !ok {
		t.Fatal("expected key readable immediately after set")
	}
}

func TestClient_PublishSubscribe(t *testing.T) {
	addr := startTestServer(t)
	publisher := dialClient(t, addr)
	subscriber := dialClient(t, addr)

	sub, err := subscriber.Subscribe([]string{"chan"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Give the server time to register the subscription before publishing.
	time.Sleep(20 * time.Millisecond)

	n, err := publisher.Publish("chan", []byte("hi"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 subscriber reached, got %d", n)
	}

	msg, ok, err := sub.Next()
	if err != nil || !ok {
		t.Fatalf("next: %v, ok=%v", err, ok)
	}
	if msg.Channel != "chan" || string(msg.Content) != "hi" {
		t.Fatalf("message = %+v", msg)
	}
}

func TestClient_GetMissingKey(t *testing.T) {
	addr := startTestServer(t)
	c := dialClient(t, addr)

	_, ok, err := c.Get("nope")
	if err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
}

func TestSubscriber_UnsubscribeAll(t *testing.T) {
	addr := startTestServer(t)
	subscriber := dialClient(t, addr)

	sub, err := subscriber.Subscribe([]string{"a", "b"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := sub.Unsubscribe(nil); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if len(sub.Channels()) != 0 {
		t.Fatalf("expected no channels left, got %v", sub.Channels())
	}
}
