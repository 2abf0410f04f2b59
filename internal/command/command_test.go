// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package command

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/nishisan-dev/mini-redis/internal/protocol"
	"github.com/nishisan-dev/mini-redis/internal/shutdown"
	"github.com/nishisan-dev/mini-redis/internal/store"
)

type loopback struct {
	buf bytes.Buffer
}

func (l *loopback) Read(p []byte) (int, error)  { return 0, io.EOF }
func (l *loopback) Write(p []byte) (int, error) { return l.buf.Write(p) }

func newTestConn() (*protocol.Conn, *loopback) {
	lb := &loopback{}
	return protocol.NewConn(lb), lb
}

func buildFrame(t *testing.T, parts ...string) protocol.Frame {
	t.Helper()
	frame := protocol.Array()
	for _, p := range parts {
		if err := frame.PushBulk([]byte(p)); err != nil {
			t.Fatal(err)
		}
	}
	return frame
}

func TestFromFrame_UnknownCommand(t *testing.T) {
	cmd, err := FromFrame(buildFrame(t, "frobnicate"))
	if err != nil {
		t.Fatalf("FromFrame: %v", err)
	}
	if cmd.Name() != "frobnicate" {
		t.Fatalf("Name() = %q", cmd.Name())
	}

	conn, lb := newTestConn()
	if err := cmd.Apply(context.Background(), store.Db{}, conn, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if lb.buf.String() != "-err unknown command 'frobnicate'\r\n" {
		t.Fatalf("wire = %q", lb.buf.String())
	}
}

func TestFromFrame_PingNoMessage(t *testing.T) {
	cmd, err := FromFrame(buildFrame(t, "ping"))
	if err != nil {
		t.Fatalf("FromFrame: %v", err)
	}
	conn, lb := newTestConn()
	if err := cmd.Apply(context.Background(), store.Db{}, conn, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if lb.buf.String() != "+PONG\r\n" {
		t.Fatalf("wire = %q", lb.buf.String())
	}
}

func TestFromFrame_PingWithMessage(t *testing.T) {
	cmd, err := FromFrame(buildFrame(t, "ping", "hello"))
	if err != nil {
		t.Fatalf("FromFrame: %v", err)
	}
	conn, lb := newTestConn()
	if err := cmd.Apply(context.Background(), store.Db{}, conn, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if lb.buf.String() != "$5\r\nhello\r\n" {
		t.Fatalf("wire = %q", lb.buf.String())
	}
}

func testDb(t *testing.T) store.Db {
	t.Helper()
	guard := store.NewDbDropGuard(store.New(), nil)
	t.Cleanup(guard.Close)
	return guard.Db()
}

func TestSetGetDel(t *testing.T) {
	db := testDb(t)

	setCmd, err := FromFrame(buildFrame(t, "set", "key", "value"))
	if err != nil {
		t.Fatalf("FromFrame(set): %v", err)
	}
	conn, lb := newTestConn()
	if err := setCmd.Apply(context.Background(), db, conn, nil); err != nil {
		t.Fatalf("Apply(set): %v", err)
	}
	if lb.buf.String() != "+OK\r\n" {
		t.Fatalf("set wire = %q", lb.buf.String())
	}

	getCmd, err := FromFrame(buildFrame(t, "get", "key"))
	if err != nil {
		t.Fatalf("FromFrame(get): %v", err)
	}
	conn, lb = newTestConn()
	if err := getCmd.Apply(context.Background(), db, conn, nil); err != nil {
		t.Fatalf("Apply(get): %v", err)
	}
	if lb.buf.String() != "$5\r\nvalue\r\n" {
		t.Fatalf("get wire = %q", lb.buf.String())
	}

	delCmd, err := FromFrame(buildFrame(t, "del", "key"))
	if err != nil {
		t.Fatalf("FromFrame(del): %v", err)
	}
	conn, lb = newTestConn()
	if err := delCmd.Apply(context.Background(), db, conn, nil); err != nil {
		t.Fatalf("Apply(del): %v", err)
	}
	if lb.buf.String() != ":1\r\n" {
		t.Fatalf("del wire = %q", lb.buf.String())
	}
}

func TestGetMissingReturnsNull(t *testing.T) {
	db := testDb(t)
	getCmd, _ := FromFrame(buildFrame(t, "get", "missing"))
	conn, lb := newTestConn()
	if err := getCmd.Apply(context.Background(), db, conn, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if lb.buf.String() != "$-1\r\n" {
		t.Fatalf("wire = %q", lb.buf.String())
	}
}

func TestSetWithExOption(t *testing.T) {
	db := testDb(t)
	setCmd, err := FromFrame(buildFrame(t, "set", "key", "value", "EX", "10"))
	if err != nil {
		t.Fatalf("FromFrame: %v", err)
	}
	s := setCmd.(Set)
	expire, hasExpire := s.Expire()
	if !hasExpire || expire != 10*time.Second {
		t.Fatalf("expire = %v, hasExpire = %v", expire, hasExpire)
	}
}

func TestSetWithInvalidOption(t *testing.T) {
	_, err := FromFrame(buildFrame(t, "set", "key", "value", "BOGUS"))
	if err == nil {
		t.Fatal("expected error for unsupported SET option")
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	db := testDb(t)
	cmd, _ := FromFrame(buildFrame(t, "publish", "chan", "hi"))
	conn, lb := newTestConn()
	if err := cmd.Apply(context.Background(), db, conn, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if lb.buf.String() != ":0\r\n" {
		t.Fatalf("wire = %q", lb.buf.String())
	}
}

func TestUnsubscribeOutsideSubscribeLoopIsError(t *testing.T) {
	db := testDb(t)
	cmd, err := FromFrame(buildFrame(t, "unsubscribe"))
	if err != nil {
		t.Fatalf("FromFrame: %v", err)
	}
	conn, _ := newTestConn()
	if err := cmd.Apply(context.Background(), db, conn, nil); err == nil {
		t.Fatal("expected error applying a bare UNSUBSCRIBE")
	}
}

func TestSubscribeApplyDeliversPublishedMessage(t *testing.T) {
	db := testDb(t)
	cmd, err := FromFrame(buildFrame(t, "subscribe", "chan"))
	if err != nil {
		t.Fatalf("FromFrame: %v", err)
	}

	client, serverSide := newPipeConn(t)
	defer client.Close()

	notifier := shutdown.New()
	view := notifier.View()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Apply(context.Background(), db, serverSide, view)
	}()

	ackFrame, err := client.ReadFrame()
	if err != nil {
		t.Fatalf("reading subscribe ack: %v", err)
	}
	if ackFrame.Children[0].String() != "subscribe" {
		t.Fatalf("ack = %+v", ackFrame)
	}

	db.Publish("chan", []byte("hi"))

	msgFrame, err := client.ReadFrame()
	if err != nil {
		t.Fatalf("reading message frame: %v", err)
	}
	if msgFrame.Children[0].String() != "message" || msgFrame.Children[2].String() != "hi" {
		t.Fatalf("message frame = %+v", msgFrame)
	}

	notifier.Shutdown()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Apply did not return after shutdown signal")
	}
}
