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

// Subscribe moves the connection into subscriber submode: after Apply
// starts, the only commands the client may send are SUBSCRIBE and
// UNSUBSCRIBE; everything else, including PING, is reported as an unknown
// command by handleSubscribeCommand below.
type Subscribe struct {
	channels []string
}

// NewSubscribe builds a Subscribe for the given channels.
func NewSubscribe(channels []string) Subscribe { return Subscribe{channels: channels} }

func parseSubscribe(p *protocol.Parse) (Command, error) {
	first, err := p.NextString()
	if err != nil {
		return nil, err
	}
	channels := []string{first}
	for {
		ch, err := p.NextString()
		switch err {
		case nil:
			channels = append(channels, ch)
		case protocol.ErrEndOfStream:
			return Subscribe{channels: channels}, nil
		default:
			return nil, err
		}
	}
}

func (c Subscribe) Name() string { return "subscribe" }

// subMsg is one item of the fan-in from every active per-channel
// subscription into the single select loop below.
type subMsg struct {
	channel string
	msg     []byte
	lagged  bool
}

// frameResult is one item of the fan-in from the blocking client read.
type frameResult struct {
	frame *protocol.Frame
	err   error
}

// Apply runs the subscriber submode loop until the client disconnects, a
// read, parse or write fails, or the server shuts down. A client can add
// channels to its subscription set by sending further SUBSCRIBE commands,
// and remove them with UNSUBSCRIBE, without leaving this loop; any other
// command is answered with the unknown-command error and the loop goes on.
func (c Subscribe) Apply(ctx context.Context, db store.Db, conn *protocol.Conn, sd *shutdown.View) error {
	subs := make(map[string]*store.Subscription)
	stop := make(chan struct{})
	defer func() {
		close(stop)
		for _, s := range subs {
			s.Close()
		}
	}()

	fanIn := make(chan subMsg, 64)
	subscribeTo := func(channel string) error {
		if old, ok := subs[channel]; ok {
			old.Close()
		}
		sub := db.Subscribe(channel)
		subs[channel] = sub
		go forwardSubscription(channel, sub, fanIn, stop)

		resp, err := makeSubscribeFrame(channel, len(subs))
		if err != nil {
			return err
		}
		slog.Debug("subscribed to channel", "channel", channel)
		return conn.WriteFrame(&resp)
	}

	for _, channel := range c.channels {
		if err := subscribeTo(channel); err != nil {
			return err
		}
	}

	frameCh := make(chan frameResult, 1)
	go readLoop(conn, frameCh)

	for {
		select {
		case m := <-fanIn:
			if m.lagged {
				slog.Warn("subscribe receiver lagged, resuming", "channel", m.channel)
				continue
			}
			resp, err := makeMessageFrame(m.channel, m.msg)
			if err != nil {
				return err
			}
			if err := conn.WriteFrame(&resp); err != nil {
				return err
			}

		case fr := <-frameCh:
			if fr.err != nil {
				return fr.err
			}
			if fr.frame == nil {
				slog.Warn("remote subscribe client disconnected")
				return nil
			}
			if err := handleSubscribeCommand(*fr.frame, subs, subscribeTo, conn); err != nil {
				return err
			}
			go readLoop(conn, frameCh)

		case <-sd.Done():
			slog.Warn("server shutdown, stop subscribe")
			return nil
		}
	}
}

func forwardSubscription(channel string, sub *store.Subscription, out chan<- subMsg, stop <-chan struct{}) {
	for {
		msg, lagged, ok := sub.Next()
		if !ok {
			return
		}
		select {
		case out <- subMsg{channel: channel, msg: msg, lagged: lagged}:
		case <-stop:
			return
		}
	}
}

func readLoop(conn *protocol.Conn, out chan<- frameResult) {
	frame, err := conn.ReadFrame()
	out <- frameResult{frame: frame, err: err}
}

// handleSubscribeCommand processes one client frame received while in
// subscriber submode. Only SUBSCRIBE and UNSUBSCRIBE are meaningful here;
// anything else, PING included, is reported as an unknown command — the
// submode does not special-case it despite what a cursory reading of the
// protocol might suggest.
func handleSubscribeCommand(frame protocol.Frame, subs map[string]*store.Subscription, subscribeTo func(string) error, conn *protocol.Conn) error {
	cmd, err := FromFrame(frame)
	if err != nil {
		return err
	}

	switch c := cmd.(type) {
	case Subscribe:
		for _, channel := range c.channels {
			if err := subscribeTo(channel); err != nil {
				return err
			}
		}

	case Unsubscribe:
		channels := c.Channels
		if len(channels) == 0 {
			for ch := range subs {
				channels = append(channels, ch)
			}
		}
		for _, channel := range channels {
			slog.Debug("begin unsubscribe", "channel", channel)
			if sub, ok := subs[channel]; ok {
				sub.Close()
				delete(subs, channel)
			}
			resp, err := MakeUnsubscribeFrame(channel, len(subs))
			if err != nil {
				return err
			}
			if err := conn.WriteFrame(&resp); err != nil {
				return err
			}
		}

	default:
		unknown := NewUnknown(cmd.Name())
		return unknown.Apply(context.Background(), store.Db{}, conn, nil)
	}
	return nil
}

// IntoFrame encodes the command for the client side.
func (c Subscribe) IntoFrame() (protocol.Frame, error) {
	frame := protocol.Array()
	if err := frame.PushBulk([]byte("subscribe")); err != nil {
		return protocol.Frame{}, err
	}
	for _, ch := range c.channels {
		if err := frame.PushBulk([]byte(ch)); err != nil {
			return protocol.Frame{}, err
		}
	}
	return frame, nil
}

func makeSubscribeFrame(channel string, numSubs int) (protocol.Frame, error) {
	resp := protocol.Array()
	if err := resp.PushBulk([]byte("subscribe")); err != nil {
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

func makeMessageFrame(channel string, msg []byte) (protocol.Frame, error) {
	resp := protocol.Array()
	if err := resp.PushBulk([]byte("message")); err != nil {
		return protocol.Frame{}, err
	}
	if err := resp.PushBulk([]byte(channel)); err != nil {
		return protocol.Frame{}, err
	}
	if err := resp.PushBulk(msg); err != nil {
		return protocol.Frame{}, err
	}
	return resp, nil
}
