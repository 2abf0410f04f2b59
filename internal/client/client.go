// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package client implements a synchronous RESP client: a request/reply
// wrapper (Client) and a pub/sub stream reader (Subscriber) built on top of
// it.
package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/nishisan-dev/mini-redis/internal/command"
	"github.com/nishisan-dev/mini-redis/internal/protocol"
)

// ErrDisconnect is returned when the peer closes the connection cleanly
// with no frame in flight.
var ErrDisconnect = errors.New("client: connection closed by peer")

// Client is a single connection to a server, issuing one command at a time
// and reading back its reply.
type Client struct {
	conn *protocol.Conn
	nc   net.Conn
}

// Dial connects to addr and returns a ready Client.
func Dial(addr string) (*Client, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return &Client{conn: protocol.NewConn(nc), nc: nc}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.nc.Close() }

// readResponse reads one frame and turns an Error frame into a Go error,
// mirroring read_response in the original client.
func (c *Client) readResponse() (protocol.Frame, error) {
	frame, err := c.conn.ReadFrame()
	if err != nil {
		return protocol.Frame{}, err
	}
	if frame == nil {
		return protocol.Frame{}, ErrDisconnect
	}
	if frame.Kind == protocol.KindError {
		return protocol.Frame{}, errors.New(frame.Text)
	}
	return *frame, nil
}

func (c *Client) roundTrip(cmd interface{ IntoFrame() (protocol.Frame, error) }) (protocol.Frame, error) {
	frame, err := cmd.IntoFrame()
	if err != nil {
		return protocol.Frame{}, err
	}
	if err := c.conn.WriteFrame(&frame); err != nil {
		return protocol.Frame{}, err
	}
	return c.readResponse()
}

// Ping round-trips PING, returning the optional echoed message (or "PONG").
func (c *Client) Ping(msg string, hasMsg bool) ([]byte, error) {
	resp, err := c.roundTrip(command.NewPing(msg, hasMsg))
	if err != nil {
		return nil, err
	}
	switch resp.Kind {
	case protocol.KindSimple:
		return []byte(resp.Text), nil
	case protocol.KindBulk:
		return resp.Bytes, nil
	default:
		return nil, fmt.Errorf("client: unexpected ping response %q", resp.String())
	}
}

// Get fetches key, returning ok=false if it was absent.
func (c *Client) Get(key string) (value []byte, ok bool, err error) {
	resp, err := c.roundTrip(command.NewGet(key))
	if err != nil {
		return nil, false, err
	}
	switch resp.Kind {
	case protocol.KindNull:
		return nil, false, nil
	case protocol.KindBulk:
		return resp.Bytes, true, nil
	case protocol.KindSimple:
		return []byte(resp.Text), true, nil
	default:
		return nil, false, fmt.Errorf("client: unexpected get response %q", resp.String())
	}
}

// Set installs key/value with no expiration.
func (c *Client) Set(key string, value []byte) error {
	return c.set(command.NewSet(key, value))
}

// SetExpire installs key/value, expiring after expire.
func (c *Client) SetExpire(key string, value []byte, expire time.Duration) error {
	return c.set(command.NewSetEx(key, value, expire))
}

func (c *Client) set(cmd command.Set) error {
	resp, err := c.roundTrip(cmd)
	if err != nil {
		return err
	}
	if resp.Kind != protocol.KindSimple || resp.Text != "OK" {
		return fmt.Errorf("client: unexpected set response %q", resp.String())
	}
	return nil
}

// Del removes key, returning the number of keys actually removed (0 or 1).
func (c *Client) Del(key string) (uint64, error) {
	resp, err := c.roundTrip(command.NewDel(key))
	if err != nil {
		return 0, err
	}
	if resp.Kind != protocol.KindInteger {
		return 0, fmt.Errorf("client: unexpected del response %q", resp.String())
	}
	return resp.Int, nil
}

// Publish sends message on channel, returning the number of subscribers it
// reached.
func (c *Client) Publish(channel string, message []byte) (uint64, error) {
	resp, err := c.roundTrip(command.NewPublish(channel, message))
	if err != nil {
		return 0, err
	}
	if resp.Kind != protocol.KindInteger {
		return 0, fmt.Errorf("client: unexpected publish response %q", resp.String())
	}
	return resp.Int, nil
}

// subscribeCmd sends SUBSCRIBE and validates each per-channel ack in order,
// mirroring subscribe_cmd in the original client.
func (c *Client) subscribeCmd(channels []string) error {
	frame, err := command.NewSubscribe(channels).IntoFrame()
	if err != nil {
		return err
	}
	if err := c.conn.WriteFrame(&frame); err != nil {
		return err
	}

	for _, channel := range channels {
		resp, err := c.readResponse()
		if err != nil {
			return err
		}
		if resp.Kind != protocol.KindArray || len(resp.Children) < 2 ||
			!resp.Children[0].EqualString("subscribe") || !resp.Children[1].EqualString(channel) {
			return fmt.Errorf("client: subscribe to %q failed, response %q", channel, resp.String())
		}
		slog.Debug("subscribed to channel", "channel", channel)
	}
	return nil
}

// Subscribe sends SUBSCRIBE for channels and returns a Subscriber reading
// the resulting message stream. The Client is consumed: further direct
// calls on it race with the Subscriber's reads.
func (c *Client) Subscribe(channels []string) (*Subscriber, error) {
	if err := c.subscribeCmd(channels); err != nil {
		return nil, err
	}
	return &Subscriber{client: c, channels: append([]string(nil), channels...)}, nil
}
