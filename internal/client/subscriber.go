// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package client

import (
	"fmt"

	"github.com/nishisan-dev/mini-redis/internal/command"
	"github.com/nishisan-dev/mini-redis/internal/protocol"
)

// Message is one published value delivered to a Subscriber.
type Message struct {
	Channel string
	Content []byte
}

// Subscriber reads the message stream produced by a SUBSCRIBE command,
// and can grow or shrink its subscription set without leaving the stream.
type Subscriber struct {
	client   *Client
	channels []string
}

// Channels returns the channels currently subscribed to.
func (s *Subscriber) Channels() []string { return s.channels }

// Subscribe adds channels to the subscription set.
func (s *Subscriber) Subscribe(channels []string) error {
	if err := s.client.subscribeCmd(channels); err != nil {
		return err
	}
	s.channels = append(s.channels, channels...)
	return nil
}

// Next blocks for the next published message. It returns ok=false only when
// the peer closed the connection cleanly.
func (s *Subscriber) Next() (Message, bool, error) {
	frame, err := s.client.conn.ReadFrame()
	if err != nil {
		return Message{}, false, err
	}
	if frame == nil {
		return Message{}, false, nil
	}
	if frame.Kind != protocol.KindArray || len(frame.Children) != 3 || !frame.Children[0].EqualString("message") {
		return Message{}, false, fmt.Errorf("client: invalid message frame %q", frame.String())
	}
	return Message{Channel: frame.Children[1].String(), Content: frame.Children[2].Bytes}, true, nil
}

// Unsubscribe removes channels (or, when channels is empty, every currently
// subscribed channel) and waits for each corresponding ack. Per the original
// client, exactly one subscribed channel must be removed per ack; any other
// outcome is reported as an error.
func (s *Subscriber) Unsubscribe(channels []string) error {
	frame, err := command.NewUnsubscribe(channels).IntoFrame()
	if err != nil {
		return err
	}
	if err := s.client.conn.WriteFrame(&frame); err != nil {
		return err
	}

	count := len(channels)
	if count == 0 {
		count = len(s.channels)
	}

	for i := 0; i < count; i++ {
		resp, err := s.client.readResponse()
		if err != nil {
			return err
		}
		if resp.Kind != protocol.KindArray || len(resp.Children) < 2 || !resp.Children[0].EqualString("unsubscribe") {
			return fmt.Errorf("client: unsubscribe failed, response %q", resp.String())
		}
		channel := resp.Children[1].String()

		before := len(s.channels)
		s.channels = removeOne(s.channels, channel)
		if len(s.channels) != before-1 {
			return fmt.Errorf("client: unsubscribe ack for %q did not match exactly one subscribed channel", channel)
		}
	}
	return nil
}

func removeOne(channels []string, target string) []string {
	for i, ch := range channels {
		if ch == target {
			return append(append([]string(nil), channels[:i]...), channels[i+1:]...)
		}
	}
	return channels
}
