// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package command

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nishisan-dev/mini-redis/internal/protocol"
	"github.com/nishisan-dev/mini-redis/internal/shutdown"
	"github.com/nishisan-dev/mini-redis/internal/store"
)

// Set installs value under key, replacing any prior value and discarding any
// prior expiration. An optional EX (seconds) or PX (milliseconds) option
// attaches a new expiration; a zero duration is permitted and expires on the
// expirer's next tick.
type Set struct {
	key       string
	value     []byte
	expire    time.Duration
	hasExpire bool
}

// NewSet builds a Set for key/value with no expiration.
func NewSet(key string, value []byte) Set {
	return Set{key: key, value: value}
}

// NewSetEx builds a Set for key/value expiring after expire.
func NewSetEx(key string, value []byte, expire time.Duration) Set {
	return Set{key: key, value: value, expire: expire, hasExpire: true}
}

// Key returns the key being written.
func (c Set) Key() string { return c.key }

// Value returns the value being written.
func (c Set) Value() []byte { return c.value }

// Expire returns the expiration duration and whether one was set.
func (c Set) Expire() (time.Duration, bool) { return c.expire, c.hasExpire }

func parseSet(p *protocol.Parse) (Command, error) {
	key, err := p.NextString()
	if err != nil {
		return nil, err
	}
	value, err := p.NextBytes()
	if err != nil {
		return nil, err
	}

	var expire time.Duration
	hasExpire := false

	opt, err := p.NextString()
	switch {
	case err == nil && strings.EqualFold(opt, "EX"):
		seconds, ierr := p.NextInt()
		if ierr != nil {
			return nil, ierr
		}
		expire = time.Duration(seconds) * time.Second
		hasExpire = true
	case err == nil && strings.EqualFold(opt, "PX"):
		millis, ierr := p.NextInt()
		if ierr != nil {
			return nil, ierr
		}
		expire = time.Duration(millis) * time.Millisecond
		hasExpire = true
	case err == nil:
		slog.Warn("invalid set command argument", "option", opt)
		return nil, protocol.NewParseError("currently `SET` only support the expiration option")
	case err == protocol.ErrEndOfStream:
		slog.Debug("no extra SET option")
	default:
		return nil, err
	}

	return Set{key: key, value: value, expire: expire, hasExpire: hasExpire}, nil
}

func (c Set) Name() string { return "set" }

func (c Set) Apply(_ context.Context, db store.Db, conn *protocol.Conn, _ *shutdown.View) error {
	db.Set(c.key, c.value, c.expire, c.hasExpire)
	resp := protocol.Simple("OK")
	slog.Debug("set cmd applied", "response", resp.String())
	return conn.WriteFrame(&resp)
}

// IntoFrame encodes the command for the client side. Expiration, if any, is
// always sent as PX: it carries more precision than EX.
func (c Set) IntoFrame() (protocol.Frame, error) {
	frame := protocol.Array()
	if err := frame.PushBulk([]byte("set")); err != nil {
		return protocol.Frame{}, err
	}
	if err := frame.PushBulk([]byte(c.key)); err != nil {
		return protocol.Frame{}, err
	}
	if err := frame.PushBulk(c.value); err != nil {
		return protocol.Frame{}, err
	}
	if c.hasExpire {
		if err := frame.PushBulk([]byte("px")); err != nil {
			return protocol.Frame{}, err
		}
		if err := frame.PushInt(uint64(c.expire.Milliseconds())); err != nil {
			return protocol.Frame{}, err
		}
	}
	return frame, nil
}
