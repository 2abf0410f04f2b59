// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package shutdown provides the broadcast-and-drain primitives the listener
// and its connection handlers use to wind down cleanly: a single signal that
// every handler observes exactly once, and a counter the top-level Run call
// waits on before returning.
package shutdown

import (
	"context"
	"sync"
)

// Notifier is the broadcast half: cancel fires the signal for every View
// derived from it. A context.Context already gives this for free — Done
// closes once and every later read of it returns immediately — so Notifier
// is a thin wrapper rather than a reimplementation.
type Notifier struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Notifier with no signal yet sent.
func New() *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{ctx: ctx, cancel: cancel}
}

// View returns a new View onto this Notifier. Each connection handler gets
// its own View so its local is_shutdown bit is independent, even though the
// underlying signal is shared.
func (n *Notifier) View() *View {
	return &View{ctx: n.ctx}
}

// Track registers a unit of in-flight work (one connection) that Wait should
// block for. Call Done on the returned func when that work finishes.
func (n *Notifier) Track() (done func()) {
	n.wg.Add(1)
	return n.wg.Done
}

// Shutdown sends the signal. Safe to call more than once.
func (n *Notifier) Shutdown() { n.cancel() }

// Wait blocks until every tracked unit of work has called its done func.
// The caller is expected to have called Shutdown first.
func (n *Notifier) Wait() { n.wg.Wait() }

// View is a single observer's window onto a Notifier's signal, with its own
// idempotent is_shutdown bit: once Recv has returned, it returns immediately
// on every subsequent call without blocking.
type View struct {
	ctx        context.Context
	isShutdown bool
}

// IsShutdown reports whether the signal has fired yet, without blocking.
func (v *View) IsShutdown() bool {
	if v.isShutdown {
		return true
	}
	select {
	case <-v.ctx.Done():
		v.isShutdown = true
		return true
	default:
		return false
	}
}

// Recv blocks until the shutdown signal fires, or returns immediately if it
// already has.
func (v *View) Recv() {
	if v.isShutdown {
		return
	}
	<-v.ctx.Done()
	v.isShutdown = true
}

// Done returns the channel Recv waits on, for use directly inside a select
// alongside other cases (the handler's read-frame-or-shut-down loop).
func (v *View) Done() <-chan struct{} { return v.ctx.Done() }
