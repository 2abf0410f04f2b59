// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package store

import "sync"

// broadcaster is a single-producer / multi-consumer fan-out channel with
// bounded capacity and lossy semantics for slow consumers: a subscriber
// that falls behind sees a Lagged notice rather than blocking the
// publisher, and remains subscribed.
type broadcaster struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	cap  int
}

func newBroadcaster(capacity int) *broadcaster {
	return &broadcaster{subs: make(map[*Subscription]struct{}), cap: capacity}
}

func (b *broadcaster) subscribe() *Subscription {
	sub := &Subscription{
		messages: make(chan []byte, b.cap),
		lagged:   make(chan uint64, 1),
		done:     make(chan struct{}),
		owner:    b,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	close(sub.done)
}

// publish fans value out to every live subscriber. A subscriber whose
// buffer is full is lagged rather than blocked: the message is dropped for
// that subscriber and a lag indicator is queued instead. Returns the number
// of subscribers the value was actually enqueued for.
func (b *broadcaster) publish(value []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for sub := range b.subs {
		select {
		case sub.messages <- value:
			delivered++
		default:
			select {
			case sub.lagged <- 1:
			default:
			}
		}
	}
	return delivered
}

// Subscription is a pull-driven stream of messages for one channel,
// obtained from Store.Subscribe. Next blocks until a message, a lag
// notice, or Close fires.
type Subscription struct {
	messages chan []byte
	lagged   chan uint64
	done     chan struct{}
	owner    *broadcaster
}

// Next returns the next message, a Lagged(true) result when the receiver
// fell behind and messages were dropped, or ok=false once Close has been
// called. A Lagged result is a recoverable warning: the caller should loop
// and call Next again rather than treating the channel as dead.
func (s *Subscription) Next() (msg []byte, lagged bool, ok bool) {
	select {
	case m, open := <-s.messages:
		if !open {
			return nil, false, false
		}
		return m, false, true
	case <-s.lagged:
		return nil, true, true
	case <-s.done:
		return nil, false, false
	}
}

// Messages exposes the raw message channel for callers that want to select
// over several subscriptions at once alongside the lag channel and a
// shutdown signal. The subscriber submode in package command does not use
// it; it reads each subscription through Next.
func (s *Subscription) Messages() <-chan []byte { return s.messages }

// Lagged exposes the lag-notice channel for the same reason as Messages.
func (s *Subscription) Lagged() <-chan uint64 { return s.lagged }

// Done exposes the close channel for the same reason as Messages.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close removes the subscription from its broadcaster.
func (s *Subscription) Close() { s.owner.unsubscribe(s) }
