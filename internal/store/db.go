// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package store

import (
	"log/slog"
	"time"
)

// Db is a cloneable handle onto a shared Store plus the background expirer
// that keeps it clean. Every clone shares the same Store and wake signal;
// copying a Db is cheap and safe for concurrent use.
type Db struct {
	shared *shared
}

type shared struct {
	store  *Store
	wake   chan struct{} // capacity 1, coalescing: a pending wake absorbs further sends
	logger *slog.Logger
}

// NewDb wraps store in a Db and starts its background expirer goroutine.
// Db has no Close of its own: the expirer is stopped by DbDropGuard.Close.
func NewDb(store *Store, logger *slog.Logger) Db {
	if logger == nil {
		logger = slog.Default()
	}
	s := &shared{
		store:  store,
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
	db := Db{shared: s}
	go db.purgeExpiredTasks()
	return db
}

// Clone returns a handle sharing the same underlying Store and expirer.
func (db Db) Clone() Db { return db }

func (db Db) purgeExpiredTasks() {
	s := db.shared
	for !s.store.IsShutdown() {
		if when, ok := s.store.PurgeExpiredKeys(); ok {
			timer := time.NewTimer(time.Until(when))
			select {
			case <-timer.C:
			case <-s.wake:
				timer.Stop()
			}
		} else {
			<-s.wake
		}
	}
	s.logger.Debug("purge background task shut down")
}

func (db Db) notifyWake() {
	select {
	case db.shared.wake <- struct{}{}:
	default:
	}
}

// Get returns key's value, if present.
func (db Db) Get(key string) ([]byte, bool) {
	return db.shared.store.Get(key)
}

// Set installs key/value, waking the expirer if the new deadline moved the
// earliest wake time earlier.
func (db Db) Set(key string, value []byte, expire time.Duration, hasExpire bool) {
	if db.shared.store.Set(key, value, expire, hasExpire) {
		db.notifyWake()
	}
}

// Del removes key, returning 1 if it was present.
func (db Db) Del(key string) int {
	return db.shared.store.Del(key)
}

// Subscribe returns a receiver for channel.
func (db Db) Subscribe(channel string) *Subscription {
	return db.shared.store.Subscribe(channel)
}

// Publish sends value to channel's subscribers, returning the delivery count.
func (db Db) Publish(channel string, value []byte) int {
	return db.shared.store.Publish(channel, value)
}

// Store exposes the underlying Store for components (stats reporting) that
// need direct read access without going through the Db facade.
func (db Db) Store() *Store { return db.shared.store }

// shutdownPurgeTask flips the shutdown flag and wakes the expirer so it can
// observe it and exit. Called exactly once, by DbDropGuard.Close.
func (db Db) shutdownPurgeTask() {
	db.shared.store.SetShutdown(true)
	db.notifyWake()
}

// DbDropGuard owns a Db's lifetime: closing it shuts down the background
// expirer. Go has no destructors, so callers must Close explicitly;
// Listener.Run does so once every connection handler has returned.
type DbDropGuard struct {
	db Db
}

// NewDbDropGuard wraps a fresh Db backed by store.
func NewDbDropGuard(store *Store, logger *slog.Logger) DbDropGuard {
	return DbDropGuard{db: NewDb(store, logger)}
}

// Db returns the guarded handle. Cloning it is cheap; every clone shares the
// same underlying Store and expirer.
func (g DbDropGuard) Db() Db { return g.db }

// Close shuts down the background expirer. Idempotent is not guaranteed;
// call exactly once.
func (g DbDropGuard) Close() {
	g.db.shutdownPurgeTask()
}
