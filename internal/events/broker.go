// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package events provides a typed publish-subscribe broker for state snapshots.
//
// Subscribers receive the most recent value only: a slow subscriber never
// blocks Publish and never sees a stale value once a newer one exists. New
// subscribers immediately receive the last published value, if any.
//
//	b := events.NewBroker[State]()
//	ch := b.Subscribe(ctx)
//	b.Publish(state)
package events

import (
	"context"
	"sync"
)

// Broker fans values out to subscribers with latest-wins delivery.
type Broker[T any] struct {
	mu      sync.Mutex
	subs    map[chan T]struct{}
	last    T
	hasLast bool
	closed  bool

	// done is closed by Shutdown and releases the per-subscriber watchers.
	done     chan struct{}
	watchers sync.WaitGroup
}

// NewBroker creates an empty broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subs: make(map[chan T]struct{}),
		done: make(chan struct{}),
	}
}

// Publish records v as the latest value and offers it to every subscriber,
// replacing any value a subscriber has not read yet.
func (b *Broker[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.last = v
	b.hasLast = true
	for ch := range b.subs {
		offer(ch, v)
	}
}

// Last returns the most recently published value.
func (b *Broker[T]) Last() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.hasLast
}

// Subscribe returns a channel of published values. It is closed when ctx
// ends or the broker shuts down.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	if b.hasLast {
		ch <- b.last
	}
	b.watchers.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.watchers.Done()
		select {
		case <-ctx.Done():
			b.unsubscribe(ch)
		case <-b.done:
		}
	}()

	return ch
}

// SubscriberCount reports the number of live subscriptions.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Shutdown closes every subscriber channel; later publishes are dropped.
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

func (b *Broker[T]) unsubscribe(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// offer replaces any unread value in ch with v. Callers hold b.mu, so no
// other sender competes for the slot.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
