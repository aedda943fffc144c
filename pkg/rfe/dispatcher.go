// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Callback receives messages of one category on the device reader goroutine.
// It must return promptly; a slow callback delays every later message.
type Callback func(Message)

// Dispatcher fans decoded messages out to per-category callbacks and to
// blocking waiters.
type Dispatcher struct {
	// callbackMu is held while a callback runs so that RemoveCallback
	// returns only after any in-flight invocation has finished.
	callbackMu sync.Mutex
	callbacks  [numCategories]Callback

	// received numbers messages in arrival order. Waiters skip anything
	// numbered at or below the count seen when they subscribed.
	received atomic.Uint64

	waitMu  sync.Mutex
	waiters [numCategories]map[*Subscription]struct{}

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewDispatcher creates an open dispatcher.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{done: make(chan struct{})}
	for i := range d.waiters {
		d.waiters[i] = make(map[*Subscription]struct{})
	}
	return d
}

// SetCallback registers cb for category c, replacing any earlier callback.
// A nil cb removes the registration. Callbacks must not call SetCallback or
// RemoveCallback themselves.
func (d *Dispatcher) SetCallback(c Category, cb Callback) error {
	if !c.Valid() {
		return invalidInput("set callback", "unknown category %d", int(c))
	}
	d.callbackMu.Lock()
	d.callbacks[c] = cb
	d.callbackMu.Unlock()
	return nil
}

// RemoveCallback removes the callback for category c. Once it returns the
// callback is not invoked again.
func (d *Dispatcher) RemoveCallback(c Category) error {
	return d.SetCallback(c, nil)
}

// Receive numbers the next arriving message. The reader calls it before
// the message touches device state, then hands the number to
// DeliverReceived.
func (d *Dispatcher) Receive() uint64 {
	return d.received.Add(1)
}

// Deliver numbers m as just received and delivers it.
func (d *Dispatcher) Deliver(m Message) {
	d.DeliverReceived(d.Receive(), m)
}

// DeliverReceived passes m, numbered seq by Receive, to the callback of its
// category and releases every waiter subscribed to it.
func (d *Dispatcher) DeliverReceived(seq uint64, m Message) {
	c := m.Category()
	if !c.Valid() {
		return
	}

	d.callbackMu.Lock()
	if cb := d.callbacks[c]; cb != nil {
		cb(m)
	}
	d.callbackMu.Unlock()

	d.waitMu.Lock()
	for sub := range d.waiters[c] {
		if seq <= sub.after {
			continue
		}
		sub.push(delivery{seq: seq, m: m})
	}
	d.waitMu.Unlock()
}

// Close releases every current and future waiter with err.
func (d *Dispatcher) Close(err error) {
	d.closeOnce.Do(func() {
		d.closeErr = err
		close(d.done)
	})
}

// Done is closed once the dispatcher is closed.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Err returns the error passed to Close, or nil while open.
func (d *Dispatcher) Err() error {
	select {
	case <-d.done:
		return d.closeErr
	default:
		return nil
	}
}

// Subscription receives the messages of one category delivered after it was
// created.
type Subscription struct {
	d       *Dispatcher
	c       Category
	ch      chan delivery
	after   uint64
	started time.Time
}

type delivery struct {
	seq uint64
	m   Message
}

// push enqueues v, evicting the oldest buffered message when the waiter is
// behind. Only DeliverReceived sends, under waitMu.
func (s *Subscription) push(v delivery) {
	select {
	case s.ch <- v:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
}

const subscriptionBuffer = 16

// Subscribe starts collecting messages of category c. Cancel must be called
// when done.
func (d *Dispatcher) Subscribe(c Category) *Subscription {
	sub := &Subscription{
		d:       d,
		c:       c,
		ch:      make(chan delivery, subscriptionBuffer),
		started: time.Now(),
	}
	d.waitMu.Lock()
	sub.after = d.received.Load()
	if c.Valid() {
		d.waiters[c][sub] = struct{}{}
	}
	d.waitMu.Unlock()
	return sub
}

// Cancel stops the subscription.
func (s *Subscription) Cancel() {
	if !s.c.Valid() {
		return
	}
	s.d.waitMu.Lock()
	delete(s.d.waiters[s.c], s)
	s.d.waitMu.Unlock()
}

// Wait blocks until a message accepted by match arrives, the timeout
// elapses, ctx ends or the dispatcher closes. A nil match accepts any
// message. Messages that arrived, or were captured, before the subscription
// started are skipped.
func (s *Subscription) Wait(ctx context.Context, timeout time.Duration, match func(Message) bool) (Message, error) {
	op := "wait for " + s.c.String()
	if !s.c.Valid() {
		return nil, invalidInput(op, "unknown category %d", int(s.c))
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case v := <-s.ch:
			m := v.m
			if v.seq <= s.after {
				continue
			}
			if ts, ok := capturedAt(m); ok && ts.Before(s.started) {
				continue
			}
			if match == nil || match(m) {
				return m, nil
			}
		case <-timer.C:
			return nil, timeoutError(op, timeout)
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-s.d.done:
			return nil, &Error{Kind: KindIO, Op: op, Msg: "device disconnected", Err: s.d.closeErr}
		}
	}
}

// WaitForNext blocks until a message of category c arrives after the call
// began. A zero timeout uses the default for the category.
func (d *Dispatcher) WaitForNext(ctx context.Context, c Category, timeout time.Duration) (Message, error) {
	if timeout <= 0 {
		timeout = defaultTimeout(c)
	}
	sub := d.Subscribe(c)
	defer sub.Cancel()
	return sub.Wait(ctx, timeout, nil)
}

func defaultTimeout(c Category) time.Duration {
	switch c {
	case CategorySweep:
		return DefaultSweepTimeout
	case CategoryScreenData:
		return DefaultScreenDataTimeout
	default:
		return DefaultCommandTimeout
	}
}
