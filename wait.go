// Copyright 2025 Michael J. Fromberger. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cell

import (
	"context"

	"github.com/creachadair/msync"
)

// A waiter is a single registered load or take request. The flag delivers
// the value to the requester; because its channel is buffered, resolution
// never blocks the cell, and a requester that has given up costs nothing
// more than an unread handle.
type waiter[T any] struct {
	f         *msync.Flag[T]
	abandoned bool // the requester gave up; guarded by the cell's mutex
}

func newWaiter[T any]() *waiter[T] { return &waiter[T]{f: msync.NewFlag[T]()} }

// resolve delivers v to the waiter. Each waiter is resolved at most once.
func (w *waiter[T]) resolve(v T) { w.f.Set(v) }

// ready returns the channel on which the waiter's value is delivered.
func (w *waiter[T]) ready() <-chan T { return w.f.Ready() }

// Load returns a channel that delivers the current or next value of c
// without consuming it. If c holds a value, the channel delivers it at once;
// otherwise the channel delivers the next value inserted into c. Every load
// pending at that insertion observes the same value.
//
// The channel delivers at most one value. A caller that no longer wants the
// value may simply drop the channel; see [Cell.LoadContext] for a variant
// that honors a context.
func (c *Cell[T]) Load() <-chan T {
	c.μ.Lock()
	defer c.μ.Unlock()
	w := newWaiter[T]()
	if c.present {
		w.resolve(c.value)
	} else {
		c.loads = append(c.loads, w)
	}
	return w.ready()
}

// Take returns a channel that delivers the current or next value of c and
// removes the delivered value from the slot. If c holds a value, it is
// consumed and delivered at once. Otherwise the request joins a FIFO queue:
// each future insertion resolves exactly one queued take, oldest first, so
// no two takes can receive the same inserted value.
//
// The channel delivers at most one value. Note that if the caller drops the
// channel without reading it, a value delivered to it is consumed but never
// seen; use [Cell.TakeContext] to give up waiting without that risk.
func (c *Cell[T]) Take() <-chan T {
	c.μ.Lock()
	defer c.μ.Unlock()
	w := newWaiter[T]()
	if c.present {
		w.resolve(c.value)
		var zero T
		c.value, c.present = zero, false
	} else {
		c.takes.Add(w)
	}
	return w.ready()
}

// LoadContext blocks until c holds or receives a value, or ctx ends, and
// returns the value c reported. The value is not consumed. If ctx ends
// before a value is available, LoadContext returns the zero of T and the
// error from ctx.
func (c *Cell[T]) LoadContext(ctx context.Context) (T, error) {
	c.μ.Lock()
	if c.present {
		v := c.value
		c.μ.Unlock()
		return v, nil
	}
	w := newWaiter[T]()
	c.loads = append(c.loads, w)
	c.μ.Unlock()

	select {
	case v := <-w.ready():
		return v, nil
	case <-ctx.Done():
		return c.abandon(w, ctx)
	}
}

// TakeContext blocks until c holds or receives a value, or ctx ends, and
// returns the value with the take semantics of [Cell.Take]. If ctx ends
// first the request is withdrawn, so a value arriving later is not lost to a
// caller that has already gone; if a value was delivered while the request
// was being withdrawn, that value is returned and the context error is
// discarded.
func (c *Cell[T]) TakeContext(ctx context.Context) (T, error) {
	c.μ.Lock()
	if c.present {
		v := c.value
		var zero T
		c.value, c.present = zero, false
		c.μ.Unlock()
		return v, nil
	}
	w := newWaiter[T]()
	c.takes.Add(w)
	c.μ.Unlock()

	select {
	case v := <-w.ready():
		return v, nil
	case <-ctx.Done():
		return c.abandon(w, ctx)
	}
}

// abandon withdraws w from further resolution and reports the error from
// ctx. If a value was delivered to w before the withdrawal took effect, that
// value is returned instead and the context error is discarded.
func (c *Cell[T]) abandon(w *waiter[T], ctx context.Context) (T, error) {
	c.μ.Lock()
	w.abandoned = true
	c.μ.Unlock()

	// The marking above is ordered with resolution by the cell's mutex, so
	// after it either the waiter will never be resolved, or its value has
	// already been delivered and is waiting on the channel.
	select {
	case v := <-w.ready():
		return v, nil
	default:
		var zero T
		return zero, ctx.Err()
	}
}
