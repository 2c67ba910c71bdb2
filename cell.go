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

// Package cell implements a single-slot synchronization cell: a container
// that holds at most one value of a type T, which producers fill with
// [Cell.Insert] and consumers observe with [Cell.Load] or remove with
// [Cell.Take], waiting as necessary for a value to arrive.
//
// # Loads and Takes
//
// A Load observes a value without consuming it: every load pending at the
// moment a value is inserted is resolved with that value, and the slot keeps
// the value. A Take removes the value it receives: at most one take is
// resolved per inserted value, oldest first, and the resolved value is gone
// from the slot at the instant of delivery, so no peek or later take can
// observe it again.
//
// When loads and takes are waiting at the same time, an insertion satisfies
// them in the order selected by the cell's [Priority]. Under the default
// [FavorTakes], a resolved take claims the value for itself and the pending
// loads keep waiting for a later insertion; under [FavorLoads], the loads are
// resolved first and the oldest take then consumes the same value.
//
// # Filling
//
// [Cell.OrInsert] and [Cell.OrFill] fill the cell only if it is empty.
// OrFill runs its producer on a background goroutine; until the producer's
// result is committed, direct calls to Insert and Clear fail with
// [ErrPendingInsertion] so that the two cannot silently overwrite each
// other. Use [Cell.Sync] to wait for a pending fill to commit.
package cell

import (
	"errors"
	"sync"

	"github.com/creachadair/mds/mlink"
	"github.com/creachadair/msync/trigger"
)

// ErrPendingInsertion is reported by Insert and Clear when an asynchronous
// fill started by [Cell.OrFill] has not yet committed its result.
var ErrPendingInsertion = errors.New("an asynchronous fill is pending")

// IsPendingInsertion reports whether err is or wraps [ErrPendingInsertion].
// It is false if err == nil.
func IsPendingInsertion(err error) bool {
	return err != nil && errors.Is(err, ErrPendingInsertion)
}

// Priority selects which kind of pending request an insertion satisfies
// first when both loads and takes are waiting at the moment a value arrives.
// It has no effect when only one kind of request (or neither) is pending.
type Priority int

const (
	// FavorTakes resolves the oldest pending take. If a take accepted the
	// value, pending loads are left waiting: the value was consumed by the
	// take and must not leak to observers. If no take was waiting, all
	// pending loads are resolved instead. This is the default.
	FavorTakes Priority = iota

	// FavorLoads resolves all pending loads, then lets the oldest pending
	// take consume the same value.
	FavorLoads
)

// Options are optional settings for a [Cell]. A nil *Options is ready for
// use and provides default values as described.
type Options struct {
	// Priority governs the resolution order when both loads and takes are
	// pending at insertion time. Default: FavorTakes.
	Priority Priority
}

func (o *Options) priority() Priority {
	if o == nil {
		return FavorTakes
	}
	return o.Priority
}

// A Snapshot records the contents of a cell at a single moment.
type Snapshot[T any] struct {
	Value   T    // the contents of the slot; meaningful only if Present is true
	Present bool // whether the slot held a value
}

// A Subscriber is a callback reporting a change of the contents of a cell,
// from prev to cur. See [Cell.Subscribe].
type Subscriber[T any] func(cur, prev Snapshot[T])

// A Cell is a single-slot container for values of type T. It is safe for
// concurrent use by multiple goroutines. The methods of a cell never block;
// waiting happens only on the channels returned by [Cell.Load] and
// [Cell.Take] and in the context-aware wrappers.
//
// A Cell must be constructed by [New] or [NewValue]; the zero value is not
// ready for use.
type Cell[T any] struct {
	pri Priority // fixed at construction

	μ       sync.Mutex
	value   T
	present bool
	filling bool // an OrFill producer is in flight
	loads   []*waiter[T]
	takes   *mlink.Queue[*waiter[T]]
	subs    []Subscriber[T]

	// Callers of Sync wait on this condition. It is signaled each time a
	// pending fill commits.
	settled *trigger.Cond
}

// New constructs a new, empty cell with the given options.
func New[T any](opts *Options) *Cell[T] {
	return &Cell[T]{
		pri:     opts.priority(),
		takes:   mlink.NewQueue[*waiter[T]](),
		settled: trigger.New(),
	}
}

// NewValue constructs a new cell holding v, with the given options.
func NewValue[T any](v T, opts *Options) *Cell[T] {
	c := New[T](opts)
	c.value, c.present = v, true
	return c
}

// Peek reports the current contents of c without modifying them.
// It does not block.
func (c *Cell[T]) Peek() (T, bool) {
	c.μ.Lock()
	defer c.μ.Unlock()
	return c.value, c.present
}

// Insert places v into c, replacing any previous contents, and resolves
// pending requests as described by the cell's [Priority]. Subscribers are
// notified before any request is resolved.
//
// Insert reports [ErrPendingInsertion] without changing the cell if an
// asynchronous fill started by [Cell.OrFill] has not yet committed.
func (c *Cell[T]) Insert(v T) error {
	c.μ.Lock()
	defer c.μ.Unlock()
	if c.filling {
		return ErrPendingInsertion
	}
	c.apply(Snapshot[T]{Value: v, Present: true})
	return nil
}

// Clear empties c. Subscribers are notified of the change; pending loads and
// takes are unaffected and continue to wait for the next insertion.
//
// Clear reports [ErrPendingInsertion] without changing the cell if an
// asynchronous fill started by [Cell.OrFill] has not yet committed.
func (c *Cell[T]) Clear() error {
	c.μ.Lock()
	defer c.μ.Unlock()
	if c.filling {
		return ErrPendingInsertion
	}
	c.apply(Snapshot[T]{})
	return nil
}

// Subscribe registers subs to be notified, in registration order, of each
// subsequent change made by [Cell.Insert], [Cell.Clear], or the commit of an
// asynchronous fill. A take consuming the stored value is not a change in
// this sense and is not reported.
//
// Subscribers run synchronously inside the updating call with the cell
// locked, before any pending request is resolved. A subscriber must not call
// methods of c, or it will deadlock. There is no way to remove a subscriber;
// subscriptions persist for the lifetime of the cell.
func (c *Cell[T]) Subscribe(subs ...Subscriber[T]) {
	c.μ.Lock()
	defer c.μ.Unlock()
	c.subs = append(c.subs, subs...)
}

// apply installs next as the contents of c, notifies subscribers, and
// resolves pending requests. The caller must hold c.μ.
func (c *Cell[T]) apply(next Snapshot[T]) {
	prev := Snapshot[T]{Value: c.value, Present: c.present}
	c.value, c.present = next.Value, next.Present
	for _, s := range c.subs {
		s(next, prev)
	}
	if !next.Present {
		return // a clear resolves nothing
	}
	switch c.pri {
	case FavorLoads:
		c.resolveLoads(next.Value)
		c.resolveTake(next.Value)
	default:
		if !c.resolveTake(next.Value) {
			c.resolveLoads(next.Value)
		}
	}
}

// resolveTake delivers v to the oldest live take waiter, if there is one,
// and consumes the slot. It reports whether a waiter accepted the value.
// The caller must hold c.μ.
func (c *Cell[T]) resolveTake(v T) bool {
	for {
		w, ok := c.takes.Pop()
		if !ok {
			return false
		}
		if w.abandoned {
			continue
		}
		w.resolve(v)
		var zero T
		c.value, c.present = zero, false
		return true
	}
}

// resolveLoads delivers v to every live load waiter and empties the list.
// The caller must hold c.μ.
func (c *Cell[T]) resolveLoads(v T) {
	for _, w := range c.loads {
		if !w.abandoned {
			w.resolve(v)
		}
	}
	c.loads = nil
}
