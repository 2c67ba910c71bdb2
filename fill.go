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

	"github.com/creachadair/taskgroup"
)

// OrInsert places v into c only if c is empty and no asynchronous fill is
// pending, and reports whether v was inserted. An insertion made this way
// notifies subscribers and resolves pending requests exactly as
// [Cell.Insert] does; unlike Insert, OrInsert never replaces an existing
// value and cannot fail.
func (c *Cell[T]) OrInsert(v T) bool {
	c.μ.Lock()
	defer c.μ.Unlock()
	if c.present || c.filling {
		return false
	}
	c.apply(Snapshot[T]{Value: v, Present: true})
	return true
}

// OrFill arranges for c to be filled with the result of produce if c is
// empty. It does not block: produce runs on a new goroutine, and its result
// is committed through the normal insertion path, notifying subscribers and
// resolving pending requests per the cell's [Priority].
//
// From the moment OrFill returns until the result is committed, direct calls
// to [Cell.Insert] and [Cell.Clear] fail with [ErrPendingInsertion], so a
// racing writer can neither overwrite the producer's result nor be silently
// overwritten by it. [Cell.Sync] waits for the commit.
//
// OrFill is a no-op when c already holds a value, and also when an earlier
// fill is still pending; in either case produce is not called.
func (c *Cell[T]) OrFill(produce func() T) {
	c.μ.Lock()
	defer c.μ.Unlock()
	if c.present || c.filling {
		return
	}
	// Mark the fill before the producer starts, so that an Insert racing
	// against it fails fast rather than interleaving.
	c.filling = true
	taskgroup.Go(taskgroup.NoError(func() { c.commit(produce()) }))
}

// commit applies the result of a fill producer and closes the pending
// window. The two happen in one critical section: no insertion can sneak in
// between the producer finishing and its result landing.
func (c *Cell[T]) commit(v T) {
	c.μ.Lock()
	defer c.μ.Unlock()
	c.filling = false
	c.apply(Snapshot[T]{Value: v, Present: true})
	c.settled.Signal()
}

// Sync blocks until no asynchronous fill is pending on c, or ctx ends.
// If c has no pending fill, Sync returns immediately. A nil result means any
// fill that was pending when Sync was called has committed.
func (c *Cell[T]) Sync(ctx context.Context) error {
	for {
		// Capture the settle signal before checking, so that a commit between
		// the check and the wait cannot be missed.
		ready := c.settled.Ready()
		c.μ.Lock()
		filling := c.filling
		c.μ.Unlock()
		if !filling {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
			// check again
		}
	}
}
