// Package workq is a single-consumer deferred work queue.
//
// Edge handlers (GPIO interrupts, library callbacks) must not block or do
// I/O. They Submit a pre-built Item instead; one worker goroutine runs the
// item's function later. An Item that is already pending is not queued a
// second time, so a burst of edges before the worker gets to it collapses
// into a single run.
package workq

import (
	"context"
	"sync/atomic"
)

// DefaultCapacity is the queue depth used when New is given zero.
const DefaultCapacity = 8

// Item is a unit of deferred work. Create it once and submit it repeatedly.
type Item struct {
	name    string
	fn      func(ctx context.Context)
	pending atomic.Bool
}

// NewItem wraps fn as a reusable work item.
func NewItem(name string, fn func(ctx context.Context)) *Item {
	return &Item{name: name, fn: fn}
}

// Name returns the item name.
func (i *Item) Name() string { return i.name }

// Pending reports whether the item is queued and has not started running.
func (i *Item) Pending() bool { return i.pending.Load() }

// Queue runs submitted items one at a time, in submission order.
type Queue struct {
	items chan *Item
	drops atomic.Uint32
}

// New creates a queue holding up to capacity distinct pending items.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{items: make(chan *Item, capacity)}
}

// Submit queues item unless it is already pending. It never blocks and is
// safe to call from any goroutine.
//
// Returns true if the item was newly queued.
func (q *Queue) Submit(item *Item) bool {
	if !item.pending.CompareAndSwap(false, true) {
		return false
	}
	select {
	case q.items <- item:
		return true
	default:
		item.pending.Store(false)
		q.drops.Add(1)
		return false
	}
}

// Drops counts submissions rejected because the queue was full.
func (q *Queue) Drops() uint32 { return q.drops.Load() }

// Run executes items until ctx is cancelled. The pending flag is cleared
// just before an item runs, so an edge arriving while it runs queues
// exactly one more run.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case item := <-q.items:
			item.pending.Store(false)
			item.fn(ctx)
		}
	}
}
