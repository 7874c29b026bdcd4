package feed

import (
	"sync"

	"github.com/yasirdev/folio/internal/docstore"
)

const subscriberQueueSize = 16

// subscriber is one downstream consumer of applied snapshots. Queues are
// bounded; a slow consumer loses intermediate snapshots, never the
// latest.
type subscriber struct {
	items chan []docstore.Submission
	errs  chan error
	once  sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.items)
		close(s.errs)
	})
}

// Subscribe registers a consumer of the feed's applied snapshots and
// subscription errors. The returned cancel is idempotent and closes both
// channels. Snapshots carry the decoded, ordered view, the same items
// Items returns.
func (f *Feed) Subscribe() (<-chan []docstore.Submission, <-chan error, func()) {
	sub := &subscriber{
		items: make(chan []docstore.Submission, subscriberQueueSize),
		errs:  make(chan error, subscriberQueueSize),
	}

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = sub
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
		sub.close()
	}
	return sub.items, sub.errs, cancel
}

// publishItemsLocked fans the current items out to all subscribers.
// Caller holds f.mu.
func (f *Feed) publishItemsLocked() {
	if len(f.subs) == 0 {
		return
	}
	snap := make([]docstore.Submission, len(f.items))
	copy(snap, f.items)
	for _, sub := range f.subs {
		sendLatest(sub.items, snap)
	}
}

// publishErrLocked fans a subscription error out to all subscribers.
// Caller holds f.mu.
func (f *Feed) publishErrLocked(err error) {
	for _, sub := range f.subs {
		select {
		case sub.errs <- err:
		default:
		}
	}
}

// closeSubscribersLocked disconnects all subscribers. Caller holds f.mu.
func (f *Feed) closeSubscribersLocked() {
	for id, sub := range f.subs {
		delete(f.subs, id)
		sub.close()
	}
}

// sendLatest enqueues without blocking, dropping the oldest queued
// snapshot when the queue is full.
func sendLatest(ch chan []docstore.Submission, snap []docstore.Submission) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
