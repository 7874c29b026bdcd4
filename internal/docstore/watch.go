package docstore

import "sync"

const watchQueueSize = 16

// watcher delivers snapshots to one subscriber. Snapshot delivery is
// last-write-wins: when the queue is full the oldest queued snapshot is
// dropped so a slow reader always converges on the latest state instead of
// blocking every other subscriber.
type watcher struct {
	snapshots chan []Submission
	errs      chan error

	mu     sync.Mutex
	closed bool
}

// watcherSet owns watcher registration and fanout.
type watcherSet struct {
	mu   sync.Mutex
	next int
	all  map[int]*watcher
}

func newWatcherSet() *watcherSet {
	return &watcherSet{all: make(map[int]*watcher)}
}

// Watch registers a subscriber and returns its snapshot and error channels
// plus a cancel function. Cancel is synchronous and idempotent: after it
// returns, no further sends happen and both channels are closed.
func (s *Store) Watch() (<-chan []Submission, <-chan error, func()) {
	w := &watcher{
		snapshots: make(chan []Submission, watchQueueSize),
		errs:      make(chan error, 1),
	}

	s.watchers.mu.Lock()
	id := s.watchers.next
	s.watchers.next++
	s.watchers.all[id] = w
	s.watchers.mu.Unlock()

	cancel := func() {
		s.watchers.mu.Lock()
		delete(s.watchers.all, id)
		s.watchers.mu.Unlock()
		w.close()
	}
	return w.snapshots, w.errs, cancel
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.snapshots)
	close(w.errs)
}

func (w *watcher) send(snapshot []Submission) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	for {
		select {
		case w.snapshots <- snapshot:
			return
		default:
		}
		// Queue full: drop the oldest entry and retry.
		select {
		case <-w.snapshots:
		default:
		}
	}
}

func (w *watcher) sendErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.errs <- err:
	default:
	}
}

func (ws *watcherSet) broadcast(snapshot []Submission) {
	ws.mu.Lock()
	targets := make([]*watcher, 0, len(ws.all))
	for _, w := range ws.all {
		targets = append(targets, w)
	}
	ws.mu.Unlock()

	for _, w := range targets {
		w.send(snapshot)
	}
}

func (ws *watcherSet) fail(err error) {
	ws.mu.Lock()
	targets := make([]*watcher, 0, len(ws.all))
	for _, w := range ws.all {
		targets = append(targets, w)
	}
	ws.mu.Unlock()

	for _, w := range targets {
		w.sendErr(err)
	}
}

func (ws *watcherSet) empty() bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.all) == 0
}

func (ws *watcherSet) closeAll() {
	ws.mu.Lock()
	targets := make([]*watcher, 0, len(ws.all))
	for id, w := range ws.all {
		targets = append(targets, w)
		delete(ws.all, id)
	}
	ws.mu.Unlock()

	for _, w := range targets {
		w.close()
	}
}
