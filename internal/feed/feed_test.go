package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yasirdev/folio/internal/docstore"
)

type fakeStore struct {
	mu        sync.Mutex
	subs      []docstore.Submission
	listErr   error
	updateErr error
	deleteErr error
	updated   []string
	deleted   []string

	snapCh    chan []docstore.Submission
	errCh     chan error
	cancelled bool
}

func newFakeStore(subs ...docstore.Submission) *fakeStore {
	return &fakeStore{
		subs:   subs,
		snapCh: make(chan []docstore.Submission, 8),
		errCh:  make(chan error, 8),
	}
}

func (s *fakeStore) ListSubmissions(ctx context.Context) ([]docstore.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]docstore.Submission, len(s.subs))
	copy(out, s.subs)
	return out, nil
}

func (s *fakeStore) UpdateSubmissionStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, id)
	return s.updateErr
}

func (s *fakeStore) DeleteSubmission(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) Watch() (<-chan []docstore.Submission, <-chan error, func()) {
	return s.snapCh, s.errCh, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.cancelled {
			s.cancelled = true
			close(s.snapCh)
			close(s.errCh)
		}
	}
}

func (s *fakeStore) wasCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

type fakeAuth struct {
	mu       sync.Mutex
	signOuts int
}

func (a *fakeAuth) SignOut() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signOuts++
}

func (a *fakeAuth) signOutCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signOuts
}

func sub(id, name string, createdAt time.Time) docstore.Submission {
	return docstore.Submission{
		ID:        id,
		Name:      name,
		Email:     name + "@example.com",
		Message:   "hi",
		Status:    docstore.StatusUnread,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestStartPopulatesOrdered(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// Store returns records in arbitrary order; the feed must order them.
	store := newFakeStore(
		sub("a", "oldest", base),
		sub("c", "newest", base.Add(2*time.Minute)),
		sub("b", "middle", base.Add(time.Minute)),
	)
	f := New(store, &fakeAuth{}, nil)
	t.Cleanup(f.Stop)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	items := f.Items()
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	want := []string{"newest", "middle", "oldest"}
	for i, w := range want {
		if items[i].Name != w {
			t.Errorf("items[%d].Name = %q, want %q", i, items[i].Name, w)
		}
	}
	if f.CurrentState() != StateLive {
		t.Errorf("state = %q, want live", f.CurrentState())
	}
}

func TestFieldDefaultsApplied(t *testing.T) {
	store := newFakeStore(docstore.Submission{
		ID:        "x",
		CreatedAt: time.Now().UTC(),
	})
	f := New(store, &fakeAuth{}, nil)
	t.Cleanup(f.Stop)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	item := f.Items()[0]
	if item.Name != defaultName || item.Email != defaultEmail || item.Message != defaultMessage {
		t.Errorf("defaults not applied: %+v", item)
	}
	if item.Status != docstore.StatusUnread {
		t.Errorf("status = %q, want unread default", item.Status)
	}
}

func TestSnapshotReplacesWholesale(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(
		sub("a", "a", base),
		sub("b", "b", base.Add(time.Minute)),
		sub("c", "c", base.Add(2*time.Minute)),
	)
	f := New(store, &fakeAuth{}, nil)
	t.Cleanup(f.Stop)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// One record deleted externally; the pushed snapshot carries two.
	store.snapCh <- []docstore.Submission{
		sub("a", "a", base),
		sub("c", "c", base.Add(2*time.Minute)),
	}

	waitFor(t, func() bool { return len(f.Items()) == 2 })

	items := f.Items()
	if items[0].ID != "c" || items[1].ID != "a" {
		t.Errorf("snapshot order = [%s %s], want [c a]", items[0].ID, items[1].ID)
	}
}

func TestMarkReadOptimisticKeptOnFailure(t *testing.T) {
	store := newFakeStore(sub("a", "a", time.Now().UTC()))
	store.updateErr = errors.New("store down")

	var notices []Notice
	var mu sync.Mutex
	f := New(store, &fakeAuth{}, func(n Notice) {
		mu.Lock()
		notices = append(notices, n)
		mu.Unlock()
	})
	t.Cleanup(f.Stop)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err := f.MarkRead(context.Background(), "a")
	if err == nil {
		t.Fatal("expected MarkRead to report the store failure")
	}

	// The optimistic flip survives the failure.
	if got := f.Items()[0].Status; got != docstore.StatusRead {
		t.Errorf("status = %q, want read despite store failure", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(notices) != 1 || notices[0].Kind != NoticeTransient {
		t.Errorf("notices = %+v, want one transient notice", notices)
	}
}

func TestRemovePessimistic(t *testing.T) {
	store := newFakeStore(sub("a", "a", time.Now().UTC()))
	store.deleteErr = errors.New("store down")
	f := New(store, &fakeAuth{}, nil)
	t.Cleanup(f.Stop)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := f.Remove(context.Background(), "a"); err == nil {
		t.Fatal("expected Remove to fail")
	}
	// Pessimistic: the item stays until the store confirms.
	if len(f.Items()) != 1 {
		t.Errorf("item removed despite delete failure")
	}

	store.mu.Lock()
	store.deleteErr = nil
	store.mu.Unlock()

	if err := f.Remove(context.Background(), "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(f.Items()) != 0 {
		t.Errorf("item not removed after confirmed delete")
	}
}

func TestStaleSnapshotDoesNotResurrectRemoved(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(sub("a", "a", base), sub("b", "b", base.Add(time.Minute)))
	f := New(store, &fakeAuth{}, nil)
	t.Cleanup(f.Stop)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := f.Remove(context.Background(), "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	// A snapshot produced before the delete committed arrives late.
	store.snapCh <- []docstore.Submission{
		sub("a", "a", base),
		sub("b", "b", base.Add(time.Minute)),
	}
	// Then the authoritative post-delete snapshot.
	store.snapCh <- []docstore.Submission{
		sub("b", "b", base.Add(time.Minute)),
	}

	waitFor(t, func() bool {
		items := f.Items()
		return len(items) == 1 && items[0].ID == "b"
	})

	// At no point may "a" have resurfaced; poll once more to be sure the
	// stale snapshot was filtered rather than racily overwritten.
	for _, item := range f.Items() {
		if item.ID == "a" {
			t.Error("removed row resurrected by stale snapshot")
		}
	}
}

func TestPermissionErrorForcesSignOut(t *testing.T) {
	store := newFakeStore(sub("a", "a", time.Now().UTC()))
	auth := &fakeAuth{}
	f := New(store, auth, nil)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	store.errCh <- docstore.ErrPermissionDenied

	waitFor(t, func() bool { return f.CurrentState() == StateUnauthenticated })

	if auth.signOutCount() != 1 {
		t.Errorf("sign-outs = %d, want 1", auth.signOutCount())
	}
	if !store.wasCancelled() {
		t.Error("subscription not cancelled on permission error")
	}
}

func TestTransientErrorSchedulesSingleRefresh(t *testing.T) {
	store := newFakeStore(sub("a", "a", time.Now().UTC()))
	var notices []Notice
	var mu sync.Mutex
	f := New(store, &fakeAuth{}, func(n Notice) {
		mu.Lock()
		notices = append(notices, n)
		mu.Unlock()
	})
	t.Cleanup(f.Stop)

	var scheduled []time.Duration
	var fire func()
	f.schedule = func(d time.Duration, fn func()) *time.Timer {
		mu.Lock()
		scheduled = append(scheduled, d)
		fire = fn
		mu.Unlock()
		return time.NewTimer(time.Hour)
	}

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	store.errCh <- errors.New("transport glitch")
	waitFor(t, func() bool { return f.CurrentState() == StateError })

	// A second error before the refresh fires must not stack timers.
	store.errCh <- errors.New("transport glitch again")
	waitFor(t, func() bool { return f.LastError() != nil })

	mu.Lock()
	if len(scheduled) != 1 || scheduled[0] != errorRefreshDelay {
		t.Errorf("scheduled refreshes = %v, want one at %v", scheduled, errorRefreshDelay)
	}
	fireNow := fire
	mu.Unlock()

	// The scheduled refresh recovers the feed.
	fireNow()
	waitFor(t, func() bool { return f.CurrentState() == StateLive })

	if f.LastError() != nil {
		t.Errorf("lastErr = %v after recovery, want nil", f.LastError())
	}
}

func TestStopIdempotent(t *testing.T) {
	store := newFakeStore(sub("a", "a", time.Now().UTC()))
	f := New(store, &fakeAuth{}, nil)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.Stop()
	f.Stop()

	if !store.wasCancelled() {
		t.Error("subscription not cancelled on Stop")
	}
	if f.CurrentState() != StateIdle {
		t.Errorf("state = %q after Stop, want idle", f.CurrentState())
	}
}

func TestSubscribeStreamsAppliedSnapshots(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(sub("a", "a", base))
	f := New(store, &fakeAuth{}, nil)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	items, _, cancel := f.Subscribe()
	defer cancel()

	store.snapCh <- []docstore.Submission{
		sub("a", "a", base),
		sub("b", "b", base.Add(time.Minute)),
	}

	select {
	case snap := <-items:
		if len(snap) != 2 || snap[0].ID != "b" {
			t.Errorf("snapshot = %+v, want [b a]", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered to subscriber")
	}

	f.Stop()
	select {
	case _, ok := <-items:
		if ok {
			// Draining a queued snapshot is fine; the channel must
			// still close.
			if _, ok := <-items; ok {
				t.Error("subscriber channel not closed on Stop")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel not closed on Stop")
	}
}

func TestSnapshotAfterStopDiscarded(t *testing.T) {
	store := newFakeStore(sub("a", "a", time.Now().UTC()))
	f := New(store, &fakeAuth{}, nil)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	before := f.Items()
	f.Stop()

	// The fake's channels are closed by cancel; apply directly to model a
	// callback that was already in flight at Stop time.
	f.applySnapshot(nil)

	after := f.Items()
	if len(after) != len(before) {
		t.Errorf("items changed after Stop: %d -> %d", len(before), len(after))
	}
}
