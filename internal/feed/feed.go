// Package feed maintains a live, admin-mutable view over the contact
// submissions collection: one authoritative fetch, then a subscription
// whose snapshots replace the local items wholesale.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/yasirdev/folio/internal/docstore"
)

// Display defaults applied to partially-filled records on every decode.
const (
	defaultName    = "Unknown"
	defaultEmail   = "No email"
	defaultMessage = "No message"
)

// errorRefreshDelay is how long after a transient subscription error the
// single recovery refresh runs.
const errorRefreshDelay = 5 * time.Second

// State is the feed lifecycle state.
type State string

const (
	StateIdle            State = "idle"
	StateLoading         State = "loading"
	StateLive            State = "live"
	StateError           State = "error"
	StateUnauthenticated State = "unauthenticated"
)

// Store is the slice of the document store the feed needs.
type Store interface {
	ListSubmissions(ctx context.Context) ([]docstore.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, id, status string) error
	DeleteSubmission(ctx context.Context, id string) error
	Watch() (<-chan []docstore.Submission, <-chan error, func())
}

// Auth is the slice of the auth service the feed needs: permission
// failures force a sign-out.
type Auth interface {
	SignOut()
}

// NoticeKind classifies user-visible notices emitted by the feed.
type NoticeKind string

const (
	NoticeTransient        NoticeKind = "transient"
	NoticePermissionDenied NoticeKind = "permission_denied"
)

// Notice is a transient, user-visible message.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Feed mirrors the contact submissions collection, ordered by creation
// time descending. The store stays authoritative; the mirror is
// eventually consistent.
type Feed struct {
	store  Store
	auth   Auth
	notify func(Notice)
	log    *slog.Logger

	mu             sync.Mutex
	alive          bool
	state          State
	items          []docstore.Submission
	loading        bool
	lastErr        error
	cancelWatch    func()
	refreshTimer   *time.Timer
	refreshPending bool

	// Tombstones for locally-removed rows: a snapshot produced before
	// the delete committed must not resurrect them. Cleared once an
	// authoritative snapshot no longer carries the row.
	removed map[string]bool

	subs    map[int]*subscriber
	nextSub int

	schedule func(d time.Duration, f func()) *time.Timer
}

// New creates a stopped feed. notify receives transient notices; pass nil
// to discard them.
func New(store Store, auth Auth, notify func(Notice)) *Feed {
	if notify == nil {
		notify = func(Notice) {}
	}
	return &Feed{
		store:    store,
		auth:     auth,
		notify:   notify,
		log:      slog.Default(),
		state:    StateIdle,
		removed:  make(map[string]bool),
		subs:     make(map[int]*subscriber),
		schedule: time.AfterFunc,
	}
}

// Start performs one authoritative fetch to populate the items
// immediately, then opens the live subscription. Calling Start on a
// running feed is a no-op. The returned error reflects the initial fetch;
// a transient fetch failure still leaves the subscription open so a later
// snapshot can recover the feed.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.alive {
		f.mu.Unlock()
		return nil
	}
	f.alive = true
	f.state = StateLoading
	f.mu.Unlock()

	err := f.fetch(ctx)
	if errors.Is(err, docstore.ErrPermissionDenied) {
		return err
	}

	snapshots, errs, cancel := f.store.Watch()

	f.mu.Lock()
	if !f.alive {
		f.mu.Unlock()
		cancel()
		return err
	}
	f.cancelWatch = cancel
	f.mu.Unlock()

	go f.consume(snapshots, errs)
	return err
}

// Stop closes the live subscription and cancels any scheduled refresh.
// Idempotent; safe to call multiple times. Items are retained for
// display until the next Start.
func (f *Feed) Stop() {
	f.mu.Lock()
	f.alive = false
	if f.state == StateLive || f.state == StateLoading || f.state == StateError {
		f.state = StateIdle
	}
	cancel := f.cancelWatch
	f.cancelWatch = nil
	if f.refreshTimer != nil {
		f.refreshTimer.Stop()
		f.refreshTimer = nil
	}
	f.refreshPending = false
	f.closeSubscribersLocked()
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Refresh re-runs the one-shot authoritative fetch. Manual recovery path.
func (f *Feed) Refresh(ctx context.Context) error {
	return f.fetch(ctx)
}

// MarkRead optimistically flips the matching item to read locally, then
// issues the mutation. A store failure is reported but the optimistic
// flip is kept: marking mistakes are cheap, and the next authoritative
// snapshot settles the truth.
func (f *Feed) MarkRead(ctx context.Context, id string) error {
	f.mu.Lock()
	if !f.alive {
		f.mu.Unlock()
		return nil
	}
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Status = docstore.StatusRead
			break
		}
	}
	f.publishItemsLocked()
	f.mu.Unlock()

	if err := f.store.UpdateSubmissionStatus(ctx, id, docstore.StatusRead); err != nil {
		f.log.Error("mark-read failed", "id", id, "error", err)
		f.setLastErr(err)
		f.notify(Notice{Kind: NoticeTransient, Message: "Failed to mark as read. Please try again."})
		return err
	}
	return nil
}

// Remove deletes the record and, only once the store confirms, drops it
// from the local items. Pessimistic on purpose: deletions are not cheap
// to get wrong.
func (f *Feed) Remove(ctx context.Context, id string) error {
	if err := f.store.DeleteSubmission(ctx, id); err != nil {
		f.log.Error("delete failed", "id", id, "error", err)
		f.setLastErr(err)
		f.notify(Notice{Kind: NoticeTransient, Message: "Failed to delete submission. Please try again."})
		return err
	}

	f.mu.Lock()
	if f.alive {
		kept := f.items[:0]
		for _, item := range f.items {
			if item.ID != id {
				kept = append(kept, item)
			}
		}
		f.items = kept
		f.removed[id] = true
		f.publishItemsLocked()
	}
	f.mu.Unlock()
	return nil
}

// consume applies subscription events until the watch channels close.
func (f *Feed) consume(snapshots <-chan []docstore.Submission, errs <-chan error) {
	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			f.applySnapshot(snap)
		case err, ok := <-errs:
			if !ok {
				return
			}
			f.handleSubscriptionError(err)
		}
	}
}

// applySnapshot replaces the items wholesale with the decoded, ordered
// result. Last-write-wins by arrival order.
func (f *Feed) applySnapshot(snap []docstore.Submission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive {
		return
	}

	items := make([]docstore.Submission, 0, len(snap))
	seen := make(map[string]bool, len(snap))
	for _, sub := range snap {
		seen[sub.ID] = true
		if f.removed[sub.ID] {
			continue
		}
		items = append(items, normalize(sub))
	}
	for id := range f.removed {
		if !seen[id] {
			delete(f.removed, id)
		}
	}

	sortByCreatedAtDesc(items)
	f.items = items
	f.state = StateLive
	f.lastErr = nil
	f.publishItemsLocked()
}

// handleSubscriptionError classifies a subscription failure. Permission
// loss is fatal: the subscription stops and the auth service signs the
// admin out. Anything else gets a notice and exactly one delayed refresh;
// the subscription itself is not retried; a fresh Start re-subscribes.
func (f *Feed) handleSubscriptionError(err error) {
	if errors.Is(err, docstore.ErrPermissionDenied) {
		f.escalatePermission(err)
		return
	}

	f.log.Warn("subscription error", "error", err)

	f.mu.Lock()
	if !f.alive {
		f.mu.Unlock()
		return
	}
	f.lastErr = err
	f.state = StateError
	f.publishErrLocked(err)
	scheduled := false
	if !f.refreshPending {
		f.refreshPending = true
		scheduled = true
		f.refreshTimer = f.schedule(errorRefreshDelay, func() {
			f.mu.Lock()
			f.refreshPending = false
			f.refreshTimer = nil
			alive := f.alive
			f.mu.Unlock()
			if alive {
				f.fetch(context.Background())
			}
		})
	}
	f.mu.Unlock()

	if scheduled {
		f.notify(Notice{Kind: NoticeTransient, Message: "There was an issue with the real-time updates. Refreshing in 5 seconds..."})
	}
}

// escalatePermission tears the feed down and forces a sign-out. Terminal:
// only a new Start after re-authentication revives the feed.
func (f *Feed) escalatePermission(err error) {
	f.log.Error("permission denied on submissions feed", "error", err)
	f.Stop()

	f.mu.Lock()
	f.state = StateUnauthenticated
	f.lastErr = err
	f.mu.Unlock()

	f.notify(Notice{Kind: NoticePermissionDenied, Message: "You do not have permission to view submissions."})
	f.auth.SignOut()
}

// fetch is the one-shot authoritative list. It applies the same decode
// policy as snapshots and classifies errors the same way.
func (f *Feed) fetch(ctx context.Context) error {
	f.mu.Lock()
	if !f.alive {
		f.mu.Unlock()
		return nil
	}
	f.loading = true
	f.mu.Unlock()

	subs, err := f.store.ListSubmissions(ctx)

	f.mu.Lock()
	f.loading = false
	f.mu.Unlock()

	if err != nil {
		if errors.Is(err, docstore.ErrPermissionDenied) {
			f.escalatePermission(err)
			return err
		}
		f.log.Warn("fetch failed", "error", err)
		f.setLastErr(err)
		f.notify(Notice{Kind: NoticeTransient, Message: "Failed to load submissions. Please try again."})
		return err
	}

	f.applySnapshot(subs)
	return nil
}

func (f *Feed) setLastErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive {
		return
	}
	f.lastErr = err
	f.state = StateError
}

// Items returns a copy of the current mirror, ordered by creation time
// descending.
func (f *Feed) Items() []docstore.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]docstore.Submission, len(f.items))
	copy(out, f.items)
	return out
}

// CurrentState returns the lifecycle state.
func (f *Feed) CurrentState() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// IsLoading reports whether a fetch is in flight.
func (f *Feed) IsLoading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// LastError returns the most recent unresolved error, nil when live.
func (f *Feed) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func normalize(sub docstore.Submission) docstore.Submission {
	if sub.Name == "" {
		sub.Name = defaultName
	}
	if sub.Email == "" {
		sub.Email = defaultEmail
	}
	if sub.Message == "" {
		sub.Message = defaultMessage
	}
	if sub.Status == "" {
		sub.Status = docstore.StatusUnread
	}
	return sub
}

func sortByCreatedAtDesc(items []docstore.Submission) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
}
