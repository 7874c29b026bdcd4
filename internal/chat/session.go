package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yasirdev/folio/internal/provider"
)

const greetingText = "Hi! I'm Yasir's AI assistant. I can help you learn more about his work, skills, and experience. What would you like to know?"

// apologyText is the single fallback reply appended when the provider
// fails for any reason other than rate limiting.
const apologyText = "Sorry, I'm having trouble responding right now. Please try again later."

const defaultRetryAfter = 60

// NoticeKind classifies user-visible notices emitted by a session.
type NoticeKind string

const (
	NoticeRateLimited NoticeKind = "rate_limited"
	NoticeError       NoticeKind = "error"
)

// Notice is a transient, user-visible message. Notices never enter the
// message thread; the presentation layer decides how to show them.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Session owns one conversational thread: its history, unsent draft,
// loading flag, and rate-limit cooldown. All mutating operations are
// serialized; concurrent Send calls are rejected by the loading gate
// rather than interleaved.
type Session struct {
	provider provider.Provider
	cache    Cache
	notify   func(Notice)
	log      *slog.Logger

	mu          sync.Mutex
	alive       bool
	messages    []Message
	draft       string
	loading     bool
	rateLimited bool
	retryAfter  int
	retryTimer  *time.Timer

	now      func() time.Time
	schedule func(d time.Duration, f func()) *time.Timer
}

// NewSession creates a session backed by the given provider and cache.
// notify receives transient notices; pass nil to discard them.
func NewSession(p provider.Provider, cache Cache, notify func(Notice)) *Session {
	if notify == nil {
		notify = func(Notice) {}
	}
	return &Session{
		provider: p,
		cache:    cache,
		notify:   notify,
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		schedule: time.AfterFunc,
	}
}

// Initialize restores the message history from the cache, seeding a
// single assistant greeting when nothing has been saved yet. It never
// writes to the cache.
func (s *Session) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alive = true

	history, err := s.cache.Load()
	switch {
	case err == nil && len(history) > 0:
		s.messages = history
	case err != nil && !errors.Is(err, ErrNoHistory):
		s.log.Warn("could not restore chat history, starting fresh", "error", err)
		fallthrough
	default:
		s.messages = []Message{newMessage(SenderAssistant, greetingText, s.now())}
	}
}

// Teardown stops the cooldown timer and suppresses every state update
// from async work that settles afterwards. Safe to call more than once.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alive = false
	s.loading = false
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

// UpdateDraft replaces the unsent draft text. No side effects.
func (s *Session) UpdateDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive {
		return
	}
	s.draft = text
}

// Send commits the draft as a user message and requests an assistant
// reply. It is a silent no-op when the trimmed draft is empty, a send is
// already in flight, or the session is in a rate-limit cooldown; the
// return value reports whether the command was accepted.
//
// The loading flag is cleared on every exit path.
func (s *Session) Send(ctx context.Context) bool {
	s.mu.Lock()
	text := strings.TrimSpace(s.draft)
	if !s.alive || text == "" || s.loading || s.rateLimited {
		s.mu.Unlock()
		return false
	}

	s.messages = append(s.messages, newMessage(SenderUser, text, s.now()))
	s.draft = ""
	s.loading = true
	prior := s.turnsLocked(len(s.messages) - 1)
	s.persistLocked()
	s.mu.Unlock()

	reply, err := s.provider.Reply(ctx, prior, text)

	var notice *Notice

	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return true
	}
	s.loading = false

	switch {
	case err == nil:
		s.messages = append(s.messages, newMessage(SenderAssistant, reply, s.now()))
		s.persistLocked()

	default:
		if rl, ok := provider.AsRateLimit(err); ok {
			s.enterCooldownLocked(rl.RetryAfter)
			notice = &Notice{
				Kind:    NoticeRateLimited,
				Message: fmt.Sprintf("Rate limited. Please try again in %d seconds.", s.retryAfter),
			}
		} else {
			s.log.Error("provider request failed", "error", err)
			s.messages = append(s.messages, newMessage(SenderAssistant, apologyText, s.now()))
			s.persistLocked()
			notice = &Notice{
				Kind:    NoticeError,
				Message: "Failed to get response from AI. Please try again later.",
			}
		}
	}
	s.mu.Unlock()

	if notice != nil {
		s.notify(*notice)
	}
	return true
}

// enterCooldownLocked starts the rate-limit window and schedules its
// automatic clear. The clear is suppressed after Teardown.
func (s *Session) enterCooldownLocked(retryAfter int) {
	if retryAfter <= 0 {
		retryAfter = defaultRetryAfter
	}
	s.rateLimited = true
	s.retryAfter = retryAfter

	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	s.retryTimer = s.schedule(time.Duration(retryAfter)*time.Second, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.alive {
			return
		}
		s.rateLimited = false
		s.retryAfter = 0
		s.retryTimer = nil
	})
}

// turnsLocked converts the first n committed messages to provider turns.
func (s *Session) turnsLocked(n int) []provider.Turn {
	turns := make([]provider.Turn, 0, n)
	for _, m := range s.messages[:n] {
		role := provider.RoleUser
		if m.Sender == SenderAssistant {
			role = provider.RoleAssistant
		}
		turns = append(turns, provider.Turn{Role: role, Content: m.Text})
	}
	return turns
}

// persistLocked saves the full history. Failures are logged only; best
// effort caching must not disturb the conversation.
func (s *Session) persistLocked() {
	if err := s.cache.Save(s.messages); err != nil {
		s.log.Warn("could not persist chat history", "error", err)
	}
}

// Messages returns a copy of the committed history in insertion order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Draft returns the current unsent draft text.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// IsLoading reports whether a send is in flight.
func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// RateLimit reports whether the session is cooling down and, if so, the
// cooldown length in seconds.
func (s *Session) RateLimit() (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateLimited, s.retryAfter
}
