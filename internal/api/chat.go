package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yasirdev/folio/internal/chat"
)

// SessionRegistry tracks the live chat sessions keyed by id. Sessions
// are torn down on removal and on Close.
type SessionRegistry struct {
	newSession func(id string) *chat.Session

	mu       sync.Mutex
	sessions map[string]*chat.Session
}

func NewSessionRegistry(newSession func(id string) *chat.Session) *SessionRegistry {
	return &SessionRegistry{
		newSession: newSession,
		sessions:   make(map[string]*chat.Session),
	}
}

// Create builds and initializes a fresh session.
func (r *SessionRegistry) Create() (string, *chat.Session) {
	id := uuid.New().String()
	s := r.newSession(id)
	s.Initialize()

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return id, s
}

func (r *SessionRegistry) Get(id string) (*chat.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove tears the session down and drops it from the registry.
func (r *SessionRegistry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Teardown()
	}
	return ok
}

// Close tears down every registered session.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*chat.Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Teardown()
	}
}

type chatStateResponse struct {
	ID          string         `json:"id"`
	Messages    []chat.Message `json:"messages"`
	Loading     bool           `json:"loading"`
	RateLimited bool           `json:"rateLimited"`
	RetryAfter  int            `json:"retryAfter,omitempty"`
}

func chatState(id string, s *chat.Session) chatStateResponse {
	limited, retryAfter := s.RateLimit()
	msgs := s.Messages()
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return chatStateResponse{
		ID:          id,
		Messages:    msgs,
		Loading:     s.IsLoading(),
		RateLimited: limited,
		RetryAfter:  retryAfter,
	}
}

func handleChatCreate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, s := deps.Sessions.Create()
		writeJSON(w, http.StatusCreated, chatState(id, s))
	}
}

func handleChatState(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s, ok := deps.Sessions.Get(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "chat session not found")
			return
		}
		writeJSON(w, http.StatusOK, chatState(id, s))
	}
}

type chatSendRequest struct {
	Text string `json:"text"`
}

func handleChatSend(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s, ok := deps.Sessions.Get(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "chat session not found")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req chatSendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		s.UpdateDraft(req.Text)
		if !s.Send(r.Context()) {
			// Empty text, a send already in flight, or a rate-limit
			// cooldown. The state response carries which.
			chatRoundsTotal.WithLabelValues("rejected").Inc()
			writeJSON(w, http.StatusConflict, chatState(id, s))
			return
		}
		if limited, _ := s.RateLimit(); limited {
			chatRoundsTotal.WithLabelValues("rate_limited").Inc()
		} else {
			chatRoundsTotal.WithLabelValues("completed").Inc()
		}
		writeJSON(w, http.StatusOK, chatState(id, s))
	}
}

type chatDraftRequest struct {
	Text string `json:"text"`
}

func handleChatDraft(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s, ok := deps.Sessions.Get(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "chat session not found")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req chatDraftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		s.UpdateDraft(req.Text)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleChatClose(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !deps.Sessions.Remove(id) {
			httpError(w, http.StatusNotFound, "not_found", "chat session not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
	}
}
