// Package api exposes the portfolio backend over HTTP: the public
// contact form and chat endpoints, and the session-guarded admin
// submissions surface with its live websocket feed.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yasirdev/folio/internal/auth"
	"github.com/yasirdev/folio/internal/contact"
	"github.com/yasirdev/folio/internal/docstore"
	"github.com/yasirdev/folio/internal/feed"
)

const maxRequestBodySize = 1 << 20 // 1MB

// AppDeps holds the wired services the HTTP layer fronts.
type AppDeps struct {
	Intake   *contact.Intake
	Feed     *feed.Feed
	Auth     *auth.Service
	Sessions *SessionRegistry
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/contact", handleContact(deps))

		r.Post("/auth/login", handleLogin(deps.Auth))
		r.Post("/auth/logout", handleLogout(deps.Auth))

		r.Route("/chat/sessions", func(r chi.Router) {
			r.Post("/", handleChatCreate(deps))
			r.Get("/{id}", handleChatState(deps))
			r.Post("/{id}/messages", handleChatSend(deps))
			r.Put("/{id}/draft", handleChatDraft(deps))
			r.Delete("/{id}", handleChatClose(deps))
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireSession(deps.Auth))
			r.Get("/submissions", handleListSubmissions(deps))
			r.Post("/submissions/{id}/read", handleMarkRead(deps))
			r.Delete("/submissions/{id}", handleRemoveSubmission(deps))
			r.Get("/submissions/live", handleFeedSocket(deps))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func handleContact(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req contactRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		sub, err := deps.Intake.Submit(r.Context(), req.Name, req.Email, req.Message)
		var verr *contact.ValidationError
		if errors.As(err, &verr) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%s %s", verr.Field, verr.Reason)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to store submission: %v", err)
			return
		}

		contactSubmissionsTotal.Inc()
		writeJSON(w, http.StatusCreated, map[string]string{"id": sub.ID, "status": "received"})
	}
}

type submissionsResponse struct {
	State       feed.State            `json:"state"`
	Submissions []docstore.Submission `json:"submissions"`
}

func handleListSubmissions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := deps.Feed.Items()
		if items == nil {
			items = []docstore.Submission{}
		}
		writeJSON(w, http.StatusOK, submissionsResponse{
			State:       deps.Feed.CurrentState(),
			Submissions: items,
		})
	}
}

func handleMarkRead(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := deps.Feed.MarkRead(r.Context(), id); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "submission not found")
				return
			}
			// The local flip is kept; report the store failure anyway.
			httpError(w, http.StatusInternalServerError, "api_error", "failed to mark as read: %v", err)
			return
		}
		submissionMutationsTotal.WithLabelValues("mark_read").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
	}
}

func handleRemoveSubmission(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := deps.Feed.Remove(r.Context(), id); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "submission not found")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete submission: %v", err)
			return
		}
		submissionMutationsTotal.WithLabelValues("remove").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
