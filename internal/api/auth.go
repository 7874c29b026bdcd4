package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yasirdev/folio/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func handleLogin(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		token, err := svc.Login(req.Username, req.Password)
		if errors.Is(err, auth.ErrBadCredentials) {
			httpError(w, http.StatusUnauthorized, "authentication_error", "invalid username or password")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "login failed: %v", err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     auth.SessionCookieName(),
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleLogout(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.SignOut()
		http.SetCookie(w, &http.Cookie{
			Name:     auth.SessionCookieName(),
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// RequireSession guards admin routes with the session cookie.
func RequireSession(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookieName())
			if err != nil {
				httpError(w, http.StatusUnauthorized, "authentication_error", "missing session")
				return
			}
			if _, err := svc.Verify(cookie.Value); err != nil {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid session")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
