package auth

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"sync"
)

var ErrBadCredentials = errors.New("auth: bad credentials")

// Service authenticates the single admin account and tracks sign-in
// state. Listeners registered with OnStateChange get the current state
// immediately and every transition after.
type Service struct {
	username string
	password string
	secret   []byte
	log      *slog.Logger

	mu        sync.Mutex
	signedIn  bool
	nextID    int
	listeners map[int]func(signedIn bool)
}

func NewService(username, password, secret string) *Service {
	return &Service{
		username:  username,
		password:  password,
		secret:    SecretBytes(secret),
		log:       slog.Default().With("component", "auth"),
		listeners: make(map[int]func(bool)),
	}
}

// Login validates the credentials and returns a signed session token.
// Comparison is constant-time on both fields.
func (s *Service) Login(username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	if !userOK || !passOK {
		s.log.Warn("login rejected", "username", username)
		return "", ErrBadCredentials
	}

	s.setSignedIn(true)
	s.log.Info("admin signed in")
	return SignToken(username, s.secret), nil
}

// SignOut flips the state to signed-out. Safe to call repeatedly; tokens
// already issued stay verifiable, the state change is what consumers
// react to.
func (s *Service) SignOut() {
	s.setSignedIn(false)
}

// Verify checks a session token and returns its subject.
func (s *Service) Verify(token string) (string, error) {
	return VerifyToken(token, s.secret)
}

// SignedIn reports the current state.
func (s *Service) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signedIn
}

// OnStateChange registers a listener and returns its unsubscribe
// function. The listener is invoked synchronously with the current state
// before OnStateChange returns.
func (s *Service) OnStateChange(fn func(signedIn bool)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := s.signedIn
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) setSignedIn(v bool) {
	s.mu.Lock()
	if s.signedIn == v {
		s.mu.Unlock()
		return
	}
	s.signedIn = v
	fns := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
