// Package contact validates and stores contact form submissions.
package contact

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/yasirdev/folio/internal/docstore"
)

const maxMessageLength = 5000

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ValidationError reports which field failed and why. The reason strings
// are stable and safe to surface to clients.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("contact: %s %s", e.Field, e.Reason)
}

// Store is the persistence surface Intake needs.
type Store interface {
	CreateSubmission(ctx context.Context, fields docstore.SubmissionFields) (docstore.Submission, error)
}

// Intake validates, sanitizes and persists contact form submissions.
type Intake struct {
	store Store
	log   *slog.Logger
}

func NewIntake(store Store) *Intake {
	return &Intake{
		store: store,
		log:   slog.Default().With("component", "contact"),
	}
}

// Submit validates the form, strips any markup from the free-text fields
// and persists the submission with status unread.
func (i *Intake) Submit(ctx context.Context, name, email, message string) (docstore.Submission, error) {
	name = strings.TrimSpace(stripTags(name))
	email = strings.ToLower(strings.TrimSpace(email))
	message = strings.TrimSpace(stripTags(message))

	if err := validate(name, email, message); err != nil {
		return docstore.Submission{}, err
	}

	sub, err := i.store.CreateSubmission(ctx, docstore.SubmissionFields{
		Name:    name,
		Email:   email,
		Message: message,
		Status:  docstore.StatusUnread,
	})
	if err != nil {
		return docstore.Submission{}, fmt.Errorf("store submission: %w", err)
	}

	i.log.Info("contact submission stored", "id", sub.ID)
	return sub, nil
}

func validate(name, email, message string) error {
	if name == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if email == "" {
		return &ValidationError{Field: "email", Reason: "required"}
	}
	if !emailPattern.MatchString(email) {
		return &ValidationError{Field: "email", Reason: "invalid"}
	}
	if message == "" {
		return &ValidationError{Field: "message", Reason: "required"}
	}
	if len([]rune(message)) > maxMessageLength {
		return &ValidationError{Field: "message", Reason: "too long"}
	}
	return nil
}

// stripTags drops any HTML markup, keeping only text content.
func stripTags(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}
	tok := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(tok.Text())
		}
	}
}
