package contact

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yasirdev/folio/internal/docstore"
)

type memStore struct {
	created []docstore.SubmissionFields
	err     error
}

func (m *memStore) CreateSubmission(ctx context.Context, fields docstore.SubmissionFields) (docstore.Submission, error) {
	if m.err != nil {
		return docstore.Submission{}, m.err
	}
	m.created = append(m.created, fields)
	return docstore.Submission{
		ID:      "sub-1",
		Name:    fields.Name,
		Email:   fields.Email,
		Message: fields.Message,
		Status:  fields.Status,
	}, nil
}

func TestSubmitStoresNormalizedFields(t *testing.T) {
	store := &memStore{}
	intake := NewIntake(store)

	sub, err := intake.Submit(context.Background(), "  Ada Lovelace  ", " Ada@Example.COM ", "  Hello there  ")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("created %d submissions, want 1", len(store.created))
	}
	got := store.created[0]
	if got.Name != "Ada Lovelace" {
		t.Errorf("name = %q, want trimmed", got.Name)
	}
	if got.Email != "ada@example.com" {
		t.Errorf("email = %q, want lowercased and trimmed", got.Email)
	}
	if got.Message != "Hello there" {
		t.Errorf("message = %q, want trimmed", got.Message)
	}
	if got.Status != docstore.StatusUnread {
		t.Errorf("status = %q, want unread", got.Status)
	}
	if sub.ID == "" {
		t.Error("submission id not returned")
	}
}

func TestSubmitValidation(t *testing.T) {
	intake := NewIntake(&memStore{})

	cases := []struct {
		name                 string
		formName, email, msg string
		field                string
	}{
		{"missing name", "", "a@b.co", "hi", "name"},
		{"missing email", "Ada", "", "hi", "email"},
		{"bad email no at", "Ada", "ada.example.com", "hi", "email"},
		{"bad email no dot", "Ada", "ada@example", "hi", "email"},
		{"bad email spaces", "Ada", "ada lovelace@example.com", "hi", "email"},
		{"missing message", "Ada", "a@b.co", "   ", "message"},
		{"message too long", "Ada", "a@b.co", strings.Repeat("x", maxMessageLength+1), "message"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := intake.Submit(context.Background(), c.formName, c.email, c.msg)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Field != c.field {
				t.Errorf("field = %q, want %q", verr.Field, c.field)
			}
		})
	}
}

func TestSubmitStripsMarkup(t *testing.T) {
	store := &memStore{}
	intake := NewIntake(store)

	_, err := intake.Submit(context.Background(),
		"<b>Ada</b>", "ada@example.com", `<script>alert("hi")</script>Interested in your work`)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got := store.created[0]
	if got.Name != "Ada" {
		t.Errorf("name = %q, want markup stripped", got.Name)
	}
	if strings.Contains(got.Message, "<") {
		t.Errorf("message = %q, markup not stripped", got.Message)
	}
	if !strings.HasSuffix(got.Message, "Interested in your work") {
		t.Errorf("message = %q, text content lost", got.Message)
	}
}

func TestSubmitStoreFailure(t *testing.T) {
	intake := NewIntake(&memStore{err: errors.New("disk full")})

	_, err := intake.Submit(context.Background(), "Ada", "ada@example.com", "hi")
	if err == nil {
		t.Fatal("expected store failure to surface")
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Error("store failure misclassified as validation error")
	}
}
