package docstore

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrPermissionDenied is returned when an operation requires an
// authenticated admin session and none is present or valid.
var ErrPermissionDenied = errors.New("permission denied")

// Submission statuses.
const (
	StatusUnread = "unread"
	StatusRead   = "read"
)

// Submission is one contact-form record. Fields other than ID and the
// timestamps may be empty for rows written by older form versions; readers
// are expected to apply their own display defaults.
type Submission struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubmissionFields carries caller-supplied fields for Create. ID and both
// timestamps are always assigned by the store.
type SubmissionFields struct {
	Name    string
	Email   string
	Message string
	Status  string
}
