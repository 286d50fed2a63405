package session

import (
	"fmt"

	"github.com/google/uuid"
)

// PersistenceError is a durable history write that failed after the
// assistant already answered. It is logged and never shown to the user.
type PersistenceError struct {
	UserID    int64
	SessionID uuid.UUID
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist exchange for user %d (session %s): %v", e.UserID, e.SessionID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
