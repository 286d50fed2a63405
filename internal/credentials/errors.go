package credentials

import (
	"fmt"

	"github.com/anronharry/TG-bot/internal/models"
)

// ResolutionReason says why a model reference could not be used
type ResolutionReason string

const (
	ReasonNotSelected ResolutionReason = "not_selected"
	ReasonNotFound    ResolutionReason = "not_found"
	ReasonInactive    ResolutionReason = "inactive"
	ReasonNotOwned    ResolutionReason = "not_owned"
)

// ResolutionError means the referenced model cannot be used by this user.
// The user should pick another model.
type ResolutionError struct {
	Ref    models.ModelRef
	Reason ResolutionReason
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Ref.IsZero() {
		return fmt.Sprintf("model resolution failed: %s", e.Reason)
	}
	msg := fmt.Sprintf("model %s resolution failed: %s", e.Ref, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// CredentialError means the model exists but no usable key is available.
// The user should register a key.
type CredentialError struct {
	Ref      models.ModelRef
	Provider string
	Err      error
}

func (e *CredentialError) Error() string {
	msg := fmt.Sprintf("no credential available for model %s (provider %s)", e.Ref, e.Provider)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}
