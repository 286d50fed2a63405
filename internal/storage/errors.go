package storage

import "errors"

var (
	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrCatalogModelNotFound is returned when a catalog entry is not found
	ErrCatalogModelNotFound = errors.New("catalog model not found")

	// ErrCustomModelNotFound is returned when a personal model is not found
	ErrCustomModelNotFound = errors.New("custom model not found")

	// ErrCredentialNotFound is returned when a user has no key for a catalog entry
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrEncryptionNotConfigured is returned by a nil *Encryption
	ErrEncryptionNotConfigured = errors.New("encryption not configured")
)
