// Package common defines shared constants and sentinel errors used across
// the catalog server, its repositories and the admin CLI. Callers should use
// errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrAlreadyExists   = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors. Everything below wraps ErrorValidation so the
	// boundary can treat them as caller-fixable.
	ErrorValidation         = errors.New("validation error")
	ErrUnsupportedMediaType = fmt.Errorf("%w: unsupported media type", ErrorValidation)
	ErrBatchTooLarge        = fmt.Errorf("%w: too many files in batch", ErrorValidation)
	ErrFileTooLarge         = fmt.Errorf("%w: file too large", ErrorValidation)

	// Per-image pipeline errors. Never surfaced to the caller of an ingest.
	ErrDecodeFailed = errors.New("decode failed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
