package service

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"mediavault/internal/server/access"
	"mediavault/internal/server/database"

	"github.com/google/uuid"
)

// Sentinel errors for the service layer.
var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("already exists")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
)

// deny wraps a denial so callers can match both ErrForbidden and the
// specific *access.Denial.
func deny(d *access.Denial) error {
	return fmt.Errorf("%w: %w", ErrForbidden, d)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// notFound maps repository misses to ErrNotFound, keeping other errors.
func notFound(err error, what string) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

func conflict(err error, what string) error {
	if errors.Is(err, database.ErrConflict) {
		return fmt.Errorf("%w: %s", ErrConflict, what)
	}
	return err
}

func requireAuth(v access.Viewer) error {
	if !v.Authenticated {
		return ErrUnauthorized
	}
	return nil
}

func requireAdmin(v access.Viewer) error {
	if !v.Authenticated {
		return ErrUnauthorized
	}
	if !v.IsAdmin() {
		return fmt.Errorf("%w: admin only", ErrForbidden)
	}
	return nil
}

// requireOwner allows the owner and admins.
func requireOwner(v access.Viewer, ownerID uuid.UUID) error {
	if !v.Authenticated {
		return ErrUnauthorized
	}
	if !v.Privileged(ownerID) {
		return fmt.Errorf("%w: not the owner", ErrForbidden)
	}
	return nil
}

// sanitizeFilename strips directory components and limits length.
func sanitizeFilename(name string) string {
	// Normalize Windows-style backslashes to forward slashes before
	// calling filepath.Base, which is platform-specific.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	if len(name) > 255 {
		ext := filepath.Ext(name)
		name = name[:255-len(ext)] + ext
	}

	if name == "" || name == "." || name == "/" {
		name = "upload"
	}
	return name
}

// clock is the time source of a service; tests replace it.
type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

func ptr[T any](v T) *T { return &v }
