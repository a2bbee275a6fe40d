package shared

import (
	"fmt"

	"github.com/fabdesk/fabdesk/internal/platform/httpx"
)

var (
	// ErrNoPrincipal indicates a request without an authenticated principal.
	ErrNoPrincipal = fmt.Errorf("no authenticated principal: %w", httpx.ErrUnauthorized)
	// ErrSessionNotFound indicates an unknown or expired session token.
	ErrSessionNotFound = fmt.Errorf("session not found: %w", httpx.ErrUnauthorized)
	// ErrLockNotObtained occurs when another request holds the same lock.
	ErrLockNotObtained = fmt.Errorf("operation already in progress: %w", httpx.ErrConflict)
)
