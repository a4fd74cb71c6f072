package interfaces

import (
	"github.com/ternarybob/tubescope/internal/models"
)

// SessionStore loads and validates the persisted authentication cookie set.
// It holds no mutable cross-target state and makes no network calls.
//
// Load fails softly: a missing, malformed, or expired session file yields nil,
// never an error. Callers treat "no session" as a first-class expected state.
type SessionStore interface {
	// Load returns the persisted session, or nil when absent/unusable.
	Load() *models.Session

	// IsValid reports whether the session is structurally complete (required
	// auth cookies present) and not expired at the time of the call.
	IsValid(session *models.Session) bool
}
