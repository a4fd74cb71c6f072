// -----------------------------------------------------------------------
// Session Store - persisted authentication cookie loading and validation
// -----------------------------------------------------------------------

package session

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubescope/internal/models"
)

// Service loads the persisted session file and checks validity. It never
// writes the file: session import is a separate one-time operation handled by
// the cookie-import command.
type Service struct {
	file   string
	now    func() time.Time
	logger arbor.ILogger
}

// NewService creates a session store reading the given file.
func NewService(file string, logger arbor.ILogger) *Service {
	return &Service{
		file:   file,
		now:    time.Now,
		logger: logger,
	}
}

// Load returns the persisted session, or nil when the file is missing or
// malformed. Both conditions are expected states, not errors: the pipeline
// runs unauthenticated and marks gated fields unavailable_auth.
func (s *Service) Load() *models.Session {
	data, err := os.ReadFile(s.file)
	if err != nil {
		s.logger.Debug().Str("file", s.file).Msg("No session file found, running unauthenticated")
		return nil
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		s.logger.Warn().Str("file", s.file).Err(err).Msg("Session file is malformed, treating as absent")
		return nil
	}

	if len(session.Cookies) == 0 {
		s.logger.Warn().Str("file", s.file).Msg("Session file contains no cookies, treating as absent")
		return nil
	}

	return &session
}

// IsValid reports whether the session carries every required auth cookie with
// an unexpired value. An invalid session is treated exactly like an absent
// one by callers.
func (s *Service) IsValid(session *models.Session) bool {
	if session == nil {
		return false
	}

	now := s.now()
	for _, name := range models.RequiredAuthCookies {
		cookie := session.Cookie(name)
		if cookie == nil || cookie.Value == "" {
			s.logger.Debug().Str("cookie", name).Msg("Session missing required auth cookie")
			return false
		}
		if cookie.Expired(now) {
			s.logger.Debug().Str("cookie", name).Msg("Required auth cookie has expired")
			return false
		}
	}

	if exp := session.ExpiresAt(); !exp.IsZero() {
		s.logger.Debug().Str("expires_at", exp.Format(time.RFC3339)).Msg("Session is valid")
	}
	return true
}
