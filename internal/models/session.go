package models

import (
	"time"
)

// RequiredAuthCookies are the cookie names a session must carry to count as
// authenticated. These are the Google account cookies YouTube reads.
var RequiredAuthCookies = []string{"SID", "HSID", "SSID"}

// SessionCookie is one cookie in the persisted session file. The shape matches
// the browser storage-state export the cookie importer produces.
type SessionCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"` // Unix seconds; 0 = session cookie
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Expired reports whether the cookie carries an expiry in the past. Session
// cookies (zero expiry) never report expired here; validity of the overall
// Session additionally requires the auth cookies to carry future expiries.
func (c SessionCookie) Expired(now time.Time) bool {
	return c.Expires > 0 && time.Unix(int64(c.Expires), 0).Before(now)
}

// Session is an authenticated cookie set bound to one logical account. Owned
// by the session store; read-shared, never mutated, by the fetcher.
type Session struct {
	Cookies []SessionCookie `json:"cookies"`
}

// Cookie returns the named cookie, or nil.
func (s *Session) Cookie(name string) *SessionCookie {
	for i := range s.Cookies {
		if s.Cookies[i].Name == name {
			return &s.Cookies[i]
		}
	}
	return nil
}

// ExpiresAt returns the earliest expiry among the required auth cookies, or
// the zero time when any of them is a session cookie with no recorded expiry.
func (s *Session) ExpiresAt() time.Time {
	var earliest time.Time
	for _, name := range RequiredAuthCookies {
		c := s.Cookie(name)
		if c == nil || c.Expires <= 0 {
			return time.Time{}
		}
		exp := time.Unix(int64(c.Expires), 0)
		if earliest.IsZero() || exp.Before(earliest) {
			earliest = exp
		}
	}
	return earliest
}
