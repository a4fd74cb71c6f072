package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubescope/internal/models"
)

func writeSessionFile(t *testing.T, session models.Session) string {
	t.Helper()
	data, err := json.Marshal(session)
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(file, data, 0644))
	return file
}

func authCookies(expires float64) []models.SessionCookie {
	cookies := make([]models.SessionCookie, 0, len(models.RequiredAuthCookies))
	for _, name := range models.RequiredAuthCookies {
		cookies = append(cookies, models.SessionCookie{
			Name:    name,
			Value:   "value-" + name,
			Domain:  ".youtube.com",
			Path:    "/",
			Expires: expires,
		})
	}
	return cookies
}

func TestLoad_MissingFile(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "nope.json"), arbor.NewLogger())
	assert.Nil(t, svc.Load())
}

func TestLoad_MalformedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0644))

	svc := NewService(file, arbor.NewLogger())
	assert.Nil(t, svc.Load(), "malformed session must be treated as absent, not an error")
}

func TestLoad_EmptyCookieSet(t *testing.T) {
	file := writeSessionFile(t, models.Session{})
	svc := NewService(file, arbor.NewLogger())
	assert.Nil(t, svc.Load())
}

func TestLoad_ValidFile(t *testing.T) {
	future := float64(time.Now().Add(24 * time.Hour).Unix())
	file := writeSessionFile(t, models.Session{Cookies: authCookies(future)})

	svc := NewService(file, arbor.NewLogger())
	session := svc.Load()
	require.NotNil(t, session)
	assert.Len(t, session.Cookies, len(models.RequiredAuthCookies))
	assert.NotNil(t, session.Cookie("SID"))
}

func TestIsValid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := float64(now.Add(24 * time.Hour).Unix())
	past := float64(now.Add(-time.Hour).Unix())

	tests := []struct {
		name    string
		session *models.Session
		want    bool
	}{
		{
			name:    "nil session",
			session: nil,
			want:    false,
		},
		{
			name:    "all required cookies valid",
			session: &models.Session{Cookies: authCookies(future)},
			want:    true,
		},
		{
			name: "missing required cookie",
			session: &models.Session{Cookies: []models.SessionCookie{
				{Name: "SID", Value: "x", Expires: future},
				{Name: "HSID", Value: "x", Expires: future},
			}},
			want: false,
		},
		{
			name:    "expired required cookie",
			session: &models.Session{Cookies: authCookies(past)},
			want:    false,
		},
		{
			name: "required cookie with empty value",
			session: &models.Session{Cookies: append(authCookies(future)[:2], models.SessionCookie{
				Name: "SSID", Value: "", Expires: future,
			})},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService("unused.json", arbor.NewLogger())
			svc.now = func() time.Time { return now }
			assert.Equal(t, tt.want, svc.IsValid(tt.session))
		})
	}
}

func TestIsValid_SessionCookieWithoutExpiry(t *testing.T) {
	// Zero expiry = session cookie; it is present but does not expire, which
	// still counts as valid structurally.
	svc := NewService("unused.json", arbor.NewLogger())
	session := &models.Session{Cookies: authCookies(0)}
	assert.True(t, svc.IsValid(session))
}

func TestExpiresAt(t *testing.T) {
	earliest := float64(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC).Unix())
	later := earliest + 3600

	session := &models.Session{Cookies: []models.SessionCookie{
		{Name: "SID", Value: "x", Expires: later},
		{Name: "HSID", Value: "x", Expires: earliest},
		{Name: "SSID", Value: "x", Expires: later},
	}}
	assert.Equal(t, time.Unix(int64(earliest), 0), session.ExpiresAt(),
		"derived expiry is the earliest among required auth cookies")

	// A required session cookie contributes no deadline at all.
	session.Cookies[1].Expires = 0
	assert.True(t, session.ExpiresAt().IsZero())
}
