// -----------------------------------------------------------------------
// Cookie Import - converts a browser cookie export into a session file
// -----------------------------------------------------------------------

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/tubescope/internal/models"
)

var (
	inputFile  = flag.String("input", "", "Cookie export JSON from a browser extension (required)")
	outputFile = flag.String("output", "youtube_session.json", "Session file to write")
)

// exportedCookie is the shape browser cookie-export extensions produce.
// expirationDate is fractional Unix seconds; session cookies omit it.
type exportedCookie struct {
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	Domain         string  `json:"domain"`
	Path           string  `json:"path"`
	ExpirationDate float64 `json:"expirationDate,omitempty"`
	Secure         bool    `json:"secure"`
	HTTPOnly       bool    `json:"httpOnly"`
	SameSite       string  `json:"sameSite,omitempty"`
	Session        bool    `json:"session,omitempty"`
}

func main() {
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: cookie-import -input cookies.json [-output youtube_session.json]")
		os.Exit(2)
	}

	data, err := os.ReadFile(*inputFile)
	if err != nil {
		fatal("failed to read %s: %v", *inputFile, err)
	}

	var exported []exportedCookie
	if err := json.Unmarshal(data, &exported); err != nil {
		fatal("failed to parse %s: %v (expected a JSON array of cookies)", *inputFile, err)
	}
	if len(exported) == 0 {
		fatal("%s contains no cookies", *inputFile)
	}

	now := time.Now()
	session := models.Session{}
	valid, expired := 0, 0
	for _, c := range exported {
		cookie := models.SessionCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: normalizeSameSite(c.SameSite),
		}
		if !c.Session {
			cookie.Expires = c.ExpirationDate
		}
		if cookie.Expired(now) {
			expired++
		} else {
			valid++
		}
		session.Cookies = append(session.Cookies, cookie)
	}

	out, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		fatal("failed to encode session: %v", err)
	}
	if err := os.WriteFile(*outputFile, out, 0600); err != nil {
		fatal("failed to write %s: %v", *outputFile, err)
	}

	fmt.Printf("Wrote %s: %d cookies (%d valid, %d expired)\n", *outputFile, len(session.Cookies), valid, expired)
	reportAuthCookies(&session, now)
}

// reportAuthCookies prints the state of each required auth cookie so the
// operator knows whether the session will actually authenticate.
func reportAuthCookies(session *models.Session, now time.Time) {
	for _, name := range models.RequiredAuthCookies {
		c := session.Cookie(name)
		switch {
		case c == nil || c.Value == "":
			fmt.Printf("  %s: MISSING - the session will not authenticate\n", name)
		case c.Expired(now):
			fmt.Printf("  %s: EXPIRED %s - sign in again and re-export\n", name, time.Unix(int64(c.Expires), 0).Format("2006-01-02"))
		case c.Expires > 0:
			fmt.Printf("  %s: ok, expires %s\n", name, time.Unix(int64(c.Expires), 0).Format("2006-01-02"))
		default:
			fmt.Printf("  %s: ok (session cookie, no recorded expiry)\n", name)
		}
	}
}

// normalizeSameSite maps extension spellings ("no_restriction", "lax",
// "unspecified") onto the storage-state vocabulary.
func normalizeSameSite(v string) string {
	switch v {
	case "no_restriction":
		return "None"
	case "lax":
		return "Lax"
	case "strict":
		return "Strict"
	default:
		return ""
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
