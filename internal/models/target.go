package models

import (
	"regexp"
	"strings"
)

var handlePattern = regexp.MustCompile(`/@([^/]+)`)

// Target is one channel URL to fetch. Immutable, created at batch-load time.
type Target struct {
	URL      string `json:"url"`       // URL as supplied in the input list
	AboutURL string `json:"about_url"` // Normalized About-page URL actually navigated to
	Handle   string `json:"handle"`    // Channel handle parsed from the URL, if any
}

// NewTarget normalizes a raw input line into a Target. Bare handles get the
// youtube.com prefix, /featured is rewritten to /about, and the About suffix
// is appended when missing.
func NewTarget(raw string) Target {
	url := strings.TrimSpace(raw)
	if url != "" && !strings.HasPrefix(url, "http") {
		url = "https://www.youtube.com/" + strings.TrimPrefix(url, "/")
	}

	about := strings.TrimRight(url, "/")
	about = strings.Replace(about, "/featured", "", 1)
	if !strings.HasSuffix(about, "/about") {
		about += "/about"
	}

	handle := ""
	if m := handlePattern.FindStringSubmatch(url); m != nil {
		handle = m[1]
	}

	return Target{URL: url, AboutURL: about, Handle: handle}
}

// Per-target failure reasons. Field-level reasons live on FieldValue; these
// name the states and conditions that fail an entire target.
const (
	ReasonBrowserLaunchFailure = "browser-launch-failure"
	ReasonNavigationTimeout    = "navigation-timeout"
	ReasonConsentFailure       = "consent-failure"
	ReasonRevealUnavailable    = "reveal-unavailable"
	ReasonChallengeFailed      = "challenge-failed"
	ReasonChallengeTimedOut    = "challenge-timed-out"
	ReasonInsufficientBalance  = "insufficient-balance"
	ReasonExtractionMismatch   = "extraction-mismatch"
	ReasonSessionInvalid       = "session-invalid"
	ReasonPanic                = "panic"
)

// TargetFailure records one target that produced no record, with the fetcher
// state it failed in.
type TargetFailure struct {
	Target Target `json:"target"`
	State  string `json:"state"`
	Reason string `json:"reason"`
}

// BatchResult aggregates one run. It grows monotonically and is flushed to the
// exporter after every completed target, so an interruption loses at most the
// in-flight target.
type BatchResult struct {
	RunID     string          `json:"run_id"`
	Succeeded []ProfileRecord `json:"succeeded"`
	Failed    []TargetFailure `json:"failed"`
}

// Total returns the number of targets accounted for so far.
func (b *BatchResult) Total() int {
	return len(b.Succeeded) + len(b.Failed)
}

// EmailsFound counts succeeded records that carry an extracted email.
func (b *BatchResult) EmailsFound() int {
	count := 0
	for i := range b.Succeeded {
		if b.Succeeded[i].EmailFound() {
			count++
		}
	}
	return count
}
