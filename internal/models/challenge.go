package models

// ChallengeStatus is the terminal or in-flight state of one captcha challenge.
type ChallengeStatus string

const (
	ChallengeSolved              ChallengeStatus = "solved"
	ChallengePending             ChallengeStatus = "pending"
	ChallengeFailed              ChallengeStatus = "failed"
	ChallengeTimedOut            ChallengeStatus = "timed_out"
	ChallengeInsufficientBalance ChallengeStatus = "insufficient_balance"
)

// ChallengeRequest describes one reCAPTCHA occurrence. Created per occurrence,
// never reused across targets: tokens are single-use and URL-bound.
type ChallengeRequest struct {
	SiteKey string `json:"site_key"`
	PageURL string `json:"page_url"`
}

// ChallengeResult is the outcome of solving one challenge. Token is set only
// when Status is solved; Handle identifies the solve job on the external
// service and is what ReportBad takes.
type ChallengeResult struct {
	Status ChallengeStatus `json:"status"`
	Token  string          `json:"token,omitempty"`
	Handle string          `json:"handle,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

// Terminal reports whether the result ends the poll loop.
func (r ChallengeResult) Terminal() bool {
	return r.Status != ChallengePending
}
