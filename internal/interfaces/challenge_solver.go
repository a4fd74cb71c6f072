package interfaces

import (
	"context"

	"github.com/ternarybob/tubescope/internal/models"
)

// ChallengeSolver talks to the external captcha-solving service. Stateless
// request/poll client; one challenge at a time per target is enforced by the
// fetcher, not here.
type ChallengeSolver interface {
	// Submit sends the challenge to the service and returns an opaque handle
	// immediately. Quota exhaustion surfaces as a models.ChallengeResult with
	// status insufficient_balance from Solve, never as a retried error.
	Submit(ctx context.Context, req models.ChallengeRequest) (string, error)

	// Poll checks a previously submitted challenge. A pending result is not an
	// error; callers poll on a fixed interval until a terminal result.
	Poll(ctx context.Context, handle string) (models.ChallengeResult, error)

	// Solve composes Submit and Poll with the configured interval and timeout,
	// returning a terminal result (solved/failed/timed_out/insufficient_balance).
	Solve(ctx context.Context, req models.ChallengeRequest) models.ChallengeResult

	// Balance returns the service account balance in USD.
	Balance(ctx context.Context) (float64, error)

	// ReportBad flags a solved token that did not work, for refund.
	ReportBad(ctx context.Context, handle string) error
}
