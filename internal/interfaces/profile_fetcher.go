package interfaces

import (
	"context"

	"github.com/ternarybob/tubescope/internal/models"
)

// ProfileFetcher owns one browser session per target: launch with engine
// fallback, navigate, consent handling, email reveal, challenge solving, and
// extraction. The browser is torn down on every exit path.
type ProfileFetcher interface {
	// Fetch returns either a (possibly partial) record or a failure carrying
	// the state the pipeline died in - never both, never neither.
	Fetch(ctx context.Context, target models.Target) (*models.ProfileRecord, *models.TargetFailure)
}
