package interfaces

import (
	"time"

	"github.com/ternarybob/tubescope/internal/models"
)

// Extractor produces a partial ProfileRecord from rendered page HTML. The
// email field is filled separately by the fetcher; everything else comes from
// ordered extraction strategies with per-field soft failure.
type Extractor interface {
	// Extract never returns nil: fields no strategy matched are marked
	// extraction_failed on the returned record.
	Extract(html string, target models.Target, scrapedAt time.Time) *models.ProfileRecord
}
