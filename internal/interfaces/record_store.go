package interfaces

import (
	"time"

	"github.com/ternarybob/tubescope/internal/models"
)

// RecordStore caches completed records locally so repeated runs can skip
// targets that were scraped recently.
type RecordStore interface {
	// Fresh returns the cached record for the About URL when it is newer than
	// maxAge, or (nil, false) when absent or stale.
	Fresh(aboutURL string, maxAge time.Duration) (*models.ProfileRecord, bool)

	// Save upserts the record keyed by its About URL.
	Save(aboutURL string, record *models.ProfileRecord) error

	// Close releases the underlying database.
	Close() error
}
