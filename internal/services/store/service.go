// -----------------------------------------------------------------------
// Record Store - local Badger cache of completed profile records
// -----------------------------------------------------------------------

package store

import (
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/tubescope/internal/common"
	"github.com/ternarybob/tubescope/internal/models"
)

// storedRecord is the persisted envelope. StoredAt is the cache write time,
// distinct from the record's own ScrapedAt.
type storedRecord struct {
	AboutURL string `badgerhold:"key"`
	StoredAt time.Time
	Record   models.ProfileRecord
}

// Service caches completed records in a local Badger database so repeated
// runs skip recently scraped targets.
type Service struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	now    func() time.Time
}

// NewService opens (or creates) the record cache at the configured path.
func NewService(config common.StorageConfig, logger arbor.ILogger) (*Service, error) {
	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	// Disable the default badger logger to use arbor.
	options.Options = badger.DefaultOptions(config.Path).WithLogger(nil)

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open record cache: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Record cache opened")

	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Fresh returns the cached record for the About URL when it was stored within
// maxAge. Stale and absent entries both report not-found; stale entries are
// left in place to be overwritten by the next Save.
func (s *Service) Fresh(aboutURL string, maxAge time.Duration) (*models.ProfileRecord, bool) {
	var stored storedRecord
	if err := s.store.Get(aboutURL, &stored); err != nil {
		if err != badgerhold.ErrNotFound {
			s.logger.Warn().Err(err).Str("url", aboutURL).Msg("Record cache read failed")
		}
		return nil, false
	}

	age := s.now().Sub(stored.StoredAt)
	if maxAge <= 0 || age > maxAge {
		return nil, false
	}

	record := stored.Record
	return &record, true
}

// Save upserts the record keyed by its About URL.
func (s *Service) Save(aboutURL string, record *models.ProfileRecord) error {
	stored := storedRecord{
		AboutURL: aboutURL,
		StoredAt: s.now(),
		Record:   *record,
	}
	if err := s.store.Upsert(aboutURL, stored); err != nil {
		return fmt.Errorf("failed to cache record: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
