// -----------------------------------------------------------------------
// Batch Runner - sequential target processing with per-target isolation
// -----------------------------------------------------------------------

package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/tubescope/internal/common"
	"github.com/ternarybob/tubescope/internal/interfaces"
	"github.com/ternarybob/tubescope/internal/models"
)

// Options tunes one batch run.
type Options struct {
	// Delay is the minimum spacing between consecutive fetches.
	Delay time.Duration

	// Staleness bounds how old a cached record may be before the target is
	// fetched again. Only consulted when a record store is configured.
	Staleness time.Duration

	// Refresh bypasses the record cache entirely.
	Refresh bool
}

// Service runs targets sequentially. One target's failure - including a panic -
// never affects the others, and results are flushed to the exporter after
// every target so an interrupted run keeps everything already completed.
type Service struct {
	fetcher  interfaces.ProfileFetcher
	exporter interfaces.Exporter
	store    interfaces.RecordStore // nil disables the cache
	limiter  *rate.Limiter
	options  Options
	logger   arbor.ILogger
}

// NewService wires a batch runner. store may be nil.
func NewService(fetcher interfaces.ProfileFetcher, exporter interfaces.Exporter, store interfaces.RecordStore, options Options, logger arbor.ILogger) *Service {
	interval := rate.Inf
	if options.Delay > 0 {
		interval = rate.Every(options.Delay)
	}
	return &Service{
		fetcher:  fetcher,
		exporter: exporter,
		store:    store,
		limiter:  rate.NewLimiter(interval, 1),
		options:  options,
		logger:   logger,
	}
}

// Run processes the targets in order and returns the aggregated result.
// Cancellation is honored at target boundaries: the in-flight target finishes
// (its own timeouts bound it), later ones are skipped, and the summary still
// reflects everything completed.
func (s *Service) Run(ctx context.Context, targets []models.Target) *models.BatchResult {
	result := &models.BatchResult{RunID: common.NewRunID()}

	s.logger.Info().
		Str("run_id", result.RunID).
		Int("targets", len(targets)).
		Msg("Batch run starting")

	for i, target := range targets {
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.Warn().
				Str("run_id", result.RunID).
				Int("remaining", len(targets)-i).
				Msg("Batch interrupted, skipping remaining targets")
			break
		}

		if record, ok := s.cached(target); ok {
			s.logger.Info().
				Str("url", target.URL).
				Str("scraped_at", record.ScrapedAt.Format(time.RFC3339)).
				Msg("Using cached record")
			s.recordSucceeded(result, record)
			continue
		}

		s.logger.Info().
			Str("url", target.URL).
			Int("position", i+1).
			Int("total", len(targets)).
			Msg("Fetching profile")

		record, failure := s.fetchOne(ctx, target)
		if record != nil {
			s.recordSucceeded(result, record)
			if s.store != nil {
				if err := s.store.Save(target.AboutURL, record); err != nil {
					s.logger.Warn().Err(err).Str("url", target.URL).Msg("Record cache save failed")
				}
			}
			continue
		}
		result.Failed = append(result.Failed, *failure)
		if err := s.exporter.ExportFailure(*failure); err != nil {
			s.logger.Warn().Err(err).Str("url", target.URL).Msg("Failure export failed")
		}
	}

	if err := s.exporter.WriteSummary(result); err != nil {
		s.logger.Warn().Err(err).Msg("Summary write failed")
	}

	s.logger.Info().
		Str("run_id", result.RunID).
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Int("emails", result.EmailsFound()).
		Msg("Batch run finished")

	return result
}

// fetchOne isolates a single target: a panic anywhere below becomes that
// target's failure entry instead of ending the run.
func (s *Service) fetchOne(ctx context.Context, target models.Target) (record *models.ProfileRecord, failure *models.TargetFailure) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("url", target.URL).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Target processing panicked")
			record = nil
			failure = &models.TargetFailure{Target: target, Reason: models.ReasonPanic}
		}
	}()

	record, failure = s.fetcher.Fetch(ctx, target)
	if record == nil && failure == nil {
		failure = &models.TargetFailure{Target: target, Reason: models.ReasonExtractionMismatch}
	}
	return record, failure
}

func (s *Service) cached(target models.Target) (*models.ProfileRecord, bool) {
	if s.store == nil || s.options.Refresh {
		return nil, false
	}
	return s.store.Fresh(target.AboutURL, s.options.Staleness)
}

func (s *Service) recordSucceeded(result *models.BatchResult, record *models.ProfileRecord) {
	result.Succeeded = append(result.Succeeded, *record)
	if err := s.exporter.ExportRecord(record); err != nil {
		s.logger.Warn().Err(err).Str("url", record.ChannelURL).Msg("Record export failed")
	}
}
