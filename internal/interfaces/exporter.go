package interfaces

import (
	"github.com/ternarybob/tubescope/internal/models"
)

// Exporter receives results incrementally: one record or failure at a time
// after each completed target, plus the final batch summary. Implementations
// are append-capable so interrupted runs keep already-flushed work.
type Exporter interface {
	// ExportRecord appends one completed record to the output files.
	ExportRecord(record *models.ProfileRecord) error

	// ExportFailure appends one failed target to the failure log.
	ExportFailure(failure models.TargetFailure) error

	// WriteSummary persists the final batch summary.
	WriteSummary(result *models.BatchResult) error
}
