// -----------------------------------------------------------------------
// Exporter - incremental JSON/CSV result files with append semantics
// -----------------------------------------------------------------------

package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubescope/internal/models"
)

// Service writes results incrementally: every exported record or failure is
// durable on disk before the next target starts, so an interrupted run loses
// at most the in-flight target. JSON files hold pretty-printed arrays and are
// merged with existing content; the CSV is append-only with a header written
// once.
type Service struct {
	dir      string
	basename string
	logger   arbor.ILogger
	now      func() time.Time
	mu       sync.Mutex
}

// NewService creates an exporter rooted at dir. The directory is created on
// first write, not here.
func NewService(dir, basename string, logger arbor.ILogger) *Service {
	return &Service{
		dir:      dir,
		basename: basename,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) jsonPath() string     { return filepath.Join(s.dir, s.basename+".json") }
func (s *Service) csvPath() string      { return filepath.Join(s.dir, s.basename+".csv") }
func (s *Service) failuresPath() string { return filepath.Join(s.dir, s.basename+"_failures.json") }
func (s *Service) summaryPath() string  { return filepath.Join(s.dir, s.basename+"_summary.json") }

// ExportRecord appends one record to both the JSON and CSV outputs.
func (s *Service) ExportRecord(record *models.ProfileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := appendToJSONArray(s.jsonPath(), record); err != nil {
		return fmt.Errorf("json export failed: %w", err)
	}
	if err := s.appendCSVRow(record); err != nil {
		return fmt.Errorf("csv export failed: %w", err)
	}

	s.logger.Debug().Str("url", record.ChannelURL).Msg("Record exported")
	return nil
}

// ExportFailure appends one failed target to the failure log.
func (s *Service) ExportFailure(failure models.TargetFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := appendToJSONArray(s.failuresPath(), failure); err != nil {
		return fmt.Errorf("failure export failed: %w", err)
	}
	return nil
}

// WriteSummary persists the run summary, overwriting any previous one.
func (s *Service) WriteSummary(result *models.BatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}

	summary := map[string]interface{}{
		"run_id":       result.RunID,
		"total":        result.Total(),
		"succeeded":    len(result.Succeeded),
		"failed":       len(result.Failed),
		"emails_found": result.EmailsFound(),
		"generated_at": s.now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("summary marshal failed: %w", err)
	}
	if err := os.WriteFile(s.summaryPath(), data, 0644); err != nil {
		return fmt.Errorf("summary write failed: %w", err)
	}

	s.logger.Info().
		Str("file", s.summaryPath()).
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Msg("Run summary written")
	return nil
}

func (s *Service) ensureDir() error {
	if s.dir == "" || s.dir == "." {
		return nil
	}
	return os.MkdirAll(s.dir, 0755)
}

// appendToJSONArray merges one item into a pretty-printed JSON array file.
// Existing content is read back so repeated runs accumulate rather than
// clobber.
func appendToJSONArray(path string, item interface{}) error {
	var items []json.RawMessage
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("existing file %s is not a JSON array: %w", path, err)
		}
	}

	encoded, err := json.Marshal(item)
	if err != nil {
		return err
	}
	items = append(items, encoded)

	out, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}

// csvColumns returns the column set for a record: the stable priority order
// first, then any remaining field names sorted.
func csvColumns(record *models.ProfileRecord) []string {
	columns := models.ExportFieldOrder()
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}

	var extras []string
	for name := range record.Fields {
		if !known[name] {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	return append(columns, extras...)
}

// csvValue renders one column for a record. Extracted fields emit their raw
// page text; unavailable and failed fields emit the status so the spreadsheet
// distinguishes "no email published" from "we could not read it".
func csvValue(record *models.ProfileRecord, column string) string {
	switch column {
	case models.FieldChannelURL:
		return record.ChannelURL
	case models.FieldChannelHandle:
		return record.ChannelHandle
	case models.FieldScrapedAt:
		return record.ScrapedAt.UTC().Format(time.RFC3339)
	case models.FieldSocialLinks:
		return flattenSocialLinks(record.SocialLinks)
	}

	v := record.Field(column)
	if v.Status == models.FieldExtracted {
		return v.Raw
	}
	return string(v.Status)
}

// flattenSocialLinks renders the link map as "label: url; label: url", labels
// sorted for stable output.
func flattenSocialLinks(links map[string]string) string {
	if len(links) == 0 {
		return ""
	}
	labels := make([]string, 0, len(links))
	for label := range links {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, label+": "+links[label])
	}
	return strings.Join(parts, "; ")
}

// appendCSVRow appends one record row, writing the header when the file is
// new. An existing file's header defines the columns so rows stay aligned
// across runs.
func (s *Service) appendCSVRow(record *models.ProfileRecord) error {
	path := s.csvPath()
	columns, isNew, err := s.currentColumns(path, record)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(columns); err != nil {
			return err
		}
	}

	row := make([]string, len(columns))
	for i, column := range columns {
		row[i] = csvValue(record, column)
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// currentColumns reads the header of an existing CSV, or derives columns from
// the record when the file does not exist yet.
func (s *Service) currentColumns(path string, record *models.ProfileRecord) ([]string, bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return csvColumns(record), true, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		// Empty file; treat as new.
		return csvColumns(record), true, nil
	}
	return header, false, nil
}
