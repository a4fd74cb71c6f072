// -----------------------------------------------------------------------
// Page Extractor - tiered field extraction from rendered About-page HTML
// -----------------------------------------------------------------------

package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubescope/internal/models"
)

// descriptionLimit caps the stored channel description.
const descriptionLimit = 500

// socialDomains identifies outbound links worth collecting from the channel
// links section.
var socialDomains = []string{"twitter", "instagram", "twitch", "facebook", "tiktok", "linkedin"}

// knownCountries is the containment list used as the last resort for the
// country field; the About page renders the country as plain text with no
// stable markup around it.
var knownCountries = []string{
	"United States", "United Kingdom", "Canada", "Australia", "Germany",
	"France", "Spain", "Italy", "Netherlands", "Japan", "India", "Brazil",
}

// Service extracts a partial ProfileRecord from rendered page HTML. For each
// field an ordered list of strategies is applied - structured lookup first,
// anchored text patterns as fallback - and the first non-empty match wins.
// Fields no strategy matches stay marked extraction_failed; the record is
// never aborted.
type Service struct {
	logger arbor.ILogger
}

// NewService creates a page extractor.
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// Extract builds the public-field portion of the record. The email field is
// owned by the fetcher and left untouched here.
func (s *Service) Extract(html string, target models.Target, scrapedAt time.Time) *models.ProfileRecord {
	record := models.NewProfileRecord(target, scrapedAt)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Structured tier is unavailable; the pattern tier still runs on raw HTML.
		s.logger.Warn().Err(err).Str("url", target.URL).Msg("Failed to parse page HTML, using pattern tier only")
		doc = nil
	}

	s.extractName(doc, html, record)
	s.extractCount(doc, html, record, models.FieldSubscribers, "#subscriber-count", subscribersPattern)
	s.extractCount(doc, html, record, models.FieldVideoCount, "#videos-count", videosPattern)
	s.extractCount(doc, html, record, models.FieldTotalViews, "#view-count", viewsPattern)
	s.extractJoinedDate(html, record)
	s.extractCountry(doc, html, record)
	s.extractDescription(doc, record)
	s.extractSocialLinks(doc, record)

	for name, value := range record.Fields {
		if name == models.FieldEmail {
			continue
		}
		if value.Status == models.FieldExtractionFailed {
			s.logger.Debug().Str("field", name).Str("url", target.URL).Msg("No extraction strategy matched")
		}
	}

	return record
}

func (s *Service) extractName(doc *goquery.Document, html string, record *models.ProfileRecord) {
	if doc != nil {
		if name, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(name) != "" {
			record.SetField(models.FieldChannelName, models.Extracted(strings.TrimSpace(name)))
			return
		}
		title := strings.TrimSpace(doc.Find("title").First().Text())
		title = strings.TrimSuffix(title, " - YouTube")
		if title != "" {
			record.SetField(models.FieldChannelName, models.Extracted(title))
			return
		}
	}
	if m := titlePattern.FindStringSubmatch(html); m != nil {
		record.SetField(models.FieldChannelName, models.Extracted(strings.TrimSpace(m[1])))
	}
}

// extractCount fills a numeric-like field: structured selector first, then the
// anchored pattern tier. Raw text is always kept; the normalized number is
// best-effort and its absence does not invalidate the raw value.
func (s *Service) extractCount(doc *goquery.Document, html string, record *models.ProfileRecord, field, selector string, pattern *anchoredPattern) {
	raw := ""
	if doc != nil {
		raw = strings.TrimSpace(doc.Find(selector).First().Text())
	}
	if raw == "" {
		raw = pattern.FirstMatch(html)
	}
	if raw == "" {
		return
	}

	if n, ok := normalizeCount(raw); ok {
		record.SetField(field, models.ExtractedNumber(raw, n))
	} else {
		record.SetField(field, models.Extracted(raw))
	}
}

func (s *Service) extractJoinedDate(html string, record *models.ProfileRecord) {
	if m := joinedPattern.FindStringSubmatch(html); m != nil {
		record.SetField(models.FieldJoinedDate, models.Extracted(strings.TrimSpace(m[0])))
	}
}

func (s *Service) extractCountry(doc *goquery.Document, html string, record *models.ProfileRecord) {
	if doc != nil {
		if country := strings.TrimSpace(doc.Find("#country").First().Text()); country != "" {
			record.SetField(models.FieldCountry, models.Extracted(country))
			return
		}
	}
	for _, country := range knownCountries {
		if strings.Contains(html, country) {
			record.SetField(models.FieldCountry, models.Extracted(country))
			return
		}
	}
}

func (s *Service) extractDescription(doc *goquery.Document, record *models.ProfileRecord) {
	if doc == nil {
		return
	}
	desc := strings.TrimSpace(doc.Find("#description-container, #description").First().Text())
	if desc == "" {
		desc, _ = doc.Find(`meta[property="og:description"]`).Attr("content")
		desc = strings.TrimSpace(desc)
	}
	if desc == "" {
		return
	}
	// Cap in runes, not bytes, so a multi-byte character is never split.
	if runes := []rune(desc); len(runes) > descriptionLimit {
		desc = string(runes[:descriptionLimit])
	}
	record.SetField(models.FieldDescription, models.Extracted(desc))
}

func (s *Service) extractSocialLinks(doc *goquery.Document, record *models.ProfileRecord) {
	if doc == nil {
		return
	}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		lower := strings.ToLower(href)
		matched := false
		for _, domain := range socialDomains {
			if strings.Contains(lower, domain) {
				matched = true
				break
			}
		}
		if !matched {
			return
		}

		label := strings.TrimSpace(sel.Text())
		if label == "" {
			label, _ = sel.Attr("aria-label")
			label = strings.TrimSpace(label)
		}
		if label == "" {
			label = href
		}
		if len(label) >= 100 {
			return
		}
		if _, exists := record.SocialLinks[label]; !exists {
			record.SocialLinks[label] = href
		}
	})
}
