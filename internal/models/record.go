package models

import (
	"time"
)

// FieldStatus classifies how a profile field value was obtained.
type FieldStatus string

const (
	// FieldExtracted indicates the value was successfully read from the page
	FieldExtracted FieldStatus = "extracted"
	// FieldUnavailablePublic indicates the channel does not publish this field
	FieldUnavailablePublic FieldStatus = "unavailable_public"
	// FieldUnavailableAuth indicates the field requires authentication the current session lacks
	FieldUnavailableAuth FieldStatus = "unavailable_auth"
	// FieldExtractionFailed indicates no extraction strategy matched (logged, never fatal)
	FieldExtractionFailed FieldStatus = "extraction_failed"
)

// Profile field names. ExportFieldOrder controls column order in exports.
const (
	FieldChannelURL    = "channel_url"
	FieldChannelHandle = "channel_handle"
	FieldChannelName   = "channel_name"
	FieldEmail         = "email"
	FieldSubscribers   = "subscribers"
	FieldVideoCount    = "video_count"
	FieldTotalViews    = "total_views"
	FieldJoinedDate    = "joined_date"
	FieldCountry       = "country"
	FieldDescription   = "description"
	FieldSocialLinks   = "social_links"
	FieldScrapedAt     = "scraped_at"
)

// ExportFieldOrder returns the stable field ordering used by exporters.
func ExportFieldOrder() []string {
	return []string{
		FieldChannelURL,
		FieldChannelHandle,
		FieldChannelName,
		FieldEmail,
		FieldSubscribers,
		FieldVideoCount,
		FieldTotalViews,
		FieldJoinedDate,
		FieldCountry,
		FieldDescription,
		FieldSocialLinks,
		FieldScrapedAt,
	}
}

// FieldValue is one extracted profile field. Raw always holds the text as it
// appeared on the page; Number carries a best-effort normalized value for
// numeric-like fields ("5.04M subscribers" -> 5040000). A failed normalization
// keeps Raw and leaves Number nil.
type FieldValue struct {
	Status FieldStatus `json:"status"`
	Raw    string      `json:"raw,omitempty"`
	Number *float64    `json:"number,omitempty"`
}

// Extracted creates a FieldValue for a successfully extracted text value.
func Extracted(raw string) FieldValue {
	return FieldValue{Status: FieldExtracted, Raw: raw}
}

// ExtractedNumber creates a FieldValue carrying both raw text and a normalized number.
func ExtractedNumber(raw string, n float64) FieldValue {
	return FieldValue{Status: FieldExtracted, Raw: raw, Number: &n}
}

// Unavailable creates a FieldValue with one of the unavailable/failed statuses.
func Unavailable(status FieldStatus) FieldValue {
	return FieldValue{Status: status}
}

// ProfileRecord is the structured output for one target. Every expected field
// is always present with an explicit status; partial data is preferable to no
// record. Immutable once handed to the batch runner.
type ProfileRecord struct {
	ChannelURL    string                `json:"channel_url"`
	ChannelHandle string                `json:"channel_handle"`
	ScrapedAt     time.Time             `json:"scraped_at"`
	Fields        map[string]FieldValue `json:"fields"`
	SocialLinks   map[string]string     `json:"social_links"`
}

// NewProfileRecord creates a record with every expected field pre-marked
// extraction_failed, so an aborted pipeline still emits a complete field set.
func NewProfileRecord(target Target, now time.Time) *ProfileRecord {
	r := &ProfileRecord{
		ChannelURL:    target.URL,
		ChannelHandle: target.Handle,
		ScrapedAt:     now,
		Fields:        make(map[string]FieldValue),
		SocialLinks:   make(map[string]string),
	}
	for _, name := range ExportFieldOrder() {
		switch name {
		case FieldChannelURL, FieldChannelHandle, FieldSocialLinks, FieldScrapedAt:
			// Carried on the record itself, not in the field map.
		default:
			r.Fields[name] = Unavailable(FieldExtractionFailed)
		}
	}
	return r
}

// SetField records a field value.
func (r *ProfileRecord) SetField(name string, v FieldValue) {
	r.Fields[name] = v
}

// Field returns the value for a field name, defaulting to extraction_failed
// for names the extractor never touched.
func (r *ProfileRecord) Field(name string) FieldValue {
	if v, ok := r.Fields[name]; ok {
		return v
	}
	return Unavailable(FieldExtractionFailed)
}

// EmailFound reports whether the record carries an extracted email address.
func (r *ProfileRecord) EmailFound() bool {
	v := r.Field(FieldEmail)
	return v.Status == FieldExtracted && v.Raw != ""
}
