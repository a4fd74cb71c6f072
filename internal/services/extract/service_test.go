package extract

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubescope/internal/models"
)

const aboutPageHTML = `<!DOCTYPE html>
<html>
<head>
<title>NetworkChuck - YouTube</title>
<meta property="og:title" content="NetworkChuck">
<meta property="og:description" content="Welcome to NetworkChuck!">
</head>
<body>
<div id="description-container">Welcome to NetworkChuck!</div>
<table>
<tr><td>5.04M subscribers</td></tr>
<tr><td>553 videos</td></tr>
<tr><td>367,524,086 views</td></tr>
<tr><td>Joined Apr 27, 2014</td></tr>
<tr><td>United States</td></tr>
</table>
<a href="https://twitter.com/networkchuck">Twitter</a>
<a href="https://instagram.com/networkchuck">Instagram</a>
<a href="https://example.com/unrelated">Unrelated</a>
</body>
</html>`

func testTarget() models.Target {
	return models.NewTarget("https://www.youtube.com/@NetworkChuck")
}

func TestExtract_FullPage(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	record := svc.Extract(aboutPageHTML, testTarget(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NotNil(t, record)

	assert.Equal(t, "NetworkChuck", record.Field(models.FieldChannelName).Raw)
	assert.Equal(t, models.FieldExtracted, record.Field(models.FieldChannelName).Status)

	subs := record.Field(models.FieldSubscribers)
	assert.Equal(t, "5.04M subscribers", subs.Raw)
	require.NotNil(t, subs.Number)
	assert.InDelta(t, 5_040_000, *subs.Number, 1)

	videos := record.Field(models.FieldVideoCount)
	assert.Equal(t, "553 videos", videos.Raw)
	require.NotNil(t, videos.Number)
	assert.InDelta(t, 553, *videos.Number, 0.1)

	views := record.Field(models.FieldTotalViews)
	assert.Equal(t, "367,524,086 views", views.Raw)
	require.NotNil(t, views.Number)
	assert.InDelta(t, 367_524_086, *views.Number, 1)

	assert.Equal(t, "Joined Apr 27, 2014", record.Field(models.FieldJoinedDate).Raw)
	assert.Equal(t, "United States", record.Field(models.FieldCountry).Raw)
	assert.Equal(t, "Welcome to NetworkChuck!", record.Field(models.FieldDescription).Raw)

	assert.Equal(t, "https://twitter.com/networkchuck", record.SocialLinks["Twitter"])
	assert.Equal(t, "https://instagram.com/networkchuck", record.SocialLinks["Instagram"])
	assert.NotContains(t, record.SocialLinks, "Unrelated")
}

func TestExtract_Idempotent(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	first := svc.Extract(aboutPageHTML, testTarget(), at)
	second := svc.Extract(aboutPageHTML, testTarget(), at)
	assert.Equal(t, first, second, "extraction on unchanged HTML must be deterministic")
}

func TestExtract_EmptyPageMarksFieldsFailed(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	record := svc.Extract("<html><body></body></html>", testTarget(), time.Now())
	require.NotNil(t, record)

	for _, field := range []string{
		models.FieldChannelName, models.FieldSubscribers, models.FieldVideoCount,
		models.FieldTotalViews, models.FieldJoinedDate, models.FieldCountry,
		models.FieldDescription,
	} {
		assert.Equal(t, models.FieldExtractionFailed, record.Field(field).Status, field)
	}
	assert.Empty(t, record.SocialLinks)
}

func TestExtract_AnchorRejectsUnanchoredNumbers(t *testing.T) {
	// The page renders counts in several UI locations; the pattern tier must
	// only accept a number directly followed by its unit token.
	html := `<html><body>
	<span>1,000,000 downloads</span>
	<span>42 subscribers</span>
	</body></html>`

	svc := NewService(arbor.NewLogger())
	record := svc.Extract(html, testTarget(), time.Now())
	assert.Equal(t, "42 subscribers", record.Field(models.FieldSubscribers).Raw)
}

func TestExtract_FirstAnchoredOccurrenceWins(t *testing.T) {
	html := `<html><body>
	<span>1.2M subscribers</span>
	<span>999 subscribers</span>
	</body></html>`

	svc := NewService(arbor.NewLogger())
	record := svc.Extract(html, testTarget(), time.Now())
	assert.Equal(t, "1.2M subscribers", record.Field(models.FieldSubscribers).Raw)
}

func TestExtract_StructuredTierBeatsPatternTier(t *testing.T) {
	html := `<html><body>
	<span id="subscriber-count">5.04M subscribers</span>
	<span>17 subscribers</span>
	</body></html>`

	svc := NewService(arbor.NewLogger())
	record := svc.Extract(html, testTarget(), time.Now())
	assert.Equal(t, "5.04M subscribers", record.Field(models.FieldSubscribers).Raw)
}

func TestExtract_UnparseableCountKeepsRawText(t *testing.T) {
	html := `<html><body><span id="subscriber-count">lots of subscribers</span></body></html>`

	svc := NewService(arbor.NewLogger())
	record := svc.Extract(html, testTarget(), time.Now())

	subs := record.Field(models.FieldSubscribers)
	assert.Equal(t, models.FieldExtracted, subs.Status)
	assert.Equal(t, "lots of subscribers", subs.Raw)
	assert.Nil(t, subs.Number)
}

func TestExtract_DescriptionCapped(t *testing.T) {
	long := make([]byte, 800)
	for i := range long {
		long[i] = 'a'
	}
	html := `<html><body><div id="description">` + string(long) + `</div></body></html>`

	svc := NewService(arbor.NewLogger())
	record := svc.Extract(html, testTarget(), time.Now())
	assert.Len(t, record.Field(models.FieldDescription).Raw, 500)
}

func TestExtract_DescriptionCapOnRuneBoundary(t *testing.T) {
	// 800 multi-byte characters; a byte-level cap would cut one in half.
	long := strings.Repeat("é", 800)
	html := `<html><body><div id="description">` + long + `</div></body></html>`

	svc := NewService(arbor.NewLogger())
	record := svc.Extract(html, testTarget(), time.Now())

	desc := record.Field(models.FieldDescription).Raw
	assert.True(t, utf8.ValidString(desc))
	assert.Equal(t, 500, utf8.RuneCountInString(desc))
	assert.Equal(t, strings.Repeat("é", 500), desc)
}

func TestNormalizeCount(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"5.04M subscribers", 5_040_000, true},
		{"1.2K subscribers", 1_200, true},
		{"2B views", 2_000_000_000, true},
		{"553 videos", 553, true},
		{"367,524,086 views", 367_524_086, true},
		{"", 0, false},
		{"lots of subscribers", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			n, ok := normalizeCount(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, n, 0.5)
			}
		})
	}
}
