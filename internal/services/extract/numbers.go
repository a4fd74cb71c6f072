package extract

import (
	"strconv"
	"strings"
)

// normalizeCount converts a human-formatted count ("5.04M subscribers",
// "367,524,086 views", "553 videos") into a plain number. Returns false when
// the text carries no parseable quantity; the raw text is kept regardless.
func normalizeCount(raw string) (float64, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, false
	}

	// Strip the unit token, keep the leading quantity.
	if i := strings.IndexFunc(text, func(r rune) bool { return r == ' ' }); i > 0 {
		text = text[:i]
	}
	text = strings.ReplaceAll(text, ",", "")

	multiplier := 1.0
	switch {
	case strings.HasSuffix(strings.ToUpper(text), "K"):
		multiplier = 1e3
		text = text[:len(text)-1]
	case strings.HasSuffix(strings.ToUpper(text), "M"):
		multiplier = 1e6
		text = text[:len(text)-1]
	case strings.HasSuffix(strings.ToUpper(text), "B"):
		multiplier = 1e9
		text = text[:len(text)-1]
	}

	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return n * multiplier, true
}
