package fetch

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9][A-Za-z0-9._%+-]*@[A-Za-z0-9][A-Za-z0-9.-]*\.[A-Za-z]{2,}\b`)

// emailExclusions filters addresses that appear on every About page but are
// never the channel contact.
var emailExclusions = []string{
	"noreply@", "example@", "test@", "@youtube", "@google",
	"support@", "privacy@", "copyright@",
}

// findEmail returns the first plausible contact address in the text, or "".
func findEmail(text string) string {
	for _, candidate := range emailPattern.FindAllString(text, -1) {
		lower := strings.ToLower(candidate)
		excluded := false
		for _, ex := range emailExclusions {
			if strings.Contains(lower, ex) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		// Require a dotted domain so bare handles are not mistaken for addresses.
		parts := strings.SplitN(candidate, "@", 2)
		if len(parts) == 2 && strings.Contains(parts[1], ".") {
			return candidate
		}
	}
	return ""
}
