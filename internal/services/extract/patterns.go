package extract

import (
	"regexp"
)

// anchoredPattern is the text-matching fallback tier. Every pattern requires
// its trailing unit token ("subscribers", "videos", "views") so that a number
// rendered elsewhere on the page cannot satisfy the match; the value is the
// capture group, and the first anchored occurrence in document order wins.
type anchoredPattern struct {
	re *regexp.Regexp
}

func newAnchoredPattern(expr string) *anchoredPattern {
	return &anchoredPattern{re: regexp.MustCompile(expr)}
}

// FirstMatch returns the first anchored occurrence including its unit token,
// or "" when the pattern does not match.
func (p *anchoredPattern) FirstMatch(html string) string {
	if m := p.re.FindStringSubmatch(html); m != nil {
		return m[0]
	}
	return ""
}

var (
	subscribersPattern = newAnchoredPattern(`(?i)([\d][\d,.]*[KkMmBb]?)\s*subscribers?`)
	videosPattern      = newAnchoredPattern(`(?i)([\d][\d,]*)\s*videos?`)
	viewsPattern       = newAnchoredPattern(`(?i)([\d][\d,]*)\s*views?`)
	joinedPattern      = regexp.MustCompile(`(?i)Joined\s+\w+\s+\d{1,2},?\s*\d{4}`)
	titlePattern       = regexp.MustCompile(`<title>([^<]+?)(?:\s*-\s*YouTube)?</title>`)
)
