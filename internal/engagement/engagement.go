// Package engagement parses localized engagement counts as displayed by X.
package engagement

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ibeckermayer/threadkeeper/internal/types"
)

// multipliers maps unit glyphs to their factor. Checked in order.
var multipliers = []struct {
	glyph  string
	factor float64
}{
	{"億", 100_000_000},
	{"万", 10_000},
	{"M", 1_000_000},
	{"m", 1_000_000},
	{"K", 1_000},
	{"k", 1_000},
}

// number is the only numeric form X displays. It keeps ParseFloat away
// from signs, exponents, NaN and Inf.
var number = regexp.MustCompile(`^\d+(\.\d+)?$`)

var separators = strings.NewReplacer(",", "", "，", "", " ", "", " ", "")

// ParseCount converts strings like "1.2万", "1,234" or "5.7K" to integers.
// Empty or unparseable input yields 0.
func ParseCount(raw string) int {
	n, ok := parse(raw)
	if !ok {
		return 0
	}
	return n
}

// ParseImpressions is ParseCount for view counts, which X only shows
// sometimes. Empty or unparseable input yields nil, never 0.
func ParseImpressions(raw string) *int {
	n, ok := parse(raw)
	if !ok {
		return nil
	}
	return &n
}

func parse(raw string) (int, bool) {
	s := separators.Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}

	for _, m := range multipliers {
		if !strings.Contains(s, m.glyph) {
			continue
		}
		digits := strings.Replace(s, m.glyph, "", 1)
		if !number.MatchString(digits) {
			return 0, false
		}
		value, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			return 0, false
		}
		// the epsilon absorbs float error such as 4.1*1e4 = 40999.99...
		product := math.Floor(value*m.factor + 1e-6)
		if math.IsInf(product, 0) || product >= math.MaxInt {
			return 0, false
		}
		return int(product), true
	}

	if !number.MatchString(s) || strings.Contains(s, ".") {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Parse converts raw displayed metrics into counts.
func Parse(raw types.RawMetrics) types.Metrics {
	return types.Metrics{
		Impressions: ParseImpressions(raw.Impressions),
		Reposts:     ParseCount(raw.Reposts),
		Likes:       ParseCount(raw.Likes),
		Bookmarks:   ParseCount(raw.Bookmarks),
		Replies:     ParseCount(raw.Replies),
	}
}

const countPattern = `(\d[\d,.万億]*[KkMm]?)`

// Label patterns for the metrics group aria-label, Japanese then English.
var (
	repliesLabel     = regexp.MustCompile(countPattern + `\s*(?:件の返信|[Rr]epl(?:y|ies))`)
	repostsLabel     = regexp.MustCompile(countPattern + `\s*(?:件のリポスト|[Rr]eposts?|[Rr]etweets?)`)
	likesLabel       = regexp.MustCompile(countPattern + `\s*(?:件のいいね|[Ll]ikes?)`)
	bookmarksLabel   = regexp.MustCompile(countPattern + `\s*(?:件のブックマーク|[Bb]ookmarks?)`)
	impressionsLabel = regexp.MustCompile(countPattern + `\s*(?:件の表示|[Vv]iews?)`)
)

// ParseGroupLabel extracts the raw counts from a metrics group label such as
// "12 件の返信、3 件のリポスト、1.2万 件のいいね、5 件の表示".
// Counts that are not in the label are left empty.
func ParseGroupLabel(label string) types.RawMetrics {
	return types.RawMetrics{
		Replies:     firstMatch(repliesLabel, label),
		Reposts:     firstMatch(repostsLabel, label),
		Likes:       firstMatch(likesLabel, label),
		Bookmarks:   firstMatch(bookmarksLabel, label),
		Impressions: firstMatch(impressionsLabel, label),
	}
}

// Merge fills the empty fields of m from fallback.
func Merge(m, fallback types.RawMetrics) types.RawMetrics {
	if m.Replies == "" {
		m.Replies = fallback.Replies
	}
	if m.Reposts == "" {
		m.Reposts = fallback.Reposts
	}
	if m.Likes == "" {
		m.Likes = fallback.Likes
	}
	if m.Bookmarks == "" {
		m.Bookmarks = fallback.Bookmarks
	}
	if m.Impressions == "" {
		m.Impressions = fallback.Impressions
	}
	return m
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}
