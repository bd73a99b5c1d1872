package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"darkgravity/internal/domain"
)

var (
	// "Score" plus optional markdown noise (colons, asterisks, dashes, hashes)
	// before the number, e.g. "**Scary Score:** 8.5".
	labeledScoreRe = regexp.MustCompile(`(?i)score[:\s*\-#]*(\d+(?:\.\d+)?)`)
	outOfTenRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*/\s*10`)
	numberRe       = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ParseScore extracts a best-effort scary score from free-form analysis text.
// Rules are ordered, first match wins: a labeled "Score", then "<n>/10", then
// the first standalone number <= 10. Error-looking text never yields a score.
func ParseScore(text string) *float64 {
	if strings.TrimSpace(text) == "" || containsErrorKeyword(text) {
		return nil
	}

	if m := labeledScoreRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v <= 10 {
			return &v
		}
	}

	if m := outOfTenRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v <= 10 {
			return &v
		}
	}

	for _, loc := range numberRe.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && isWordByte(text[start-1]) {
			// mid-word digits, e.g. the "2" in "v2"
			continue
		}
		if isListMarker(text, start) {
			continue
		}
		if v, err := strconv.ParseFloat(text[start:end], 64); err == nil && v <= 10 {
			return &v
		}
	}

	return nil
}

func containsErrorKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range domain.ErrorKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' ||
		('0' <= b && b <= '9') ||
		('a' <= b && b <= 'z') ||
		('A' <= b && b <= 'Z')
}

// isListMarker reports whether the number starting at pos follows a
// digit-dot-space sequence, i.e. the "2" in the ordered-list item "1. 2".
func isListMarker(text string, pos int) bool {
	if pos < 3 {
		return false
	}
	d, dot, sp := text[pos-3], text[pos-2], text[pos-1]
	return '0' <= d && d <= '9' && dot == '.' && (sp == ' ' || sp == '\t' || sp == '\n' || sp == '\r')
}
