package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var durationPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(business\s+days?|calendar\s+days?|years?|months?|weeks?|days?|hours?)`)

// daysPerUnit orders temporal standards on a common scale
var daysPerUnit = map[string]float64{
	"year":  365,
	"month": 30,
	"week":  7,
	"day":   1,
	"hour":  1.0 / 24,
}

// standardDays parses a temporal standard like "7 years" or "30 business
// days" into a day count. Returns false for standards with no recognizable
// duration.
func standardDays(standard string) (float64, bool) {
	m := durationPattern.FindStringSubmatch(standard)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}

	unit := strings.ToLower(m[2])
	unit = strings.TrimPrefix(unit, "business ")
	unit = strings.TrimPrefix(unit, "calendar ")
	unit = strings.TrimSuffix(unit, "s")

	scale, ok := daysPerUnit[unit]
	if !ok {
		return 0, false
	}
	return value * scale, true
}

// StrictestStandard returns the most demanding standard among candidates
// under the temporal ordering (longer periods dominate). Candidates with no
// parseable duration lose to parseable ones; among unparseable candidates
// the first non-empty wins.
func StrictestStandard(candidates []string) string {
	best := ""
	bestDays := -1.0
	parseable := false

	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		days, ok := standardDays(c)
		if ok {
			if !parseable || days > bestDays {
				best = c
				bestDays = days
				parseable = true
			}
			continue
		}
		if !parseable && best == "" {
			best = c
		}
	}
	return best
}
