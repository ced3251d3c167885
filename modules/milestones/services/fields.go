package services

import (
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/aggregates/milestone"
)

// maxPercentageLen bounds both the cell length and the fractional digits
// ParsePercentage is willing to round.
const maxPercentageLen = 64

// DefaultDateLayouts are tried in order; day-first forms follow the export locale.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
	"02.01.2006",
	"02-01-2006",
	time.RFC3339,
}

var (
	hundred = decimal.NewFromInt(100)

	statusAliases = map[string]milestone.Status{
		"planning":   milestone.StatusPlanning,
		"planned":    milestone.StatusPlanning,
		"notstarted": milestone.StatusPlanning,
		"new":        milestone.StatusPlanning,
		"todo":       milestone.StatusPlanning,
		"inprogress": milestone.StatusInProgress,
		"progress":   milestone.StatusInProgress,
		"ongoing":    milestone.StatusInProgress,
		"active":     milestone.StatusInProgress,
		"started":    milestone.StatusInProgress,
		"wip":        milestone.StatusInProgress,
		"completed":  milestone.StatusCompleted,
		"complete":   milestone.StatusCompleted,
		"done":       milestone.StatusCompleted,
		"finished":   milestone.StatusCompleted,
		"closed":     milestone.StatusCompleted,
		"delayed":    milestone.StatusDelayed,
		"late":       milestone.StatusDelayed,
		"overdue":    milestone.StatusDelayed,
		"behind":     milestone.StatusDelayed,
		"onhold":     milestone.StatusDelayed,
		"cancelled":  milestone.StatusCancelled,
		"canceled":   milestone.StatusCancelled,
		"aborted":    milestone.StatusCancelled,
		"dropped":    milestone.StatusCancelled,
	}
	statusAliasKeys = sortedKeys(statusAliases)
)

// ParsePercentage converts a progress cell into an integer in [0,100].
// The second result reports whether a non-empty value had to be repaired.
func ParsePercentage(raw string, present bool) (int, bool) {
	if !present {
		return 0, false
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return 0, false
	}
	if len(s) > maxPercentageLen {
		return 0, true
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, true
	}
	// Round rescales to the exponent, so huge exponents are clamped first.
	switch {
	case d.Exponent() > 3:
		if d.IsNegative() {
			return 0, true
		}
		if d.IsZero() {
			return 0, false
		}
		return 100, true
	case d.Exponent() < -maxPercentageLen:
		return 0, false
	}
	d = d.Round(0)
	switch {
	case d.IsNegative():
		return 0, true
	case d.GreaterThan(hundred):
		return 100, true
	}
	return int(d.IntPart()), false
}

// ParseDate returns the calendar date at UTC midnight, or nil. The second
// result reports whether a non-empty value could not be parsed.
func ParseDate(raw string, layouts []string) (*time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			continue
		}
		y, m, d := t.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &day, false
	}
	return nil, true
}

// ParseStatus maps free text onto the status vocabulary. Unknown text falls
// back to the default status; hint names the closest status when one exists.
// An empty cell yields the default status and counts as recognized.
func ParseStatus(raw string) (status milestone.Status, recognized bool, hint string) {
	key := statusKey(raw)
	if key == "" {
		return milestone.DefaultStatus, true, ""
	}
	if s, ok := statusAliases[key]; ok {
		return s, true, ""
	}
	ranks := fuzzy.RankFindNormalizedFold(key, statusAliasKeys)
	if len(ranks) > 0 {
		sort.Stable(ranks)
		hint = string(statusAliases[ranks[0].Target])
	}
	return milestone.DefaultStatus, false, hint
}

func statusKey(raw string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '_', '-':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(raw)))
}

// ParseText trims an identity cell. Emptiness is left to the validator.
func ParseText(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

func sortedKeys(m map[string]milestone.Status) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
