// Package recurring mines a session's spending transactions for repeating
// charge patterns: subscriptions, weekly/monthly bills and "gray charges" —
// small recurring debits a user is likely to overlook.
package recurring

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dkurbatov/spendlens/internal/domain"
)

// Interval classification bounds, in days. A group must land in one of the
// two windows with sufficiently regular gaps to count as recurring.
const (
	monthlyMinInterval = 25
	monthlyMaxInterval = 35
	monthlyMaxVariance = 25

	weeklyMinInterval = 6
	weeklyMaxInterval = 8
	weeklyMaxVariance = 4

	maxPatternLength = 30
)

var (
	longDigitRuns = regexp.MustCompile(`\d{4,}`)
	orderNumbers  = regexp.MustCompile(`#\d+`)
	asteriskRuns  = regexp.MustCompile(`\*+`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// Config holds the gray-charge heuristics. The thresholds are empirical;
// keep them tunable rather than baked in.
type Config struct {
	// GrayAmountThreshold is the absolute average amount below which a
	// recurring charge in one of GrayCategories counts as gray.
	GrayAmountThreshold float64

	// MicroAmountThreshold and MicroPatternLength force gray status on
	// minimal-signature micro-charges regardless of category.
	MicroAmountThreshold float64
	MicroPatternLength   int

	// GrayCategories are the category names eligible for the standard
	// gray-charge test.
	GrayCategories []string
}

// DefaultConfig returns the stock gray-charge thresholds.
func DefaultConfig() Config {
	return Config{
		GrayAmountThreshold:  15,
		MicroAmountThreshold: 5,
		MicroPatternLength:   20,
		GrayCategories:       []string{"Other", "Subscriptions"},
	}
}

// Miner detects recurring charges for one session at a time. It holds no
// cross-session state.
type Miner struct {
	log zerolog.Logger
	cfg Config
}

func NewMiner(log zerolog.Logger, cfg Config) *Miner {
	return &Miner{log: log, cfg: cfg}
}

// DetectRecurring groups a session's spending transactions by normalized
// description pattern and returns one RecurringCharge per group with a
// regular weekly or monthly cadence. categories maps category IDs to display
// names; uncategorized transactions participate and are treated as "Other"
// for the gray-charge test.
//
// The result is computed fresh each call. Callers that persist results and
// re-run mining for the same session should replace the stored set rather
// than append.
func (m *Miner) DetectRecurring(
	ctx context.Context,
	sessionID string,
	txs []domain.Transaction,
	categories map[string]string,
) ([]domain.RecurringCharge, error) {
	groups := make(map[string][]domain.Transaction)
	for _, t := range txs {
		if t.ID == "" {
			return nil, fmt.Errorf("DetectRecurring: transaction with empty ID in session %s", sessionID)
		}
		if t.SessionID != sessionID {
			return nil, fmt.Errorf("DetectRecurring: transaction %s belongs to session %s, not %s",
				t.ID, t.SessionID, sessionID)
		}
		if !t.IsSpend() {
			continue
		}
		pattern := NormalizePattern(t.Description)
		groups[pattern] = append(groups[pattern], t)
	}

	var charges []domain.RecurringCharge

	for pattern, group := range groups {
		if len(group) < 2 {
			continue
		}

		sort.Slice(group, func(i, j int) bool {
			return group[i].Date.Before(group[j].Date)
		})

		meanInterval, variance := intervalStats(group)
		frequencyDays, ok := classifyInterval(meanInterval, variance)
		if !ok {
			continue
		}

		var sum float64
		for _, t := range group {
			sum += t.Amount
		}
		avgAmount := sum / float64(len(group))

		categoryID := group[0].CategoryID
		charge := domain.RecurringCharge{
			SessionID:          sessionID,
			DescriptionPattern: pattern,
			CategoryID:         categoryID,
			AverageAmount:      avgAmount,
			FrequencyDays:      frequencyDays,
			OccurrenceCount:    len(group),
			FirstSeen:          group[0].Date,
			LastSeen:           group[len(group)-1].Date,
			IsGrayCharge:       m.isGrayCharge(avgAmount, pattern, categoryID, categories),
			Confidence:         1 - math.Min(variance/20, 0.5),
		}
		charges = append(charges, charge)
	}

	sort.Slice(charges, func(i, j int) bool {
		return charges[i].DescriptionPattern < charges[j].DescriptionPattern
	})

	m.log.Debug().
		Str("session_id", sessionID).
		Int("patterns", len(groups)).
		Int("recurring", len(charges)).
		Msg("Recurrence mining complete")

	return charges, nil
}

// NormalizePattern reduces a raw description to a stable grouping key:
// uppercase, long digit runs / order numbers / asterisks removed, whitespace
// collapsed, truncated to 30 characters.
func NormalizePattern(description string) string {
	p := strings.ToUpper(description)
	p = orderNumbers.ReplaceAllString(p, "")
	p = longDigitRuns.ReplaceAllString(p, "")
	p = asteriskRuns.ReplaceAllString(p, "")
	p = whitespace.ReplaceAllString(p, " ")
	p = strings.TrimSpace(p)
	// Truncate on runes, not bytes: descriptions are not guaranteed ASCII.
	if r := []rune(p); len(r) > maxPatternLength {
		p = strings.TrimSpace(string(r[:maxPatternLength]))
	}
	return p
}

// intervalStats returns the mean and population variance of the day-gaps
// between consecutive occurrences. The group must be date-sorted.
func intervalStats(group []domain.Transaction) (mean, variance float64) {
	gaps := make([]float64, 0, len(group)-1)
	for i := 1; i < len(group); i++ {
		gaps = append(gaps, group[i].Date.Sub(group[i-1].Date).Hours()/24)
	}

	var sum float64
	for _, g := range gaps {
		sum += g
	}
	mean = sum / float64(len(gaps))

	var ss float64
	for _, g := range gaps {
		d := g - mean
		ss += d * d
	}
	variance = ss / float64(len(gaps))

	return mean, variance
}

// classifyInterval maps an interval profile to a canonical frequency:
// 30 days for monthly cadence, 7 for weekly. Anything else is not recurring.
func classifyInterval(meanInterval, variance float64) (frequencyDays int, ok bool) {
	switch {
	case meanInterval >= monthlyMinInterval && meanInterval <= monthlyMaxInterval && variance < monthlyMaxVariance:
		return 30, true
	case meanInterval >= weeklyMinInterval && meanInterval <= weeklyMaxInterval && variance < weeklyMaxVariance:
		return 7, true
	default:
		return 0, false
	}
}

func (m *Miner) isGrayCharge(avgAmount float64, pattern string, categoryID *string, categories map[string]string) bool {
	amountAbs := math.Abs(avgAmount)

	// Micro-charges with a minimal signature are gray regardless of category.
	if amountAbs < m.cfg.MicroAmountThreshold && len(pattern) < m.cfg.MicroPatternLength {
		return true
	}

	if amountAbs >= m.cfg.GrayAmountThreshold {
		return false
	}

	categoryName := "Other"
	if categoryID != nil {
		if name, ok := categories[*categoryID]; ok {
			categoryName = name
		}
	}
	for _, gray := range m.cfg.GrayCategories {
		if categoryName == gray {
			return true
		}
	}
	return false
}
