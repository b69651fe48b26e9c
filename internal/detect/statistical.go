package detect

import (
	"fmt"
	"math"
	"sort"

	"github.com/dkurbatov/spendlens/internal/domain"
)

// detectStatistical is the fallback path: a per-category z-score test over
// spending transactions. Categories with fewer than five bounded spend
// transactions, or without meaningful variance, are skipped silently.
func (s *Service) detectStatistical(
	sessionID string,
	txs []domain.Transaction,
	categories map[string]string,
	flagged map[string]bool,
) []domain.Anomaly {
	// Group spend transactions by category, excluding amounts past the
	// data-quality bound so one bad row cannot poison the mean/std.
	byCategory := make(map[string][]domain.Transaction)
	for _, t := range txs {
		if !t.IsSpend() || math.Abs(t.Amount) > MaxAmountForAnalysis {
			continue
		}
		byCategory[*t.CategoryID] = append(byCategory[*t.CategoryID], t)
	}

	var anomalies []domain.Anomaly

	for categoryID, catTxs := range byCategory {
		if len(catTxs) < MinTransactionsForZScore {
			continue
		}

		mean, std := meanAndSampleStd(catTxs)
		if math.IsNaN(std) || std < 0.01 {
			// No meaningful variance to test against.
			continue
		}

		for _, t := range catTxs {
			if flagged[t.ID] {
				continue
			}

			z := (t.Amount - mean) / std
			z = clamp(z, -MaxZScore, MaxZScore)

			if math.Abs(z) <= 2 {
				continue
			}

			confidence := math.Min(1.0, math.Abs(z)/5.0)
			categoryName := categoryLabel(categories, categoryID)

			anomalies = append(anomalies, domain.Anomaly{
				SessionID:     sessionID,
				TransactionID: t.ID,
				AnomalyType:   domain.AnomalyTypeAmount,
				Severity:      severityFromZScore(math.Abs(z)),
				ExpectedValue: math.Abs(mean),
				ActualValue:   math.Abs(t.Amount),
				Confidence:    confidence,
				Explanation: statisticalExplanation(
					categoryName, math.Abs(t.Amount), math.Abs(mean), math.Abs(z)),
			})
			flagged[t.ID] = true
		}
	}

	// Category grouping iterates a map; sort so the same batch always yields
	// the same anomaly order.
	sort.Slice(anomalies, func(i, j int) bool {
		return anomalies[i].TransactionID < anomalies[j].TransactionID
	})

	return anomalies
}

// severityFromZScore maps |z| to a severity level: >3 high, >2.5 medium,
// otherwise low (detection requires |z| > 2).
func severityFromZScore(zAbs float64) domain.Severity {
	switch {
	case zAbs > 3:
		return domain.SeverityHigh
	case zAbs > 2.5:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func statisticalExplanation(category string, actual, expected, zAbs float64) string {
	if actual > expected {
		multiplier := 0.0
		if expected > 0 {
			multiplier = actual / expected
		}
		return fmt.Sprintf(
			"This %s expense of $%.2f is %.1fx your typical $%.2f. "+
				"This is %.1f standard deviations above your normal spending in this category.",
			category, actual, multiplier, expected, zAbs)
	}
	return fmt.Sprintf(
		"This %s expense of $%.2f is unusually low compared to your typical $%.2f.",
		category, actual, expected)
}

func meanAndSampleStd(txs []domain.Transaction) (mean, std float64) {
	var sum float64
	for _, t := range txs {
		sum += t.Amount
	}
	mean = sum / float64(len(txs))

	if len(txs) < 2 {
		return mean, math.NaN()
	}

	var ss float64
	for _, t := range txs {
		d := t.Amount - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(txs)-1))
}

func categoryLabel(categories map[string]string, categoryID string) string {
	if name, ok := categories[categoryID]; ok {
		return name
	}
	return "Unknown"
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
