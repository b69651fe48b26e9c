package detect

import (
	"fmt"
	"math"
	"strings"

	"github.com/dkurbatov/spendlens/internal/domain"
	"github.com/dkurbatov/spendlens/internal/features"
)

// Severity thresholds for the ensemble path, applied to the rescaled
// confidence rather than the raw score.
const (
	ensembleSeverityHigh   = 0.15
	ensembleSeverityMedium = 0.08
)

// detectMultivariate is the primary path for batches of 50+ categorized
// transactions: extract features, standardize per batch, fit a fresh ensemble
// and flag the points past the contamination boundary.
func (s *Service) detectMultivariate(
	sessionID string,
	txs []domain.Transaction,
	categories map[string]string,
	flagged map[string]bool,
) ([]domain.Anomaly, error) {
	rows := features.Extract(txs)
	if len(rows) == 0 {
		return nil, nil
	}

	matrix := make([][]float64, len(rows))
	for i, r := range rows {
		matrix[i] = r.Vector()
	}
	standardize(matrix)

	scorer := s.newScorer()
	if scorer == nil {
		return nil, fmt.Errorf("detectMultivariate: no ensemble scorer available")
	}

	if err := scorer.Fit(matrix); err != nil {
		return nil, fmt.Errorf("detectMultivariate: fitting ensemble: %w", err)
	}

	scores, err := scorer.DecisionScores(matrix)
	if err != nil {
		return nil, fmt.Errorf("detectMultivariate: scoring batch: %w", err)
	}

	var meanAbs float64
	for _, r := range rows {
		meanAbs += r.AmountAbs
	}
	meanAbs /= float64(len(rows))

	var anomalies []domain.Anomaly

	for i, score := range scores {
		if score >= 0 {
			continue
		}

		t := txs[i]
		if flagged[t.ID] {
			continue
		}

		if math.Abs(t.Amount) > MaxAmountForAnalysis {
			s.log.Warn().
				Str("session_id", sessionID).
				Str("transaction_id", t.ID).
				Float64("amount", t.Amount).
				Msg("Skipping anomaly candidate with extreme amount")
			continue
		}

		confidence := scoreToConfidence(score)
		categoryName := "Unknown"
		if t.CategoryID != nil {
			categoryName = categoryLabel(categories, *t.CategoryID)
		}

		anomalies = append(anomalies, domain.Anomaly{
			SessionID:     sessionID,
			TransactionID: t.ID,
			AnomalyType:   domain.AnomalyTypeIsolationForest,
			Severity:      severityFromConfidence(confidence),
			ExpectedValue: meanAbs,
			ActualValue:   math.Abs(t.Amount),
			Confidence:    confidence,
			Explanation:   ensembleExplanation(categoryName, math.Abs(t.Amount), confidence, rows[i]),
		})
		flagged[t.ID] = true
	}

	return anomalies, nil
}

// scoreToConfidence rescales a decision score to [0,1]. Raw scores fall
// roughly in [-0.5, 0.5] with more negative meaning more anomalous, so the
// linear map (0 - score) * 2 spreads the anomalous half over the unit
// interval. Rounded to 3 decimals.
func scoreToConfidence(score float64) float64 {
	confidence := clamp((0-score)*2, 0, 1)
	return math.Round(confidence*1000) / 1000
}

func severityFromConfidence(confidence float64) domain.Severity {
	switch {
	case confidence >= ensembleSeverityHigh:
		return domain.SeverityHigh
	case confidence >= ensembleSeverityMedium:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// ensembleExplanation assembles up to three contributing factors from the
// transaction's feature values, or falls back to a generic phrasing when none
// of the factors crosses its threshold.
func ensembleExplanation(category string, amountAbs, confidence float64, row features.Row) string {
	var factors []string

	if row.AmountZScore > 2.0 {
		factors = append(factors,
			fmt.Sprintf("amount is significantly higher than average (z=%.1f)", row.AmountZScore))
	} else if row.AmountZScore < -1.5 {
		factors = append(factors,
			fmt.Sprintf("amount is unusually low (z=%.1f)", row.AmountZScore))
	}
	if row.IsOneTime == 1 {
		factors = append(factors, "from a merchant you've rarely used")
	}
	if row.MerchantFrequency < 0.02 {
		factors = append(factors, "from an infrequent merchant")
	}
	if row.IsWeekend == 1 {
		factors = append(factors, "weekend transaction")
	}
	if row.IsPayday == 1 {
		factors = append(factors, "occurred during payday period")
	}

	confidencePct := int(confidence * 100)

	if len(factors) > 0 {
		if len(factors) > 3 {
			factors = factors[:3]
		}
		return fmt.Sprintf(
			"Flagged this %s transaction of $%.2f as %d%% unusual based on: %s. "+
				"This pattern differs from your typical spending behavior.",
			category, amountAbs, confidencePct, strings.Join(factors, ", "))
	}

	return fmt.Sprintf(
		"Flagged this %s transaction of $%.2f as %d%% unusual based on amount, timing, and frequency patterns.",
		category, amountAbs, confidencePct)
}

// standardize rescales each column to zero mean and unit variance in place,
// fit on this batch only. Constant columns are left centered.
func standardize(matrix [][]float64) {
	if len(matrix) == 0 {
		return
	}

	nFeatures := len(matrix[0])
	n := float64(len(matrix))

	for j := 0; j < nFeatures; j++ {
		var sum float64
		for _, row := range matrix {
			sum += row[j]
		}
		mean := sum / n

		var ss float64
		for _, row := range matrix {
			d := row[j] - mean
			ss += d * d
		}
		std := math.Sqrt(ss / n)
		if std == 0 {
			std = 1
		}

		for _, row := range matrix {
			row[j] = (row[j] - mean) / std
		}
	}
}
