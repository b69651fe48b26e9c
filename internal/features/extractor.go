// Package features turns a transaction batch into the numeric feature table
// consumed by the multivariate anomaly detector.
package features

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/dkurbatov/spendlens/internal/domain"
)

// Row is the derived feature set for one transaction. It is computed fresh per
// detection run and never persisted.
type Row struct {
	TransactionID string

	AmountAbs    float64 // |amount|
	AmountZScore float64 // z-score of |amount| within the batch
	AmountLog    float64 // ln(1 + |amount|)

	MerchantKey       string  // normalized merchant identifier
	MerchantFrequency float64 // share of the batch with this merchant key
	IsOneTime         float64 // 1 if the merchant appears <= 2 times in the batch

	DayOfWeek float64 // 0 (Monday) .. 6 (Sunday)
	IsWeekend float64 // 1 if Saturday or Sunday
	IsPayday  float64 // 1 if day of month in [1,3] or [15,17]
}

// Vector returns the 8-dimensional feature vector used for model training.
// The order is fixed; the scaler and the ensemble both depend on it.
func (r Row) Vector() []float64 {
	return []float64{
		r.AmountAbs,
		r.AmountZScore,
		r.AmountLog,
		r.MerchantFrequency,
		r.IsOneTime,
		r.DayOfWeek,
		r.IsWeekend,
		r.IsPayday,
	}
}

var digitRuns = regexp.MustCompile(`\d+`)

// Extract computes one feature Row per transaction. It is a pure function of
// the batch: running it twice on the same input yields identical rows. An
// empty batch yields an empty slice; callers must check batch size before
// invoking the detectors.
func Extract(txs []domain.Transaction) []Row {
	if len(txs) == 0 {
		return nil
	}

	// Batch-level amount statistics (absolute amounts).
	absAmounts := make([]float64, len(txs))
	var sum float64
	for i, t := range txs {
		absAmounts[i] = math.Abs(t.Amount)
		sum += absAmounts[i]
	}
	mean := sum / float64(len(txs))

	std := sampleStd(absAmounts, mean)
	if std <= 0 {
		// Std floor: with zero variance the z-score degenerates to the
		// centered amount instead of dividing by zero.
		std = 1
	}

	// Merchant frequency table.
	keys := make([]string, len(txs))
	counts := make(map[string]int, len(txs))
	for i, t := range txs {
		keys[i] = MerchantKey(t.Description)
		counts[keys[i]]++
	}

	total := float64(len(txs))
	rows := make([]Row, len(txs))
	for i, t := range txs {
		dow := mondayIndexedWeekday(t.Date.Weekday())
		dom := t.Date.Day()

		row := Row{
			TransactionID:     t.ID,
			AmountAbs:         absAmounts[i],
			AmountZScore:      (absAmounts[i] - mean) / std,
			AmountLog:         math.Log1p(absAmounts[i]),
			MerchantKey:       keys[i],
			MerchantFrequency: float64(counts[keys[i]]) / total,
			DayOfWeek:         float64(dow),
		}
		if counts[keys[i]] <= 2 {
			row.IsOneTime = 1
		}
		if dow >= 5 {
			row.IsWeekend = 1
		}
		if dom <= 3 || (dom >= 15 && dom <= 17) {
			row.IsPayday = 1
		}
		rows[i] = row
	}

	return rows
}

// MerchantKey normalizes a description into a coarse merchant identifier:
// digits stripped, first two whitespace-delimited tokens, uppercased.
// An empty result maps to the sentinel "UNKNOWN".
func MerchantKey(description string) string {
	text := digitRuns.ReplaceAllString(description, "")
	words := strings.Fields(text)
	if len(words) > 2 {
		words = words[:2]
	}
	if len(words) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(strings.Join(words, " "))
}

// mondayIndexedWeekday converts Go's Sunday-indexed weekday to Monday=0..Sunday=6.
func mondayIndexedWeekday(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func sampleStd(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
