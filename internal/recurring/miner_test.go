package recurring

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/dkurbatov/spendlens/internal/domain"
)

var testCategories = map[string]string{
	"cat-subs":      "Subscriptions",
	"cat-other":     "Other",
	"cat-groceries": "Groceries",
}

func newTestMiner() *Miner {
	return NewMiner(zerolog.Nop(), DefaultConfig())
}

func series(desc string, amount float64, categoryID string, start time.Time, gaps ...int) []domain.Transaction {
	var cat *string
	if categoryID != "" {
		cat = &categoryID
	}
	txs := []domain.Transaction{{
		ID:          desc + "-0",
		SessionID:   "s1",
		Date:        start,
		Description: desc,
		Amount:      amount,
		CategoryID:  cat,
	}}
	d := start
	for i, gap := range gaps {
		d = d.AddDate(0, 0, gap)
		txs = append(txs, domain.Transaction{
			ID:          fmt.Sprintf("%s-%d", desc, i+1),
			SessionID:   "s1",
			Date:        d,
			Description: desc,
			Amount:      amount,
			CategoryID:  cat,
		})
	}
	return txs
}

func TestDetectRecurring_MonthlyCadence(t *testing.T) {
	start := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	txs := series("NETFLIX.COM 8005551234", -15.99, "cat-subs", start, 30, 29, 31, 30, 29)

	charges, err := newTestMiner().DetectRecurring(context.Background(), "s1", txs, testCategories)
	if err != nil {
		t.Fatalf("DetectRecurring: %v", err)
	}
	if len(charges) != 1 {
		t.Fatalf("got %d charges, want 1", len(charges))
	}

	c := charges[0]
	if c.FrequencyDays != 30 {
		t.Errorf("FrequencyDays = %d, want 30", c.FrequencyDays)
	}
	if c.OccurrenceCount != 6 {
		t.Errorf("OccurrenceCount = %d, want 6", c.OccurrenceCount)
	}
	if c.Confidence <= 0.9 {
		t.Errorf("Confidence = %v, want > 0.9 for near-exact 30-day spacing", c.Confidence)
	}
	if c.AverageAmount != -15.99 {
		t.Errorf("AverageAmount = %v, want -15.99", c.AverageAmount)
	}
	if !c.FirstSeen.Equal(start) {
		t.Errorf("FirstSeen = %v, want %v", c.FirstSeen, start)
	}
	wantLast := start.AddDate(0, 0, 30+29+31+30+29)
	if !c.LastSeen.Equal(wantLast) {
		t.Errorf("LastSeen = %v, want %v", c.LastSeen, wantLast)
	}
	if c.IsGrayCharge {
		t.Error("a $15.99 subscription should not be a gray charge")
	}
}

func TestDetectRecurring_WeeklyCadence(t *testing.T) {
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	txs := series("TRADER JOES", -62.40, "cat-groceries", start, 7, 7, 6, 8, 7)

	charges, err := newTestMiner().DetectRecurring(context.Background(), "s1", txs, testCategories)
	if err != nil {
		t.Fatalf("DetectRecurring: %v", err)
	}
	if len(charges) != 1 {
		t.Fatalf("got %d charges, want 1", len(charges))
	}
	if charges[0].FrequencyDays != 7 {
		t.Errorf("FrequencyDays = %d, want 7", charges[0].FrequencyDays)
	}
}

func TestDetectRecurring_GrayCharge(t *testing.T) {
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	txs := series("DIGI SVC FEE", -2.99, "cat-other", start, 30, 30, 30, 30)

	charges, err := newTestMiner().DetectRecurring(context.Background(), "s1", txs, testCategories)
	if err != nil {
		t.Fatalf("DetectRecurring: %v", err)
	}
	if len(charges) != 1 {
		t.Fatalf("got %d charges, want 1", len(charges))
	}
	if !charges[0].IsGrayCharge {
		t.Error("a $2.99 recurring charge in Other should be gray")
	}
}

func TestDetectRecurring_MicroChargeForcedGray(t *testing.T) {
	// $1.99 with a short pattern is gray even in a non-gray category.
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	txs := series("APP FEE", -1.99, "cat-groceries", start, 30, 30)

	charges, err := newTestMiner().DetectRecurring(context.Background(), "s1", txs, testCategories)
	if err != nil {
		t.Fatalf("DetectRecurring: %v", err)
	}
	if len(charges) != 1 {
		t.Fatalf("got %d charges, want 1", len(charges))
	}
	if !charges[0].IsGrayCharge {
		t.Error("a micro-charge with a short pattern should always be gray")
	}
}

func TestDetectRecurring_UncategorizedTreatedAsOther(t *testing.T) {
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	txs := series("MYSTERY RECURRING DEBIT MONTHLY", -9.99, "", start, 30, 30, 30)

	charges, err := newTestMiner().DetectRecurring(context.Background(), "s1", txs, testCategories)
	if err != nil {
		t.Fatalf("DetectRecurring: %v", err)
	}
	if len(charges) != 1 {
		t.Fatalf("got %d charges, want 1", len(charges))
	}
	if !charges[0].IsGrayCharge {
		t.Error("an uncategorized small recurring charge should be gray")
	}
	if charges[0].CategoryID != nil {
		t.Errorf("CategoryID = %v, want nil", *charges[0].CategoryID)
	}
}

func TestDetectRecurring_IrregularIntervalsDiscarded(t *testing.T) {
	tests := []struct {
		name string
		gaps []int
	}{
		{"random spacing", []int{3, 45, 12, 70}},
		{"monthly mean but high variance", []int{20, 40, 20, 40}},
		{"too frequent", []int{2, 2, 2, 2}},
		{"single occurrence", nil},
	}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var txs []domain.Transaction
			if tt.gaps == nil {
				txs = series("ONE OFF PURCHASE", -20, "cat-other", start)
			} else {
				txs = series("IRREGULAR VENDOR", -20, "cat-other", start, tt.gaps...)
			}

			charges, err := newTestMiner().DetectRecurring(context.Background(), "s1", txs, testCategories)
			if err != nil {
				t.Fatalf("DetectRecurring: %v", err)
			}
			if len(charges) != 0 {
				t.Errorf("got %d charges, want 0", len(charges))
			}
		})
	}
}

func TestDetectRecurring_IncomeExcluded(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	txs := series("EMPLOYER PAYROLL", 2500, "cat-other", start, 30, 30, 30)

	charges, err := newTestMiner().DetectRecurring(context.Background(), "s1", txs, testCategories)
	if err != nil {
		t.Fatalf("DetectRecurring: %v", err)
	}
	if len(charges) != 0 {
		t.Errorf("income should not produce recurring charges, got %d", len(charges))
	}
}

func TestDetectRecurring_GroupsAcrossNoisyDescriptions(t *testing.T) {
	// The same subscription shows up with varying order numbers and card
	// suffixes; normalization must fold them into one group.
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	descs := []string{
		"SPOTIFY *PREMIUM 1234567890",
		"SPOTIFY PREMIUM #991",
		"SPOTIFY  PREMIUM 20250310",
	}
	var txs []domain.Transaction
	cat := "cat-subs"
	for i, desc := range descs {
		txs = append(txs, domain.Transaction{
			ID:          fmt.Sprintf("sp-%d", i),
			SessionID:   "s1",
			Date:        start.AddDate(0, 0, 30*i),
			Description: desc,
			Amount:      -9.99,
			CategoryID:  &cat,
		})
	}

	charges, err := newTestMiner().DetectRecurring(context.Background(), "s1", txs, testCategories)
	if err != nil {
		t.Fatalf("DetectRecurring: %v", err)
	}
	if len(charges) != 1 {
		t.Fatalf("got %d charges, want 1 merged group", len(charges))
	}
	if charges[0].DescriptionPattern != "SPOTIFY PREMIUM" {
		t.Errorf("DescriptionPattern = %q, want %q", charges[0].DescriptionPattern, "SPOTIFY PREMIUM")
	}
}

func TestDetectRecurring_ContractViolations(t *testing.T) {
	miner := newTestMiner()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty transaction ID", func(t *testing.T) {
		txs := series("X", -5, "cat-other", start, 30)
		txs[0].ID = ""
		if _, err := miner.DetectRecurring(context.Background(), "s1", txs, testCategories); err == nil {
			t.Fatal("expected error for empty transaction ID")
		}
	})

	t.Run("foreign session", func(t *testing.T) {
		txs := series("X", -5, "cat-other", start, 30)
		txs[1].SessionID = "other"
		if _, err := miner.DetectRecurring(context.Background(), "s1", txs, testCategories); err == nil {
			t.Fatal("expected error for foreign session transaction")
		}
	})
}

func TestNormalizePattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"NETFLIX.COM 8005551234", "NETFLIX.COM"},
		{"Spotify *Premium #12345", "SPOTIFY PREMIUM"},
		{"AMZN MKTP US*RT4Y67", "AMZN MKTP USRT4Y67"},
		{"POS   DEBIT    STORE 42", "POS DEBIT STORE 42"},
		{"A VERY LONG MERCHANT DESCRIPTION THAT KEEPS GOING", "A VERY LONG MERCHANT DESCRIPTI"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizePattern(tt.in); got != tt.want {
			t.Errorf("NormalizePattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePattern_MultibyteTruncation(t *testing.T) {
	// 1 ASCII byte followed by 31 two-byte runes: a byte-indexed cut at 30
	// would land mid-rune.
	in := "X" + strings.Repeat("É", 31)
	got := NormalizePattern(in)

	if !utf8.ValidString(got) {
		t.Fatalf("NormalizePattern(%q) produced invalid UTF-8: %q", in, got)
	}
	if want := "X" + strings.Repeat("É", 29); got != want {
		t.Errorf("NormalizePattern(%q) = %q, want %q", in, got, want)
	}
}
