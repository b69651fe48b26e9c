package features

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/dkurbatov/spendlens/internal/domain"
)

func tx(id string, date time.Time, desc string, amount float64) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		SessionID:   "s1",
		Date:        date,
		Description: desc,
		Amount:      amount,
	}
}

func TestExtract_EmptyBatch(t *testing.T) {
	if rows := Extract(nil); rows != nil {
		t.Errorf("Extract(nil) = %v, want nil", rows)
	}
	if rows := Extract([]domain.Transaction{}); rows != nil {
		t.Errorf("Extract(empty) = %v, want nil", rows)
	}
}

func TestExtract_AmountFeatures(t *testing.T) {
	d := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC) // Tuesday, day 10
	txs := []domain.Transaction{
		tx("t1", d, "COFFEE SHOP", -10),
		tx("t2", d, "COFFEE SHOP", -20),
		tx("t3", d, "COFFEE SHOP", -30),
	}

	rows := Extract(txs)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	// mean=20, sample std=10
	if got := rows[0].AmountZScore; math.Abs(got-(-1)) > 1e-9 {
		t.Errorf("AmountZScore = %v, want -1", got)
	}
	if got := rows[2].AmountZScore; math.Abs(got-1) > 1e-9 {
		t.Errorf("AmountZScore = %v, want 1", got)
	}
	if got := rows[0].AmountLog; math.Abs(got-math.Log1p(10)) > 1e-9 {
		t.Errorf("AmountLog = %v, want ln(11)", got)
	}
	if rows[1].AmountAbs != 20 {
		t.Errorf("AmountAbs = %v, want 20", rows[1].AmountAbs)
	}
}

func TestExtract_ZeroVarianceUsesStdFloor(t *testing.T) {
	d := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("t1", d, "A", -10),
		tx("t2", d, "B", -10),
	}

	rows := Extract(txs)
	// With std floored to 1, z-score is amount_abs - mean = 0.
	for _, r := range rows {
		if r.AmountZScore != 0 {
			t.Errorf("AmountZScore = %v, want 0 with std floor", r.AmountZScore)
		}
	}
}

func TestExtract_MerchantFrequency(t *testing.T) {
	d := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("t1", d, "STARBUCKS #1234", -5),
		tx("t2", d, "STARBUCKS #5678", -6),
		tx("t3", d, "STARBUCKS #9012", -7),
		tx("t4", d, "SOME PLACE", -8),
	}

	rows := Extract(txs)
	if got := rows[0].MerchantFrequency; math.Abs(got-0.75) > 1e-9 {
		t.Errorf("MerchantFrequency = %v, want 0.75", got)
	}
	if rows[0].IsOneTime != 0 {
		t.Errorf("IsOneTime = %v for 3-occurrence merchant, want 0", rows[0].IsOneTime)
	}
	if rows[3].IsOneTime != 1 {
		t.Errorf("IsOneTime = %v for single-occurrence merchant, want 1", rows[3].IsOneTime)
	}
}

func TestExtract_TemporalFlags(t *testing.T) {
	tests := []struct {
		name        string
		date        time.Time
		wantDOW     float64
		wantWeekend float64
		wantPayday  float64
	}{
		{"monday mid-month", time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), 0, 0, 0},
		{"saturday", time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC), 5, 1, 0},
		{"sunday payday", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 6, 1, 1},
		{"mid-month payday", time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), 0, 0, 1},
		{"day 17 payday", time.Date(2025, 6, 17, 0, 0, 0, 0, time.UTC), 1, 0, 1},
		{"day 18 not payday", time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC), 2, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Extract([]domain.Transaction{tx("t1", tt.date, "X", -1)})
			r := rows[0]
			if r.DayOfWeek != tt.wantDOW {
				t.Errorf("DayOfWeek = %v, want %v", r.DayOfWeek, tt.wantDOW)
			}
			if r.IsWeekend != tt.wantWeekend {
				t.Errorf("IsWeekend = %v, want %v", r.IsWeekend, tt.wantWeekend)
			}
			if r.IsPayday != tt.wantPayday {
				t.Errorf("IsPayday = %v, want %v", r.IsPayday, tt.wantPayday)
			}
		})
	}
}

func TestMerchantKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"STARBUCKS #1234 SEATTLE", "STARBUCKS #"},
		{"Netflix.com 0423", "NETFLIX.COM"},
		{"amazon mktp us 12345", "AMAZON MKTP"},
		{"", "UNKNOWN"},
		{"12345", "UNKNOWN"},
		{"uber", "UBER"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := MerchantKey(tt.input); got != tt.want {
				t.Errorf("MerchantKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtract_Idempotent(t *testing.T) {
	d := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("t1", d, "GROCERY MART 001", -54.12),
		tx("t2", d.AddDate(0, 0, 1), "GROCERY MART 002", -61.88),
		tx("t3", d.AddDate(0, 0, 2), "GYM MEMBERSHIP", -45),
		tx("t4", d.AddDate(0, 0, 9), "PAYCHECK", 2500),
	}

	first := Extract(txs)
	second := Extract(txs)
	if !reflect.DeepEqual(first, second) {
		t.Error("Extract is not deterministic across runs on the same batch")
	}
}
