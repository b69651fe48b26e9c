// Package synthetic generates a realistic demo session: three months of
// everyday spending with recurring subscriptions, a couple of gray charges
// and one planted outlier, so every analysis surface has something to show.
package synthetic

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/dkurbatov/spendlens/internal/domain"
)

const defaultSeed = 1

// merchant describes one habitual spending source.
type merchant struct {
	description string
	meanAmount  float64
	jitter      float64 // uniform +/- on the amount
	perWeek     float64 // average visits per week
}

var merchants = []merchant{
	{"STARBUCKS STORE 1234", 6.50, 2.0, 4},
	{"TRADER JOES #512", 55.00, 20.0, 1.5},
	{"CHIPOTLE ONLINE", 14.00, 4.0, 1},
	{"SHELL OIL 5732", 48.00, 12.0, 0.8},
	{"AMZN MKTP US", 32.00, 25.0, 1.2},
	{"UBER TRIP HELP.UBER.COM", 18.00, 9.0, 0.7},
	{"CVS/PHARMACY #882", 21.00, 10.0, 0.4},
}

// subscription describes a fixed recurring charge.
type subscription struct {
	description string
	amount      float64
	intervalDay int
}

var subscriptions = []subscription{
	{"NETFLIX.COM", 15.99, 30},
	{"SPOTIFY PREMIUM", 9.99, 30},
	{"PLANET FITNESS CLUB 221", 24.99, 30},
	// Gray charges: small, forgettable, recurring.
	{"DIGI SVC FEE", 2.99, 30},
	{"CLOUD STG", 1.99, 30},
}

// Options controls generation. The zero value gets sensible defaults.
type Options struct {
	Seed   int64
	Months int
	// OutlierAmount is the planted anomaly, spent at a habitual merchant
	// so the statistical detector has a category to test it against.
	OutlierAmount float64
}

// Generate builds a complete synthetic session. The same seed always yields
// the same batch.
func Generate(opts Options) (domain.Session, []domain.Transaction) {
	if opts.Seed == 0 {
		opts.Seed = defaultSeed
	}
	if opts.Months <= 0 {
		opts.Months = 3
	}
	if opts.OutlierAmount == 0 {
		opts.OutlierAmount = 412.80
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, -opts.Months, 0)

	session := domain.Session{
		ID:        uuid.NewString(),
		Filename:  "sample-session.csv",
		Status:    domain.SessionStatusProcessing,
		CreatedAt: time.Now().UTC(),
	}

	var txs []domain.Transaction
	add := func(date time.Time, description string, amount float64) {
		txs = append(txs, domain.Transaction{
			ID:             uuid.NewString(),
			SessionID:      session.ID,
			Date:           date,
			Description:    description,
			RawDescription: description,
			Amount:         amount,
		})
	}

	// Habitual merchants: Poisson-ish visits spread over each week.
	for _, m := range merchants {
		for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
			if rng.Float64() < m.perWeek/7 {
				amount := m.meanAmount + (rng.Float64()*2-1)*m.jitter
				add(day, m.description, -round2(amount))
			}
		}
	}

	// Subscriptions land on a fixed cadence with a day of wobble.
	for i, s := range subscriptions {
		first := start.AddDate(0, 0, 2+i*3)
		for date := first; date.Before(end); date = date.AddDate(0, 0, s.intervalDay+rng.Intn(3)-1) {
			add(date, s.description, -s.amount)
		}
	}

	// Twice-monthly payroll.
	for date := start.AddDate(0, 0, 1); date.Before(end); date = date.AddDate(0, 0, 15) {
		add(date, "ACME CORP PAYROLL", 2450.00)
	}

	// The planted outlier: one wildly oversized charge at a habitual
	// merchant near the end of the window.
	add(end.AddDate(0, 0, -5), merchants[0].description, -opts.OutlierAmount)

	session.RowCount = len(txs)
	return session, txs
}

// GenerateCSV renders the synthetic batch in upload format, useful for
// exercising the full ingest path.
func GenerateCSV(opts Options) []byte {
	_, txs := Generate(opts)

	buf := []byte("Date,Description,Amount\n")
	for _, t := range txs {
		line := fmt.Sprintf("%s,%s,%.2f\n", t.Date.Format("2006-01-02"), t.Description, t.Amount)
		buf = append(buf, line...)
	}
	return buf
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
