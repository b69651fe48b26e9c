// Package ingest parses uploaded CSV bank exports into canonical
// transactions. Banks disagree on column names, date formats and amount
// signs; everything here exists to normalize that mess into one shape.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dkurbatov/spendlens/internal/domain"
)

// Column aliases recognized in the header row, lowercased.
var (
	dateAliases        = []string{"date", "transaction date", "posted date", "posting date", "trans date"}
	descriptionAliases = []string{"description", "memo", "details", "payee", "merchant", "name", "transaction"}
	amountAliases      = []string{"amount", "transaction amount", "value", "debit/credit"}
	debitAliases       = []string{"debit", "withdrawal", "money out", "paid out"}
	creditAliases      = []string{"credit", "deposit", "money in", "paid in"}
)

// Supported date layouts, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"01-02-2006",
	"2006/01/02",
}

var (
	noisePrefixes     = regexp.MustCompile(`^(POS |CHECKCARD |DEBIT CARD |CREDIT CARD |ACH |PURCHASE )`)
	trailingReference = regexp.MustCompile(`\s+\d{10,}$`)
	multiSpace        = regexp.MustCompile(`\s+`)
)

// Result is the outcome of parsing one upload.
type Result struct {
	Session      domain.Session
	Transactions []domain.Transaction
	SkippedRows  int
}

// Processor parses CSV uploads into sessions of canonical transactions.
type Processor struct {
	log zerolog.Logger
}

func NewProcessor(log zerolog.Logger) *Processor {
	return &Processor{log: log}
}

// ProcessCSV reads a CSV export and returns a new session with its
// transactions. Rows that cannot be parsed are counted and skipped; the
// upload fails only when the header is unusable or no row survives.
func (p *Processor) ProcessCSV(r io.Reader, filename string) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("ProcessCSV: reading header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, fmt.Errorf("ProcessCSV: %w", err)
	}

	session := domain.Session{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    domain.SessionStatusProcessing,
		CreatedAt: time.Now().UTC(),
	}

	var txs []domain.Transaction
	skipped := 0

	for lineNo := 2; ; lineNo++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			p.log.Debug().Int("line", lineNo).Err(err).Msg("Skipping malformed CSV row")
			continue
		}

		tx, err := cols.parseRow(record, session.ID)
		if err != nil {
			skipped++
			p.log.Debug().Int("line", lineNo).Err(err).Msg("Skipping unparseable row")
			continue
		}
		txs = append(txs, tx)
	}

	if len(txs) == 0 {
		return nil, fmt.Errorf("ProcessCSV: no parseable transactions in %s (%d rows skipped)", filename, skipped)
	}

	session.RowCount = len(txs)

	p.log.Info().
		Str("session_id", session.ID).
		Str("filename", filename).
		Int("transactions", len(txs)).
		Int("skipped", skipped).
		Msg("CSV processed")

	return &Result{Session: session, Transactions: txs, SkippedRows: skipped}, nil
}

// columnMap holds resolved header indices. amount is either a single signed
// column, or a debit/credit pair.
type columnMap struct {
	date        int
	description int
	amount      int
	debit       int
	credit      int
}

func mapColumns(header []string) (*columnMap, error) {
	cols := &columnMap{date: -1, description: -1, amount: -1, debit: -1, credit: -1}

	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		switch {
		case cols.date == -1 && contains(dateAliases, name):
			cols.date = i
		case cols.description == -1 && contains(descriptionAliases, name):
			cols.description = i
		case cols.amount == -1 && contains(amountAliases, name):
			cols.amount = i
		case cols.debit == -1 && contains(debitAliases, name):
			cols.debit = i
		case cols.credit == -1 && contains(creditAliases, name):
			cols.credit = i
		}
	}

	if cols.date == -1 {
		return nil, fmt.Errorf("no date column in header %v", header)
	}
	if cols.description == -1 {
		return nil, fmt.Errorf("no description column in header %v", header)
	}
	if cols.amount == -1 && cols.debit == -1 && cols.credit == -1 {
		return nil, fmt.Errorf("no amount column in header %v", header)
	}
	return cols, nil
}

func (c *columnMap) parseRow(record []string, sessionID string) (domain.Transaction, error) {
	get := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	date, err := parseDate(get(c.date))
	if err != nil {
		return domain.Transaction{}, err
	}

	raw := get(c.description)
	if raw == "" {
		return domain.Transaction{}, fmt.Errorf("empty description")
	}

	amount, err := c.parseAmount(get(c.amount), get(c.debit), get(c.credit))
	if err != nil {
		return domain.Transaction{}, err
	}

	return domain.Transaction{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		Date:           date,
		Description:    CleanDescription(raw),
		RawDescription: raw,
		Amount:         amount,
	}, nil
}

func (c *columnMap) parseAmount(amount, debit, credit string) (float64, error) {
	if c.amount >= 0 && amount != "" {
		return ParseAmount(amount)
	}
	if debit != "" {
		v, err := ParseAmount(debit)
		if err != nil {
			return 0, err
		}
		// Debit columns are unsigned; spending is negative in the
		// canonical model.
		return -absOf(v), nil
	}
	if credit != "" {
		v, err := ParseAmount(credit)
		if err != nil {
			return 0, err
		}
		return absOf(v), nil
	}
	return 0, fmt.Errorf("no amount value")
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseAmount handles currency symbols, thousands separators and
// parenthesized negatives: "$1,234.56", "(45.00)", "-12.30".
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "£", "")
	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q", s)
	}
	if negative {
		v = -v
	}
	return v, nil
}

// CleanDescription strips processor noise from a raw statement description:
// card-network prefixes, long trailing reference numbers, repeated spaces.
func CleanDescription(raw string) string {
	d := strings.ToUpper(strings.TrimSpace(raw))
	d = noisePrefixes.ReplaceAllString(d, "")
	d = trailingReference.ReplaceAllString(d, "")
	d = multiSpace.ReplaceAllString(d, " ")
	return strings.TrimSpace(d)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func absOf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
