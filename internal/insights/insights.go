// Package insights turns a session's analysis results into short
// natural-language takeaways. When a Gemini API key is configured the text
// comes from the model; otherwise a deterministic summary is generated so
// the rest of the product keeps working offline.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dkurbatov/spendlens/internal/domain"
)

const modelName = "gemini-2.0-flash"

// Generator produces per-session insights.
type Generator struct {
	log zerolog.Logger
}

func NewGenerator(log zerolog.Logger) *Generator {
	return &Generator{log: log}
}

// Generate builds insights for a session. The model path is attempted only
// when an API key is present; any model failure falls back to the
// deterministic summary rather than failing the session.
func (g *Generator) Generate(
	ctx context.Context,
	sessionID string,
	txs []domain.Transaction,
	anomalies []domain.Anomaly,
	charges []domain.RecurringCharge,
	categories map[string]string,
) ([]domain.Insight, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	if hasAPIKey() {
		insights, err := g.generateWithModel(ctx, sessionID, txs, anomalies, charges, categories)
		if err == nil {
			return insights, nil
		}
		g.log.Warn().
			Err(err).
			Str("session_id", sessionID).
			Msg("Model insight generation failed, using deterministic summary")
	}

	return g.generateDeterministic(sessionID, txs, anomalies, charges, categories), nil
}

func hasAPIKey() bool {
	return os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != ""
}

func (g *Generator) generateWithModel(
	ctx context.Context,
	sessionID string,
	txs []domain.Transaction,
	anomalies []domain.Anomaly,
	charges []domain.RecurringCharge,
	categories map[string]string,
) ([]domain.Insight, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("generateWithModel: create genai client: %w", err)
	}

	prompt := buildPrompt(txs, anomalies, charges, categories)

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, modelName, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generateWithModel: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("generateWithModel: empty response from model")
	}

	// Clean up Markdown fences / extra text if the model ignored instructions.
	clean := cleanModelJSON(rawText)

	var parsed []struct {
		Type  string `json:"type"`
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("generateWithModel: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	insights := make([]domain.Insight, 0, len(parsed))
	for _, p := range parsed {
		if p.Title == "" || p.Body == "" {
			continue
		}
		insightType := p.Type
		if insightType == "" {
			insightType = "general"
		}
		insights = append(insights, domain.Insight{
			SessionID: sessionID,
			Type:      insightType,
			Title:     p.Title,
			Body:      p.Body,
		})
	}
	if len(insights) == 0 {
		return nil, fmt.Errorf("generateWithModel: no usable insights in response")
	}

	return insights, nil
}

func buildPrompt(
	txs []domain.Transaction,
	anomalies []domain.Anomaly,
	charges []domain.RecurringCharge,
	categories map[string]string,
) string {
	var b strings.Builder

	b.WriteString("You are a personal finance analyst reviewing one user's transaction batch.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Write 2 to 4 short insights about this user's spending.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no extra text).\n")
	b.WriteString("- Output a JSON array of objects with fields \"type\", \"title\", \"body\".\n")
	b.WriteString("- \"type\" must be one of: spending_summary, anomaly_review, subscriptions, gray_charges.\n\n")
	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n\n")

	spendByCategory := spendTotals(txs, categories)
	b.WriteString("Spending by category:\n")
	for _, line := range spendByCategory {
		fmt.Fprintf(&b, "- %s: $%.2f\n", line.name, line.total)
	}

	fmt.Fprintf(&b, "\nFlagged anomalies: %d\n", len(anomalies))
	for _, a := range anomalies {
		fmt.Fprintf(&b, "- [%s] %s\n", a.Severity, a.Explanation)
	}

	fmt.Fprintf(&b, "\nRecurring charges: %d\n", len(charges))
	for _, c := range charges {
		gray := ""
		if c.IsGrayCharge {
			gray = " (gray charge)"
		}
		fmt.Fprintf(&b, "- %s: $%.2f every %d days%s\n",
			c.DescriptionPattern, math.Abs(c.AverageAmount), c.FrequencyDays, gray)
	}

	return b.String()
}

// generateDeterministic is the offline path: plain aggregates, no model.
func (g *Generator) generateDeterministic(
	sessionID string,
	txs []domain.Transaction,
	anomalies []domain.Anomaly,
	charges []domain.RecurringCharge,
	categories map[string]string,
) []domain.Insight {
	var insights []domain.Insight

	totals := spendTotals(txs, categories)
	if len(totals) > 0 {
		var total float64
		for _, line := range totals {
			total += line.total
		}
		body := fmt.Sprintf("You spent $%.2f across %d categories. Top category: %s at $%.2f.",
			total, len(totals), totals[0].name, totals[0].total)
		insights = append(insights, domain.Insight{
			SessionID: sessionID,
			Type:      "spending_summary",
			Title:     "Spending summary",
			Body:      body,
		})
	}

	if n := len(anomalies); n > 0 {
		high := 0
		for _, a := range anomalies {
			if a.Severity == domain.SeverityHigh {
				high++
			}
		}
		insights = append(insights, domain.Insight{
			SessionID: sessionID,
			Type:      "anomaly_review",
			Title:     "Unusual transactions",
			Body: fmt.Sprintf("%d transactions looked unusual for your spending patterns, %d of them high severity. Review them to confirm they are legitimate.",
				n, high),
		})
	}

	grayCount := 0
	var grayMonthly float64
	for _, c := range charges {
		if c.IsGrayCharge {
			grayCount++
			grayMonthly += math.Abs(c.AverageAmount) * 30 / float64(c.FrequencyDays)
		}
	}
	if grayCount > 0 {
		insights = append(insights, domain.Insight{
			SessionID: sessionID,
			Type:      "gray_charges",
			Title:     "Small recurring charges",
			Body: fmt.Sprintf("Found %d small recurring charges totaling about $%.2f per month. These are easy to overlook - cancel any you no longer use.",
				grayCount, grayMonthly),
		})
	} else if len(charges) > 0 {
		insights = append(insights, domain.Insight{
			SessionID: sessionID,
			Type:      "subscriptions",
			Title:     "Recurring charges",
			Body:      fmt.Sprintf("Detected %d recurring charges. Check that each subscription is still worth it.", len(charges)),
		})
	}

	return insights
}

type categoryTotal struct {
	name  string
	total float64
}

// spendTotals aggregates absolute spend per category name, largest first.
func spendTotals(txs []domain.Transaction, categories map[string]string) []categoryTotal {
	totals := make(map[string]float64)
	for _, t := range txs {
		if !t.IsSpend() {
			continue
		}
		name := "Other"
		if t.CategoryID != nil {
			if n, ok := categories[*t.CategoryID]; ok {
				name = n
			}
		}
		totals[name] += math.Abs(t.Amount)
	}

	result := make([]categoryTotal, 0, len(totals))
	for name, total := range totals {
		result = append(result, categoryTotal{name: name, total: total})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].total != result[j].total {
			return result[i].total > result[j].total
		}
		return result[i].name < result[j].name
	})
	return result
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// If there's still junk around the JSON array, keep only from the
	// first '[' to the last ']'.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
