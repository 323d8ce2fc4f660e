package advisor

import (
	"fmt"
	"strings"
	"time"

	"crystal-ball/internal/domain"
)

const explainerPhilosophy = `You are the companion bot for an automated BTC next-day direction predictor. Your role is to explain the system's current call and track record, NOT to produce predictions of your own.

How the system works:
- Once per day it assembles a feature row from BTC daily candles, technical indicators, cross-asset correlations (Nasdaq, gold) and aggregated news sentiment.
- An ensemble of models (a GRU over a 5-day window, a logistic regression, and a gradient-boosted tree) each emit a probability that tomorrow's close is higher than today's.
- The probabilities are combined by registry weight into one call: UP or DOWN.
- Calls are settled against the realized close the next day.

Rules:
- Always reference the concrete numbers from the CURRENT CALL DATA below.
- Never fabricate data. If data is unavailable, say so.
- The ensemble probability is the system's opinion, not yours. Do not second-guess it; explain it.
- If the feature row was flagged anomalous, mention that the call is less trustworthy.
- Keep responses concise. You are talking via Telegram.
- This is informational, not financial advice, but do not repeat a disclaimer on every message.`

func BuildSystemPrompt(callContext string) string {
	var sb strings.Builder
	sb.WriteString(explainerPhilosophy)
	sb.WriteString("\n\n--- CURRENT CALL DATA (as of ")
	sb.WriteString(time.Now().UTC().Format(time.RFC822))
	sb.WriteString(") ---\n")
	sb.WriteString(callContext)
	return sb.String()
}

func FormatCallContext(latest *domain.Decision, history []domain.Decision, rows []domain.FeatureDay) string {
	var sb strings.Builder

	if latest != nil {
		dir := "DOWN"
		if latest.Direction == domain.DirectionUp {
			dir = "UP"
		}
		sb.WriteString("\nCurrent Call:\n")
		sb.WriteString(fmt.Sprintf("  %s: %s (prob up %.1f%%, confidence %.1f%%, threshold %.2f)\n",
			latest.PredictionDate.Format("2006-01-02"), dir,
			latest.ProbUp*100, latest.Confidence*100, latest.Threshold))
		if latest.Anomalous {
			sb.WriteString("  WARNING: the feature row was flagged anomalous.\n")
		}
		for _, comp := range latest.Components {
			sb.WriteString(fmt.Sprintf("  component %s v%d: %.1f%% (weight %.2f)\n",
				comp.Key, comp.Version, comp.ProbUp*100, comp.Weight))
		}
	}

	if len(history) > 0 {
		correct, resolved := 0, 0
		sb.WriteString("\nRecent Calls:\n")
		for _, d := range history {
			outcome := "pending"
			if d.IsCorrect != nil {
				resolved++
				if *d.IsCorrect {
					correct++
					outcome = "hit"
				} else {
					outcome = "miss"
				}
			}
			dir := "down"
			if d.Direction == domain.DirectionUp {
				dir = "up"
			}
			sb.WriteString(fmt.Sprintf("  %s %s %.0f%% %s\n",
				d.PredictionDate.Format("01-02"), dir, d.ProbUp*100, outcome))
		}
		if resolved > 0 {
			sb.WriteString(fmt.Sprintf("  hit rate: %d/%d\n", correct, resolved))
		}
	}

	if len(rows) > 0 {
		row := rows[len(rows)-1]
		sb.WriteString("\nNewest Feature Row:\n")
		sb.WriteString(fmt.Sprintf("  %s close=%.2f roc_1d=%+.4f roc_3d=%+.4f bb_width=%.4f sent_5d=%+.3f\n",
			row.Date.Format("2006-01-02"), row.BTCClose, row.ROC1D, row.ROC3D, row.BBWidth, row.Sent5D))
	}

	if sb.Len() == 0 {
		return "No prediction data currently available."
	}
	return sb.String()
}
