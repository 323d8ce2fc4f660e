package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"crystal-ball/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type DecisionReader interface {
	LatestDecision(ctx context.Context) (*domain.Decision, error)
	ListDecisions(ctx context.Context, limit int) ([]domain.Decision, error)
}

type LatestDecisionCache interface {
	GetLatestDecision(ctx context.Context) (*domain.Decision, error)
}

// Explainer answers free-form questions about the current call.
type Explainer interface {
	Ask(ctx context.Context, chatID int64, question string) (string, error)
}

// Notifier pushes fresh calls to the announce chat, when one is
// configured via TELEGRAM_CHAT_ID.
type Notifier struct {
	bot    *tele.Bot
	chatID int64
}

func (n *Notifier) AnnounceDecision(decision *domain.Decision) {
	if n == nil || n.bot == nil || n.chatID == 0 || decision == nil {
		return
	}
	if _, err := n.bot.Send(tele.ChatID(n.chatID), formatDecision(decision)); err != nil {
		log.Printf("failed to announce decision: %v", err)
	}
}

func StartTelegramBot(decisions DecisionReader, cache LatestDecisionCache, explainer Explainer) *Notifier {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/prediction", func(c tele.Context) error {
		ctx := context.Background()
		if cache != nil {
			if decision, err := cache.GetLatestDecision(ctx); err == nil {
				return c.Send(formatDecision(decision))
			}
		}
		if decisions == nil {
			return c.Send("Predictions are not available yet.")
		}
		decision, err := decisions.LatestDecision(ctx)
		if err != nil {
			return c.Send("No prediction on record yet.")
		}
		return c.Send(formatDecision(decision))
	})

	b.Handle("/history", func(c tele.Context) error {
		if decisions == nil {
			return c.Send("History is not available yet.")
		}
		history, err := decisions.ListDecisions(context.Background(), 10)
		if err != nil || len(history) == 0 {
			return c.Send("No past predictions on record.")
		}
		return c.Send(formatHistory(history))
	})

	b.Handle(tele.OnText, func(c tele.Context) error {
		if explainer == nil {
			return c.Send("Ask me /prediction or /history. Free-form questions need the advisor, which is not configured.")
		}
		reply, err := explainer.Ask(context.Background(), c.Chat().ID, c.Text())
		if err != nil {
			log.Printf("advisor ask failed: %v", err)
			return c.Send("The advisor is unavailable right now, try again later.")
		}
		return c.Send(reply)
	})

	log.Println("Telegram bot started")
	go b.Start()

	var chatID int64
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Printf("Invalid TELEGRAM_CHAT_ID %q, announcements disabled", raw)
		} else {
			chatID = parsed
		}
	}
	return &Notifier{bot: b, chatID: chatID}
}

func formatDecision(d *domain.Decision) string {
	arrow := "⬇ DOWN"
	if d.Direction == domain.DirectionUp {
		arrow = "⬆ UP"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "BTC call for %s: %s\n", d.PredictionDate.Format("2006-01-02"), arrow)
	fmt.Fprintf(&sb, "Prob up: %.1f%%  Confidence: %.1f%%\n", d.ProbUp*100, d.Confidence*100)
	if d.Anomalous {
		sb.WriteString("⚠ Feature row flagged as anomalous, treat with caution.\n")
	}
	for _, comp := range d.Components {
		fmt.Fprintf(&sb, "  %s v%d: %.1f%% (w=%.2f)\n", comp.Key, comp.Version, comp.ProbUp*100, comp.Weight)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatHistory(history []domain.Decision) string {
	var sb strings.Builder
	correct, resolved := 0, 0
	for _, d := range history {
		mark := "·"
		if d.IsCorrect != nil {
			resolved++
			if *d.IsCorrect {
				correct++
				mark = "✓"
			} else {
				mark = "✗"
			}
		}
		dir := "down"
		if d.Direction == domain.DirectionUp {
			dir = "up"
		}
		fmt.Fprintf(&sb, "%s %s %s %.0f%%\n", mark, d.PredictionDate.Format("01-02"), dir, d.ProbUp*100)
	}
	if resolved > 0 {
		fmt.Fprintf(&sb, "Hit rate: %d/%d (%.0f%%)", correct, resolved, float64(correct)/float64(resolved)*100)
	}
	return strings.TrimRight(sb.String(), "\n")
}
