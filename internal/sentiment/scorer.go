package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"crystal-ball/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ArticleScore is the sentiment assigned to one news item, in [-1, 1].
type ArticleScore struct {
	ItemID int64
	Score  float64
	Model  string
}

type BatchLLMScorer interface {
	ScoreBatch(ctx context.Context, items []domain.NewsItem) ([]ArticleScore, error)
}

// Scorer assigns every item a heuristic score and, when an LLM scorer is
// configured, upgrades the batches it manages to score. LLM failures fall
// back to the heuristic silently.
type Scorer struct {
	llm       BatchLLMScorer
	batchSize int
}

func NewScorer(llm BatchLLMScorer, batchSize int) *Scorer {
	if batchSize <= 0 {
		batchSize = 24
	}
	return &Scorer{llm: llm, batchSize: batchSize}
}

func (s *Scorer) Score(ctx context.Context, items []domain.NewsItem) ([]ArticleScore, error) {
	if len(items) == 0 {
		return nil, nil
	}

	resultByID := make(map[int64]ArticleScore, len(items))
	for _, item := range items {
		resultByID[item.ID] = ArticleScore{
			ItemID: item.ID,
			Score:  HeuristicScore(item.Title),
			Model:  "heuristic:v1",
		}
	}

	if s.llm != nil {
		for start := 0; start < len(items); start += s.batchSize {
			end := start + s.batchSize
			if end > len(items) {
				end = len(items)
			}
			scored, err := s.llm.ScoreBatch(ctx, items[start:end])
			if err != nil {
				continue
			}
			for _, row := range scored {
				current, ok := resultByID[row.ItemID]
				if !ok {
					continue
				}
				current.Score = clamp(row.Score, -1, 1)
				if row.Model != "" {
					current.Model = row.Model
				}
				resultByID[row.ItemID] = current
			}
		}
	}

	out := make([]ArticleScore, 0, len(items))
	for _, item := range items {
		if scored, ok := resultByID[item.ID]; ok {
			out = append(out, scored)
		}
	}
	return out, nil
}

// HeuristicScore is the keyword fallback used when no LLM is configured.
func HeuristicScore(title string) float64 {
	text := strings.ToLower(strings.TrimSpace(title))
	if text == "" {
		return 0
	}

	bullish := []string{"surge", "rally", "breakout", "adoption", "etf inflow", "all-time high", "accumulation", "halving", "institutional", "recover", "soar"}
	bearish := []string{"crash", "plunge", "sell-off", "hack", "exploit", "lawsuit", "ban", "liquidation", "outflow", "fraud", "tumble", "fear"}

	bullCount := countMatches(text, bullish)
	bearCount := countMatches(text, bearish)
	if bullCount == 0 && bearCount == 0 {
		return 0
	}
	return clamp(float64(bullCount-bearCount)/float64(bullCount+bearCount+1), -1, 1)
}

func countMatches(text string, tokens []string) int {
	count := 0
	for _, token := range tokens {
		if strings.Contains(text, token) {
			count++
		}
	}
	return count
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

type openAIChatClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type OpenAIScorer struct {
	client openAIChatClient
	model  string
}

func NewOpenAIScorer(apiKey string, model string) *OpenAIScorer {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIScorer{
		client: &openAIClient{client: client},
		model:  model,
	}
}

func (s *OpenAIScorer) ScoreBatch(ctx context.Context, items []domain.NewsItem) ([]ArticleScore, error) {
	if s == nil || s.client == nil || len(items) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("id=%d title=%s\n", item.ID, strings.TrimSpace(item.Title)))
	}

	systemPrompt := "You score Bitcoin news headlines. Return ONLY a JSON array. Each object requires: id (int), score (float in -1..1 where -1 is maximally bearish for BTC and 1 maximally bullish). No markdown."
	userPrompt := "Headlines:\n" + sb.String()

	completion, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("empty scorer completion")
	}

	raw := trimCodeFence(completion.Choices[0].Message.Content)

	var parsed []struct {
		ID    int64   `json:"id"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse scorer json: %w", err)
	}

	byID := make(map[int64]struct{}, len(items))
	for _, item := range items {
		byID[item.ID] = struct{}{}
	}

	out := make([]ArticleScore, 0, len(parsed))
	for _, row := range parsed {
		if _, ok := byID[row.ID]; !ok {
			continue
		}
		out = append(out, ArticleScore{
			ItemID: row.ID,
			Score:  clamp(row.Score, -1, 1),
			Model:  "llm:" + s.model,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

func trimCodeFence(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "```") {
		v = strings.TrimPrefix(v, "```")
		v = strings.TrimSpace(v)
		if strings.HasPrefix(strings.ToLower(v), "json") {
			v = strings.TrimSpace(v[4:])
		}
		v = strings.TrimSuffix(v, "```")
		v = strings.TrimSpace(v)
	}
	return v
}

type openAIClient struct {
	client openai.Client
}

func (c *openAIClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
