package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string
	HTTPPort         int
	APIKey           string

	OpenAIAPIKey string
	OpenAIModel  string

	CollectPollSecs int
	MarketDays      int
	NewsFeedURLs    []string
	MaxPerFeed      int

	PipelineHourUTC   int
	DecisionThreshold float64
	ResolvePollSecs   int
	ResolveBatchSize  int

	SSHPort        int
	SSHHostKeyPath string
}

// defaultFeeds are polled when NEWS_FEED_URLS is not set.
var defaultFeeds = []string{
	"https://www.coindesk.com/arc/outboundfeeds/rss/",
	"https://cointelegraph.com/rss",
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.APIKey = strings.TrimSpace(os.Getenv("API_KEY"))
	if cfg.APIKey == "" {
		log.Println("Warning: API_KEY not set, trigger endpoints are unauthenticated")
	}

	cfg.HTTPPort = 8080
	if v := strings.TrimSpace(os.Getenv("HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, news scoring falls back to the keyword heuristic")
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	cfg.CollectPollSecs = 3600
	if v := strings.TrimSpace(os.Getenv("COLLECT_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CollectPollSecs = n
		}
	}

	cfg.MarketDays = 90
	if v := strings.TrimSpace(os.Getenv("MARKET_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MarketDays = n
		}
	}

	cfg.NewsFeedURLs = defaultFeeds
	if v := strings.TrimSpace(os.Getenv("NEWS_FEED_URLS")); v != "" {
		feeds := []string{}
		for _, feed := range strings.Split(v, ",") {
			if feed = strings.TrimSpace(feed); feed != "" {
				feeds = append(feeds, feed)
			}
		}
		if len(feeds) > 0 {
			cfg.NewsFeedURLs = feeds
		}
	}

	cfg.MaxPerFeed = 40
	if v := strings.TrimSpace(os.Getenv("NEWS_MAX_PER_FEED")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPerFeed = n
		}
	}

	cfg.PipelineHourUTC = 1
	if v := strings.TrimSpace(os.Getenv("PIPELINE_HOUR_UTC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 23 {
			cfg.PipelineHourUTC = n
		}
	}

	cfg.DecisionThreshold = 0.5
	if v := strings.TrimSpace(os.Getenv("DECISION_THRESHOLD")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 && n < 1 {
			cfg.DecisionThreshold = n
		}
	}

	cfg.ResolvePollSecs = 1800
	if v := strings.TrimSpace(os.Getenv("RESOLVE_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ResolvePollSecs = n
		}
	}

	cfg.ResolveBatchSize = 200
	if v := strings.TrimSpace(os.Getenv("RESOLVE_BATCH_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ResolveBatchSize = n
		}
	}

	cfg.SSHPort = 2222
	if v := strings.TrimSpace(os.Getenv("SSH_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SSHPort = n
		}
	}

	cfg.SSHHostKeyPath = strings.TrimSpace(os.Getenv("SSH_HOST_KEY_PATH"))
	if cfg.SSHHostKeyPath == "" {
		cfg.SSHHostKeyPath = ".ssh/crystal_ball_ed25519"
	}

	return cfg
}
