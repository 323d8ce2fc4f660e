package domain

import (
	"errors"
	"time"
)

// Reference assets whose daily closes ride along with BTC.
const (
	SymbolBTC    = "BTC-USD"
	SymbolNasdaq = "^IXIC"
	SymbolGold   = "GLD"
)

// Lookback window sizes, in calendar days. Indicator rows need a full
// trailing window before they are emitted; incremental feature assembly
// re-derives from the watermark minus the sentiment buffer.
const (
	LookbackBuffer  = 20
	SentimentBuffer = 10
)

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

var (
	ErrMissingUpstreamData = errors.New("missing upstream data")
	ErrNoViableComponents  = errors.New("no viable model components")
	ErrNotFound            = errors.New("not found")
	ErrArtifactFormat      = errors.New("unsupported artifact format")
	ErrInsufficientHistory = errors.New("insufficient history")
)

// MarketDay is one daily market observation on the UTC calendar. BTC fields
// are always populated; reference closes are nil on their market holidays.
type MarketDay struct {
	Date        time.Time `json:"date"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	NasdaqClose *float64  `json:"nasdaq_close,omitempty"`
	GoldClose   *float64  `json:"gold_close,omitempty"`
}

// NewsItem is a scored article. Score is in [-1, 1].
type NewsItem struct {
	ID          int64     `json:"id"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Score       float64   `json:"score"`
}

type SentimentProvenance string

const (
	SentimentObserved     SentimentProvenance = "observed"
	SentimentInterpolated SentimentProvenance = "interpolated"
)

// SentimentDay is the aggregated sentiment for one UTC date after gap
// filling and rolling derivation.
type SentimentDay struct {
	Date         time.Time           `json:"date"`
	Mean         float64             `json:"mean"`
	ArticleCount int                 `json:"article_count"`
	Provenance   SentimentProvenance `json:"provenance"`
	Mean3D       float64             `json:"mean_3d"`
	Mean5D       float64             `json:"mean_5d"`
	Vol5D        float64             `json:"vol_5d"`
	Delta        float64             `json:"delta"`
	Accel        float64             `json:"accel"`
	Quantile     int                 `json:"quantile"`
	Q2Flag       bool                `json:"q2_flag"`
	Q5Flag       bool                `json:"q5_flag"`
	CrossUp      bool                `json:"cross_up"`
	Negative     bool                `json:"negative"`
}

// IndicatorDay holds the per-date technical indicators. Cross-asset columns
// are pointers: nil means the reference series was entirely absent for the
// computed range, never zero.
type IndicatorDay struct {
	Date            time.Time `json:"date"`
	Close           float64   `json:"close"`
	CloseToSMA10    float64   `json:"close_to_sma10_ratio"`
	HighLowRange    float64   `json:"high_low_range"`
	ROC1D           float64   `json:"roc_1d"`
	ROC3D           float64   `json:"roc_3d"`
	VolumeChange1D  float64   `json:"volume_change_1d"`
	BBWidth         float64   `json:"bb_width"`
	BTCNasdaqCorr5D *float64  `json:"btc_nasdaq_corr_5d,omitempty"`
	BTCNasdaqBeta10 *float64  `json:"btc_nasdaq_beta_10d,omitempty"`
	BTCGoldCorr5D   *float64  `json:"btc_gld_corr_5d,omitempty"`
}

// FeatureDay is one fully-populated row of the model feature contract.
// Rows missing any contract value are never persisted.
type FeatureDay struct {
	Date                time.Time `json:"date"`
	BTCClose            float64   `json:"btc_close"`
	BTCNasdaqBeta10D    float64   `json:"btc_nasdaq_beta_10d"`
	SentQ5Flag          float64   `json:"sent_q5_flag"`
	ROC1D               float64   `json:"roc_1d"`
	HighLowRange        float64   `json:"high_low_range"`
	ROC3D               float64   `json:"roc_3d"`
	Sent5D              float64   `json:"sent_5d"`
	SentCrossUpXRange   float64   `json:"sent_cross_up_x_high_low_range"`
	BTCNasdaqCorr5D     float64   `json:"btc_nasdaq_corr_5d"`
	BBWidth             float64   `json:"bb_width"`
	SentAccel           float64   `json:"sent_accel"`
	SentVol             float64   `json:"sent_vol"`
	SentNegXRange       float64   `json:"sent_neg_x_high_low_range"`
	SentQ2FlagXSMARatio float64   `json:"sent_q2_flag_x_close_to_sma10"`
	TargetUp            *bool     `json:"target_up,omitempty"`
	CreatedAt           time.Time `json:"-"`
	UpdatedAt           time.Time `json:"-"`
}

// ComponentOutput is the raw probability one model component produced for a
// decision, kept for auditability.
type ComponentOutput struct {
	Key     string  `json:"key"`
	Version int     `json:"version"`
	Weight  float64 `json:"weight"`
	ProbUp  float64 `json:"prob_up"`
}

// Decision is one next-day direction call. FeatureDate is the newest feature
// row used; PredictionDate is the day the call is about.
type Decision struct {
	ID             int64             `json:"id"`
	FeatureDate    time.Time         `json:"feature_date"`
	PredictionDate time.Time         `json:"prediction_date"`
	Direction      Direction         `json:"direction"`
	ProbUp         float64           `json:"prob_up"`
	Confidence     float64           `json:"confidence"`
	Threshold      float64           `json:"threshold"`
	Components     []ComponentOutput `json:"components"`
	Anomalous      bool              `json:"anomalous"`
	CreatedAt      time.Time         `json:"created_at"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
	ActualUp       *bool             `json:"actual_up,omitempty"`
	IsCorrect      *bool             `json:"is_correct,omitempty"`
	RealizedReturn *float64          `json:"realized_return,omitempty"`
}

// ConversationMessage is one turn of an advisor chat, oldest-first when
// loaded for prompt building.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ModelVersion struct {
	ID             int64
	ModelKey       string
	Version        int
	ContractName   string
	Weight         float64
	InputShape     string
	ArtifactFormat string
	ArtifactBlob   []byte
	AliasJSON      string
	IsActive       bool
	ActivatedAt    *time.Time
	CreatedAt      time.Time
}

// UTCDate truncates t to midnight UTC.
func UTCDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
