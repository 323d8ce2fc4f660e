package sentiment

import (
	"math"
	"sort"
	"time"

	"crystal-ball/internal/domain"
	"crystal-ball/internal/ta"
)

const (
	meanShortWindow = 3
	meanLongWindow  = 5
	volWindow       = 5
	quantileBuckets = 5
	middleBucket    = 3
	negThreshold    = -0.2
)

// Aggregator folds scored articles into one sentiment row per UTC calendar
// day. It always works over the full history it is given: the quantile
// flags compare each day against the trailing distribution of every filled
// daily mean up to that day, so feeding it a truncated history changes the
// flags. Callers pass everything they have.
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// BuildDays produces one row per calendar day from the earliest scored
// article through the `through` date. Days without articles are filled by
// forward-fill, linear interpolation for interior gaps, and backward-fill
// for leading gaps; a batch with no articles at all falls back to neutral
// 0.0 rows over [from, through]. Rows are emitted only once the 5-day
// rolling window is full.
func (a *Aggregator) BuildDays(items []domain.NewsItem, from, through time.Time) []domain.SentimentDay {
	through = domain.UTCDate(through)

	scoresByDay := make(map[time.Time][]float64)
	for _, item := range items {
		day := domain.UTCDate(item.PublishedAt)
		if day.After(through) {
			continue
		}
		scoresByDay[day] = append(scoresByDay[day], item.Score)
	}
	if len(scoresByDay) == 0 {
		return neutralDays(domain.UTCDate(from), through)
	}

	start := through
	for day := range scoresByDay {
		if day.Before(start) {
			start = day
		}
	}

	n := int(through.Sub(start).Hours()/24) + 1
	dates := make([]time.Time, n)
	means := make([]float64, n)
	counts := make([]int, n)
	for i := 0; i < n; i++ {
		dates[i] = start.AddDate(0, 0, i)
		scores := scoresByDay[dates[i]]
		counts[i] = len(scores)
		if len(scores) == 0 {
			means[i] = math.NaN()
			continue
		}
		var sum float64
		for _, s := range scores {
			sum += s
		}
		means[i] = sum / float64(len(scores))
	}

	filled := ta.FillSeries(means)
	for i := range filled {
		if math.IsNaN(filled[i]) {
			filled[i] = 0
		}
	}

	mean3 := ta.SMASeries(filled, meanShortWindow)
	mean5 := ta.SMASeries(filled, meanLongWindow)
	vol5 := ta.StdSeries(filled, volWindow)

	rows := make([]domain.SentimentDay, 0, n)
	for i := range filled {
		if math.IsNaN(mean5[i]) || math.IsNaN(vol5[i]) || i < 2 {
			continue
		}
		delta := filled[i] - filled[i-1]
		accel := delta - (filled[i-1] - filled[i-2])

		bucket := quantileBucket(filled[:i+1], filled[i])
		provenance := domain.SentimentInterpolated
		if counts[i] > 0 {
			provenance = domain.SentimentObserved
		}

		rows = append(rows, domain.SentimentDay{
			Date:         dates[i],
			Mean:         filled[i],
			ArticleCount: counts[i],
			Provenance:   provenance,
			Mean3D:       mean3[i],
			Mean5D:       mean5[i],
			Vol5D:        vol5[i],
			Delta:        delta,
			Accel:        accel,
			Quantile:     bucket,
			Q2Flag:       bucket == 2,
			Q5Flag:       bucket == quantileBuckets,
			CrossUp:      filled[i] > mean3[i] && filled[i] > 0,
			Negative:     filled[i] < negThreshold,
		})
	}
	return rows
}

// neutralDays covers a batch that never saw a single article: every day in
// range gets the neutral score 0.0, the middle bucket and no flags, so the
// feature assembler still has a sentiment row to join against.
func neutralDays(from, through time.Time) []domain.SentimentDay {
	if from.IsZero() || from.After(through) {
		return nil
	}
	rows := make([]domain.SentimentDay, 0, int(through.Sub(from).Hours()/24)+1)
	for day := from; !day.After(through); day = day.AddDate(0, 0, 1) {
		rows = append(rows, domain.SentimentDay{
			Date:       day,
			Provenance: domain.SentimentInterpolated,
			Quantile:   middleBucket,
		})
	}
	return rows
}

// quantileBucket buckets v against the trailing distribution. Five buckets
// when the history has at least five distinct values; fewer distinct values
// collapse to that many buckets; a constant history pins everything to the
// middle bucket so neither tail flag fires.
func quantileBucket(history []float64, v float64) int {
	distinct := distinctSorted(history)
	if len(distinct) <= 1 {
		return middleBucket
	}
	k := quantileBuckets
	if len(distinct) < k {
		k = len(distinct)
	}

	edges := make([]float64, 0, k-1)
	for j := 1; j < k; j++ {
		edges = append(edges, quantile(history, float64(j)/float64(k)))
	}
	edges = dedupe(edges)

	for j, edge := range edges {
		if v <= edge {
			return j + 1
		}
	}
	return len(edges) + 1
}

// quantile is the linear-interpolation sample quantile over an unsorted
// slice, matching numpy's default.
func quantile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func distinctSorted(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return dedupe(sorted)
}

func dedupe(sorted []float64) []float64 {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
