package indicator

import (
	"math"
	"sort"

	"crystal-ball/internal/domain"
	"crystal-ball/internal/ta"
)

const (
	smaPeriod  = 10
	rocShort   = 1
	rocLong    = 3
	bbPeriod   = 20
	corrPeriod = 5
	betaPeriod = 10
)

// Engine derives the daily technical indicator rows from ordered market
// observations. It is a pure function of its input: same observations in,
// same rows out.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) BuildRows(days []domain.MarketDay) []domain.IndicatorDay {
	normalized := normalizeDays(days)
	if len(normalized) == 0 {
		return nil
	}

	n := len(normalized)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	nasdaq := make([]float64, n)
	gold := make([]float64, n)
	for i, d := range normalized {
		closes[i] = d.Close
		volumes[i] = d.Volume
		nasdaq[i] = deref(d.NasdaqClose)
		gold[i] = deref(d.GoldClose)
	}

	sma10 := ta.SMASeries(closes, smaPeriod)
	roc1 := ta.ROCSeries(closes, rocShort)
	roc3 := ta.ROCSeries(closes, rocLong)
	volChange := ta.PctChangeSeries(volumes)
	ma20 := ta.SMASeries(closes, bbPeriod)
	sd20 := ta.StdSeries(closes, bbPeriod)
	btcRet := ta.PctChangeSeries(closes)

	// Reference series ride the BTC calendar; holiday gaps are filled
	// before returns are taken. A series with no observations at all
	// stays NaN throughout and its dependent columns come out nil.
	nasdaqRet := ta.PctChangeSeries(ta.FillSeries(nasdaq))
	goldRet := ta.PctChangeSeries(ta.FillSeries(gold))

	nasdaqCorr := ta.CorrSeries(btcRet, nasdaqRet, corrPeriod)
	nasdaqBeta := ta.BetaSeries(btcRet, nasdaqRet, betaPeriod)
	goldCorr := ta.CorrSeries(btcRet, goldRet, corrPeriod)

	rows := make([]domain.IndicatorDay, 0, n)
	for i := range normalized {
		close := closes[i]
		if close == 0 {
			continue
		}
		smaRatio := math.NaN()
		if !math.IsNaN(sma10[i]) && sma10[i] != 0 {
			smaRatio = close / sma10[i]
		}
		bbWidth := math.NaN()
		if !math.IsNaN(ma20[i]) && !math.IsNaN(sd20[i]) && ma20[i] != 0 {
			bbWidth = 4 * sd20[i] / ma20[i]
		}
		hlRange := (normalized[i].High - normalized[i].Low) / close

		if anyNaN(smaRatio, hlRange, roc1[i], roc3[i], volChange[i], bbWidth) {
			continue
		}

		rows = append(rows, domain.IndicatorDay{
			Date:            normalized[i].Date,
			Close:           close,
			CloseToSMA10:    smaRatio,
			HighLowRange:    hlRange,
			ROC1D:           roc1[i],
			ROC3D:           roc3[i],
			VolumeChange1D:  volChange[i],
			BBWidth:         bbWidth,
			BTCNasdaqCorr5D: finitePtr(nasdaqCorr[i]),
			BTCNasdaqBeta10: finitePtr(nasdaqBeta[i]),
			BTCGoldCorr5D:   finitePtr(goldCorr[i]),
		})
	}
	return rows
}

func normalizeDays(in []domain.MarketDay) []domain.MarketDay {
	byDate := make(map[int64]domain.MarketDay, len(in))
	for _, d := range in {
		d.Date = domain.UTCDate(d.Date)
		byDate[d.Date.Unix()] = d
	}
	out := make([]domain.MarketDay, 0, len(byDate))
	for _, d := range byDate {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func deref(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
