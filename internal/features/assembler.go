package features

import (
	"time"

	"crystal-ball/internal/domain"
)

// Assembler joins indicator and sentiment rows on date into contract
// feature rows. It is a pure function of its inputs; persistence and
// watermark handling live in the pipeline service.
type Assembler struct {
	now func() time.Time
}

func NewAssembler(now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{now: now}
}

// BuildRows inner-joins the two inputs on date, derives the interaction
// terms, and labels each row with whether the next calendar day's close
// finished higher. The newest row has no label until tomorrow's close
// arrives. Rows missing any contract value are dropped and counted, never
// emitted.
func (a *Assembler) BuildRows(indicators []domain.IndicatorDay, sentiments []domain.SentimentDay) ([]domain.FeatureDay, int) {
	sentByDate := make(map[time.Time]domain.SentimentDay, len(sentiments))
	for _, s := range sentiments {
		sentByDate[domain.UTCDate(s.Date)] = s
	}
	closeByDate := make(map[time.Time]float64, len(indicators))
	for _, ind := range indicators {
		closeByDate[domain.UTCDate(ind.Date)] = ind.Close
	}

	now := a.now().UTC()
	rows := make([]domain.FeatureDay, 0, len(indicators))
	dropped := 0
	for _, ind := range indicators {
		date := domain.UTCDate(ind.Date)
		sent, ok := sentByDate[date]
		if !ok {
			continue
		}
		if ind.BTCNasdaqBeta10 == nil || ind.BTCNasdaqCorr5D == nil {
			dropped++
			continue
		}

		row := domain.FeatureDay{
			Date:                date,
			BTCClose:            ind.Close,
			BTCNasdaqBeta10D:    *ind.BTCNasdaqBeta10,
			SentQ5Flag:          boolToFloat(sent.Q5Flag),
			ROC1D:               ind.ROC1D,
			HighLowRange:        ind.HighLowRange,
			ROC3D:               ind.ROC3D,
			Sent5D:              sent.Mean5D,
			SentCrossUpXRange:   boolToFloat(sent.CrossUp) * ind.HighLowRange,
			BTCNasdaqCorr5D:     *ind.BTCNasdaqCorr5D,
			BBWidth:             ind.BBWidth,
			SentAccel:           sent.Accel,
			SentVol:             sent.Vol5D,
			SentNegXRange:       boolToFloat(sent.Negative) * ind.HighLowRange,
			SentQ2FlagXSMARatio: boolToFloat(sent.Q2Flag) * ind.CloseToSMA10,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if !Complete(row) {
			dropped++
			continue
		}

		if next, ok := closeByDate[date.AddDate(0, 0, 1)]; ok {
			up := next > ind.Close
			row.TargetUp = &up
		}
		rows = append(rows, row)
	}
	return rows, dropped
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
