package features

import (
	"math"
	"testing"
	"time"

	"crystal-ball/internal/domain"
)

func day(i int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func indicatorFixture(i int, close float64) domain.IndicatorDay {
	beta := 1.2
	corr := 0.4
	gld := 0.1
	return domain.IndicatorDay{
		Date:            day(i),
		Close:           close,
		CloseToSMA10:    1.01,
		HighLowRange:    0.05,
		ROC1D:           0.8,
		ROC3D:           2.1,
		VolumeChange1D:  0.1,
		BBWidth:         0.12,
		BTCNasdaqCorr5D: &corr,
		BTCNasdaqBeta10: &beta,
		BTCGoldCorr5D:   &gld,
	}
}

func sentimentFixture(i int) domain.SentimentDay {
	return domain.SentimentDay{
		Date:     day(i),
		Mean:     0.3,
		Mean3D:   0.2,
		Mean5D:   0.25,
		Vol5D:    0.1,
		Delta:    0.05,
		Accel:    -0.01,
		Quantile: 2,
		Q2Flag:   true,
		Q5Flag:   false,
		CrossUp:  true,
		Negative: false,
	}
}

func TestBuildRowsJoinAndInteractions(t *testing.T) {
	asm := NewAssembler(func() time.Time { return day(10) })

	indicators := []domain.IndicatorDay{indicatorFixture(0, 40000), indicatorFixture(1, 40100)}
	sentiments := []domain.SentimentDay{sentimentFixture(0), sentimentFixture(1)}

	rows, dropped := asm.BuildRows(indicators, sentiments)
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	r := rows[0]
	if r.SentQ2FlagXSMARatio != 1.01 {
		t.Errorf("q2 x sma ratio = %v, want 1.01", r.SentQ2FlagXSMARatio)
	}
	if r.SentCrossUpXRange != 0.05 {
		t.Errorf("cross_up x range = %v, want 0.05", r.SentCrossUpXRange)
	}
	if r.SentNegXRange != 0 {
		t.Errorf("neg x range = %v, want 0", r.SentNegXRange)
	}
	if !Complete(r) {
		t.Errorf("expected complete contract row: %+v", r)
	}
}

func TestBuildRowsTargetLabeling(t *testing.T) {
	asm := NewAssembler(nil)

	indicators := []domain.IndicatorDay{
		indicatorFixture(0, 40000),
		indicatorFixture(1, 39000),
		indicatorFixture(2, 41000),
	}
	sentiments := []domain.SentimentDay{sentimentFixture(0), sentimentFixture(1), sentimentFixture(2)}

	rows, _ := asm.BuildRows(indicators, sentiments)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].TargetUp == nil || *rows[0].TargetUp {
		t.Errorf("day 0 target should be down (39000 < 40000): %+v", rows[0].TargetUp)
	}
	if rows[1].TargetUp == nil || !*rows[1].TargetUp {
		t.Errorf("day 1 target should be up (41000 > 39000): %+v", rows[1].TargetUp)
	}
	if rows[2].TargetUp != nil {
		t.Errorf("newest row must stay unlabeled, got %v", *rows[2].TargetUp)
	}
}

func TestBuildRowsDropsIncomplete(t *testing.T) {
	asm := NewAssembler(nil)

	noBeta := indicatorFixture(0, 40000)
	noBeta.BTCNasdaqBeta10 = nil

	rows, dropped := asm.BuildRows(
		[]domain.IndicatorDay{noBeta, indicatorFixture(1, 40100)},
		[]domain.SentimentDay{sentimentFixture(0), sentimentFixture(1)},
	)
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	if len(rows) != 1 || !rows[0].Date.Equal(day(1)) {
		t.Fatalf("unexpected surviving rows: %+v", rows)
	}
}

func TestBuildRowsInnerJoin(t *testing.T) {
	asm := NewAssembler(nil)

	rows, dropped := asm.BuildRows(
		[]domain.IndicatorDay{indicatorFixture(0, 40000), indicatorFixture(1, 40100)},
		[]domain.SentimentDay{sentimentFixture(1)},
	)
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if len(rows) != 1 || !rows[0].Date.Equal(day(1)) {
		t.Fatalf("expected only the joined date, got %+v", rows)
	}
}

func TestBuildRowsDropsNaN(t *testing.T) {
	asm := NewAssembler(nil)

	bad := indicatorFixture(0, 40000)
	bad.ROC1D = math.NaN()

	rows, dropped := asm.BuildRows(
		[]domain.IndicatorDay{bad},
		[]domain.SentimentDay{sentimentFixture(0)},
	)
	if dropped != 1 || len(rows) != 0 {
		t.Fatalf("expected NaN row dropped, got rows=%d dropped=%d", len(rows), dropped)
	}
}

func TestContractNamesOrder(t *testing.T) {
	names := ContractNames()
	if len(names) != 13 {
		t.Fatalf("contract has %d names, want 13", len(names))
	}
	if names[0] != FeatBTCNasdaqBeta10D || names[12] != FeatSentQ2XSMARatio {
		t.Fatalf("contract order changed: %v", names)
	}
	vec := Vector(domain.FeatureDay{ROC1D: 42})
	if len(vec) != len(names) {
		t.Fatalf("vector length %d != contract length %d", len(vec), len(names))
	}
	if vec[2] != 42 {
		t.Fatalf("roc_1d should be position 2, got vector %v", vec)
	}
}
