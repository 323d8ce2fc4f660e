package ensemble

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"crystal-ball/internal/domain"
	"crystal-ball/internal/features"
)

type stubPredictor struct {
	prob    float64
	err     error
	lastArg [][]float64
}

func (s *stubPredictor) Predict(window [][]float64) (float64, error) {
	s.lastArg = window
	if s.err != nil {
		return 0, s.err
	}
	return s.prob, nil
}

func stubComponent(key string, weight, prob float64) Component {
	return Component{
		Key:          key,
		Version:      1,
		Weight:       weight,
		Shape:        SingleRow(),
		TrainedNames: features.ContractNames(),
		Predictor:    &stubPredictor{prob: prob},
	}
}

func historyRows(n int) []domain.FeatureDay {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.FeatureDay, n)
	for i := range out {
		out[i] = domain.FeatureDay{
			Date:  start.AddDate(0, 0, i),
			ROC1D: float64(i + 1),
		}
	}
	return out
}

func TestDecideWeightedMean(t *testing.T) {
	engine := NewEngine(nil, 0.5)
	components := []Component{
		stubComponent("a", 2, 0.8),
		stubComponent("b", 1, 0.2),
	}

	out, err := engine.Decide(components, historyRows(1))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	// (2*0.8 + 1*0.2) / 3 = 0.6
	if math.Abs(out.ProbUp-0.6) > 1e-12 {
		t.Fatalf("prob = %v, want 0.6", out.ProbUp)
	}
	if out.Direction != domain.DirectionUp {
		t.Fatalf("direction = %v, want up", out.Direction)
	}
	if math.Abs(out.Confidence-0.6) > 1e-12 {
		t.Fatalf("confidence = %v, want 0.6", out.Confidence)
	}
	if len(out.Components) != 2 {
		t.Fatalf("component outputs = %d, want 2", len(out.Components))
	}
}

func TestDecideRenormalizesOverSurvivors(t *testing.T) {
	engine := NewEngine(nil, 0.5)
	broken := stubComponent("broken", 5, 0.99)
	broken.Predictor = &stubPredictor{err: errors.New("artifact corrupt")}

	out, err := engine.Decide([]Component{broken, stubComponent("ok", 1, 0.3)}, historyRows(1))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if math.Abs(out.ProbUp-0.3) > 1e-12 {
		t.Fatalf("prob = %v, want survivor's 0.3", out.ProbUp)
	}
	if out.Direction != domain.DirectionDown {
		t.Fatalf("direction = %v, want down", out.Direction)
	}
	if math.Abs(out.Confidence-0.7) > 1e-12 {
		t.Fatalf("confidence = %v, want 0.7", out.Confidence)
	}
	if len(out.Components) != 1 || out.Components[0].Key != "ok" {
		t.Fatalf("unexpected component outputs: %+v", out.Components)
	}
}

func TestDecideNoSurvivors(t *testing.T) {
	engine := NewEngine(nil, 0.5)
	a := stubComponent("a", 1, 0.5)
	a.Predictor = &stubPredictor{err: errors.New("boom")}
	b := stubComponent("b", 1, 0.5)
	b.TrainedNames = []string{"not_a_feature"}

	_, err := engine.Decide([]Component{a, b}, historyRows(1))
	if !errors.Is(err, domain.ErrNoViableComponents) {
		t.Fatalf("err = %v, want ErrNoViableComponents", err)
	}
}

func TestDecideEmptyHistory(t *testing.T) {
	engine := NewEngine(nil, 0.5)
	_, err := engine.Decide([]Component{stubComponent("a", 1, 0.5)}, nil)
	if !errors.Is(err, domain.ErrInsufficientHistory) {
		t.Fatalf("err = %v, want ErrInsufficientHistory", err)
	}
}

func TestDecideWindowLeftPadding(t *testing.T) {
	engine := NewEngine(nil, 0.5)
	stub := &stubPredictor{prob: 0.7}
	c := Component{
		Key:          "win",
		Weight:       1,
		Shape:        WindowOf(5),
		TrainedNames: features.ContractNames(),
		Predictor:    stub,
	}

	if _, err := engine.Decide([]Component{c}, historyRows(2)); err != nil {
		t.Fatalf("decide: %v", err)
	}
	if len(stub.lastArg) != 5 {
		t.Fatalf("window length = %d, want 5", len(stub.lastArg))
	}
	// Rows carry roc_1d = 1, 2; padding repeats the earliest row.
	rocIdx := indexOf(features.ContractNames(), features.FeatROC1D)
	got := make([]float64, 5)
	for i, row := range stub.lastArg {
		got[i] = row[rocIdx]
	}
	want := []float64{1, 1, 1, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("padded window roc column = %v, want %v", got, want)
		}
	}
}

func TestDecideWindowTakesNewestRows(t *testing.T) {
	engine := NewEngine(nil, 0.5)
	stub := &stubPredictor{prob: 0.7}
	c := Component{
		Key:          "win",
		Weight:       1,
		Shape:        WindowOf(3),
		TrainedNames: features.ContractNames(),
		Predictor:    stub,
	}

	if _, err := engine.Decide([]Component{c}, historyRows(10)); err != nil {
		t.Fatalf("decide: %v", err)
	}
	rocIdx := indexOf(features.ContractNames(), features.FeatROC1D)
	want := []float64{8, 9, 10}
	for i := range want {
		if stub.lastArg[i][rocIdx] != want[i] {
			t.Fatalf("window row %d roc = %v, want %v", i, stub.lastArg[i][rocIdx], want[i])
		}
	}
}

func TestAliasResolution(t *testing.T) {
	engine := NewEngine(nil, 0.5)
	stub := &stubPredictor{prob: 0.9}
	c := Component{
		Key:          "case-drift",
		Weight:       1,
		Shape:        SingleRow(),
		TrainedNames: []string{"BTC_Nasdaq_beta_10d", "roc_1d"},
		Aliases:      map[string]string{"BTC_Nasdaq_beta_10d": features.FeatBTCNasdaqBeta10D},
		Predictor:    stub,
	}

	history := historyRows(1)
	history[0].BTCNasdaqBeta10D = 1.25

	out, err := engine.Decide([]Component{c}, history)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if out.ProbUp != 0.9 {
		t.Fatalf("prob = %v", out.ProbUp)
	}
	if stub.lastArg[0][0] != 1.25 || stub.lastArg[0][1] != 1.0 {
		t.Fatalf("aliased inputs wrong: %v", stub.lastArg[0])
	}
}

func TestUnresolvedAliasEnumeratesMissing(t *testing.T) {
	c := Component{
		Key:          "stale",
		TrainedNames: []string{"roc_1d", "gone_feature", "also_gone"},
	}
	_, err := c.resolveIndices(features.ContractNames())
	var aliasErr *UnresolvedAliasError
	if !errors.As(err, &aliasErr) {
		t.Fatalf("err = %v, want UnresolvedAliasError", err)
	}
	if len(aliasErr.Missing) != 2 {
		t.Fatalf("missing = %v, want both stale names", aliasErr.Missing)
	}
	msg := aliasErr.Error()
	for _, name := range []string{"gone_feature", "also_gone", "stale"} {
		if !strings.Contains(msg, name) {
			t.Fatalf("error %q should mention %q", msg, name)
		}
	}
}

func TestParseShape(t *testing.T) {
	cases := []struct {
		in     string
		window int
		ok     bool
	}{
		{"single_row", 1, true},
		{"window:5", 5, true},
		{"window:0", 0, false},
		{"window:x", 0, false},
		{"cube", 0, false},
	}
	for _, tc := range cases {
		shape, err := ParseShape(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("ParseShape(%q) err = %v", tc.in, err)
		}
		if tc.ok && shape.Window != tc.window {
			t.Fatalf("ParseShape(%q) window = %d, want %d", tc.in, shape.Window, tc.window)
		}
	}
	if SingleRow().String() != "single_row" || WindowOf(5).String() != "window:5" {
		t.Fatal("shape string round-trip broken")
	}
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
