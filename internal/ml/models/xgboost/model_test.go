package xgboost

import (
	"math"
	"testing"

	"github.com/rmera/boo"
	"github.com/rmera/boo/utils"
)

// trainFixture builds a tiny separable boosted model in-process; production
// artifacts come from the offline stack in the same wire format.
func trainFixture(t *testing.T) *Model {
	t.Helper()
	samples := make([][]float64, 0, 40)
	labels := make([]int, 0, 40)
	for i := 0; i < 20; i++ {
		samples = append(samples, []float64{1 + float64(i%5)*0.1, 0.2})
		labels = append(labels, 1)
		samples = append(samples, []float64{-1 - float64(i%5)*0.1, -0.2})
		labels = append(labels, 0)
	}

	o := boo.DefaultXOptions()
	o.Rounds = 15
	o.MaxDepth = 3
	o.Verbose = false
	o.EarlyStop = 0

	b := boo.NewMultiClass(&utils.DataBunch{
		Data:   samples,
		Labels: labels,
		Keys:   []string{"x", "y"},
	}, o)
	if b == nil {
		t.Fatal("failed to build fixture model")
	}
	m, err := FromBoost(b, []string{"x", "y"})
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	return m
}

func TestPredictProbSeparatesClasses(t *testing.T) {
	m := trainFixture(t)
	up := m.PredictProb([]float64{1.2, 0.2})
	down := m.PredictProb([]float64{-1.2, -0.2})
	if up <= down {
		t.Fatalf("expected up sample to score higher: up=%v down=%v", up, down)
	}
	if up < 0 || up > 1 || down < 0 || down > 1 {
		t.Fatalf("probabilities out of range: %v %v", up, down)
	}
}

func TestRoundTrip(t *testing.T) {
	m := trainFixture(t)
	blob, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	loaded, err := UnmarshalBinary(blob)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	sample := []float64{0.9, 0.1}
	if math.Abs(loaded.PredictProb(sample)-m.PredictProb(sample)) > 1e-9 {
		t.Fatal("round-trip changed predictions")
	}
	if names := loaded.FeatureNames(); len(names) != 2 || names[0] != "x" {
		t.Fatalf("feature names lost: %v", names)
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalBinary(nil); err == nil {
		t.Fatal("expected error on empty blob")
	}
	if _, err := UnmarshalBinary([]byte(`{"feature_names":["x"],"model_text":"not json"}`)); err == nil {
		t.Fatal("expected error on bad model text")
	}
}
