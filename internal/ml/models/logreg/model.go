// Package logreg loads and runs logistic-regression artifacts exported by
// the offline training stack. Training itself never happens in-process.
package logreg

import (
	"encoding/json"
	"errors"
	"math"
)

type Artifact struct {
	FeatureNames []string  `json:"feature_names"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Means        []float64 `json:"means"`
	Stds         []float64 `json:"stds"`
}

type Model struct {
	artifact Artifact
}

func New(a Artifact) (*Model, error) {
	if err := validate(a); err != nil {
		return nil, err
	}
	return &Model{artifact: a}, nil
}

func UnmarshalBinary(data []byte) (*Model, error) {
	if len(data) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return New(a)
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	return json.Marshal(m.artifact)
}

func (m *Model) PredictProb(sample []float64) float64 {
	if m == nil || len(sample) != len(m.artifact.Weights) {
		return 0.5
	}
	s := m.artifact.Bias
	for i, v := range sample {
		std := m.artifact.Stds[i]
		if std == 0 {
			std = 1
		}
		s += m.artifact.Weights[i] * ((v - m.artifact.Means[i]) / std)
	}
	return sigmoid(s)
}

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.artifact.FeatureNames...)
}

func validate(a Artifact) error {
	if len(a.Weights) == 0 {
		return errors.New("invalid artifact: no weights")
	}
	if len(a.Weights) != len(a.Means) || len(a.Weights) != len(a.Stds) {
		return errors.New("invalid artifact: weight/scaler length mismatch")
	}
	if len(a.FeatureNames) != len(a.Weights) {
		return errors.New("invalid artifact: feature name count mismatch")
	}
	return nil
}

func sigmoid(x float64) float64 {
	if x > 35 {
		return 1
	}
	if x < -35 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}
