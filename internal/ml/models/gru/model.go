// Package gru runs a single-layer GRU with a sigmoid head over a short
// window of feature rows. The recurrent weights come from an offline
// artifact; only the forward pass lives here.
package gru

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

type Artifact struct {
	FeatureNames []string `json:"feature_names"`
	Window       int      `json:"window"`
	Hidden       int      `json:"hidden"`

	// Gate weights: Wx are hidden x features, Uh are hidden x hidden.
	WzX [][]float64 `json:"wz_x"`
	WrX [][]float64 `json:"wr_x"`
	WhX [][]float64 `json:"wh_x"`
	WzH [][]float64 `json:"wz_h"`
	WrH [][]float64 `json:"wr_h"`
	WhH [][]float64 `json:"wh_h"`
	Bz  []float64   `json:"bz"`
	Br  []float64   `json:"br"`
	Bh  []float64   `json:"bh"`

	HeadW []float64 `json:"head_w"`
	HeadB float64   `json:"head_b"`

	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
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

func (m *Model) Window() int {
	return m.artifact.Window
}

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.artifact.FeatureNames...)
}

// PredictWindow runs the forward pass over exactly Window rows, oldest
// first, and returns the head probability.
func (m *Model) PredictWindow(window [][]float64) (float64, error) {
	a := m.artifact
	if len(window) != a.Window {
		return 0, fmt.Errorf("window length %d, model wants %d", len(window), a.Window)
	}

	h := make([]float64, a.Hidden)
	z := make([]float64, a.Hidden)
	r := make([]float64, a.Hidden)
	cand := make([]float64, a.Hidden)

	for _, row := range window {
		if len(row) != len(a.FeatureNames) {
			return 0, fmt.Errorf("row width %d, model wants %d", len(row), len(a.FeatureNames))
		}
		x := normalize(row, a.Means, a.Stds)

		for i := 0; i < a.Hidden; i++ {
			z[i] = sigmoid(dot(a.WzX[i], x) + dot(a.WzH[i], h) + a.Bz[i])
			r[i] = sigmoid(dot(a.WrX[i], x) + dot(a.WrH[i], h) + a.Br[i])
		}
		rh := make([]float64, a.Hidden)
		for j := range rh {
			rh[j] = r[j] * h[j]
		}
		for i := 0; i < a.Hidden; i++ {
			cand[i] = math.Tanh(dot(a.WhX[i], x) + dot(a.WhH[i], rh) + a.Bh[i])
		}
		for i := 0; i < a.Hidden; i++ {
			h[i] = z[i]*h[i] + (1-z[i])*cand[i]
		}
	}

	return sigmoid(dot(a.HeadW, h) + a.HeadB), nil
}

func validate(a Artifact) error {
	if a.Window <= 0 {
		return errors.New("invalid artifact: window must be positive")
	}
	if a.Hidden <= 0 {
		return errors.New("invalid artifact: hidden size must be positive")
	}
	feats := len(a.FeatureNames)
	if feats == 0 {
		return errors.New("invalid artifact: no feature names")
	}
	for _, w := range [][][]float64{a.WzX, a.WrX, a.WhX} {
		if len(w) != a.Hidden {
			return errors.New("invalid artifact: input gate shape")
		}
		for _, row := range w {
			if len(row) != feats {
				return errors.New("invalid artifact: input gate width")
			}
		}
	}
	for _, w := range [][][]float64{a.WzH, a.WrH, a.WhH} {
		if len(w) != a.Hidden {
			return errors.New("invalid artifact: recurrent gate shape")
		}
		for _, row := range w {
			if len(row) != a.Hidden {
				return errors.New("invalid artifact: recurrent gate width")
			}
		}
	}
	if len(a.Bz) != a.Hidden || len(a.Br) != a.Hidden || len(a.Bh) != a.Hidden {
		return errors.New("invalid artifact: bias shape")
	}
	if len(a.HeadW) != a.Hidden {
		return errors.New("invalid artifact: head shape")
	}
	if len(a.Means) != feats || len(a.Stds) != feats {
		return errors.New("invalid artifact: scaler shape")
	}
	return nil
}

func normalize(in, means, stds []float64) []float64 {
	out := make([]float64, len(in))
	for i := range in {
		std := stds[i]
		if std == 0 {
			std = 1
		}
		out[i] = (in[i] - means[i]) / std
	}
	return out
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
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
