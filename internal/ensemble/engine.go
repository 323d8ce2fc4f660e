package ensemble

import (
	"fmt"
	"log"
	"math"

	"crystal-ball/internal/domain"
	"crystal-ball/internal/features"
)

// Outcome is one combined next-day call plus the per-component audit
// trail.
type Outcome struct {
	ProbUp     float64
	Direction  domain.Direction
	Confidence float64
	Threshold  float64
	Components []domain.ComponentOutput
}

// Engine combines weighted component probabilities. A component failure
// (unresolved aliases, artifact error) drops that component and
// renormalizes the weights over the survivors; it never sinks the cycle
// unless nothing survives.
type Engine struct {
	contract  []string
	threshold float64
}

func NewEngine(contract []string, threshold float64) *Engine {
	if len(contract) == 0 {
		contract = features.ContractNames()
	}
	if threshold <= 0 || threshold >= 1 {
		threshold = 0.5
	}
	return &Engine{contract: append([]string(nil), contract...), threshold: threshold}
}

func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Decide runs every component against the feature history (oldest first,
// newest row last) and combines the survivors. With zero survivors it
// returns domain.ErrNoViableComponents: there is no default direction.
func (e *Engine) Decide(components []Component, history []domain.FeatureDay) (Outcome, error) {
	if len(history) == 0 {
		return Outcome{}, fmt.Errorf("decide: %w", domain.ErrInsufficientHistory)
	}

	vectors := make([][]float64, len(history))
	for i := range history {
		vectors[i] = features.Vector(history[i])
	}

	var weightedSum, totalWeight float64
	outputs := make([]domain.ComponentOutput, 0, len(components))
	for _, c := range components {
		prob, err := e.runComponent(c, vectors)
		if err != nil {
			log.Printf("ensemble: component %s v%d skipped: %v", c.Key, c.Version, err)
			continue
		}
		if c.Weight <= 0 {
			continue
		}
		weightedSum += c.Weight * prob
		totalWeight += c.Weight
		outputs = append(outputs, domain.ComponentOutput{
			Key:     c.Key,
			Version: c.Version,
			Weight:  c.Weight,
			ProbUp:  prob,
		})
	}
	if totalWeight == 0 {
		return Outcome{}, domain.ErrNoViableComponents
	}

	prob := clamp01(weightedSum / totalWeight)
	direction := domain.DirectionDown
	confidence := 1 - prob
	if prob >= e.threshold {
		direction = domain.DirectionUp
		confidence = prob
	}
	return Outcome{
		ProbUp:     prob,
		Direction:  direction,
		Confidence: confidence,
		Threshold:  e.threshold,
		Components: outputs,
	}, nil
}

func (e *Engine) runComponent(c Component, vectors [][]float64) (float64, error) {
	if c.Predictor == nil {
		return 0, fmt.Errorf("no predictor")
	}
	indices, err := c.resolveIndices(e.contract)
	if err != nil {
		return 0, err
	}

	window := windowOf(vectors, c.Shape.Window)
	input := make([][]float64, len(window))
	for i, vec := range window {
		row := make([]float64, len(indices))
		for j, idx := range indices {
			row[j] = vec[idx]
		}
		input[i] = row
	}

	prob, err := c.Predictor.Predict(input)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(prob) || math.IsInf(prob, 0) {
		return 0, fmt.Errorf("non-finite probability")
	}
	return clamp01(prob), nil
}

// windowOf takes the newest n vectors oldest-first. Histories shorter than
// n left-pad by repeating the earliest available row.
func windowOf(vectors [][]float64, n int) [][]float64 {
	if n <= 1 {
		return vectors[len(vectors)-1:]
	}
	if len(vectors) >= n {
		return vectors[len(vectors)-n:]
	}
	out := make([][]float64, 0, n)
	for i := len(vectors); i < n; i++ {
		out = append(out, vectors[0])
	}
	return append(out, vectors...)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
