package features

import (
	"crystal-ball/internal/domain"

	"github.com/narumiruna/go-iforest/pkg/iforest"
)

const (
	anomalyMinHistory = 30
	anomalyThreshold  = 0.65
)

// AnomalyGuard fits an isolation forest over the historical feature matrix
// and flags rows that look unlike anything the models trained on. The flag
// is recorded on decisions for auditability; it never blocks one.
type AnomalyGuard struct {
	forest *iforest.IsolationForest
	fitted bool
}

func NewAnomalyGuard() *AnomalyGuard {
	return &AnomalyGuard{forest: iforest.New()}
}

// Fit trains the forest on historical rows. With fewer than
// anomalyMinHistory rows the guard stays unfitted and flags nothing.
func (g *AnomalyGuard) Fit(history []domain.FeatureDay) {
	if len(history) < anomalyMinHistory {
		g.fitted = false
		return
	}
	matrix := make([][]float64, len(history))
	for i := range history {
		matrix[i] = Vector(history[i])
	}
	g.forest.Fit(matrix)
	g.fitted = true
}

// IsAnomalous scores one row against the fitted forest.
func (g *AnomalyGuard) IsAnomalous(row domain.FeatureDay) bool {
	if !g.fitted {
		return false
	}
	scores := g.forest.Score([][]float64{Vector(row)})
	if len(scores) != 1 {
		return false
	}
	return scores[0] > anomalyThreshold
}
