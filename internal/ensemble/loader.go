package ensemble

import (
	"encoding/json"
	"fmt"

	"crystal-ball/internal/domain"
	"crystal-ball/internal/ml/models/gru"
	"crystal-ball/internal/ml/models/logreg"
	"crystal-ball/internal/ml/models/xgboost"
)

// Artifact formats the loader understands.
const (
	FormatLogRegJSON  = "logreg-json"
	FormatXGBoostJSON = "xgboost-boo-json"
	FormatGRUJSON     = "gru-json"
)

// BuildComponent hydrates a registry row into a runnable component. The
// alias table travels with the artifact as JSON ({trained name: contract
// name}); shape and weight come from the registry columns.
func BuildComponent(model domain.ModelVersion) (Component, error) {
	shape, err := ParseShape(model.InputShape)
	if err != nil {
		return Component{}, fmt.Errorf("model %s v%d: %w", model.ModelKey, model.Version, err)
	}

	aliases := map[string]string{}
	if model.AliasJSON != "" && model.AliasJSON != "{}" {
		if err := json.Unmarshal([]byte(model.AliasJSON), &aliases); err != nil {
			return Component{}, fmt.Errorf("model %s v%d: parse alias table: %w", model.ModelKey, model.Version, err)
		}
	}

	var (
		names     []string
		predictor Predictor
	)
	switch model.ArtifactFormat {
	case FormatLogRegJSON:
		m, err := logreg.UnmarshalBinary(model.ArtifactBlob)
		if err != nil {
			return Component{}, fmt.Errorf("model %s v%d: %w", model.ModelKey, model.Version, err)
		}
		names = m.FeatureNames()
		predictor = lastRowPredictor{predict: m.PredictProb}
	case FormatXGBoostJSON:
		m, err := xgboost.UnmarshalBinary(model.ArtifactBlob)
		if err != nil {
			return Component{}, fmt.Errorf("model %s v%d: %w", model.ModelKey, model.Version, err)
		}
		names = m.FeatureNames()
		predictor = lastRowPredictor{predict: m.PredictProb}
	case FormatGRUJSON:
		m, err := gru.UnmarshalBinary(model.ArtifactBlob)
		if err != nil {
			return Component{}, fmt.Errorf("model %s v%d: %w", model.ModelKey, model.Version, err)
		}
		if shape.Window != m.Window() {
			return Component{}, fmt.Errorf("model %s v%d: registry shape %s disagrees with artifact window %d",
				model.ModelKey, model.Version, shape, m.Window())
		}
		names = m.FeatureNames()
		predictor = windowModel{model: m}
	default:
		return Component{}, fmt.Errorf("model %s v%d: %w: %q", model.ModelKey, model.Version, domain.ErrArtifactFormat, model.ArtifactFormat)
	}

	return Component{
		Key:          model.ModelKey,
		Version:      model.Version,
		Weight:       model.Weight,
		Shape:        shape,
		TrainedNames: names,
		Aliases:      aliases,
		Predictor:    predictor,
	}, nil
}

// lastRowPredictor adapts a single-row model to the window interface.
type lastRowPredictor struct {
	predict func([]float64) float64
}

func (p lastRowPredictor) Predict(window [][]float64) (float64, error) {
	if len(window) == 0 {
		return 0, fmt.Errorf("empty window")
	}
	return p.predict(window[len(window)-1]), nil
}

type windowModel struct {
	model *gru.Model
}

func (p windowModel) Predict(window [][]float64) (float64, error) {
	return p.model.PredictWindow(window)
}
