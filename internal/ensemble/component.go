package ensemble

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// InputShape describes what a component consumes per prediction: a single
// feature row or a trailing window of N rows, oldest first.
type InputShape struct {
	Window int
}

const shapeSingleRow = "single_row"

func SingleRow() InputShape {
	return InputShape{Window: 1}
}

func WindowOf(n int) InputShape {
	return InputShape{Window: n}
}

// ParseShape accepts "single_row" or "window:N".
func ParseShape(s string) (InputShape, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == shapeSingleRow {
		return SingleRow(), nil
	}
	if rest, ok := strings.CutPrefix(s, "window:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			return InputShape{}, fmt.Errorf("invalid window size %q", rest)
		}
		return WindowOf(n), nil
	}
	return InputShape{}, fmt.Errorf("unknown input shape %q", s)
}

func (s InputShape) String() string {
	if s.Window <= 1 {
		return shapeSingleRow
	}
	return "window:" + strconv.Itoa(s.Window)
}

// Predictor is the model behind a component. Single-row models see a
// one-row window.
type Predictor interface {
	Predict(window [][]float64) (float64, error)
}

// Component is one weighted voice in the ensemble. TrainedNames is the
// positional feature order the artifact was trained against; Aliases maps
// trained names that drifted from the live contract back onto it.
type Component struct {
	Key          string
	Version      int
	Weight       float64
	Shape        InputShape
	TrainedNames []string
	Aliases      map[string]string
	Predictor    Predictor
}

// UnresolvedAliasError reports every trained feature name that maps to
// nothing in the live contract. A component that raises it is dropped from
// the cycle; it never degrades to partial input.
type UnresolvedAliasError struct {
	ComponentKey string
	Missing      []string
}

func (e *UnresolvedAliasError) Error() string {
	return fmt.Sprintf("component %s: unresolved feature names: %s",
		e.ComponentKey, strings.Join(e.Missing, ", "))
}

// resolveIndices maps each trained feature position to its index in the
// contract, applying the alias table first.
func (c Component) resolveIndices(contract []string) ([]int, error) {
	byName := make(map[string]int, len(contract))
	for i, name := range contract {
		byName[name] = i
	}

	indices := make([]int, len(c.TrainedNames))
	var missing []string
	for i, trained := range c.TrainedNames {
		name := trained
		if alias, ok := c.Aliases[trained]; ok {
			name = alias
		}
		idx, ok := byName[name]
		if !ok {
			missing = append(missing, trained)
			continue
		}
		indices[i] = idx
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &UnresolvedAliasError{ComponentKey: c.Key, Missing: missing}
	}
	return indices, nil
}
