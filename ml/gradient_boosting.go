package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// GradientBoostingRegressor evaluates an exported ensemble of regression
// trees. The raw prediction is InitPrediction + LearningRate * sum(leaf).
type GradientBoostingRegressor struct {
	ModelType      string       `json:"model_type"`
	Features       int          `json:"n_features"`
	FeatureNames   []string     `json:"feature_names,omitempty"`
	LearningRate   float64      `json:"learning_rate"`
	InitPrediction float64      `json:"init_prediction"`
	Trees          [][]TreeNode `json:"trees"`
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

func (m *GradientBoostingRegressor) NumFeatures() int {
	return m.Features
}

func (m *GradientBoostingRegressor) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	if len(m.Trees) == 0 {
		return nil, errors.New("model not trained")
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(row) != m.Features {
			return nil, fmt.Errorf("X has %d features, but GradientBoostingRegressor is expecting %d features as input.", len(row), m.Features)
		}
		if err := checkFinite(row); err != nil {
			return nil, err
		}
		sum := 0.0
		for t, tree := range m.Trees {
			v, err := evalTree(tree, row)
			if err != nil {
				return nil, fmt.Errorf("tree %d: %w", t, err)
			}
			sum += v
		}
		out[i] = m.InitPrediction + m.LearningRate*sum
	}
	return out, nil
}

// checkFinite rejects values the exported thresholds cannot be compared
// against: NaN, infinities and anything outside the float32 range.
func checkFinite(row []float64) error {
	for _, v := range row {
		if math.IsNaN(v) {
			return fmt.Errorf("%w: Input X contains NaN.", ErrInvalidInput)
		}
		if math.IsInf(v, 0) || math.Abs(v) > math.MaxFloat32 {
			return fmt.Errorf("%w: Input X contains infinity or a value too large for dtype('float32').", ErrInvalidInput)
		}
	}
	return nil
}

func evalTree(nodes []TreeNode, row []float64) (float64, error) {
	idx := 0
	// a well-formed tree reaches a leaf in at most len(nodes) steps
	for steps := 0; steps <= len(nodes); steps++ {
		if idx < 0 || idx >= len(nodes) {
			return 0, errors.New("invalid tree state")
		}
		node := nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(row) {
			return 0, errors.New("feature index out of range")
		}
		if row[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
	return 0, errors.New("tree contains a cycle")
}

func (m *GradientBoostingRegressor) Save(path string) error {
	if len(m.Trees) == 0 {
		return errors.New("model not trained")
	}
	if m.ModelType == "" {
		m.ModelType = GradientBoostingType
	}
	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (m *GradientBoostingRegressor) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded GradientBoostingRegressor
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if err := loaded.validate(); err != nil {
		return err
	}
	*m = loaded
	return nil
}

func (m *GradientBoostingRegressor) validate() error {
	if m.ModelType != "" && m.ModelType != GradientBoostingType {
		return fmt.Errorf("%w: model_type %q", ErrInvalidModel, m.ModelType)
	}
	if m.Features <= 0 {
		return fmt.Errorf("%w: n_features must be positive", ErrInvalidModel)
	}
	if len(m.FeatureNames) > 0 && len(m.FeatureNames) != m.Features {
		return fmt.Errorf("%w: %d feature names for %d features", ErrInvalidModel, len(m.FeatureNames), m.Features)
	}
	if len(m.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrInvalidModel)
	}
	for t, tree := range m.Trees {
		if len(tree) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrInvalidModel, t)
		}
		for n, node := range tree {
			if node.IsLeaf {
				continue
			}
			if node.FeatureIdx < 0 || node.FeatureIdx >= m.Features {
				return fmt.Errorf("%w: tree %d node %d splits on feature %d", ErrInvalidModel, t, n, node.FeatureIdx)
			}
			if node.LeftChild <= n || node.LeftChild >= len(tree) || node.RightChild <= n || node.RightChild >= len(tree) {
				return fmt.Errorf("%w: tree %d node %d has bad children", ErrInvalidModel, t, n)
			}
		}
	}
	return nil
}
