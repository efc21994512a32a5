package ml

import "fmt"

const GradientBoostingType = "gradient_boosting"

func LoadModel(modelType, path string) (Regressor, error) {
	switch modelType {
	case GradientBoostingType, "":
		model := &GradientBoostingRegressor{}
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, modelType)
	}
}
