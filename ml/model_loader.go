package ml

import (
	"encoding/json"
	"fmt"
)

// ArtifactFormat tags serialised models so a store never hands back something else.
const ArtifactFormat = "churn-logreg/v1"

type artifact struct {
	Format string       `json:"format"`
	Model  *FittedModel `json:"model"`
}

// MarshalModel serialises schema, encoding table, scaler and classifier together.
func MarshalModel(m *FittedModel) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to save invalid model: %w", err)
	}
	return json.Marshal(artifact{Format: ArtifactFormat, Model: m})
}

func UnmarshalModel(data []byte) (*FittedModel, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if a.Format != ArtifactFormat {
		return nil, fmt.Errorf("unsupported model artifact format %q", a.Format)
	}
	if a.Model == nil {
		return nil, fmt.Errorf("model artifact has no model")
	}
	if err := a.Model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}
	return a.Model, nil
}
