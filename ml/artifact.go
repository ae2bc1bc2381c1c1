package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cardioscope/heart"
)

const ArtifactSchemaVersion = 1

// ErrArtifactUnavailable wraps every load failure so callers can fall
// back to retraining without inspecting the cause.
var ErrArtifactUnavailable = errors.New("model artifact unavailable")

// Artifact is the persisted form of a trained forest together with the
// feature schema and category encoders it was trained against.
type Artifact struct {
	SchemaVersion int                           `json:"schema_version"`
	FeatureNames  []string                      `json:"feature_names"`
	Encoders      map[string]map[string]float64 `json:"encoders"`
	Forest        *RandomForest                 `json:"forest"`
	Source        string                        `json:"source"`
	TrainedAt     time.Time                     `json:"trained_at"`
	Metrics       Metrics                       `json:"metrics"`
	Rows          int                           `json:"rows"`
}

func SaveArtifact(path string, artifact *Artifact) error {
	if artifact == nil || artifact.Forest == nil || len(artifact.Forest.Trees) == 0 {
		return errors.New("model not trained")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	payload, err := json.Marshal(artifact)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func LoadArtifact(path string) (*Artifact, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}
	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}
	if err := validateArtifact(&artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}
	return &artifact, nil
}

// validateArtifact rejects files whose schema or encoders drifted from
// the current feature definitions. A stale artifact must never serve.
func validateArtifact(artifact *Artifact) error {
	if artifact.SchemaVersion != ArtifactSchemaVersion {
		return fmt.Errorf("unsupported schema version %d", artifact.SchemaVersion)
	}
	if artifact.Forest == nil || len(artifact.Forest.Trees) == 0 {
		return errors.New("artifact contains no trees")
	}

	names := heart.FeatureNames()
	if len(artifact.FeatureNames) != len(names) {
		return fmt.Errorf("expected %d features, got %d", len(names), len(artifact.FeatureNames))
	}
	for i, name := range names {
		if artifact.FeatureNames[i] != name {
			return fmt.Errorf("feature %d is %q, expected %q", i, artifact.FeatureNames[i], name)
		}
	}
	if artifact.Forest.NumFeatures != len(names) {
		return fmt.Errorf("forest expects %d features, schema lists %d", artifact.Forest.NumFeatures, len(names))
	}

	expected := heart.Mappings()
	if len(artifact.Encoders) != len(expected) {
		return fmt.Errorf("expected %d encoders, got %d", len(expected), len(artifact.Encoders))
	}
	for field, codes := range expected {
		got, ok := artifact.Encoders[field]
		if !ok {
			return fmt.Errorf("missing encoder for %s", field)
		}
		if len(got) != len(codes) {
			return fmt.Errorf("encoder %s has %d entries, expected %d", field, len(got), len(codes))
		}
		for label, code := range codes {
			if got[label] != code {
				return fmt.Errorf("encoder %s maps %q to %v, expected %v", field, label, got[label], code)
			}
		}
	}
	return nil
}
