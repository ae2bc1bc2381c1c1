package ml

import (
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"cardioscope/heart"
)

func probeRecord() heart.Record {
	return heart.Record{
		Age:            54,
		Sex:            "M",
		ChestPainType:  "ASY",
		RestingBP:      140,
		Cholesterol:    240,
		FastingBS:      "No",
		RestingECG:     "Normal",
		MaxHR:          150,
		ExerciseAngina: "No",
		Oldpeak:        1.2,
		STSlope:        "Flat",
	}
}

func provisionFromArtifact(t *testing.T) *ProvisionedModel {
	t.Helper()
	ResetModel()
	t.Cleanup(ResetModel)

	path := filepath.Join(t.TempDir(), "model.json")
	if err := SaveArtifact(path, trainedArtifact(t)); err != nil {
		t.Fatal(err)
	}
	return Provision(path)
}

func TestProvisionLoadsArtifact(t *testing.T) {
	ResetModel()
	t.Cleanup(ResetModel)

	path := filepath.Join(t.TempDir(), "model.json")
	artifact := trainedArtifact(t)
	if err := SaveArtifact(path, artifact); err != nil {
		t.Fatal(err)
	}

	model := Provision(path)
	if model == nil {
		t.Fatal("expected a model")
	}
	if model.Source() != SourceArtifact {
		t.Fatalf("expected source %s, got %s", SourceArtifact, model.Source())
	}
	if model.Rows() != artifact.Rows {
		t.Errorf("expected %d rows, got %d", artifact.Rows, model.Rows())
	}
	if model.Metrics() != artifact.Metrics {
		t.Errorf("expected metrics %+v, got %+v", artifact.Metrics, model.Metrics())
	}
	if !model.TrainedAt().Equal(artifact.TrainedAt) {
		t.Errorf("expected trained_at %v, got %v", artifact.TrainedAt, model.TrainedAt())
	}
}

func TestProvisionReturnsSingleton(t *testing.T) {
	ResetModel()
	t.Cleanup(ResetModel)

	path := filepath.Join(t.TempDir(), "model.json")
	if err := SaveArtifact(path, trainedArtifact(t)); err != nil {
		t.Fatal(err)
	}

	first := Provision(path)
	second := Provision(path)
	if first != second {
		t.Fatal("expected the same instance from repeated calls")
	}

	ResetModel()
	third := Provision(path)
	if third == first {
		t.Fatal("expected a fresh instance after reset")
	}
}

func TestProvisionFallsBackToSynthetic(t *testing.T) {
	ResetModel()
	t.Cleanup(ResetModel)

	model := Provision(filepath.Join(t.TempDir(), "missing.json"))
	if model == nil {
		t.Fatal("expected a model even without an artifact")
	}
	if model.Source() != SourceSynthetic {
		t.Fatalf("expected source %s, got %s", SourceSynthetic, model.Source())
	}
	if model.Rows() != heart.DefaultCohortSize {
		t.Errorf("expected %d rows, got %d", heart.DefaultCohortSize, model.Rows())
	}
	if model.Metrics().Accuracy <= 0 {
		t.Errorf("expected positive accuracy, got %v", model.Metrics().Accuracy)
	}

	label, probs, err := model.Predict(probeRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 && label != 1 {
		t.Errorf("unexpected label %d", label)
	}
	if len(probs) != 2 {
		t.Fatalf("expected 2 probabilities, got %d", len(probs))
	}
}

func TestProvisionedModelPredictMemoized(t *testing.T) {
	model := provisionFromArtifact(t)

	label, probs, err := model.Predict(probeRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("probabilities should sum to 1, got %v", sum)
	}

	again, againProbs, err := model.Predict(probeRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != label || !reflect.DeepEqual(probs, againProbs) {
		t.Fatal("repeated input should return the cached prediction")
	}

	againProbs[0] = 99
	_, fresh, err := model.Predict(probeRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh[0] == 99 {
		t.Fatal("cached probabilities must not be aliased by callers")
	}
}

func TestProvisionedModelImportances(t *testing.T) {
	model := provisionFromArtifact(t)

	weights := model.FeatureImportances()
	if len(weights) != len(heart.FeatureNames()) {
		t.Fatalf("expected %d weights, got %d", len(heart.FeatureNames()), len(weights))
	}
	sum := 0.0
	for i, w := range weights {
		if w.Weight < 0 {
			t.Errorf("weight %d is negative: %v", i, w.Weight)
		}
		if i > 0 && weights[i-1].Weight < w.Weight {
			t.Errorf("weights not sorted at %d", i)
		}
		sum += w.Weight
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("weights should sum to 1, got %v", sum)
	}
}

func TestProvisionedModelNilSafety(t *testing.T) {
	var model *ProvisionedModel
	if _, _, err := model.Predict(probeRecord()); err == nil {
		t.Fatal("expected error from nil model")
	}
	if weights := model.FeatureImportances(); weights != nil {
		t.Fatalf("expected nil weights, got %v", weights)
	}
}
