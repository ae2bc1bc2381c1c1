package heart

import "testing"

func TestBuildResult(t *testing.T) {
	pred, err := BuildResult(1, []float64{0.25, 0.75})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pred.ID == "" {
		t.Error("expected prediction id to be set")
	}
	if pred.Label != 1 {
		t.Errorf("label = %d, want 1", pred.Label)
	}
	if pred.Diagnosis != "At Risk" {
		t.Errorf("diagnosis = %s, want At Risk", pred.Diagnosis)
	}
	if pred.HealthyProb != 0.25 || pred.DiseaseProb != 0.75 {
		t.Errorf("probabilities = %v/%v, want 0.25/0.75", pred.HealthyProb, pred.DiseaseProb)
	}
	if pred.Confidence != 0.75 {
		t.Errorf("confidence = %v, want 0.75", pred.Confidence)
	}
	if pred.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestBuildResultHealthy(t *testing.T) {
	pred, err := BuildResult(0, []float64{0.9, 0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Diagnosis != "Healthy" {
		t.Errorf("diagnosis = %s, want Healthy", pred.Diagnosis)
	}
	if pred.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", pred.Confidence)
	}
}

func TestBuildResultRejectsBadProbabilities(t *testing.T) {
	if _, err := BuildResult(0, []float64{1.0}); err == nil {
		t.Fatal("expected error for single probability")
	}
	if _, err := BuildResult(0, nil); err == nil {
		t.Fatal("expected error for nil probabilities")
	}
}

func TestRiskTierThresholds(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		want       RiskTier
	}{
		{"exactly 0.7 stays medium", 0.7, RiskMedium},
		{"just above 0.7 is high", 0.71, RiskHigh},
		{"exactly 0.4 stays low", 0.4, RiskLow},
		{"just above 0.4 is medium", 0.40001, RiskMedium},
		{"certain prediction is high", 1.0, RiskHigh},
		{"coin flip is medium", 0.5, RiskMedium},
		{"zero is low", 0, RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := riskTier(tt.confidence); got != tt.want {
				t.Errorf("riskTier(%v) = %s, want %s", tt.confidence, got, tt.want)
			}
		})
	}
}

func TestBuildResultRiskFollowsConfidence(t *testing.T) {
	pred, err := BuildResult(1, []float64{0.2, 0.8})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Risk != RiskHigh {
		t.Errorf("risk = %s, want %s", pred.Risk, RiskHigh)
	}

	pred, err = BuildResult(0, []float64{0.55, 0.45})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Risk != RiskMedium {
		t.Errorf("risk = %s, want %s", pred.Risk, RiskMedium)
	}
}
