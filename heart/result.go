package heart

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// RiskTier 风险分层
type RiskTier string

const (
	RiskHigh   RiskTier = "High"
	RiskMedium RiskTier = "Medium"
	RiskLow    RiskTier = "Low"
)

// Prediction 一次完成的风险评估结果
type Prediction struct {
	ID          string    `json:"id"`
	Label       int       `json:"label"`
	Diagnosis   string    `json:"diagnosis"`
	HealthyProb float64   `json:"healthy_prob"`
	DiseaseProb float64   `json:"disease_prob"`
	Confidence  float64   `json:"confidence"`
	Risk        RiskTier  `json:"risk"`
	ModelSource string    `json:"model_source"`
	Timestamp   time.Time `json:"timestamp"`
}

// BuildResult 由分类器输出组装评估结果。
// probs 按类别序排列: [0]=健康, [1]=患病。置信度取两者较大值。
func BuildResult(label int, probs []float64) (Prediction, error) {
	if len(probs) != 2 {
		return Prediction{}, errors.New("expected two class probabilities")
	}

	confidence := probs[0]
	if probs[1] > confidence {
		confidence = probs[1]
	}

	diagnosis := "Healthy"
	if label == 1 {
		diagnosis = "At Risk"
	}

	return Prediction{
		ID:          uuid.NewString(),
		Label:       label,
		Diagnosis:   diagnosis,
		HealthyProb: probs[0],
		DiseaseProb: probs[1],
		Confidence:  confidence,
		Risk:        riskTier(confidence),
		Timestamp:   time.Now().UTC(),
	}, nil
}

// 阈值为严格大于: 0.7 以上为高, 0.4 以上为中, 其余为低
func riskTier(confidence float64) RiskTier {
	switch {
	case confidence > 0.7:
		return RiskHigh
	case confidence > 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}
