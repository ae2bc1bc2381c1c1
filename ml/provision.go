package ml

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"cardioscope/heart"
)

const (
	SourceArtifact  = "artifact"
	SourceSynthetic = "synthetic"

	syntheticSeed       = 42
	predictionCacheSize = 512
)

// ProvisionedModel 对外提供推理服务的就绪模型，重复输入命中 LRU 缓存
type ProvisionedModel struct {
	forest    *RandomForest
	source    string
	metrics   Metrics
	trainedAt time.Time
	rows      int
	cache     *lru.Cache[string, cachedPrediction]
}

type cachedPrediction struct {
	label int
	probs []float64
}

// FeatureWeight 单个特征的重要性权重
type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Predict 对一条患者记录推理，返回类别与两类概率
func (m *ProvisionedModel) Predict(rec heart.Record) (int, []float64, error) {
	if m == nil || m.forest == nil {
		return 0, nil, errors.New("model not trained")
	}

	features := heart.Encode(rec)
	key := fmt.Sprintf("%v", features)
	if hit, ok := m.cache.Get(key); ok {
		return hit.label, append([]float64(nil), hit.probs...), nil
	}

	probs, err := m.forest.PredictProba(features)
	if err != nil {
		return 0, nil, err
	}
	label := argmax(probs)
	m.cache.Add(key, cachedPrediction{label: label, probs: probs})
	return label, append([]float64(nil), probs...), nil
}

// FeatureImportances 返回按权重降序排列的特征重要性
func (m *ProvisionedModel) FeatureImportances() []FeatureWeight {
	if m == nil || m.forest == nil {
		return nil
	}

	names := heart.FeatureNames()
	weights := m.forest.FeatureImportances()
	result := make([]FeatureWeight, 0, len(names))
	for i, name := range names {
		if i >= len(weights) {
			break
		}
		result = append(result, FeatureWeight{Feature: name, Weight: weights[i]})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Weight == result[j].Weight {
			return result[i].Feature < result[j].Feature
		}
		return result[i].Weight > result[j].Weight
	})
	return result
}

func (m *ProvisionedModel) Source() string {
	return m.source
}

func (m *ProvisionedModel) Metrics() Metrics {
	return m.metrics
}

func (m *ProvisionedModel) TrainedAt() time.Time {
	return m.trainedAt
}

func (m *ProvisionedModel) Rows() int {
	return m.rows
}

// 全局模型实例。fsnotify 回调会在运行期重置实例，
// 因此用互斥锁加判空代替 sync.Once
var (
	modelMu     sync.Mutex
	globalModel *ProvisionedModel
)

// Provision 获取全局模型单例。模型文件缺失或损坏时
// 回退到合成队列训练，调用方总能得到可用模型
func Provision(path string) *ProvisionedModel {
	modelMu.Lock()
	defer modelMu.Unlock()
	if globalModel != nil {
		return globalModel
	}
	globalModel = provision(path)
	return globalModel
}

// ResetModel 重置全局模型（用于测试与模型文件热更新）
func ResetModel() {
	modelMu.Lock()
	defer modelMu.Unlock()
	globalModel = nil
}

func provision(path string) *ProvisionedModel {
	artifact, err := LoadArtifact(path)
	if err != nil {
		zap.L().Warn("model artifact unavailable, training fallback on synthetic cohort",
			zap.String("path", path),
			zap.Error(err))
		return trainSynthetic()
	}

	zap.L().Info("model artifact loaded",
		zap.String("path", path),
		zap.String("data_source", artifact.Source),
		zap.Int("trees", len(artifact.Forest.Trees)),
		zap.Int("rows", artifact.Rows))
	return &ProvisionedModel{
		forest:    artifact.Forest,
		source:    SourceArtifact,
		metrics:   artifact.Metrics,
		trainedAt: artifact.TrainedAt,
		rows:      artifact.Rows,
		cache:     newPredictionCache(),
	}
}

func trainSynthetic() *ProvisionedModel {
	records, labels := heart.SyntheticCohort(heart.DefaultCohortSize, syntheticSeed)
	features := make([][]float64, len(records))
	for i, rec := range records {
		features[i] = heart.Encode(rec)
	}

	trainX, trainY, testX, testY := SplitDataset(features, labels, 0.2, syntheticSeed)
	forest, err := TrainForest(trainX, trainY, DefaultForestConfig())
	if err != nil {
		zap.L().Error("synthetic training failed", zap.Error(err))
		return &ProvisionedModel{source: SourceSynthetic, cache: newPredictionCache()}
	}

	metrics := Evaluate(forest, testX, testY)
	zap.L().Info("synthetic fallback model trained",
		zap.Int("rows", len(records)),
		zap.Float64("accuracy", metrics.Accuracy))
	return &ProvisionedModel{
		forest:    forest,
		source:    SourceSynthetic,
		metrics:   metrics,
		trainedAt: time.Now().UTC(),
		rows:      len(records),
		cache:     newPredictionCache(),
	}
}

func newPredictionCache() *lru.Cache[string, cachedPrediction] {
	cache, _ := lru.New[string, cachedPrediction](predictionCacheSize)
	return cache
}
