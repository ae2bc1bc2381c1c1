package ml

import (
	"errors"
	"math"
	"math/rand"
)

type ForestConfig struct {
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	Seed           int64
}

func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:          100,
		MaxDepth:       6,
		MinSamplesLeaf: 3,
		Seed:           42,
	}
}

type RandomForest struct {
	Trees       []DecisionTree `json:"trees"`
	NumClasses  int            `json:"num_classes"`
	NumFeatures int            `json:"num_features"`
}

func TrainForest(features [][]float64, labels []int, cfg ForestConfig) (*RandomForest, error) {
	if len(features) == 0 || len(labels) == 0 {
		return nil, errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return nil, errors.New("features and labels size mismatch")
	}
	defaults := DefaultForestConfig()
	if cfg.Trees <= 0 {
		cfg.Trees = defaults.Trees
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaults.MaxDepth
	}
	if cfg.MinSamplesLeaf <= 0 {
		cfg.MinSamplesLeaf = defaults.MinSamplesLeaf
	}

	numFeatures := len(features[0])
	subset := int(math.Sqrt(float64(numFeatures)))
	if subset < 1 {
		subset = 1
	}
	treeCfg := TreeConfig{
		MaxDepth:       cfg.MaxDepth,
		MinSamplesLeaf: cfg.MinSamplesLeaf,
		FeatureSubset:  subset,
		NumClasses:     countClasses(labels),
	}

	forest := &RandomForest{
		Trees:       make([]DecisionTree, cfg.Trees),
		NumClasses:  treeCfg.NumClasses,
		NumFeatures: numFeatures,
	}

	// Trees are trained sequentially off one seeded source so the
	// same seed always produces the same forest.
	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := range forest.Trees {
		sampleX, sampleY := bootstrapSample(features, labels, rng)
		if err := forest.Trees[i].Train(sampleX, sampleY, treeCfg, rng); err != nil {
			return nil, err
		}
	}
	return forest, nil
}

func bootstrapSample(features [][]float64, labels []int, rng *rand.Rand) ([][]float64, []int) {
	n := len(features)
	sampleX := make([][]float64, n)
	sampleY := make([]int, n)
	for i := 0; i < n; i++ {
		idx := rng.Intn(n)
		sampleX[i] = features[idx]
		sampleY[i] = labels[idx]
	}
	return sampleX, sampleY
}

func (rf *RandomForest) Predict(features []float64) (int, error) {
	probs, err := rf.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(probs), nil
}

func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(features) != rf.NumFeatures {
		return nil, errors.New("feature vector size mismatch")
	}

	sum := make([]float64, rf.NumClasses)
	for i := range rf.Trees {
		probs, err := rf.Trees[i].PredictProba(features)
		if err != nil {
			return nil, err
		}
		for c := 0; c < len(sum) && c < len(probs); c++ {
			sum[c] += probs[c]
		}
	}
	for c := range sum {
		sum[c] /= float64(len(rf.Trees))
	}
	return sum, nil
}

// FeatureImportances 按不纯度平均下降量计算各特征权重，归一化后合计为 1
func (rf *RandomForest) FeatureImportances() []float64 {
	importances := make([]float64, rf.NumFeatures)
	if len(rf.Trees) == 0 {
		return importances
	}
	for i := range rf.Trees {
		treeImportances := rf.Trees[i].featureImportances(rf.NumFeatures)
		for f, v := range treeImportances {
			importances[f] += v
		}
	}
	total := 0.0
	for _, v := range importances {
		total += v
	}
	if total > 0 {
		for f := range importances {
			importances[f] /= total
		}
	}
	return importances
}
