package ml

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

type DecisionTree struct {
	Nodes []TreeNode `json:"nodes"`
}

type TreeNode struct {
	FeatureIdx  int     `json:"feature_idx"`
	Threshold   float64 `json:"threshold"`
	LeftChild   int     `json:"left_child"`
	RightChild  int     `json:"right_child"`
	ClassCounts []int   `json:"class_counts"`
	Samples     int     `json:"samples"`
	Impurity    float64 `json:"impurity"`
	IsLeaf      bool    `json:"is_leaf"`
}

type TreeConfig struct {
	MaxDepth       int
	MinSamplesLeaf int
	FeatureSubset  int
	NumClasses     int
}

func (dt *DecisionTree) Train(features [][]float64, labels []int, cfg TreeConfig, rng *rand.Rand) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	if cfg.MinSamplesLeaf <= 0 {
		cfg.MinSamplesLeaf = 1
	}
	if cfg.NumClasses <= 0 {
		cfg.NumClasses = countClasses(labels)
	}

	dt.Nodes = nil
	dt.Nodes = dt.buildNode(features, labels, 0, cfg, rng)
	return nil
}

func (dt *DecisionTree) Predict(features []float64) (int, error) {
	probs, err := dt.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(probs), nil
}

func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	leaf, err := dt.leafFor(features)
	if err != nil {
		return nil, err
	}
	probs := make([]float64, len(leaf.ClassCounts))
	if leaf.Samples == 0 {
		return probs, nil
	}
	for i, count := range leaf.ClassCounts {
		probs[i] = float64(count) / float64(leaf.Samples)
	}
	return probs, nil
}

func (dt *DecisionTree) leafFor(features []float64) (TreeNode, error) {
	if len(dt.Nodes) == 0 {
		return TreeNode{}, errors.New("model not trained")
	}
	idx := 0
	for steps := 0; steps <= len(dt.Nodes); steps++ {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return TreeNode{}, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return TreeNode{}, errors.New("invalid tree state")
		}
	}
	return TreeNode{}, errors.New("invalid tree state")
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth int, cfg TreeConfig, rng *rand.Rand) []TreeNode {
	if depth >= cfg.MaxDepth || isPure(labels) || len(labels) < 2*cfg.MinSamplesLeaf {
		return []TreeNode{leafNode(labels, cfg.NumClasses)}
	}

	candidates := candidateFeatures(len(features[0]), cfg.FeatureSubset, rng)
	bestFeature, threshold, ok := findBestSplit(features, labels, candidates, cfg.MinSamplesLeaf)
	if !ok {
		return []TreeNode{leafNode(labels, cfg.NumClasses)}
	}

	leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
	if len(leftLabels) < cfg.MinSamplesLeaf || len(rightLabels) < cfg.MinSamplesLeaf {
		return []TreeNode{leafNode(labels, cfg.NumClasses)}
	}

	leftNodes := dt.buildNode(leftFeatures, leftLabels, depth+1, cfg, rng)
	rightNodes := dt.buildNode(rightFeatures, rightLabels, depth+1, cfg, rng)
	offsetChildren(leftNodes, 1)
	offsetChildren(rightNodes, 1+len(leftNodes))

	root := TreeNode{
		FeatureIdx:  bestFeature,
		Threshold:   threshold,
		LeftChild:   1,
		RightChild:  1 + len(leftNodes),
		ClassCounts: classCounts(labels, cfg.NumClasses),
		Samples:     len(labels),
		Impurity:    gini(labels),
		IsLeaf:      false,
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, leftNodes...)
	nodes = append(nodes, rightNodes...)
	return nodes
}

// Child indexes inside a subtree slice are relative to that slice.
// Shift them when the subtree is appended after the parent root.
func offsetChildren(nodes []TreeNode, offset int) {
	for i := range nodes {
		if nodes[i].IsLeaf {
			continue
		}
		nodes[i].LeftChild += offset
		nodes[i].RightChild += offset
	}
}

func leafNode(labels []int, numClasses int) TreeNode {
	return TreeNode{
		FeatureIdx:  -1,
		Threshold:   0,
		LeftChild:   -1,
		RightChild:  -1,
		ClassCounts: classCounts(labels, numClasses),
		Samples:     len(labels),
		Impurity:    gini(labels),
		IsLeaf:      true,
	}
}

func (dt *DecisionTree) featureImportances(numFeatures int) []float64 {
	importances := make([]float64, numFeatures)
	if len(dt.Nodes) == 0 || dt.Nodes[0].Samples == 0 {
		return importances
	}
	total := float64(dt.Nodes[0].Samples)
	for _, node := range dt.Nodes {
		if node.IsLeaf || node.FeatureIdx < 0 || node.FeatureIdx >= numFeatures {
			continue
		}
		if node.LeftChild < 0 || node.LeftChild >= len(dt.Nodes) {
			continue
		}
		if node.RightChild < 0 || node.RightChild >= len(dt.Nodes) {
			continue
		}
		left := dt.Nodes[node.LeftChild]
		right := dt.Nodes[node.RightChild]
		decrease := float64(node.Samples)*node.Impurity -
			float64(left.Samples)*left.Impurity -
			float64(right.Samples)*right.Impurity
		if decrease > 0 {
			importances[node.FeatureIdx] += decrease / total
		}
	}
	return importances
}

func candidateFeatures(total, subset int, rng *rand.Rand) []int {
	if subset <= 0 || subset >= total || rng == nil {
		indexes := make([]int, total)
		for i := range indexes {
			indexes[i] = i
		}
		return indexes
	}
	return rng.Perm(total)[:subset]
}

func findBestSplit(features [][]float64, labels []int, candidates []int, minLeaf int) (int, float64, bool) {
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	for _, featureIdx := range candidates {
		values := make([]float64, len(features))
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		threshold := median(values)
		leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
		if len(leftLabels) < minLeaf || len(rightLabels) < minLeaf {
			continue
		}
		impurity := weightedGini(leftLabels, rightLabels)
		if impurity < bestImpurity {
			bestImpurity = impurity
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	leftFeatures := make([][]float64, 0)
	leftLabels := make([]int, 0)
	rightFeatures := make([][]float64, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
	leftLabels := make([]int, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftLabels, rightLabels
}

func weightedGini(leftLabels, rightLabels []int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels) + (rightWeight/total)*gini(rightLabels)
}

func gini(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(len(labels))
		impurity -= prob * prob
	}
	return impurity
}

func classCounts(labels []int, numClasses int) []int {
	counts := make([]int, numClasses)
	for _, label := range labels {
		if label >= 0 && label < numClasses {
			counts[label]++
		}
	}
	return counts
}

func countClasses(labels []int) int {
	highest := 1
	for _, label := range labels {
		if label > highest {
			highest = label
		}
	}
	return highest + 1
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func isPure(labels []int) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, label := range labels[1:] {
		if label != first {
			return false
		}
	}
	return true
}
