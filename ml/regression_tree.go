package ml

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"sort"
)

// RegressionTree is a CART-style tree stored as a flattened node array.
// Splits minimize weighted variance; leaves predict the target mean.
type RegressionTree struct {
	nodes    []regressionNode
	maxDepth int
}

type regressionNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

const minSamplesSplit = 4

// NewRegressionTree creates an untrained tree with the given depth limit.
func NewRegressionTree(maxDepth int) *RegressionTree {
	if maxDepth <= 0 {
		maxDepth = 6
	}
	return &RegressionTree{maxDepth: maxDepth}
}

// Train builds the tree from scratch.
func (rt *RegressionTree) Train(features [][]float64, targets []float64) error {
	if len(features) == 0 || len(targets) == 0 {
		return errors.New("features or targets empty")
	}
	if len(features) != len(targets) {
		return errors.New("features and targets size mismatch")
	}

	rt.nodes = rt.buildNode(features, targets, 0)
	return nil
}

// Predict walks the tree for one feature vector.
func (rt *RegressionTree) Predict(features []float64) (float64, error) {
	if len(rt.nodes) == 0 {
		return 0, errors.New("model not trained")
	}
	idx := 0
	for {
		node := rt.nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(rt.nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

// Save writes the flattened tree as JSON.
func (rt *RegressionTree) Save(path string) error {
	if len(rt.nodes) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(rt.nodes)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load restores a tree written by Save.
func (rt *RegressionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var nodes []regressionNode
	if err := json.Unmarshal(payload, &nodes); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return errors.New("model file has no nodes")
	}
	rt.nodes = nodes
	return nil
}

func (rt *RegressionTree) buildNode(features [][]float64, targets []float64, depth int) []regressionNode {
	value := meanOf(targets)

	leaf := func() []regressionNode {
		return []regressionNode{{
			FeatureIdx: -1,
			LeftChild:  -1,
			RightChild: -1,
			Value:      value,
			IsLeaf:     true,
		}}
	}

	if depth >= rt.maxDepth || len(targets) < minSamplesSplit || varianceOf(targets) == 0 {
		return leaf()
	}

	bestFeature, threshold, ok := findBestRegressionSplit(features, targets)
	if !ok {
		return leaf()
	}

	leftFeatures, leftTargets, rightFeatures, rightTargets := splitSamples(features, targets, bestFeature, threshold)
	if len(leftTargets) == 0 || len(rightTargets) == 0 {
		return leaf()
	}

	leftNodes := rt.buildNode(leftFeatures, leftTargets, depth+1)
	rightNodes := rt.buildNode(rightFeatures, rightTargets, depth+1)

	root := regressionNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		Value:      value,
		IsLeaf:     false,
	}

	// Subtree arrays carry self-relative child indices; shift each by its
	// base offset when embedding into the parent array.
	nodes := make([]regressionNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	for _, node := range leftNodes {
		if !node.IsLeaf {
			node.LeftChild++
			node.RightChild++
		}
		nodes = append(nodes, node)
	}
	offset := 1 + len(leftNodes)
	for _, node := range rightNodes {
		if !node.IsLeaf {
			node.LeftChild += offset
			node.RightChild += offset
		}
		nodes = append(nodes, node)
	}

	return nodes
}

func findBestRegressionSplit(features [][]float64, targets []float64) (int, float64, bool) {
	featureCount := len(features[0])
	baseVariance := varianceOf(targets) * float64(len(targets))

	bestFeature := -1
	bestThreshold := 0.0
	bestScore := baseVariance

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		values := make([]float64, len(features))
		for i, row := range features {
			values[i] = row[featureIdx]
		}
		sort.Float64s(values)

		for i := 1; i < len(values); i++ {
			if values[i] == values[i-1] {
				continue
			}
			threshold := (values[i] + values[i-1]) / 2

			var left, right []float64
			for j, row := range features {
				if row[featureIdx] <= threshold {
					left = append(left, targets[j])
				} else {
					right = append(right, targets[j])
				}
			}
			if len(left) == 0 || len(right) == 0 {
				continue
			}

			score := varianceOf(left)*float64(len(left)) + varianceOf(right)*float64(len(right))
			if score < bestScore {
				bestScore = score
				bestFeature = featureIdx
				bestThreshold = threshold
			}
		}
	}

	if bestFeature < 0 || bestScore >= baseVariance {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitSamples(features [][]float64, targets []float64, featureIdx int, threshold float64) ([][]float64, []float64, [][]float64, []float64) {
	var leftFeatures, rightFeatures [][]float64
	var leftTargets, rightTargets []float64

	for i, row := range features {
		if row[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, row)
			leftTargets = append(leftTargets, targets[i])
		} else {
			rightFeatures = append(rightFeatures, row)
			rightTargets = append(rightTargets, targets[i])
		}
	}
	return leftFeatures, leftTargets, rightFeatures, rightTargets
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func varianceOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := meanOf(values)
	s := 0.0
	for _, v := range values {
		d := v - mean
		s += d * d
	}
	variance := s / float64(len(values))
	if math.IsNaN(variance) {
		return 0
	}
	return variance
}
