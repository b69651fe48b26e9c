// Package iforest implements an Isolation Forest ensemble for unsupervised
// anomaly scoring. Points that are easier to isolate by random axis-aligned
// splits receive shorter average path lengths and score as more anomalous.
//
// The forest is fit on one batch and discarded; there is no persisted model
// state across sessions.
package iforest

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// Forest is an isolation forest. It is not safe for concurrent use while
// fitting; a fitted forest may be scored from multiple goroutines.
type Forest struct {
	nTrees        int
	sampleSize    int
	contamination float64
	maxDepth      int
	rng           *rand.Rand

	trees   []*tree
	trained bool

	avgPathLength float64
	offset        float64 // score threshold derived from contamination
}

type tree struct {
	root *node
}

type node struct {
	splitFeature int
	splitValue   float64

	left  *node
	right *node

	size int // samples that reached this leaf
}

// Option configures a Forest.
type Option func(*Forest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *Forest) { f.nTrees = n }
}

// WithSampleSize sets the subsample size for each tree.
func WithSampleSize(n int) Option {
	return func(f *Forest) { f.sampleSize = n }
}

// WithContamination sets the expected proportion of anomalies, used to place
// the decision boundary.
func WithContamination(c float64) Option {
	return func(f *Forest) { f.contamination = c }
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(f *Forest) { f.rng = rand.New(rand.NewSource(seed)) }
}

// New creates a Forest with the given options. Defaults match the tuning the
// detection service relies on: 100 trees, 256-point subsamples, 5%
// contamination, fixed seed.
func New(opts ...Option) *Forest {
	f := &Forest{
		nTrees:        100,
		sampleSize:    256,
		contamination: 0.05,
		rng:           rand.New(rand.NewSource(42)),
	}

	for _, opt := range opts {
		opt(f)
	}

	f.maxDepth = int(math.Ceil(math.Log2(float64(f.sampleSize))))

	return f
}

// Fit trains the forest on data, where each row is a sample and each column a
// feature, and places the decision boundary at the contamination percentile of
// the training scores.
func (f *Forest) Fit(data [][]float64) error {
	if len(data) == 0 {
		return errors.New("empty training data")
	}

	nSamples := len(data)
	nFeatures := len(data[0])
	for _, row := range data {
		if len(row) != nFeatures {
			return errors.New("ragged training data")
		}
	}

	sampleSize := f.sampleSize
	if sampleSize > nSamples {
		sampleSize = nSamples
	}

	f.trees = make([]*tree, f.nTrees)
	for i := 0; i < f.nTrees; i++ {
		indices := f.rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}
		f.trees[i] = &tree{root: f.buildNode(sample, nFeatures, 0)}
	}

	f.avgPathLength = averagePathLength(float64(sampleSize))
	f.trained = true

	// Anomaly scores of the training data decide the offset: the top
	// contamination fraction of scores falls past the boundary.
	scores := f.scores(data)
	f.offset = percentile(scores, 100*(1-f.contamination))

	return nil
}

func (f *Forest) buildNode(data [][]float64, nFeatures, depth int) *node {
	n := len(data)

	if depth >= f.maxDepth || n <= 1 {
		return &node{size: n}
	}

	feature := f.rng.Intn(nFeatures)

	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}

	if minVal == maxVal {
		return &node{size: n}
	}

	splitValue := minVal + f.rng.Float64()*(maxVal-minVal)

	var leftData, rightData [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			leftData = append(leftData, row)
		} else {
			rightData = append(rightData, row)
		}
	}

	return &node{
		splitFeature: feature,
		splitValue:   splitValue,
		left:         f.buildNode(leftData, nFeatures, depth+1),
		right:        f.buildNode(rightData, nFeatures, depth+1),
	}
}

// Scores returns raw anomaly scores in (0, 1] for the given samples, where
// higher means more anomalous.
func (f *Forest) Scores(data [][]float64) ([]float64, error) {
	if !f.trained {
		return nil, errors.New("forest not fitted")
	}
	return f.scores(data), nil
}

// DecisionScores returns boundary-relative scores for the given samples:
// negative values are past the contamination boundary (anomalous), positive
// values are on the normal side. Magnitudes stay within roughly [-0.5, 0.5].
func (f *Forest) DecisionScores(data [][]float64) ([]float64, error) {
	if !f.trained {
		return nil, errors.New("forest not fitted")
	}

	scores := f.scores(data)
	decisions := make([]float64, len(scores))
	for i, s := range scores {
		decisions[i] = f.offset - s
	}
	return decisions, nil
}

func (f *Forest) scores(data [][]float64) []float64 {
	scores := make([]float64, len(data))
	for i, sample := range data {
		scores[i] = f.scoreOne(sample)
	}
	return scores
}

func (f *Forest) scoreOne(sample []float64) float64 {
	var totalPath float64
	for _, t := range f.trees {
		totalPath += pathLength(sample, t.root, 0)
	}
	avgPath := totalPath / float64(len(f.trees))

	// s(x) = 2^(-E[h(x)] / c(n))
	return math.Pow(2, -avgPath/f.avgPathLength)
}

func pathLength(sample []float64, n *node, depth int) float64 {
	if n.left == nil && n.right == nil {
		// Leaf: add the expected remaining path for the samples that
		// ended up here.
		return float64(depth) + averagePathLength(float64(n.size))
	}

	if sample[n.splitFeature] < n.splitValue {
		return pathLength(sample, n.left, depth+1)
	}
	return pathLength(sample, n.right, depth+1)
}

// averagePathLength is the expected path length of an unsuccessful BST search:
// c(n) = 2*H(n-1) - 2*(n-1)/n, with H approximated via the Euler-Mascheroni
// constant.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}
