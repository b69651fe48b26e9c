package iforest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		wantNTrees int
	}{
		{
			name:       "default configuration",
			opts:       nil,
			wantNTrees: 100,
		},
		{
			name:       "custom trees",
			opts:       []Option{WithTrees(50)},
			wantNTrees: 50,
		},
		{
			name:       "multiple options",
			opts:       []Option{WithTrees(200), WithContamination(0.1), WithSeed(123)},
			wantNTrees: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.opts...)
			assert.Equal(t, tt.wantNTrees, f.nTrees)
		})
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name    string
		data    [][]float64
		wantErr bool
	}{
		{
			name:    "empty data",
			data:    [][]float64{},
			wantErr: true,
		},
		{
			name:    "ragged data",
			data:    [][]float64{{1, 2, 3}, {1, 2}},
			wantErr: true,
		},
		{
			name:    "single sample",
			data:    [][]float64{{1.0, 2.0, 3.0}},
			wantErr: false,
		},
		{
			name:    "normal data",
			data:    generateTestData(100, 5),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(WithTrees(10), WithSeed(42))
			err := f.Fit(tt.data)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.True(t, f.trained)
				assert.Len(t, f.trees, f.nTrees)
			}
		})
	}
}

func TestScores(t *testing.T) {
	trainData := generateTestData(500, 5)
	f := New(WithTrees(50), WithSampleSize(100), WithSeed(42))
	require.NoError(t, f.Fit(trainData))

	t.Run("scores on normal data", func(t *testing.T) {
		scores, err := f.Scores(generateTestData(100, 5))

		require.NoError(t, err)
		assert.Len(t, scores, 100)
		for _, score := range scores {
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	})

	t.Run("anomalies score higher", func(t *testing.T) {
		anomalies := [][]float64{
			{1000, 1000, 1000, 1000, 1000},
			{-500, -500, -500, -500, -500},
		}
		scores, err := f.Scores(anomalies)

		require.NoError(t, err)
		for _, score := range scores {
			assert.Greater(t, score, 0.4, "anomalies should have high scores")
		}
	})

	t.Run("scores before fit", func(t *testing.T) {
		untrained := New()
		_, err := untrained.Scores(trainData)
		assert.Error(t, err)
	})
}

func TestDecisionScores(t *testing.T) {
	trainData := generateTestData(400, 4)
	f := New(WithTrees(50), WithContamination(0.05), WithSeed(42))
	require.NoError(t, f.Fit(trainData))

	t.Run("anomalies fall below zero", func(t *testing.T) {
		decisions, err := f.DecisionScores([][]float64{
			{500, 500, 500, 500},
		})
		require.NoError(t, err)
		assert.Negative(t, decisions[0])
	})

	t.Run("typical points stay above zero", func(t *testing.T) {
		decisions, err := f.DecisionScores([][]float64{
			{0, 0, 0, 0},
		})
		require.NoError(t, err)
		assert.Positive(t, decisions[0])
	})

	t.Run("roughly contamination fraction of training data is flagged", func(t *testing.T) {
		decisions, err := f.DecisionScores(trainData)
		require.NoError(t, err)

		flagged := 0
		for _, d := range decisions {
			if d < 0 {
				flagged++
			}
		}
		fraction := float64(flagged) / float64(len(trainData))
		assert.LessOrEqual(t, fraction, 0.10)
	})

	t.Run("decision scores before fit", func(t *testing.T) {
		untrained := New()
		_, err := untrained.DecisionScores(trainData)
		assert.Error(t, err)
	})
}

func TestFit_Deterministic(t *testing.T) {
	data := generateTestData(300, 6)

	a := New(WithTrees(30), WithSeed(7))
	b := New(WithTrees(30), WithSeed(7))
	require.NoError(t, a.Fit(data))
	require.NoError(t, b.Fit(data))

	sa, err := a.Scores(data)
	require.NoError(t, err)
	sb, err := b.Scores(data)
	require.NoError(t, err)

	assert.Equal(t, sa, sb)
}

func BenchmarkFit(b *testing.B) {
	data := generateTestData(10000, 8)
	f := New(WithTrees(100), WithSampleSize(256))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Fit(data)
	}
}

func BenchmarkScores(b *testing.B) {
	trainData := generateTestData(5000, 8)
	testData := generateTestData(1000, 8)

	f := New(WithTrees(100), WithSampleSize(256))
	f.Fit(trainData)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Scores(testData)
	}
}

func generateTestData(n, features int) [][]float64 {
	rng := rand.New(rand.NewSource(1))
	data := make([][]float64, n)
	for i := 0; i < n; i++ {
		data[i] = make([]float64, features)
		for j := 0; j < features; j++ {
			data[i][j] = rng.NormFloat64()
		}
	}
	return data
}
