package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}
	d := []float32{-1, 0, 0}

	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity(a, c), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity(a, d), 1e-9)
}

func TestCosineSimilarity_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestCentroid(t *testing.T) {
	c := Centroid([][]float32{
		{1, 0, 0},
		{0, 1, 0},
	})
	assert.Equal(t, []float32{0.5, 0.5, 0}, c)
}

func TestCentroid_Empty(t *testing.T) {
	assert.Nil(t, Centroid(nil))
	assert.Nil(t, Centroid([][]float32{}))
}

func TestCentroid_SkipsMismatchedDimensions(t *testing.T) {
	c := Centroid([][]float32{
		{2, 0},
		{1, 2, 3},
		{0, 2},
	})
	assert.Equal(t, []float32{1, 1}, c)
}
