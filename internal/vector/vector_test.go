package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZero(t *testing.T) {
	z := Zero(768)
	require.Len(t, z, 768)
	for _, x := range z {
		assert.Equal(t, 0.0, x)
	}
	assert.Len(t, Zero(-1), 0)
}

func TestCosine(t *testing.T) {
	same, err := Cosine(Vector{1, 0}, Vector{1, 0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, same)

	orth, err := Cosine(Vector{1, 0}, Vector{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, orth)

	near, err := Cosine(Vector{1, 0}, Vector{0.9, 0.1})
	require.NoError(t, err)
	assert.InDelta(t, 0.9939, near, 1e-4)

	opposite, err := Cosine(Vector{1, 1}, Vector{-2, -2})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, opposite, 1e-12)
}

func TestCosineZeroNorm(t *testing.T) {
	sim, err := Cosine(Vector{0, 0, 0}, Vector{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
	assert.False(t, math.IsNaN(sim))

	sim, err = Cosine(Vector{1, 2, 3}, Vector{0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine(Vector{1, 0}, Vector{1, 0, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMean(t *testing.T) {
	m, err := Mean([]Vector{{1, 2}, {3, 4}}, 2)
	require.NoError(t, err)
	assert.Equal(t, Vector{2, 3}, m)

	empty, err := Mean(nil, 3)
	require.NoError(t, err)
	assert.Equal(t, Vector{0, 0, 0}, empty)

	_, err = Mean([]Vector{{1, 2}, {3}}, 2)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestWeightedSumDoesNotMutate(t *testing.T) {
	a := Vector{1, 1}
	b := Vector{3, 5}
	out, err := WeightedSum(a, 0.5, b, 0.5)
	require.NoError(t, err)
	assert.Equal(t, Vector{2, 3}, out)
	assert.Equal(t, Vector{1, 1}, a)
	assert.Equal(t, Vector{3, 5}, b)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Vector{1, 2}, 2))
	assert.NoError(t, Validate(Vector{1, 2}, 0))
	assert.ErrorIs(t, Validate(nil, 2), ErrEmpty)
	assert.ErrorIs(t, Validate(Vector{1}, 2), ErrDimensionMismatch)
	assert.ErrorIs(t, Validate(Vector{1, math.NaN()}, 2), ErrNonFinite)
	assert.ErrorIs(t, Validate(Vector{math.Inf(1), 0}, 2), ErrNonFinite)
}
