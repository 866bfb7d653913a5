// Package vector holds the dense embedding type and the arithmetic the
// ranking engine needs on it.
package vector

import (
	"errors"
	"fmt"
	"math"
)

// Vector is a fixed-length embedding. Functions in this package never
// modify their arguments.
type Vector []float64

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrNonFinite         = errors.New("vector contains NaN or Inf")
	ErrEmpty             = errors.New("vector is empty")
)

// Zero returns the zero vector of the given dimensionality.
func Zero(dim int) Vector {
	if dim < 0 {
		dim = 0
	}
	return make(Vector, dim)
}

// Validate checks that v has exactly dim components, all finite.
// dim <= 0 skips the length check.
func Validate(v Vector, dim int) error {
	if len(v) == 0 {
		return ErrEmpty
	}
	if dim > 0 && len(v) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), dim)
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ErrNonFinite
		}
	}
	return nil
}

// Mean returns the element-wise arithmetic mean. All inputs must share
// the same length; an empty input yields the zero vector of dim.
func Mean(vs []Vector, dim int) (Vector, error) {
	if len(vs) == 0 {
		return Zero(dim), nil
	}
	n := len(vs[0])
	sum := make(Vector, n)
	for _, v := range vs {
		if len(v) != n {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), n)
		}
		for i, x := range v {
			sum[i] += x
		}
	}
	count := float64(len(vs))
	for i := range sum {
		sum[i] /= count
	}
	return sum, nil
}

// WeightedSum returns wa*a + wb*b.
func WeightedSum(a Vector, wa float64, b Vector, wb float64) (Vector, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	out := make(Vector, len(a))
	for i := range a {
		out[i] = wa*a[i] + wb*b[i]
	}
	return out, nil
}

// Dot returns the inner product of a and b.
func Dot(a, b Vector) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm returns the euclidean length of v.
func Norm(v Vector) float64 {
	return math.Sqrt(Dot(v, v))
}

// Cosine returns dot(a,b) / (|a|*|b|).
// If either vector has zero norm the similarity is defined as 0.
func Cosine(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	sim := Dot(a, b) / (na * nb)
	// rounding can push parallel vectors a hair past 1
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}
