// Package stats provides descriptive statistics, Student-t mean estimation
// and one-sided Grubbs' outlier detection over a sample of entities.
//
// Every precondition failure (empty sample, too few observations, level
// outside [0, 1]) is reported as an error wrapping one of the sentinel
// errors below. No statistic falls back to a zero value.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrNoData is returned by statistics that need at least one observation.
	ErrNoData = errors.New("no data")

	// ErrNotEnoughData is returned when the sample is below the minimum size
	// of a statistic.
	ErrNotEnoughData = errors.New("not enough data")

	// ErrLevelOutOfRange is returned for a confidence or significance level
	// outside [0, 1].
	ErrLevelOutOfRange = errors.New("level out of range [0, 1]")
)

// MeanRange is a two-sided confidence interval for the mean.
type MeanRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Width returns Max - Min.
func (r MeanRange) Width() float64 {
	return r.Max - r.Min
}

// Sample pairs entities with the scalar value each one is measured by.
// Mean and variance are computed on first use and cached, so a Sample is
// not safe for concurrent use.
type Sample[T any] struct {
	items  []T
	values []float64

	moments  bool
	mean     float64
	variance float64
}

// New builds a sample from items, measuring each with valueOf.
func New[T any](items []T, valueOf func(T) float64) *Sample[T] {
	values := make([]float64, len(items))
	for i, item := range items {
		values[i] = valueOf(item)
	}
	return &Sample[T]{items: items, values: values}
}

// Of builds a sample of bare values.
func Of(values []float64) *Sample[float64] {
	return New(values, func(v float64) float64 { return v })
}

// Len returns the number of observations.
func (s *Sample[T]) Len() int {
	return len(s.values)
}

// Total returns the sum of all values, 0 for an empty sample.
func (s *Sample[T]) Total() float64 {
	return floats.Sum(s.values)
}

func (s *Sample[T]) computeMoments() {
	if s.moments {
		return
	}
	switch len(s.values) {
	case 0:
	case 1:
		s.mean = s.values[0]
	default:
		s.mean, s.variance = stat.MeanVariance(s.values, nil)
	}
	s.moments = true
}

// Mean returns the sample mean.
func (s *Sample[T]) Mean() (float64, error) {
	if len(s.values) == 0 {
		return 0, fmt.Errorf("mean: %w", ErrNoData)
	}
	s.computeMoments()
	return s.mean, nil
}

// Median returns the central value, or the average of the two central
// values when the sample size is even.
func (s *Sample[T]) Median() (float64, error) {
	n := len(s.values)
	if n == 0 {
		return 0, fmt.Errorf("median: %w", ErrNoData)
	}

	sorted := append([]float64(nil), s.values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2], nil
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2, nil
}

// Variance returns the unbiased sample variance, sum((x-mean)^2)/(n-1).
func (s *Sample[T]) Variance() (float64, error) {
	if n := len(s.values); n < 2 {
		return 0, fmt.Errorf("variance needs 2 observations, have %d: %w", n, ErrNotEnoughData)
	}
	s.computeMoments()
	return s.variance, nil
}

// StdDev returns the square root of Variance.
func (s *Sample[T]) StdDev() (float64, error) {
	v, err := s.Variance()
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

// EstimateMean returns the two-sided Student-t interval for the mean.
// The t quantile is taken at level/2 with n-1 degrees of freedom, so a
// smaller level gives a wider interval. A level of 0 yields an unbounded
// interval.
func (s *Sample[T]) EstimateMean(level float64) (MeanRange, error) {
	if err := CheckLevel(level); err != nil {
		return MeanRange{}, err
	}
	n := len(s.values)
	if n < 2 {
		return MeanRange{}, fmt.Errorf("mean estimation needs 2 observations, have %d: %w", n, ErrNotEnoughData)
	}

	s.computeMoments()
	sd := math.Sqrt(s.variance)

	t := studentsT(float64(n - 1)).Quantile(level / 2)
	margin := math.Abs(t) * sd / math.Sqrt(float64(n))
	if sd == 0 {
		margin = 0
	}

	return MeanRange{Min: s.mean - margin, Max: s.mean + margin}, nil
}

// Outliers runs a one-sided Grubbs' test on the upper tail and returns the
// entities whose studentized value exceeds the critical value, in input
// order. The t quantile is taken at level/n with n-2 degrees of freedom.
func (s *Sample[T]) Outliers(level float64) ([]T, error) {
	if err := CheckLevel(level); err != nil {
		return nil, err
	}
	n := len(s.values)
	if n < 3 {
		return nil, fmt.Errorf("outlier detection needs 3 observations, have %d: %w", n, ErrNotEnoughData)
	}

	s.computeMoments()
	sd := math.Sqrt(s.variance)
	outliers := []T{}
	if sd == 0 {
		return outliers, nil
	}

	g := s.grubbsCritical(level)
	for i, v := range s.values {
		if (v-s.mean)/sd > g {
			outliers = append(outliers, s.items[i])
		}
	}
	return outliers, nil
}

// grubbsCritical is G = ((n-1)/sqrt(n)) * sqrt(t^2 / (n-2+t^2)).
func (s *Sample[T]) grubbsCritical(level float64) float64 {
	n := float64(len(s.values))
	bound := (n - 1) / math.Sqrt(n)

	t := studentsT(n - 2).Quantile(level / n)
	if math.IsInf(t, 0) {
		return bound
	}
	t2 := t * t
	return bound * math.Sqrt(t2/(n-2+t2))
}

// Min returns the entity with the smallest value. Ties keep the first.
func (s *Sample[T]) Min() (T, error) {
	return s.pick("min", func(a, b float64) bool { return a < b })
}

// Max returns the entity with the largest value. Ties keep the first.
func (s *Sample[T]) Max() (T, error) {
	return s.pick("max", func(a, b float64) bool { return a > b })
}

func (s *Sample[T]) pick(name string, better func(a, b float64) bool) (T, error) {
	var zero T
	if len(s.values) == 0 {
		return zero, fmt.Errorf("%s: %w", name, ErrNoData)
	}
	best := 0
	for i := 1; i < len(s.values); i++ {
		if better(s.values[i], s.values[best]) {
			best = i
		}
	}
	return s.items[best], nil
}

func studentsT(df float64) distuv.StudentsT {
	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
}

// CheckLevel validates a confidence or significance level.
func CheckLevel(level float64) error {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return fmt.Errorf("%v: %w", level, ErrLevelOutOfRange)
	}
	return nil
}
